package runtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammad-safakhou/brieflab/config"
)

var secret = []byte("test-secret")

func TestSignAndParseJWT(t *testing.T) {
	tok, err := SignJWT("alice", secret, time.Hour, "reports:read reports:write", "reports:read")
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	claims, err := ParseJWT(tok, secret)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("expected %q, got %q", "alice", claims.Subject)
	}
	if len(claims.Scopes) != 2 {
		t.Fatalf("expected deduplicated scopes, got %v", claims.Scopes)
	}
	if _, err := ParseJWT(tok, []byte("other")); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}
	expired, _ := SignJWT("alice", secret, -time.Minute)
	if _, err := ParseJWT(expired, secret); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestLoadJWTSecret(t *testing.T) {
	if _, err := LoadJWTSecret(&config.Config{}); !errors.Is(err, ErrAuthDisabled) {
		t.Fatalf("expected ErrAuthDisabled, got %v", err)
	}
	got, err := LoadJWTSecret(&config.Config{Server: config.ServerConfig{JWTSecret: " s3cret "}})
	if err != nil || string(got) != "s3cret" {
		t.Fatalf("expected trimmed secret, got %q, %v", got, err)
	}
}

func serve(t *testing.T, header string, mw ...echo.MiddlewareFunc) (int, string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var subject string
	h := func(c echo.Context) error {
		subject, _ = SubjectFromContext(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	}
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	if err := h(c); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he.Code, subject
		}
		t.Fatalf("unexpected error: %v", err)
	}
	return rec.Code, subject
}

func TestEchoAuthMiddleware(t *testing.T) {
	auth := EchoAuthMiddleware(secret)
	if code, _ := serve(t, "", auth); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code, _ := serve(t, "Bearer garbage", auth); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", code)
	}
	tok, _ := SignJWT("bob", secret, time.Hour)
	code, subject := serve(t, "Bearer "+tok, auth)
	if code != http.StatusNoContent || subject != "bob" {
		t.Fatalf("expected 204 for bob, got %d %q", code, subject)
	}
}

func TestRequireScopes(t *testing.T) {
	auth := EchoAuthMiddleware(secret)
	write := RequireScopes(ScopeReportsWrite)

	readOnly, _ := SignJWT("r", secret, time.Hour, ScopeReportsRead)
	if code, _ := serve(t, "Bearer "+readOnly, auth, write); code != http.StatusForbidden {
		t.Fatalf("expected 403 for read-only token, got %d", code)
	}
	full, _ := SignJWT("w", secret, time.Hour, ScopeReportsRead, ScopeReportsWrite)
	if code, _ := serve(t, "Bearer "+full, auth, write); code != http.StatusNoContent {
		t.Fatalf("expected 204 for write token, got %d", code)
	}
	unscoped, _ := SignJWT("u", secret, time.Hour)
	if code, _ := serve(t, "Bearer "+unscoped, auth, write); code != http.StatusNoContent {
		t.Fatalf("expected 204 for unscoped token, got %d", code)
	}
}

func TestSetupTelemetry_Disabled(t *testing.T) {
	tel, err := SetupTelemetry(context.Background(), config.TelemetryConfig{}, TelemetryOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}

func TestSetupTelemetry_PrometheusOnly(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel, err := SetupTelemetry(context.Background(), config.TelemetryConfig{Enabled: true, ServiceName: "test"}, TelemetryOptions{Registerer: reg})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tel.tp != nil {
		t.Fatalf("expected no trace provider without an otlp endpoint")
	}
	if tel.mp == nil {
		t.Fatalf("expected a meter provider")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}
