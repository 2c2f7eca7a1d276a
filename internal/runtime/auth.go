package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/brieflab/config"
)

// Scopes granted by API tokens.
const (
	ScopeReportsRead  = "reports:read"
	ScopeReportsWrite = "reports:write"
)

// ErrAuthDisabled is returned when no JWT secret is configured.
var ErrAuthDisabled = errors.New("jwt secret not configured (server.jwt_secret)")

// Claims are the registered claims plus the scopes a token grants.
type Claims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// LoadJWTSecret returns server.jwt_secret, or ErrAuthDisabled when it is empty.
func LoadJWTSecret(cfg *config.Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	secret := strings.TrimSpace(cfg.Server.JWTSecret)
	if secret == "" {
		return nil, ErrAuthDisabled
	}
	return []byte(secret), nil
}

// SignJWT issues an HS256 token for subject valid for ttl.
func SignJWT(subject string, secret []byte, ttl time.Duration, scopes ...string) (string, error) {
	if len(secret) == 0 {
		return "", ErrAuthDisabled
	}
	now := time.Now()
	claims := Claims{
		Scopes: normaliseScopes(scopes),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "brieflab",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseJWT validates a token signed with secret and returns its claims.
func ParseJWT(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// EchoAuthMiddleware validates the bearer token (or auth cookie) of every request.
func EchoAuthMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := extractToken(c)
			if tok == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			claims, err := ParseJWT(tok, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			ctx := context.WithValue(c.Request().Context(), subjectKey{}, claims.Subject)
			ctx = context.WithValue(ctx, scopeKey{}, claims.Scopes)
			c.Set("user_id", claims.Subject)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	if ck, err := c.Cookie("auth"); err == nil {
		return ck.Value
	}
	return ""
}

type subjectKey struct{}

// SubjectFromContext returns the token subject stored by EchoAuthMiddleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok
}

type scopeKey struct{}

// ScopesFromContext returns the token scopes stored by EchoAuthMiddleware.
func ScopesFromContext(ctx context.Context) ([]string, bool) {
	if ctx == nil {
		return nil, false
	}
	scopes, ok := ctx.Value(scopeKey{}).([]string)
	return scopes, ok
}

// RequireScopes rejects requests whose token lacks any of required.
// Tokens without scopes are treated as full access.
func RequireScopes(required ...string) echo.MiddlewareFunc {
	required = normaliseScopes(required)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			granted, _ := ScopesFromContext(c.Request().Context())
			if len(granted) == 0 {
				return next(c)
			}
			for _, scope := range required {
				if !slices.Contains(granted, scope) {
					return echo.NewHTTPError(http.StatusForbidden, "missing scope: "+scope)
				}
			}
			return next(c)
		}
	}
}

func normaliseScopes(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Fields(s) {
			if !slices.Contains(out, part) {
				out = append(out, part)
			}
		}
	}
	return out
}
