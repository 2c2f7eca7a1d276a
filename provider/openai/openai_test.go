package openai_provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/brieflab/models"
)

func newTestClient(t *testing.T, url string) (*Client, *[]time.Duration) {
	t.Helper()
	c := NewChatClient(ChatOptions{
		BaseURL: url,
		APIKey:  "test-key",
		Models:  map[string]string{"fast": "qwen3-235b"},
	}, nil, nil)
	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return c, &waits
}

func TestInvoke_Success(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Fatalf("expected bearer auth, got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	out, err := c.Invoke(context.Background(), models.ModelRequest{System: "sys", User: "usr", Model: "fast", Temperature: 0.3, MaxTokens: 100})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "hello" {
		t.Fatalf("expected %q, got %q", "hello", out)
	}
	if got.Model != "qwen3-235b" {
		t.Fatalf("expected alias to resolve to qwen3-235b, got %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "usr" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	if got.Temperature != 0.3 || got.MaxTokens != 100 {
		t.Fatalf("unexpected sampling params: %+v", got)
	}
}

func TestInvoke_RateLimitExhaustsThreeAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, waits := newTestClient(t, srv.URL)
	_, err := c.Invoke(context.Background(), models.ModelRequest{User: "x"})
	if !errors.Is(err, models.ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
	if len(*waits) != 2 || (*waits)[0] != time.Second || (*waits)[1] != 2*time.Second {
		t.Fatalf("expected backoff [1s 2s], got %v", *waits)
	}
}

func TestInvoke_RecoversAfterRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	out, err := c.Invoke(context.Background(), models.ModelRequest{User: "x"})
	if err != nil || out != "ok" {
		t.Fatalf("expected ok, got %q / %v", out, err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}

func TestInvoke_OtherStatusFailsImmediately(t *testing.T) {
	var calls int32
	body := strings.Repeat("e", 2000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.Invoke(context.Background(), models.ModelRequest{User: "x"})
	var mce *models.ModelCallError
	if !errors.As(err, &mce) {
		t.Fatalf("expected ModelCallError, got %v", err)
	}
	if mce.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", mce.StatusCode)
	}
	if len(mce.Body) != maxErrorBody {
		t.Fatalf("expected body truncated to %d, got %d", maxErrorBody, len(mce.Body))
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestInvoke_MissingAPIKey(t *testing.T) {
	c := NewChatClient(ChatOptions{}, nil, nil)
	_, err := c.Invoke(context.Background(), models.ModelRequest{User: "x"})
	var mce *models.ModelCallError
	if !errors.As(err, &mce) {
		t.Fatalf("expected ModelCallError, got %v", err)
	}
}
