package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/internal/helpers"
	"github.com/mohammad-safakhou/brieflab/models"
)

const (
	DefaultBaseURL     = "https://api.venice.ai/api/v1"
	DefaultTimeout     = 120 * time.Second
	DefaultMaxAttempts = 3
	DefaultBackoffBase = time.Second

	maxErrorBody = 500
)

// ChatOptions configures a chat-completions client.
type ChatOptions struct {
	BaseURL string
	APIKey  string
	// Models maps routing aliases ("fast", "reasoning", ...) to API model names.
	// Unknown aliases are sent verbatim.
	Models       map[string]string
	DefaultModel string
	Timeout      time.Duration
	MaxAttempts  int
	// BackoffBase is the wait before the second attempt; it doubles after every 429.
	BackoffBase time.Duration
	// VeniceParameters disables the provider side system prompt and thinking output.
	VeniceParameters bool
}

// Client calls an OpenAI compatible /chat/completions endpoint.
type Client struct {
	opts       ChatOptions
	httpClient *http.Client
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string         `json:"model"`
	Messages         []chatMessage  `json:"messages"`
	Temperature      float64        `json:"temperature"`
	MaxTokens        int            `json:"max_tokens,omitempty"`
	VeniceParameters map[string]any `json:"venice_parameters,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewChatClient builds a Client. httpClient is shared across runs; a nil value uses http.DefaultClient.
func NewChatClient(opts ChatOptions, httpClient *http.Client, logger *zap.Logger) *Client {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{opts: opts, httpClient: httpClient, logger: logger, sleep: sleepContext}
}

// Invoke sends one system+user exchange and returns the assistant text.
// HTTP 429 is retried with exponential backoff up to MaxAttempts, after which
// the returned error wraps models.ErrRateLimitExceeded. Any other failure is
// returned at once as *models.ModelCallError.
func (c *Client) Invoke(ctx context.Context, req models.ModelRequest) (string, error) {
	if c.opts.APIKey == "" {
		return "", &models.ModelCallError{Err: errors.New("api key not configured")}
	}
	apiModel := c.resolveModel(req.Model)
	payload := chatRequest{
		Model: apiModel,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if c.opts.VeniceParameters {
		payload.VeniceParameters = map[string]any{"include_venice_system_prompt": false}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &models.ModelCallError{Err: fmt.Errorf("marshal: %w", err)}
	}

	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		text, status, err := c.do(ctx, body)
		if err == nil {
			return text, nil
		}
		if status != http.StatusTooManyRequests {
			return "", err
		}
		if attempt == c.opts.MaxAttempts-1 {
			break
		}
		wait := c.opts.BackoffBase * time.Duration(1<<attempt)
		c.logger.Warn("rate limited by model endpoint",
			zap.String("model", apiModel),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait))
		if err := c.sleep(ctx, wait); err != nil {
			return "", &models.ModelCallError{Err: err}
		}
	}
	return "", fmt.Errorf("model %s: %w after %d attempts", apiModel, models.ErrRateLimitExceeded, c.opts.MaxAttempts)
}

func (c *Client) do(ctx context.Context, body []byte) (string, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.opts.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, &models.ModelCallError{Err: fmt.Errorf("request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, &models.ModelCallError{Err: fmt.Errorf("do: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", resp.StatusCode, &models.ModelCallError{
			StatusCode: resp.StatusCode,
			Body:       helpers.Truncate(strings.TrimSpace(string(raw)), maxErrorBody),
		}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", resp.StatusCode, &models.ModelCallError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	if len(out.Choices) == 0 {
		return "", resp.StatusCode, &models.ModelCallError{StatusCode: resp.StatusCode, Err: errors.New("no choices")}
	}
	c.logger.Debug("model call completed",
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens))
	return out.Choices[0].Message.Content, resp.StatusCode, nil
}

func (c *Client) resolveModel(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		alias = c.opts.DefaultModel
	}
	if name, ok := c.opts.Models[alias]; ok && name != "" {
		return name
	}
	return alias
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
