package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/config"
	"github.com/mohammad-safakhou/brieflab/models"
	openai_provider "github.com/mohammad-safakhou/brieflab/provider/openai"
)

// ModelClient is the chat-completions contract the pipelines depend on.
type ModelClient interface {
	Invoke(ctx context.Context, req models.ModelRequest) (string, error)
}

// ImageGenerator is the illustration contract the pipelines depend on.
type ImageGenerator interface {
	Generate(ctx context.Context, req models.ImageRequest) (*models.GeneratedImage, error)
}

// Provider bundles the model and image clients of one process. Both share a
// bounded connection pool and are safe for concurrent runs.
type Provider struct {
	Chat   *openai_provider.Client
	images *openai_provider.ImageClient
	HTTP   *http.Client
}

// NewHTTPClient returns a client whose transport caps connections per host.
func NewHTTPClient(maxConnsPerHost int) *http.Client {
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = 16
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxConnsPerHost * 2,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport}
}

// NewProvider builds the clients described by cfg. The image client is only
// created when images are enabled.
func NewProvider(cfg *config.Config, logger *zap.Logger) (*Provider, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := NewHTTPClient(cfg.LLM.MaxConnsPerHost)

	p := &Provider{
		HTTP: httpClient,
		Chat: openai_provider.NewChatClient(openai_provider.ChatOptions{
			BaseURL:          cfg.LLM.BaseURL,
			APIKey:           cfg.LLM.APIKey,
			Models:           cfg.LLM.Models,
			DefaultModel:     cfg.LLM.DefaultModel,
			Timeout:          cfg.LLM.Timeout,
			MaxAttempts:      cfg.LLM.MaxAttempts,
			BackoffBase:      cfg.LLM.BackoffBase,
			VeniceParameters: cfg.LLM.VeniceParameters,
		}, httpClient, logger.Named("llm")),
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("no llm api key configured; model calls will fail")
	}

	if cfg.Images.Enabled && cfg.Pipeline.GenerateImages {
		p.images = openai_provider.NewImageClient(openai_provider.ImageOptions{
			APIStyle: openai_provider.ImageAPIStyle(cfg.Images.APIStyle),
			BaseURL:  cfg.Images.BaseURL,
			APIKey:   cfg.Images.APIKey,
			Model:    cfg.Images.Model,
			Width:    cfg.Images.Width,
			Height:   cfg.Images.Height,
			Style:    cfg.Images.Style,
			SafeMode: cfg.Images.SafeMode,
			Timeout:  cfg.Images.Timeout,
		}, httpClient, logger.Named("images"))
	}
	return p, nil
}

// Images returns the image generator, or a nil interface when images are disabled.
func (p *Provider) Images() ImageGenerator {
	if p == nil || p.images == nil {
		return nil
	}
	return p.images
}
