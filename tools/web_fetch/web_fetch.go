package web_fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/brieflab/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/brieflab/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/brieflab/tools/web_fetch/models"
)

const (
	DefaultTimeout   = 30 * time.Second
	MaxCharsDefault  = 100000
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

// Options configures NewWebFetcher. Client is only used by the http fetcher.
type Options struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
	Client    *http.Client
}

func NewWebFetcher(fetcherType FetcherType, opts Options) (WebFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = MaxCharsDefault
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	switch fetcherType {
	case HTTPFetcherType, "":
		return httpfetch.Fetch{Client: opts.Client, Timeout: opts.Timeout, MaxChars: opts.MaxChars, UserAgent: opts.UserAgent}, nil
	case ChromedpFetcherType:
		return chromedp.Fetch{Timeout: opts.Timeout, MaxChars: opts.MaxChars, UserAgent: opts.UserAgent}, nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type %q", fetcherType)
	}
}
