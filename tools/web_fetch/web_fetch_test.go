package web_fetch

import (
	"testing"

	"github.com/mohammad-safakhou/brieflab/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/brieflab/tools/web_fetch/httpfetch"
)

func TestNewWebFetcher(t *testing.T) {
	f, err := NewWebFetcher("", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hf, ok := f.(httpfetch.Fetch)
	if !ok {
		t.Fatalf("expected http fetcher by default, got %T", f)
	}
	if hf.Timeout != DefaultTimeout || hf.MaxChars != MaxCharsDefault || hf.UserAgent != DefaultUserAgent {
		t.Fatalf("expected defaults, got %+v", hf)
	}

	f, err = NewWebFetcher(ChromedpFetcherType, Options{MaxChars: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cf, ok := f.(chromedp.Fetch); !ok || cf.MaxChars != 10 {
		t.Fatalf("expected chromedp fetcher, got %#v", f)
	}

	if _, err := NewWebFetcher("carrier-pigeon", Options{}); err == nil {
		t.Fatalf("expected unsupported fetcher error")
	}
}
