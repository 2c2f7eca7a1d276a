package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/brieflab/tools/web_fetch/models"
	"github.com/mohammad-safakhou/brieflab/tools/web_fetch/readable"
)

const maxBodyBytes = 10 << 20

// Fetch downloads pages with a plain GET and extracts the article.
type Fetch struct {
	Client    *http.Client
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
}

func (f Fetch) Exec(ctx context.Context, url string) (models.Result, error) {
	if strings.TrimSpace(url) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Result{URL: url}, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return models.Result{URL: url}, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	elapsed := func() int { return int(time.Since(t0) / time.Millisecond) }
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Result{URL: url, Status: resp.StatusCode, RenderMS: elapsed()}, fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.Result{URL: url, Status: resp.StatusCode, RenderMS: elapsed()}, fmt.Errorf("read body: %w", err)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	res, err := readable.Parse(string(raw), finalURL, f.MaxChars)
	res.Status = resp.StatusCode
	res.RenderMS = elapsed()
	return res, err
}
