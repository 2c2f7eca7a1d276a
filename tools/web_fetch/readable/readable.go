package readable

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/brieflab/internal/helpers"
	"github.com/mohammad-safakhou/brieflab/tools/web_fetch/models"
)

// Parse reduces raw HTML to its main article. maxChars <= 0 keeps the whole text.
func Parse(html, pageURL string, maxChars int) (models.Result, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return models.Result{URL: pageURL}, fmt.Errorf("readability: %w", err)
	}

	sum := sha1.Sum([]byte(html))
	return models.Result{
		URL:      pageURL,
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		SiteName: strings.TrimSpace(article.SiteName),
		Excerpt:  strings.TrimSpace(article.Excerpt),
		Text:     strings.TrimSpace(helpers.Truncate(article.TextContent, maxChars)),
		TopImage: article.Image,
		HTMLHash: hex.EncodeToString(sum[:]),
	}, nil
}
