package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mohammad-safakhou/brieflab/internal/helpers"
	"github.com/mohammad-safakhou/brieflab/models"
	"github.com/mohammad-safakhou/brieflab/tools/web_fetch"
	"github.com/mohammad-safakhou/brieflab/tools/web_fetch/readable"
)

const (
	DefaultMaxLength = 100000
	TruncationMarker = "\n\n[Content truncated...]"

	defaultTextTitle = "Text Analysis"
	maxTitleLine     = 150
	maxPathLength    = 255
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrEmptyContent      = errors.New("no text content")
)

// SupportedExtensions lists the file types FromFile and FromBytes accept.
var SupportedExtensions = []string{".pdf", ".docx", ".epub", ".html", ".htm", ".txt", ".md"}

// Extractor turns a URL, a document or raw text into cleaned pipeline input.
type Extractor struct {
	fetcher   web_fetch.WebFetcher
	maxLength int
	logger    *zap.Logger
	now       func() time.Time
}

// NewExtractor returns an Extractor. fetcher may be nil when only files and
// text are extracted.
func NewExtractor(fetcher web_fetch.WebFetcher, maxLength int, logger *zap.Logger) *Extractor {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, maxLength: maxLength, logger: logger, now: time.Now}
}

// Extract detects what source is: an http(s) URL, an existing file path, or
// otherwise raw text.
func (e *Extractor) Extract(ctx context.Context, source string) (models.Content, error) {
	trimmed := strings.TrimSpace(source)
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return e.FromURL(ctx, trimmed)
	}
	if len(trimmed) > 0 && len(trimmed) < maxPathLength && !strings.ContainsAny(trimmed, "\n\r") {
		if info, err := os.Stat(trimmed); err == nil && !info.IsDir() {
			return e.FromFile(ctx, trimmed)
		}
	}
	return e.FromText(source, "")
}

// FromURL fetches and reduces a web page to its article text.
func (e *Extractor) FromURL(ctx context.Context, raw string) (models.Content, error) {
	if e.fetcher == nil {
		return models.Content{}, errors.New("no web fetcher configured")
	}
	u, err := helpers.NormalizeSourceURL(raw)
	if err != nil {
		return models.Content{}, err
	}
	e.logger.Info("fetching url", zap.String("url", u))
	res, err := e.fetcher.Exec(ctx, u)
	if err != nil {
		return models.Content{}, fmt.Errorf("fetch %s: %w", u, err)
	}
	title := res.Title
	if title == "" {
		title = "Untitled"
	}
	c, err := e.build(title, res.Text, u, models.SourceURL)
	if err != nil {
		return models.Content{}, err
	}
	c.Byline = res.Byline
	return c, nil
}

// FromText cleans raw text. An empty title is taken from the first line when
// it is short enough to be one.
func (e *Extractor) FromText(text, title string) (models.Content, error) {
	cleaned := Clean(text)
	title = strings.TrimSpace(title)
	if title == "" {
		title = TitleFromText(cleaned)
	}
	return e.build(title, cleaned, "direct_input", models.SourceText)
}

// FromFile reads a document from disk.
func (e *Extractor) FromFile(ctx context.Context, path string) (models.Content, error) {
	if err := ctx.Err(); err != nil {
		return models.Content{}, err
	}
	if !Supported(path) {
		return models.Content{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Content{}, fmt.Errorf("read %s: %w", path, err)
	}
	c, err := e.FromBytes(filepath.Base(path), data)
	if err != nil {
		return models.Content{}, err
	}
	c.Source = path
	return c, nil
}

// FromBytes extracts an uploaded document, dispatching on the extension of name.
func (e *Extractor) FromBytes(name string, data []byte) (models.Content, error) {
	ext := strings.ToLower(filepath.Ext(name))
	title := TitleFromFilename(name)

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	case ".epub":
		var bookTitle string
		bookTitle, text, err = extractEPUB(data)
		if bookTitle != "" {
			title = bookTitle
		}
	case ".html", ".htm":
		var res readableResult
		res, err = extractHTML(data, name)
		text = res.text
		if res.title != "" {
			title = res.title
		}
	case ".txt", ".md":
		text = string(data)
	default:
		return models.Content{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return models.Content{}, fmt.Errorf("extract %s: %w", name, err)
	}
	e.logger.Debug("extracted document", zap.String("name", name), zap.Int("chars", len(text)))
	return e.build(title, Clean(text), name, models.SourceFile)
}

func (e *Extractor) build(title, text, source string, kind models.SourceType) (models.Content, error) {
	text = Clean(text)
	if text == "" {
		return models.Content{}, ErrEmptyContent
	}
	text, truncated := Cap(text, e.maxLength)
	if truncated {
		e.logger.Warn("content truncated", zap.String("source", source), zap.Int("limit", e.maxLength))
	}
	return models.Content{
		Title:      strings.TrimSpace(title),
		Text:       text,
		Source:     source,
		SourceType: kind,
		WordCount:  helpers.WordCount(text),
		Truncated:  truncated,
		FetchedAt:  e.now().UTC(),
	}, nil
}

// Supported reports whether the extension of name can be extracted.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}

// Cap cuts text to limit runes and appends the truncation marker.
func Cap(text string, limit int) (string, bool) {
	cut := helpers.Truncate(text, limit)
	if len(cut) == len(text) {
		return text, false
	}
	return cut + TruncationMarker, true
}

// TitleFromText returns the first line when it reads like a title.
func TitleFromText(text string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	first = strings.TrimSpace(first)
	if first == "" || len([]rune(first)) >= maxTitleLine {
		return defaultTextTitle
	}
	return first
}

var titleCaser = cases.Title(language.English)

// TitleFromFilename turns "my_report-final.pdf" into "My Report Final".
func TitleFromFilename(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" {
		return "Untitled Document"
	}
	return titleCaser.String(stem)
}

type readableResult struct {
	title string
	text  string
}

func extractHTML(data []byte, name string) (readableResult, error) {
	res, err := readable.Parse(string(data), "file:///"+filepath.Base(name), 0)
	if err != nil {
		return readableResult{}, err
	}
	return readableResult{title: res.Title, text: res.Text}, nil
}
