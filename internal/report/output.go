package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mohammad-safakhou/brieflab/internal/helpers"
)

// Files are the paths written by Write. PDF is empty when no PDF was given.
type Files struct {
	HTML string
	PDF  string
}

// FileStem returns "<slug>-<timestamp>" for a report title.
func FileStem(title string, at time.Time) string {
	return helpers.Slugify(title, 60) + "-" + at.Format("20060102-150405")
}

// Write stores a rendered report under dir, creating it when missing.
func Write(dir, title string, html, pdf []byte, at time.Time) (Files, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("create output dir: %w", err)
	}
	stem := filepath.Join(dir, FileStem(title, at))

	files := Files{HTML: stem + ".html"}
	if err := os.WriteFile(files.HTML, html, 0o644); err != nil {
		return Files{}, fmt.Errorf("write html: %w", err)
	}
	if len(pdf) > 0 {
		files.PDF = stem + ".pdf"
		if err := os.WriteFile(files.PDF, pdf, 0o644); err != nil {
			return files, fmt.Errorf("write pdf: %w", err)
		}
	}
	return files, nil
}
