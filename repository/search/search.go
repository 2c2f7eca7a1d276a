package search

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/brieflab/models"
)

// document is the indexed view of one report.
type document struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Source   string `json:"source"`
	Kind     string `json:"kind"`
	Body     string `json:"body"`
}

// Hit is one ranked search result.
type Hit struct {
	ID    string
	Score float64
}

// Index is a full-text index over archived reports.
type Index struct {
	mu    sync.RWMutex
	bleve bleve.Index
}

// Open returns an in-memory index for an empty path, otherwise opens the
// index at path, creating it when missing.
func Open(path string) (*Index, error) {
	var (
		idx bleve.Index
		err error
	)
	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	default:
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			idx, err = bleve.New(path, bleve.NewIndexMapping())
		} else {
			idx, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &Index{bleve: idx}, nil
}

// Add indexes a report summary together with its plain text body.
func (i *Index) Add(s models.ReportListing, body string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.bleve.Index(s.ID, document{
		Title:    s.Title,
		Abstract: s.Abstract,
		Source:   s.Source,
		Kind:     string(s.Kind),
		Body:     body,
	})
}

// Search runs a query string query and returns at most limit hits, best first.
func (i *Index) Search(q string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(q), limit, 0, false)
	res, err := i.bleve.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, Hit{ID: h.ID, Score: h.Score})
	}
	return out, nil
}

// Count returns the number of indexed reports.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.bleve.DocCount()
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.bleve.Close()
}
