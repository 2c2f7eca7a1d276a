package search

import (
	"path/filepath"
	"testing"

	"github.com/mohammad-safakhou/brieflab/models"
)

func TestIndex_Search(t *testing.T) {
	idx, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	_ = idx.Add(models.ReportListing{ID: "a", Title: "River floods", Kind: models.ReportAnalysis}, "levels rose along the delta")
	_ = idx.Add(models.ReportListing{ID: "b", Title: "Photosynthesis", Kind: models.ReportLearning}, "chlorophyll absorbs light")

	hits, err := idx.Search("chlorophyll", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "b" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if n, _ := idx.Count(); n != 2 {
		t.Fatalf("expected 2 documents, got %d", n)
	}
}

func TestOpen_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.bleve")
	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = idx.Add(models.ReportListing{ID: "a", Title: "Tides"}, "moon")
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	hits, err := idx.Search("tides", 5)
	if err != nil || len(hits) != 1 {
		t.Fatalf("expected persisted document, got %+v, %v", hits, err)
	}
}
