package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJobFromSource(t *testing.T) {
	job, err := jobFromSource("-", strings.NewReader("piped text"))
	if err != nil || job.Text != "piped text" {
		t.Fatalf("expected stdin text, got %+v, %v", job, err)
	}

	job, _ = jobFromSource("https://example.com/a", nil)
	if job.URL != "https://example.com/a" {
		t.Fatalf("expected url job, got %+v", job)
	}

	p := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(p, []byte("file body"), 0o644); err != nil {
		t.Fatal(err)
	}
	job, err = jobFromSource(p, nil)
	if err != nil || job.FileName != "notes.txt" || string(job.FileData) != "file body" {
		t.Fatalf("expected file job, got %+v, %v", job, err)
	}

	job, _ = jobFromSource("not a path at all", nil)
	if job.Text != "not a path at all" {
		t.Fatalf("expected text job, got %+v", job)
	}
}
