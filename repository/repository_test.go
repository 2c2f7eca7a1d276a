package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammad-safakhou/brieflab/models"
	"github.com/mohammad-safakhou/brieflab/repository/search"
)

func report(id, title string, at time.Time) models.Report {
	return models.Report{
		ID:        id,
		Kind:      models.ReportSummary,
		Title:     title,
		HTML:      []byte("<html><body><h1>" + title + "</h1><p>body of " + id + "</p></body></html>"),
		CreatedAt: at,
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReportRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"Old", "Middle", "New"} {
		if err := repo.SaveReport(ctx, report(title, title, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
	}
	list, err := repo.ListReports(ctx, 2)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(list) != 2 || list[0].ID != "New" || list[1].ID != "Middle" {
		t.Fatalf("unexpected order %+v", list)
	}
	if _, err := repo.GetReport(ctx, "nope"); !errors.Is(err, models.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestNewReportRepository(t *testing.T) {
	if _, err := NewReportRepository(RepoTypeMemory, Backends{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewReportRepository(RepoTypeRedis, Backends{}); err == nil {
		t.Fatalf("expected error without redis client")
	}
	if _, err := NewReportRepository(RepoTypePostgres, Backends{}); err == nil {
		t.Fatalf("expected error without postgres store")
	}
	if _, err := NewReportRepository("s3", Backends{}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestArchive_Search(t *testing.T) {
	ctx := context.Background()
	idx, err := search.Open("")
	if err != nil {
		t.Fatalf("search.Open: %v", err)
	}
	defer idx.Close()

	a := NewArchive(NewMemoryReportRepository(), idx, nil)
	now := time.Now()
	_ = a.Save(ctx, report("r1", "Glaciers retreat", now))
	_ = a.Save(ctx, report("r2", "Coral bleaching", now.Add(time.Minute)))

	list, err := a.List(ctx, "coral", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != "r2" {
		t.Fatalf("unexpected search result %+v", list)
	}
	all, _ := a.List(ctx, "", 10)
	if len(all) != 2 || all[0].ID != "r2" {
		t.Fatalf("unexpected listing %+v", all)
	}
}

func TestArchive_NoIndex(t *testing.T) {
	ctx := context.Background()
	a := NewArchive(NewMemoryReportRepository(), nil, nil)
	_ = a.Save(ctx, report("r1", "Glaciers retreat", time.Now()))
	list, err := a.List(ctx, "GLACIER", 5)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected title match, got %+v, %v", list, err)
	}
	if n, err := a.Reindex(ctx, 10); err != nil || n != 0 {
		t.Fatalf("expected no-op reindex, got %d, %v", n, err)
	}
}

func TestArchive_Reindex(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReportRepository()
	_ = repo.SaveReport(ctx, report("r1", "Volcanoes", time.Now()))
	idx, _ := search.Open("")
	defer idx.Close()

	a := NewArchive(repo, idx, nil)
	n, err := a.Reindex(ctx, 0)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 reindexed report, got %d, %v", n, err)
	}
	list, _ := a.List(ctx, "volcanoes", 5)
	if len(list) != 1 {
		t.Fatalf("expected reindexed report to be searchable, got %+v", list)
	}
}
