package redis_repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/brieflab/models"
)

func TestRedisReportRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()
	host, _ := redisC.Host(ctx)
	port, _ := redisC.MappedPort(ctx, "6379")

	client, err := Conn(ctx, host+":"+port.Port(), "", 0, 5*time.Second, nil)
	if err != nil {
		t.Fatalf("Conn: %v", err)
	}
	defer client.Close()

	repo := NewRedisReportRepository(client, "test")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := models.Report{ID: "a", Kind: models.ReportAnalysis, Title: "A", HTML: []byte("<p>a</p>"), Confidence: 6, CreatedAt: base}
	newer := models.Report{ID: "b", Kind: models.ReportSummary, Title: "B", HTML: []byte("<p>b</p>"), PDF: []byte("%PDF"), CreatedAt: base.Add(time.Hour)}
	for _, r := range []models.Report{older, newer} {
		if err := repo.SaveReport(ctx, r); err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
	}

	got, err := repo.GetReport(ctx, "b")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if string(got.HTML) != "<p>b</p>" || string(got.PDF) != "%PDF" || !got.CreatedAt.Equal(newer.CreatedAt) {
		t.Fatalf("unexpected report %+v", got)
	}
	list, err := repo.ListReports(ctx, 10)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || !list[0].HasPDF || list[1].Confidence != 6 {
		t.Fatalf("unexpected list %+v", list)
	}
	if _, err := repo.GetReport(ctx, "missing"); !errors.Is(err, models.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}
