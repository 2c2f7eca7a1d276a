package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/brieflab/internal/store"
	"github.com/mohammad-safakhou/brieflab/models"
	"github.com/mohammad-safakhou/brieflab/repository/redis_repository"
)

// ReportRepository defines the interface for report storage
type ReportRepository interface {
	SaveReport(ctx context.Context, r models.Report) error
	GetReport(ctx context.Context, id string) (models.Report, error)
	// ListReports returns the newest reports first.
	ListReports(ctx context.Context, limit int) ([]models.ReportListing, error)
}

type RepoType string

const (
	RepoTypeMemory   RepoType = "memory"
	RepoTypeRedis    RepoType = "redis"
	RepoTypePostgres RepoType = "postgres"
)

// Backends carries the connections a repository type may need.
type Backends struct {
	Redis     *redis.Client
	KeyPrefix string
	Postgres  *store.Store
}

func NewReportRepository(t RepoType, b Backends) (ReportRepository, error) {
	switch t {
	case RepoTypeMemory, "":
		return NewMemoryReportRepository(), nil
	case RepoTypeRedis:
		if b.Redis == nil {
			return nil, fmt.Errorf("redis repository needs a client")
		}
		return redis_repository.NewRedisReportRepository(b.Redis, b.KeyPrefix), nil
	case RepoTypePostgres:
		if b.Postgres == nil {
			return nil, fmt.Errorf("postgres repository needs a store")
		}
		return b.Postgres, nil
	}
	return nil, fmt.Errorf("invalid repository type: %s", t)
}

type memoryReportRepository struct {
	mu      sync.RWMutex
	reports map[string]models.Report
}

func NewMemoryReportRepository() ReportRepository {
	return &memoryReportRepository{reports: make(map[string]models.Report)}
}

func (m *memoryReportRepository) SaveReport(_ context.Context, r models.Report) error {
	if r.ID == "" {
		return fmt.Errorf("report id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = r
	return nil
}

func (m *memoryReportRepository) GetReport(_ context.Context, id string) (models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return models.Report{}, models.ErrReportNotFound
	}
	return r, nil
}

func (m *memoryReportRepository) ListReports(_ context.Context, limit int) ([]models.ReportListing, error) {
	m.mu.RLock()
	out := make([]models.ReportListing, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r.Listing())
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(list []models.ReportListing) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
