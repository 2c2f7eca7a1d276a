package redis_repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/brieflab/models"
)

// redisReportRepository keeps each report as a hash (meta JSON, html, pdf)
// and orders them in a sorted set scored by creation time.
type redisReportRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisReportRepository(client *redis.Client, prefix string) *redisReportRepository {
	if prefix == "" {
		prefix = "brieflab"
	}
	return &redisReportRepository{client: client, prefix: prefix}
}

func (r redisReportRepository) reportKey(id string) string {
	return fmt.Sprintf("%s:report:%s", r.prefix, id)
}

func (r redisReportRepository) indexKey() string {
	return r.prefix + ":reports"
}

func (r redisReportRepository) SaveReport(ctx context.Context, rep models.Report) error {
	if rep.ID == "" {
		return errors.New("report id required")
	}
	meta, err := json.Marshal(rep.Listing())
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := r.reportKey(rep.ID)
		pipe.Del(ctx, key)
		fields := map[string]any{"meta": meta, "html": rep.HTML}
		if len(rep.PDF) > 0 {
			fields["pdf"] = rep.PDF
		}
		pipe.HSet(ctx, key, fields)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(rep.CreatedAt.UnixNano()), Member: rep.ID})
		return nil
	})
	return err
}

func (r redisReportRepository) GetReport(ctx context.Context, id string) (models.Report, error) {
	vals, err := r.client.HGetAll(ctx, r.reportKey(id)).Result()
	if err != nil {
		return models.Report{}, err
	}
	meta, ok := vals["meta"]
	if !ok {
		return models.Report{}, models.ErrReportNotFound
	}
	var s models.ReportListing
	if err := json.Unmarshal([]byte(meta), &s); err != nil {
		return models.Report{}, fmt.Errorf("decode report %s: %w", id, err)
	}
	rep := models.Report{
		ID:         s.ID,
		Kind:       s.Kind,
		Title:      s.Title,
		Source:     s.Source,
		Abstract:   s.Abstract,
		Confidence: s.Confidence,
		HTML:       []byte(vals["html"]),
		CreatedAt:  s.CreatedAt,
	}
	if pdf, ok := vals["pdf"]; ok {
		rep.PDF = []byte(pdf)
	}
	return rep, nil
}

func (r redisReportRepository) ListReports(ctx context.Context, limit int) ([]models.ReportListing, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.ReportListing, 0, len(ids))
	for _, id := range ids {
		meta, err := r.client.HGet(ctx, r.reportKey(id), "meta").Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var s models.ReportListing
		if err := json.Unmarshal([]byte(meta), &s); err != nil {
			return nil, fmt.Errorf("decode report %s: %w", id, err)
		}
		out = append(out, s)
	}
	return out, nil
}
