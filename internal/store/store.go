package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/brieflab/models"
)

// Store archives rendered reports in Postgres.
type Store struct {
	DB *sql.DB
}

// NewWithDSN opens and pings the database behind dsn.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// SaveReport inserts r, replacing a report with the same id.
func (s *Store) SaveReport(ctx context.Context, r models.Report) error {
	var pdf any
	if len(r.PDF) > 0 {
		pdf = r.PDF
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO reports (id, kind, title, source, abstract, confidence, html, pdf, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  kind = EXCLUDED.kind,
  title = EXCLUDED.title,
  source = EXCLUDED.source,
  abstract = EXCLUDED.abstract,
  confidence = EXCLUDED.confidence,
  html = EXCLUDED.html,
  pdf = EXCLUDED.pdf;
`, r.ID, string(r.Kind), r.Title, r.Source, r.Abstract, r.Confidence, r.HTML, pdf, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("save report %s: %w", r.ID, err)
	}
	return nil
}

// GetReport returns models.ErrReportNotFound when id is unknown.
func (s *Store) GetReport(ctx context.Context, id string) (models.Report, error) {
	var (
		r    models.Report
		kind string
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT id, kind, title, source, abstract, confidence, html, pdf, created_at
FROM reports WHERE id = $1`, id).
		Scan(&r.ID, &kind, &r.Title, &r.Source, &r.Abstract, &r.Confidence, &r.HTML, &r.PDF, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, models.ErrReportNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("get report %s: %w", id, err)
	}
	r.Kind = models.ReportKind(kind)
	return r, nil
}

// ListReports returns the newest reports first, without their documents.
func (s *Store) ListReports(ctx context.Context, limit int) ([]models.ReportListing, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, kind, title, source, abstract, confidence, pdf IS NOT NULL, created_at
FROM reports
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []models.ReportListing
	for rows.Next() {
		var (
			rs   models.ReportListing
			kind string
		)
		if err := rows.Scan(&rs.ID, &kind, &rs.Title, &rs.Source, &rs.Abstract, &rs.Confidence, &rs.HasPDF, &rs.CreatedAt); err != nil {
			return nil, err
		}
		rs.Kind = models.ReportKind(kind)
		out = append(out, rs)
	}
	return out, rows.Err()
}
