package repository

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/internal/helpers"
	"github.com/mohammad-safakhou/brieflab/models"
	"github.com/mohammad-safakhou/brieflab/repository/search"
)

// Archive stores reports and keeps the full-text index in step with them.
// Index failures are logged; the stored report is the source of truth.
type Archive struct {
	repo   ReportRepository
	index  *search.Index
	logger *zap.Logger
}

// NewArchive wraps repo. index may be nil, in which case queries fall back to
// a title filter over the newest reports.
func NewArchive(repo ReportRepository, index *search.Index, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{repo: repo, index: index, logger: logger}
}

func (a *Archive) Save(ctx context.Context, r models.Report) error {
	if err := a.repo.SaveReport(ctx, r); err != nil {
		return err
	}
	if a.index != nil {
		body := helpers.SanitizeHTMLStrict(string(r.HTML))
		if err := a.index.Add(r.Listing(), body); err != nil {
			a.logger.Warn("index report failed", zap.String("report_id", r.ID), zap.Error(err))
		}
	}
	return nil
}

func (a *Archive) Get(ctx context.Context, id string) (models.Report, error) {
	return a.repo.GetReport(ctx, id)
}

// List returns the newest reports, or the best matches for q when q is set.
func (a *Archive) List(ctx context.Context, q string, limit int) ([]models.ReportListing, error) {
	if q == "" {
		return a.repo.ListReports(ctx, limit)
	}
	if a.index == nil {
		return a.filterTitles(ctx, q, limit)
	}
	hits, err := a.index.Search(q, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.ReportListing, 0, len(hits))
	for _, h := range hits {
		r, err := a.repo.GetReport(ctx, h.ID)
		if errors.Is(err, models.ErrReportNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r.Listing())
	}
	return out, nil
}

// Reindex rebuilds the index from the newest limit reports in the repository.
func (a *Archive) Reindex(ctx context.Context, limit int) (int, error) {
	if a.index == nil {
		return 0, nil
	}
	list, err := a.repo.ListReports(ctx, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range list {
		r, err := a.repo.GetReport(ctx, s.ID)
		if err != nil {
			return n, err
		}
		if err := a.index.Add(s, helpers.SanitizeHTMLStrict(string(r.HTML))); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (a *Archive) filterTitles(ctx context.Context, q string, limit int) ([]models.ReportListing, error) {
	list, err := a.repo.ListReports(ctx, 0)
	if err != nil {
		return nil, err
	}
	var out []models.ReportListing
	for _, s := range list {
		if containsFold(s.Title, q) || containsFold(s.Abstract, q) {
			out = append(out, s)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
