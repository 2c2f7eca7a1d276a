package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/models"
)

// Tracker moves runs through processing -> completed | error. A finished run
// is never reopened.
type Tracker struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewTracker(store Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// Start records a new run in the processing state.
func (t *Tracker) Start(ctx context.Context, id string, kind models.ReportKind, message string) (models.Run, error) {
	now := t.now().UTC()
	run := models.Run{
		ID:        id,
		Kind:      kind,
		Status:    models.RunProcessing,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return run, t.store.Put(ctx, run)
}

// Progress updates the message of a processing run. Failures are logged, not
// returned, so progress reporting never stops a pipeline.
func (t *Tracker) Progress(ctx context.Context, id, message string) {
	err := t.update(ctx, id, func(r *models.Run) { r.Message = message })
	if err != nil {
		t.logger.Warn("progress update failed", zap.String("run_id", id), zap.Error(err))
	}
}

// Complete marks the run finished and links its report.
func (t *Tracker) Complete(ctx context.Context, id, reportID string) error {
	return t.update(ctx, id, func(r *models.Run) {
		r.Status = models.RunCompleted
		r.Message = "Report ready"
		r.ReportID = reportID
	})
}

// Fail marks the run failed.
func (t *Tracker) Fail(ctx context.Context, id string, cause error) error {
	return t.update(ctx, id, func(r *models.Run) {
		r.Status = models.RunError
		r.Message = "Run failed"
		if cause != nil {
			r.Error = cause.Error()
		}
	})
}

func (t *Tracker) Get(ctx context.Context, id string) (models.Run, error) {
	return t.store.Get(ctx, id)
}

var errRunFinished = errors.New("run already finished")

func (t *Tracker) update(ctx context.Context, id string, fn func(*models.Run)) error {
	run, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if run.Status != models.RunProcessing {
		return errRunFinished
	}
	fn(&run)
	run.UpdatedAt = t.now().UTC()
	return t.store.Put(ctx, run)
}
