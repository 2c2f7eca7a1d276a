package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/config"
	"github.com/mohammad-safakhou/brieflab/internal/agent/telemetry"
	"github.com/mohammad-safakhou/brieflab/internal/helpers"
	"github.com/mohammad-safakhou/brieflab/models"
)

var orchestratorTracer trace.Tracer = otel.Tracer("brieflab/internal/agent/orchestrator")

const defaultMaxChapters = 8

// Orchestrator drives the pipeline state machines. It holds no per run state
// and is safe for concurrent runs; every run owns its own state record.
type Orchestrator struct {
	model       ModelClient
	images      ImageGenerator
	stages      map[Stage]StageConfig
	maxChapters int
	imageStyle  string
	logger      *zap.Logger
	telemetry   *telemetry.Telemetry
}

// NewOrchestrator wires the model client and the optional image generator.
// cfg may be nil, in which case the built-in stage defaults apply.
func NewOrchestrator(cfg *config.Config, model ModelClient, images ImageGenerator, logger *zap.Logger, tel *telemetry.Telemetry) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	agents := config.DefaultAgents()
	o := &Orchestrator{
		model:       model,
		images:      images,
		stages:      make(map[Stage]StageConfig, len(agents)),
		maxChapters: defaultMaxChapters,
		logger:      logger.Named("orchestrator"),
		telemetry:   tel,
	}
	if cfg != nil {
		for name, a := range cfg.Agents {
			agents[name] = a
		}
		if cfg.Pipeline.MaxChapters > 0 {
			o.maxChapters = cfg.Pipeline.MaxChapters
		}
		o.imageStyle = cfg.Images.Style
	}
	for name, a := range agents {
		o.stages[Stage(name)] = StageConfig{
			Model:       a.Model,
			Temperature: a.Temperature,
			MaxTokens:   a.MaxTokens,
			InputBudget: a.InputBudget,
		}
	}
	return o
}

// StageConfig returns the model parameters used for stage.
func (o *Orchestrator) StageConfig(stage Stage) StageConfig {
	return o.stages[stage]
}

// RunOption customizes a single run.
type RunOption func(*runOptions)

type runOptions struct {
	runID    string
	progress ProgressFunc
	hook     func(stage Stage, snapshot any)
}

// WithRunID tags logs, spans and metrics of the run. A random id is used otherwise.
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// WithProgress installs a progress sink.
func WithProgress(fn ProgressFunc) RunOption {
	return func(o *runOptions) { o.progress = fn }
}

// WithStageHook receives a copy of the state after every merged stage delta.
// The snapshot is an AnalysisState, SummaryState, ArticleState or LearningState value.
func WithStageHook(fn func(stage Stage, snapshot any)) RunOption {
	return func(o *runOptions) { o.hook = fn }
}

// run carries the per invocation plumbing shared by the stage executors.
type run struct {
	o        *Orchestrator
	pipeline Pipeline
	id       string
	opts     runOptions
	logger   *zap.Logger
	start    time.Time
}

func (o *Orchestrator) newRun(p Pipeline, opts []RunOption) *run {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.runID == "" {
		ro.runID = uuid.New().String()
	}
	return &run{
		o:        o,
		pipeline: p,
		id:       ro.runID,
		opts:     ro,
		logger:   o.logger.With(zap.String("run_id", ro.runID), zap.String("pipeline", string(p))),
		start:    time.Now(),
	}
}

func (r *run) progress(stage Stage, msg string) {
	if r.opts.progress != nil {
		r.opts.progress(stage, msg)
	}
}

func (r *run) snapshot(stage Stage, v any) {
	if r.opts.hook != nil {
		r.opts.hook(stage, v)
	}
}

// step runs one stage inside its own span. exec must merge its delta before returning.
func (r *run) step(ctx context.Context, stage Stage, exec func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return abort(r.pipeline, stage, err)
	}
	cfg := r.o.StageConfig(stage)
	stageCtx, span := orchestratorTracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(
			attribute.String("run.id", r.id),
			attribute.String("pipeline", string(r.pipeline)),
			attribute.String("stage", string(stage)),
			attribute.String("model", cfg.Model),
		))
	defer span.End()

	start := time.Now()
	err := exec(stageCtx)
	event := telemetry.StageEvent{
		RunID:    r.id,
		Pipeline: string(r.pipeline),
		Stage:    string(stage),
		Model:    cfg.Model,
		Duration: time.Since(start),
		Success:  err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	r.o.telemetry.RecordStageEvent(ctx, event)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("stage failed", zap.String("stage", string(stage)), zap.Duration("duration", event.Duration), zap.Error(err))
		return abort(r.pipeline, stage, err)
	}
	span.SetStatus(codes.Ok, "completed")
	r.logger.Info("stage completed", zap.String("stage", string(stage)), zap.Duration("duration", event.Duration))
	return nil
}

// invoke calls the model with the stage parameters and strips reasoning blocks.
func (r *run) invoke(ctx context.Context, stage Stage, system, user string) (string, error) {
	cfg := r.o.StageConfig(stage)
	text, err := r.o.model.Invoke(ctx, models.ModelRequest{
		System:      system,
		User:        user,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return helpers.StripReasoning(text), nil
}

// fallback records an absorbed extraction failure.
func (r *run) fallback(ctx context.Context, stage Stage, kind string, err error) {
	r.o.telemetry.RecordFallback(ctx, telemetry.FallbackEvent{
		RunID:    r.id,
		Pipeline: string(r.pipeline),
		Stage:    string(stage),
		Kind:     kind,
		Reason:   err.Error(),
	})
	trace.SpanFromContext(ctx).AddEvent("stage.fallback", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("reason", err.Error()),
	))
}

// finish closes the run span and records the run outcome.
func (r *run) finish(ctx context.Context, span trace.Span, err error) {
	event := telemetry.RunEvent{
		RunID:    r.id,
		Pipeline: string(r.pipeline),
		Start:    r.start,
		End:      time.Now(),
		Success:  err == nil,
	}
	if err != nil {
		event.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "completed")
	}
	r.o.telemetry.RecordRunEvent(ctx, event)
}
