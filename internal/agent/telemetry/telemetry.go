package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/config"
)

// Telemetry records pipeline activity as Prometheus metrics and keeps an
// in-process snapshot for the CLI summary. A nil *Telemetry is a valid no-op.
type Telemetry struct {
	config config.TelemetryConfig
	logger *zap.Logger

	stageDuration *prometheus.HistogramVec
	runDuration   *prometheus.HistogramVec
	modelCalls    *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	images        *prometheus.CounterVec

	mu      sync.RWMutex
	metrics *Metrics
}

// Metrics is a point-in-time copy of the counters.
type Metrics struct {
	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64
	AverageRunTime time.Duration

	StageExecutions map[string]int64
	StageFailures   map[string]int64
	Fallbacks       map[string]int64
	ModelCalls      map[string]int64
	ImagesGenerated int64
	ImagesFailed    int64
}

// RunEvent describes one finished pipeline run
type RunEvent struct {
	RunID    string
	Pipeline string
	Start    time.Time
	End      time.Time
	Success  bool
	Error    string
}

// StageEvent describes one stage execution
type StageEvent struct {
	RunID    string
	Pipeline string
	Stage    string
	Model    string
	Duration time.Duration
	Success  bool
	Error    string
}

// FallbackEvent records a locally absorbed extraction failure
type FallbackEvent struct {
	RunID    string
	Pipeline string
	Stage    string
	Kind     string
	Reason   string
}

// NewTelemetry registers collectors on reg. A nil reg skips Prometheus registration.
func NewTelemetry(cfg config.TelemetryConfig, reg prometheus.Registerer, logger *zap.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "brieflab"
	}
	t := &Telemetry{
		config: cfg,
		logger: logger.Named("telemetry"),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"pipeline", "stage", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "run_duration_seconds",
			Help:      "Duration of complete pipeline runs.",
			Buckets:   []float64{5, 15, 30, 60, 120, 240, 480, 960},
		}, []string{"pipeline", "outcome"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "model_calls_total",
			Help:      "Model invocations by routing alias and outcome.",
		}, []string{"model", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "extraction_fallbacks_total",
			Help:      "Structured extraction failures absorbed by a default value.",
		}, []string{"stage", "kind"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "images_total",
			Help:      "Image generation attempts by outcome.",
		}, []string{"outcome"}),
		metrics: newMetrics(),
	}
	if reg != nil && cfg.Enabled {
		for _, c := range []prometheus.Collector{t.stageDuration, t.runDuration, t.modelCalls, t.fallbacks, t.images} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func newMetrics() *Metrics {
	return &Metrics{
		StageExecutions: make(map[string]int64),
		StageFailures:   make(map[string]int64),
		Fallbacks:       make(map[string]int64),
		ModelCalls:      make(map[string]int64),
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// RecordRunEvent records a finished run
func (t *Telemetry) RecordRunEvent(ctx context.Context, event RunEvent) {
	if t == nil {
		return
	}
	d := event.End.Sub(event.Start)
	t.runDuration.WithLabelValues(event.Pipeline, outcome(event.Success)).Observe(d.Seconds())

	t.mu.Lock()
	m := t.metrics
	m.TotalRuns++
	if event.Success {
		m.SuccessfulRuns++
	} else {
		m.FailedRuns++
	}
	if m.TotalRuns == 1 {
		m.AverageRunTime = d
	} else {
		total := m.AverageRunTime * time.Duration(m.TotalRuns-1)
		m.AverageRunTime = (total + d) / time.Duration(m.TotalRuns)
	}
	t.mu.Unlock()

	t.logger.Info("run finished",
		zap.String("run_id", event.RunID),
		zap.String("pipeline", event.Pipeline),
		zap.Bool("success", event.Success),
		zap.Duration("duration", d),
		zap.String("error", event.Error))
}

// RecordStageEvent records one stage execution, including its model call
func (t *Telemetry) RecordStageEvent(ctx context.Context, event StageEvent) {
	if t == nil {
		return
	}
	t.stageDuration.WithLabelValues(event.Pipeline, event.Stage, outcome(event.Success)).Observe(event.Duration.Seconds())
	if event.Model != "" {
		t.modelCalls.WithLabelValues(event.Model, outcome(event.Success)).Inc()
	}

	t.mu.Lock()
	t.metrics.StageExecutions[event.Stage]++
	if !event.Success {
		t.metrics.StageFailures[event.Stage]++
	}
	if event.Model != "" {
		t.metrics.ModelCalls[event.Model]++
	}
	t.mu.Unlock()
}

// RecordFallback records an absorbed MalformedOutput
func (t *Telemetry) RecordFallback(ctx context.Context, event FallbackEvent) {
	if t == nil {
		return
	}
	t.fallbacks.WithLabelValues(event.Stage, event.Kind).Inc()
	t.mu.Lock()
	t.metrics.Fallbacks[event.Stage]++
	t.mu.Unlock()
	t.logger.Warn("stage output fell back to default",
		zap.String("run_id", event.RunID),
		zap.String("pipeline", event.Pipeline),
		zap.String("stage", event.Stage),
		zap.String("kind", event.Kind),
		zap.String("reason", event.Reason))
}

// RecordImage records an image generation attempt
func (t *Telemetry) RecordImage(ctx context.Context, success bool) {
	if t == nil {
		return
	}
	t.images.WithLabelValues(outcome(success)).Inc()
	t.mu.Lock()
	if success {
		t.metrics.ImagesGenerated++
	} else {
		t.metrics.ImagesFailed++
	}
	t.mu.Unlock()
}

// GetMetrics returns a copy of the current counters
func (t *Telemetry) GetMetrics() Metrics {
	if t == nil {
		return *newMetrics()
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := *t.metrics
	out.StageExecutions = copyCounts(t.metrics.StageExecutions)
	out.StageFailures = copyCounts(t.metrics.StageFailures)
	out.Fallbacks = copyCounts(t.metrics.Fallbacks)
	out.ModelCalls = copyCounts(t.metrics.ModelCalls)
	return out
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
