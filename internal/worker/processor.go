package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/internal/agent/core"
	"github.com/mohammad-safakhou/brieflab/internal/report"
	"github.com/mohammad-safakhou/brieflab/models"
	"github.com/mohammad-safakhou/brieflab/repository"
	"github.com/mohammad-safakhou/brieflab/session"
)

const abstractLength = 280

// ErrShuttingDown is returned by Submit once Shutdown has been called.
var ErrShuttingDown = errors.New("worker is shutting down")

// Pipelines is the orchestrator surface the processor drives.
type Pipelines interface {
	RunAnalysis(ctx context.Context, subject core.Subject, opts ...core.RunOption) (*core.AnalysisState, error)
	RunSummary(ctx context.Context, subject core.Subject, opts ...core.RunOption) (*core.SummaryState, error)
	RunArticle(ctx context.Context, subject core.Subject, opts ...core.RunOption) (*core.ArticleState, error)
	RunLearningPath(ctx context.Context, topic string, level core.EducationLevel, opts ...core.RunOption) (*core.LearningState, error)
	Illustrate(ctx context.Context, prompt string, wide bool) (*models.GeneratedImage, error)
}

// Extractor turns job input into pipeline content.
type Extractor interface {
	FromURL(ctx context.Context, raw string) (models.Content, error)
	FromText(text, title string) (models.Content, error)
	FromBytes(name string, data []byte) (models.Content, error)
}

// Job is one report request. Exactly one input is used: Topic for learning
// jobs, otherwise URL, FileData or Text in that order.
type Job struct {
	ID             string
	Kind           models.ReportKind
	URL            string
	Text           string
	Title          string
	FileName       string
	FileData       []byte
	Topic          string
	Level          core.EducationLevel
	GenerateImages bool
}

// Result is a finished job.
type Result struct {
	Report models.Report
	Files  report.Files
}

// Options wires a Processor.
type Options struct {
	Pipelines Pipelines
	Extractor Extractor
	Renderer  *report.Renderer
	// Printer is optional; without it reports are archived as HTML only.
	Printer report.PDFPrinter
	Archive *repository.Archive
	Tracker *session.Tracker
	// OutputDir, when set, receives a copy of every report as files.
	OutputDir      string
	MaxConcurrency int
	// Progress, when set, receives every progress message of every run.
	Progress func(runID, message string)
	Logger   *zap.Logger
}

// Processor runs report jobs in the background with bounded concurrency.
type Processor struct {
	opts   Options
	logger *zap.Logger
	tracer trace.Tracer
	runs   metric.Int64Counter
	sem    chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time

	mu      sync.Mutex
	closing bool
	base    context.Context
	cancel  context.CancelFunc
}

func NewProcessor(opts Options) (*Processor, error) {
	if opts.Pipelines == nil || opts.Renderer == nil || opts.Archive == nil || opts.Tracker == nil {
		return nil, errors.New("worker: pipelines, renderer, archive and tracker are required")
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runs, err := otel.Meter("brieflab/internal/worker").Int64Counter("brieflab.worker.runs",
		metric.WithDescription("Report runs finished by the worker, by kind and status"))
	if err != nil {
		return nil, fmt.Errorf("worker: runs counter: %w", err)
	}
	base, cancel := context.WithCancel(context.Background())
	return &Processor{
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer("brieflab/internal/worker"),
		runs:   runs,
		sem:    make(chan struct{}, opts.MaxConcurrency),
		now:    time.Now,
		base:   base,
		cancel: cancel,
	}, nil
}

// Submit records the run as processing and executes it in the background.
// The returned run carries the id to poll.
func (p *Processor) Submit(ctx context.Context, job Job) (models.Run, error) {
	if err := validate(job); err != nil {
		return models.Run{}, err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return models.Run{}, ErrShuttingDown
	}
	p.wg.Add(1)
	p.mu.Unlock()

	run, err := p.opts.Tracker.Start(ctx, job.ID, job.Kind, "Queued")
	if err != nil {
		p.wg.Done()
		return models.Run{}, fmt.Errorf("record run: %w", err)
	}

	go func() {
		defer p.wg.Done()
		select {
		case p.sem <- struct{}{}:
		case <-p.base.Done():
			_ = p.opts.Tracker.Fail(context.Background(), job.ID, p.base.Err())
			return
		}
		defer func() { <-p.sem }()
		if _, err := p.Process(p.base, job); err != nil {
			p.logger.Warn("run failed", zap.String("run_id", job.ID), zap.Error(err))
		}
	}()
	return run, nil
}

// Shutdown stops accepting jobs and waits for running ones until ctx is done,
// after which they are cancelled.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closing = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Process runs one job to completion in the caller's goroutine and records
// its outcome with the tracker, starting the run when it is not tracked yet.
func (p *Processor) Process(ctx context.Context, job Job) (Result, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	ctx, span := p.tracer.Start(ctx, "worker.handle_run", trace.WithAttributes(
		attribute.String("run_id", job.ID),
		attribute.String("kind", string(job.Kind)),
	))
	defer span.End()

	if _, err := p.opts.Tracker.Get(ctx, job.ID); errors.Is(err, models.ErrRunNotFound) {
		if _, err := p.opts.Tracker.Start(ctx, job.ID, job.Kind, "Queued"); err != nil {
			return Result{}, err
		}
	}

	logger := p.logger.With(zap.String("run_id", job.ID), zap.String("kind", string(job.Kind)))
	start := p.now()
	res, err := p.execute(ctx, job, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(job.Kind)), attribute.String("status", string(models.RunError))))
		if ferr := p.opts.Tracker.Fail(context.WithoutCancel(ctx), job.ID, err); ferr != nil {
			logger.Warn("record failure", zap.Error(ferr))
		}
		return Result{}, err
	}
	if err := p.opts.Tracker.Complete(context.WithoutCancel(ctx), job.ID, res.Report.ID); err != nil {
		logger.Warn("record completion", zap.Error(err))
	}
	p.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(job.Kind)), attribute.String("status", string(models.RunCompleted))))
	logger.Info("run completed", zap.Duration("duration", p.now().Sub(start)), zap.Bool("pdf", len(res.Report.PDF) > 0))
	return res, nil
}

func (p *Processor) execute(ctx context.Context, job Job, logger *zap.Logger) (Result, error) {
	if err := validate(job); err != nil {
		return Result{}, err
	}
	progress := core.WithProgress(func(_ core.Stage, msg string) { p.progress(ctx, job.ID, msg) })

	rep := models.Report{ID: job.ID, Kind: job.Kind, CreatedAt: p.now().UTC()}
	var html []byte
	switch job.Kind {
	case models.ReportLearning:
		level := job.Level
		if level == "" {
			level = core.DefaultEducationLevel
		}
		st, err := p.opts.Pipelines.RunLearningPath(ctx, job.Topic, level, core.WithRunID(job.ID), progress)
		if err != nil {
			return Result{}, err
		}
		path := st.Path()
		p.progress(ctx, job.ID, "Rendering report...")
		if html, err = p.opts.Renderer.Learning(path); err != nil {
			return Result{}, err
		}
		rep.Title = path.Topic
		rep.Abstract = report.Abstract(path.TopicDefinition, abstractLength)

	case models.ReportAnalysis, models.ReportSummary, models.ReportLinkedIn:
		p.progress(ctx, job.ID, "Extracting content...")
		content, err := p.extract(ctx, job)
		if err != nil {
			return Result{}, fmt.Errorf("extract content: %w", err)
		}
		subject := core.SubjectFromContent(content)
		rep.Title, rep.Source = content.Title, content.Source

		switch job.Kind {
		case models.ReportAnalysis:
			st, err := p.opts.Pipelines.RunAnalysis(ctx, subject, core.WithRunID(job.ID), progress)
			if err != nil {
				return Result{}, err
			}
			var hero, infographic *models.GeneratedImage
			if job.GenerateImages {
				p.progress(ctx, job.ID, "🎨 Generating visuals...")
				hero = p.image(ctx, logger, heroPrompt(st.Subject.Title), true)
				infographic = p.image(ctx, logger, st.InfographicPrompt, false)
			}
			p.progress(ctx, job.ID, "Rendering report...")
			if html, err = p.opts.Renderer.Analysis(st, hero, infographic); err != nil {
				return Result{}, err
			}
			rep.Title = st.Subject.Title
			rep.Confidence = st.ConfidenceScore
			rep.Abstract = report.Abstract(st.SynthesisResult, abstractLength)

		case models.ReportSummary:
			st, err := p.opts.Pipelines.RunSummary(ctx, subject, core.WithRunID(job.ID), progress)
			if err != nil {
				return Result{}, err
			}
			var hero *models.GeneratedImage
			var sectionImages []*models.GeneratedImage
			if job.GenerateImages {
				p.progress(ctx, job.ID, "🎨 Generating visuals...")
				hero = p.image(ctx, logger, heroPrompt(subject.Title), true)
				sectionImages = make([]*models.GeneratedImage, len(st.Sections))
				for i, sec := range st.Sections {
					p.progress(ctx, job.ID, fmt.Sprintf("🎨 Illustrating section %d/%d...", i+1, len(st.Sections)))
					sectionImages[i] = p.image(ctx, logger, sec.ImagePrompt, false)
				}
			}
			p.progress(ctx, job.ID, "Rendering report...")
			if html, err = p.opts.Renderer.Summary(st, hero, sectionImages); err != nil {
				return Result{}, err
			}
			rep.Abstract = report.Abstract(st.ExecutiveSummary, abstractLength)

		case models.ReportLinkedIn:
			st, err := p.opts.Pipelines.RunArticle(ctx, subject, core.WithRunID(job.ID), progress)
			if err != nil {
				return Result{}, err
			}
			var hero *models.GeneratedImage
			if job.GenerateImages {
				p.progress(ctx, job.ID, "🎨 Generating visuals...")
				hero = p.image(ctx, logger, st.Article.HeroPrompt(subject.Title), true)
			}
			p.progress(ctx, job.ID, "Rendering report...")
			if html, err = p.opts.Renderer.LinkedIn(st, hero); err != nil {
				return Result{}, err
			}
			rep.Abstract = report.Abstract(st.Article.Introduction, abstractLength)
		}
	}
	rep.HTML = html

	if p.opts.Printer != nil {
		p.progress(ctx, job.ID, "Printing PDF...")
		pdf, err := p.opts.Printer.PrintPDF(ctx, html)
		if err != nil {
			logger.Warn("pdf printing failed", zap.Error(err))
		} else {
			rep.PDF = pdf
		}
	}

	if err := p.opts.Archive.Save(ctx, rep); err != nil {
		return Result{}, fmt.Errorf("archive report: %w", err)
	}
	res := Result{Report: rep}
	if p.opts.OutputDir != "" {
		files, err := report.Write(p.opts.OutputDir, rep.Title, rep.HTML, rep.PDF, rep.CreatedAt)
		if err != nil {
			return Result{}, err
		}
		res.Files = files
	}
	return res, nil
}

func (p *Processor) extract(ctx context.Context, job Job) (models.Content, error) {
	if p.opts.Extractor == nil {
		return models.Content{}, errors.New("no content extractor configured")
	}
	switch {
	case job.URL != "":
		return p.opts.Extractor.FromURL(ctx, job.URL)
	case len(job.FileData) > 0:
		c, err := p.opts.Extractor.FromBytes(job.FileName, job.FileData)
		if err == nil && strings.TrimSpace(job.Title) != "" {
			c.Title = strings.TrimSpace(job.Title)
		}
		return c, err
	default:
		return p.opts.Extractor.FromText(job.Text, job.Title)
	}
}

// image never fails the run; a missing image is rendered as no image.
func (p *Processor) image(ctx context.Context, logger *zap.Logger, prompt string, wide bool) *models.GeneratedImage {
	img, err := p.opts.Pipelines.Illustrate(ctx, prompt, wide)
	if err != nil {
		logger.Warn("image generation failed", zap.Bool("wide", wide), zap.Error(err))
		return nil
	}
	return img
}

func (p *Processor) progress(ctx context.Context, id, msg string) {
	p.opts.Tracker.Progress(ctx, id, msg)
	if p.opts.Progress != nil {
		p.opts.Progress(id, msg)
	}
}

func heroPrompt(title string) string {
	if strings.TrimSpace(title) == "" {
		title = "an article"
	}
	return fmt.Sprintf("Editorial cover illustration for %q. Symbolic, uncluttered composition, no text or lettering.", title)
}

func validate(job Job) error {
	switch job.Kind {
	case models.ReportLearning:
		if strings.TrimSpace(job.Topic) == "" {
			return errors.New("topic is required")
		}
	case models.ReportAnalysis, models.ReportSummary, models.ReportLinkedIn:
		if job.URL == "" && len(job.FileData) == 0 && strings.TrimSpace(job.Text) == "" {
			return errors.New("one of url, file or text is required")
		}
	default:
		return fmt.Errorf("unknown report kind %q", job.Kind)
	}
	return nil
}
