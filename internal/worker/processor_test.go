package worker

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/brieflab/internal/agent/core"
	"github.com/mohammad-safakhou/brieflab/internal/content"
	"github.com/mohammad-safakhou/brieflab/internal/report"
	"github.com/mohammad-safakhou/brieflab/models"
	"github.com/mohammad-safakhou/brieflab/repository"
	"github.com/mohammad-safakhou/brieflab/session"
	"github.com/mohammad-safakhou/brieflab/session/inmemory"
)

type stubPipelines struct {
	err      error
	imageErr error
	// failPrompt makes Illustrate fail for prompts containing it.
	failPrompt string
	block    chan struct{}
	running  int32
	peak     int32
	images   int32
}

func (s *stubPipelines) enter() func() {
	n := atomic.AddInt32(&s.running, 1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	if s.block != nil {
		<-s.block
	}
	return func() { atomic.AddInt32(&s.running, -1) }
}

func (s *stubPipelines) RunAnalysis(_ context.Context, subject core.Subject, opts ...core.RunOption) (*core.AnalysisState, error) {
	defer s.enter()()
	st := core.NewAnalysisState(subject)
	if s.err != nil {
		return st, s.err
	}
	st.SynthesisResult = "Synthesized view"
	st.ConfidenceScore = 8
	st.InfographicPrompt = core.BuildInfographicPrompt(subject.Title, 8)
	st.IsComplete = true
	return st, nil
}

func (s *stubPipelines) RunSummary(_ context.Context, subject core.Subject, opts ...core.RunOption) (*core.SummaryState, error) {
	defer s.enter()()
	st := core.NewSummaryState(subject)
	if s.err != nil {
		return st, s.err
	}
	st.ExecutiveSummary = "Short executive summary"
	st.Takeaways = []string{"One"}
	st.Sections = []core.Section{
		{Title: "Tides", Summary: "How tides work.", ImagePrompt: core.SectionImagePrompt("the moon", "Tides")},
		{Title: "Currents", Summary: "How currents flow.", ImagePrompt: core.SectionImagePrompt("a river", "Currents")},
	}
	st.IsComplete = true
	return st, nil
}

func (s *stubPipelines) RunArticle(_ context.Context, subject core.Subject, opts ...core.RunOption) (*core.ArticleState, error) {
	defer s.enter()()
	st := core.NewArticleState(subject)
	if s.err != nil {
		return st, s.err
	}
	st.Article = core.LinkedInArticle{Headline: "Tides Turn", Introduction: "The moon moves oceans.", VisualConcept: "a moon over waves"}
	st.IsComplete = true
	return st, nil
}

func (s *stubPipelines) RunLearningPath(_ context.Context, topic string, level core.EducationLevel, opts ...core.RunOption) (*core.LearningState, error) {
	defer s.enter()()
	st := core.NewLearningState(topic, level)
	if s.err != nil {
		return st, s.err
	}
	st.TopicDefinition = "All about " + topic
	st.Chapters = []core.Chapter{{Title: "Intro", Content: "<p>hello</p>"}}
	st.IsComplete = true
	return st, nil
}

func (s *stubPipelines) Illustrate(_ context.Context, prompt string, _ bool) (*models.GeneratedImage, error) {
	atomic.AddInt32(&s.images, 1)
	if s.imageErr != nil {
		return nil, s.imageErr
	}
	if s.failPrompt != "" && strings.Contains(prompt, s.failPrompt) {
		return nil, errors.New("image rejected")
	}
	return &models.GeneratedImage{Data: []byte{1}, MimeType: "image/png"}, nil
}

type stubPrinter struct{ err error }

func (p stubPrinter) PrintPDF(context.Context, []byte) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []byte("%PDF-1.4"), nil
}

func newTestProcessor(t *testing.T, pipes *stubPipelines, mutate func(*Options)) (*Processor, *repository.Archive, *session.Tracker) {
	t.Helper()
	archive := repository.NewArchive(repository.NewMemoryReportRepository(), nil, nil)
	tracker := session.NewTracker(inmemory.NewStore(time.Hour), nil)
	opts := Options{
		Pipelines: pipes,
		Extractor: content.NewExtractor(nil, 0, nil),
		Renderer:  report.NewRenderer(nil),
		Archive:   archive,
		Tracker:   tracker,
	}
	if mutate != nil {
		mutate(&opts)
	}
	p, err := NewProcessor(opts)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p, archive, tracker
}

func TestProcess_Analysis(t *testing.T) {
	pipes := &stubPipelines{}
	var (
		mu       sync.Mutex
		messages []string
	)
	p, archive, tracker := newTestProcessor(t, pipes, func(o *Options) {
		o.Printer = stubPrinter{}
		o.Progress = func(_, msg string) {
			mu.Lock()
			messages = append(messages, msg)
			mu.Unlock()
		}
	})

	res, err := p.Process(context.Background(), Job{ID: "run-1", Kind: models.ReportAnalysis, Text: "Title line\n\nbody text", GenerateImages: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Report.Confidence != 8 || res.Report.Title != "Title line" || string(res.Report.PDF) != "%PDF-1.4" {
		t.Fatalf("unexpected report %+v", res.Report.Listing())
	}
	if pipes.images != 2 {
		t.Fatalf("expected hero and infographic images, got %d", pipes.images)
	}
	if _, err := archive.Get(context.Background(), "run-1"); err != nil {
		t.Fatalf("expected archived report: %v", err)
	}
	run, err := tracker.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("tracker.Get: %v", err)
	}
	if run.Status != models.RunCompleted || run.ReportID != "run-1" {
		t.Fatalf("unexpected run %+v", run)
	}
	if len(messages) == 0 || messages[0] != "Extracting content..." {
		t.Fatalf("unexpected progress %v", messages)
	}
}

func TestProcess_ImageAndPDFFailuresAreNonFatal(t *testing.T) {
	pipes := &stubPipelines{imageErr: errors.New("image service down")}
	p, _, tracker := newTestProcessor(t, pipes, func(o *Options) { o.Printer = stubPrinter{err: errors.New("no chrome")} })

	res, err := p.Process(context.Background(), Job{ID: "run-2", Kind: models.ReportSummary, Text: "Some text", GenerateImages: true})
	if err != nil {
		t.Fatalf("expected success despite image failure, got %v", err)
	}
	if len(res.Report.PDF) != 0 {
		t.Fatalf("expected no pdf")
	}
	if strings.Contains(string(res.Report.HTML), "data:image") {
		t.Fatalf("expected no image in report")
	}
	run, _ := tracker.Get(context.Background(), "run-2")
	if run.Status != models.RunCompleted {
		t.Fatalf("expected completed run, got %+v", run)
	}
}

func TestProcess_SummarySectionImages(t *testing.T) {
	pipes := &stubPipelines{failPrompt: "a river"}
	p, _, _ := newTestProcessor(t, pipes, nil)

	res, err := p.Process(context.Background(), Job{ID: "run-s", Kind: models.ReportSummary, Text: "Some text", GenerateImages: true})
	if err != nil {
		t.Fatalf("expected success despite a failed section image, got %v", err)
	}
	if pipes.images != 3 {
		t.Fatalf("expected hero and two section images, got %d", pipes.images)
	}
	html := string(res.Report.HTML)
	if !strings.Contains(html, `alt="Visual for Tides"`) {
		t.Fatalf("expected the first section to carry its image")
	}
	if strings.Contains(html, `alt="Visual for Currents"`) || !strings.Contains(html, "How currents flow.") {
		t.Fatalf("expected the failed section to render without an image")
	}
}

func TestProcess_LinkedIn(t *testing.T) {
	pipes := &stubPipelines{}
	p, archive, _ := newTestProcessor(t, pipes, nil)

	res, err := p.Process(context.Background(), Job{ID: "run-l", Kind: models.ReportLinkedIn, Text: "Tides\n\nThe moon pulls.", GenerateImages: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Report.Kind != models.ReportLinkedIn || res.Report.Abstract != "The moon moves oceans." {
		t.Fatalf("unexpected report %+v", res.Report.Listing())
	}
	if pipes.images != 1 {
		t.Fatalf("expected a single hero image, got %d", pipes.images)
	}
	if !strings.Contains(string(res.Report.HTML), "Tides Turn") {
		t.Fatalf("expected the article headline in the report")
	}
	if _, err := archive.Get(context.Background(), "run-l"); err != nil {
		t.Fatalf("expected archived report: %v", err)
	}
}

func TestProcess_PipelineFailure(t *testing.T) {
	pipes := &stubPipelines{err: errors.New("learning pipeline aborted at plan: boom")}
	p, archive, tracker := newTestProcessor(t, pipes, nil)

	if _, err := p.Process(context.Background(), Job{ID: "run-3", Kind: models.ReportLearning, Topic: "Tides"}); err == nil {
		t.Fatalf("expected error")
	}
	run, _ := tracker.Get(context.Background(), "run-3")
	if run.Status != models.RunError || !strings.Contains(run.Error, "boom") {
		t.Fatalf("unexpected run %+v", run)
	}
	if _, err := archive.Get(context.Background(), "run-3"); !errors.Is(err, models.ErrReportNotFound) {
		t.Fatalf("expected nothing archived, got %v", err)
	}
}

func TestProcess_LearningWritesFiles(t *testing.T) {
	dir := t.TempDir()
	p, _, _ := newTestProcessor(t, &stubPipelines{}, func(o *Options) { o.OutputDir = dir })

	res, err := p.Process(context.Background(), Job{Kind: models.ReportLearning, Topic: "Ocean Tides"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Report.Abstract != "All about Ocean Tides" {
		t.Fatalf("unexpected abstract %q", res.Report.Abstract)
	}
	if !strings.HasPrefix(res.Files.HTML, dir) || !strings.Contains(res.Files.HTML, "ocean-tides-") {
		t.Fatalf("unexpected file %q", res.Files.HTML)
	}
	if _, err := os.Stat(res.Files.HTML); err != nil {
		t.Fatalf("expected written report: %v", err)
	}
}

func TestSubmit_BoundsConcurrency(t *testing.T) {
	pipes := &stubPipelines{block: make(chan struct{})}
	p, _, tracker := newTestProcessor(t, pipes, func(o *Options) { o.MaxConcurrency = 2 })

	var ids []string
	for i := 0; i < 5; i++ {
		run, err := p.Submit(context.Background(), Job{Kind: models.ReportSummary, Text: "text"})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if run.Status != models.RunProcessing {
			t.Fatalf("expected processing run, got %+v", run)
		}
		ids = append(ids, run.ID)
	}
	close(pipes.block)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if peak := atomic.LoadInt32(&pipes.peak); peak > 2 {
		t.Fatalf("expected at most 2 concurrent runs, got %d", peak)
	}
	for _, id := range ids {
		run, _ := tracker.Get(context.Background(), id)
		if run.Status != models.RunCompleted {
			t.Fatalf("expected %s completed, got %+v", id, run)
		}
	}
	if _, err := p.Submit(context.Background(), Job{Kind: models.ReportSummary, Text: "late"}); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}

func TestSubmit_Validates(t *testing.T) {
	p, _, _ := newTestProcessor(t, &stubPipelines{}, nil)
	cases := []Job{
		{Kind: models.ReportLearning},
		{Kind: models.ReportSummary},
		{Kind: "poem", Text: "x"},
	}
	for _, job := range cases {
		if _, err := p.Submit(context.Background(), job); err == nil {
			t.Fatalf("expected validation error for %+v", job)
		}
	}
}
