package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammad-safakhou/brieflab/internal/agent/core"
	"github.com/mohammad-safakhou/brieflab/internal/runtime"
	"github.com/mohammad-safakhou/brieflab/internal/worker"
	"github.com/mohammad-safakhou/brieflab/models"
	"github.com/mohammad-safakhou/brieflab/repository"
	"github.com/mohammad-safakhou/brieflab/session"
	"github.com/mohammad-safakhou/brieflab/session/inmemory"
)

type stubJobs struct {
	jobs []worker.Job
	err  error
}

func (s *stubJobs) Submit(_ context.Context, job worker.Job) (models.Run, error) {
	if s.err != nil {
		return models.Run{}, s.err
	}
	s.jobs = append(s.jobs, job)
	return models.Run{ID: "run-1", Kind: job.Kind, Status: models.RunProcessing}, nil
}

func (s *stubJobs) last(t *testing.T) worker.Job {
	t.Helper()
	if len(s.jobs) == 0 {
		t.Fatalf("expected a submitted job")
	}
	return s.jobs[len(s.jobs)-1]
}

type fixture struct {
	srv     *Server
	jobs    *stubJobs
	tracker *session.Tracker
	archive *repository.Archive
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		jobs:    &stubJobs{},
		tracker: session.NewTracker(inmemory.NewStore(time.Hour), nil),
		archive: repository.NewArchive(repository.NewMemoryReportRepository(), nil, nil),
	}
	opts := Options{
		Jobs:           f.jobs,
		Runs:           f.tracker,
		Reports:        f.archive,
		UploadLimitMB:  1,
		GenerateImages: true,
		Gatherer:       prometheus.NewRegistry(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.srv = srv
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var he HTTPError
	if err := json.Unmarshal(rec.Body.Bytes(), &he); err != nil {
		t.Fatalf("expected json error body, got %q", rec.Body.String())
	}
	return he.Error
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("expected ok, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSummarizeURL(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(jsonRequest(http.MethodPost, "/api/summarize/url", `{"url":"https://example.com/story"}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp RunAccepted
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ReportID != "run-1" || resp.Status != "processing" {
		t.Fatalf("unexpected response %+v", resp)
	}
	job := f.jobs.last(t)
	if job.Kind != models.ReportSummary || job.URL != "https://example.com/story" || !job.GenerateImages {
		t.Fatalf("unexpected job %+v", job)
	}

	rec = f.do(jsonRequest(http.MethodPost, "/api/summarize/url", `{"url":"https://example.com","report_type":"analysis","generate_images":false}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if job := f.jobs.last(t); job.Kind != models.ReportAnalysis || job.GenerateImages {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestSummarizeText_ReportTypes(t *testing.T) {
	f := newFixture(t, nil)
	cases := map[string]models.ReportKind{
		"executive": models.ReportSummary,
		"Summary":   models.ReportSummary,
		"linkedin":  models.ReportLinkedIn,
		"analysis":  models.ReportAnalysis,
	}
	for raw, want := range cases {
		rec := f.do(jsonRequest(http.MethodPost, "/api/summarize/text", `{"text":"Body","report_type":"`+raw+`"}`))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202 for %q, got %d: %s", raw, rec.Code, rec.Body.String())
		}
		if got := f.jobs.last(t).Kind; got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestSummarizeURL_Rejects(t *testing.T) {
	f := newFixture(t, nil)
	cases := map[string]string{
		`{"url":"ftp://example.com"}`:                      "url must be an absolute http(s) URL",
		`{"url":"example.com"}`:                            "url must be an absolute http(s) URL",
		`{"url":"https://example.com","report_type":"x"}`: "report_type must be summary, executive, analysis or linkedin",
	}
	for body, want := range cases {
		rec := f.do(jsonRequest(http.MethodPost, "/api/summarize/url", body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rec.Code)
		}
		if got := errorOf(t, rec); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
	if len(f.jobs.jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(f.jobs.jobs))
	}
}

func TestSummarizeText(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(jsonRequest(http.MethodPost, "/api/summarize/text", `{"text":"Body","title":"Mine","report_type":"Analysis"}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if job := f.jobs.last(t); job.Text != "Body" || job.Title != "Mine" || job.Kind != models.ReportAnalysis {
		t.Fatalf("unexpected job %+v", job)
	}
	rec = f.do(jsonRequest(http.MethodPost, "/api/summarize/text", `{"text":"   "}`))
	if rec.Code != http.StatusBadRequest || errorOf(t, rec) != "text is required" {
		t.Fatalf("expected text is required, got %d %s", rec.Code, rec.Body.String())
	}
}

func multipartRequest(t *testing.T, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/summarize/file", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestSummarizeFile(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(multipartRequest(t, "notes.md", []byte("# Notes"), map[string]string{"title": "Field notes", "generate_images": "false"}))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	job := f.jobs.last(t)
	if job.FileName != "notes.md" || string(job.FileData) != "# Notes" || job.Title != "Field notes" || job.GenerateImages {
		t.Fatalf("unexpected job %+v", job)
	}

	if rec := f.do(multipartRequest(t, "tool.exe", []byte("MZ"), nil)); rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
	if rec := f.do(multipartRequest(t, "", nil, nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a file, got %d", rec.Code)
	}
	big := bytes.Repeat([]byte("a"), (1<<20)+10)
	if rec := f.do(multipartRequest(t, "big.txt", big, nil)); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if rec := f.do(multipartRequest(t, "a.txt", []byte("x"), map[string]string{"generate_images": "maybe"})); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad boolean, got %d", rec.Code)
	}
}

func TestLearn(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(jsonRequest(http.MethodPost, "/api/learn", `{"topic":" Tides ","education_level":"middle school"}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if job := f.jobs.last(t); job.Topic != "Tides" || job.Level != core.LevelMiddleSchool || job.Kind != models.ReportLearning {
		t.Fatalf("unexpected job %+v", job)
	}
	if rec := f.do(jsonRequest(http.MethodPost, "/api/learn", `{"topic":"Tides","education_level":"wizard"}`)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown level, got %d", rec.Code)
	}
	if rec := f.do(jsonRequest(http.MethodPost, "/api/learn", `{}`)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without topic, got %d", rec.Code)
	}
}

func TestSubmit_ShuttingDown(t *testing.T) {
	f := newFixture(t, nil)
	f.jobs.err = worker.ErrShuttingDown
	rec := f.do(jsonRequest(http.MethodPost, "/api/learn", `{"topic":"Tides"}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.tracker.Start(ctx, "abc", models.ReportSummary, "Queued"); err != nil {
		t.Fatal(err)
	}
	f.tracker.Progress(ctx, "abc", "Extracting content...")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/status/abc", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Status != "processing" || st.Message != "Extracting content..." {
		t.Fatalf("unexpected status %+v", st)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/status/missing", nil))
	if rec.Code != http.StatusNotFound || errorOf(t, rec) != "run not found" {
		t.Fatalf("expected run not found, got %d %s", rec.Code, rec.Body.String())
	}
}

func saveReport(t *testing.T, f *fixture, r models.Report) {
	t.Helper()
	if err := f.archive.Save(context.Background(), r); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestReportAndDownload(t *testing.T) {
	f := newFixture(t, nil)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	saveReport(t, f, models.Report{ID: "r1", Kind: models.ReportAnalysis, Title: "River Levels", HTML: []byte("<html>r1</html>"), CreatedAt: at})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/report/r1", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "<html>r1</html>" {
		t.Fatalf("unexpected report response %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html content type, got %q", ct)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/report/r1/download", nil))
	want := `attachment; filename="river-levels-20260102-030405.html"`
	if got := rec.Header().Get(echo.HeaderContentDisposition); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/report/r1/download?format=pdf", nil))
	if rec.Code != http.StatusNotFound || errorOf(t, rec) != "pdf not available for this report" {
		t.Fatalf("expected missing pdf, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/api/report/r1/download?format=docx", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rec.Code)
	}

	saveReport(t, f, models.Report{ID: "r2", Title: "With PDF", HTML: []byte("x"), PDF: []byte("%PDF-1.4"), CreatedAt: at})
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/report/r2/download?format=pdf", nil))
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "application/pdf" {
		t.Fatalf("expected pdf, got %d %q", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/api/report/nope", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestReport_NotReadyYet(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.tracker.Start(ctx, "pending", models.ReportSummary, "Queued"); err != nil {
		t.Fatal(err)
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/report/pending", nil))
	if rec.Code != http.StatusAccepted || errorOf(t, rec) != "report not ready yet" {
		t.Fatalf("expected 202 not ready, got %d %s", rec.Code, rec.Body.String())
	}

	if _, err := f.tracker.Start(ctx, "failed", models.ReportSummary, "Queued"); err != nil {
		t.Fatal(err)
	}
	if err := f.tracker.Fail(ctx, "failed", context.DeadlineExceeded); err != nil {
		t.Fatal(err)
	}
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/report/failed", nil))
	if rec.Code != http.StatusNotFound || errorOf(t, rec) != "report not found" {
		t.Fatalf("expected 404 for a failed run, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestListReports(t *testing.T) {
	f := newFixture(t, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	saveReport(t, f, models.Report{ID: "a", Title: "Ocean Tides", CreatedAt: base})
	saveReport(t, f, models.Report{ID: "b", Title: "Volcanoes", CreatedAt: base.Add(time.Hour)})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	var all []models.ReportListing
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != "b" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/reports?q=tides", nil))
	var hits []models.ReportListing
	if err := json.Unmarshal(rec.Body.Bytes(), &hits); err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Fatalf("expected only the tides report, got %+v", hits)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/reports?q=nothing", nil))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %q", rec.Body.String())
	}
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/api/reports?limit=0", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=0, got %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	secret := []byte("s3cret")
	f := newFixture(t, func(o *Options) { o.JWTSecret = secret })

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/api/reports", nil)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Fatalf("expected healthz to stay public, got %d", rec.Code)
	}

	readOnly, err := runtime.SignJWT("reader", secret, time.Hour, runtime.ScopeReportsRead)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+readOnly)
	if rec := f.do(req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for reader, got %d", rec.Code)
	}

	req = jsonRequest(http.MethodPost, "/api/learn", `{"topic":"Tides"}`)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+readOnly)
	if rec := f.do(req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for reader posting, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "brieflab_test_total", Help: "test"}))
	f := newFixture(t, func(o *Options) { o.Gatherer = reg })
	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "brieflab_test_total") {
		t.Fatalf("expected metrics output, got %d", rec.Code)
	}
}
