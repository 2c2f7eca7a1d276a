package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimitExceeded is returned by model clients once every attempt was rejected with HTTP 429.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ErrReportNotFound is returned when a report is not in the archive
var ErrReportNotFound = errors.New("report not found")

// ErrRunNotFound is returned when no status is tracked for a run id
var ErrRunNotFound = errors.New("run not found")

// ModelRequest is a single chat-completion call.
type ModelRequest struct {
	System      string  `json:"system"`
	User        string  `json:"user"`
	Model       string  `json:"model"` // routing alias, resolved by the provider
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// ModelCallError reports a failed model call that is not worth retrying.
type ModelCallError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ModelCallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model call failed: %v", e.Err)
	}
	return fmt.Sprintf("model call failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *ModelCallError) Unwrap() error { return e.Err }

// ImageRequest asks an image provider for one illustration.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
	// Wide requests a 2:1 banner instead of the configured dimensions.
	Wide bool `json:"wide,omitempty"`
}

// GeneratedImage holds raw image bytes returned by an image provider.
type GeneratedImage struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
	Prompt   string `json:"prompt"`
}

// SourceType identifies where a piece of content came from.
type SourceType string

const (
	SourceURL  SourceType = "url"
	SourceFile SourceType = "file"
	SourceText SourceType = "text"
)

// Content is extracted, cleaned source text ready for a pipeline run.
type Content struct {
	Title      string     `json:"title"`
	Text       string     `json:"text"`
	Source     string     `json:"source"`
	SourceType SourceType `json:"source_type"`
	Byline     string     `json:"byline,omitempty"`
	WordCount  int        `json:"word_count"`
	Truncated  bool       `json:"truncated"`
	FetchedAt  time.Time  `json:"fetched_at"`
}

// ReportKind names the pipeline a report was produced by.
type ReportKind string

const (
	ReportSummary  ReportKind = "summary"
	ReportAnalysis ReportKind = "analysis"
	ReportLinkedIn ReportKind = "linkedin"
	ReportLearning ReportKind = "learning"
)

// Report is a rendered, archived pipeline result.
type Report struct {
	ID         string     `json:"id"`
	Kind       ReportKind `json:"kind"`
	Title      string     `json:"title"`
	Source     string     `json:"source"`
	Abstract   string     `json:"abstract"`
	Confidence int        `json:"confidence,omitempty"`
	HTML       []byte     `json:"-"`
	PDF        []byte     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ReportListing is the listing view of a Report.
type ReportListing struct {
	ID         string     `json:"id"`
	Kind       ReportKind `json:"kind"`
	Title      string     `json:"title"`
	Source     string     `json:"source"`
	Abstract   string     `json:"abstract"`
	Confidence int        `json:"confidence,omitempty"`
	HasPDF     bool       `json:"has_pdf"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Listing projects r into its listing view.
func (r Report) Listing() ReportListing {
	return ReportListing{
		ID:         r.ID,
		Kind:       r.Kind,
		Title:      r.Title,
		Source:     r.Source,
		Abstract:   r.Abstract,
		Confidence: r.Confidence,
		HasPDF:     len(r.PDF) > 0,
		CreatedAt:  r.CreatedAt,
	}
}

// RunStatus is the lifecycle state of a background run.
type RunStatus string

const (
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunError      RunStatus = "error"
)

// Run is the polled status record for one background pipeline run.
type Run struct {
	ID        string     `json:"id"`
	Kind      ReportKind `json:"kind"`
	Status    RunStatus  `json:"status"`
	Message   string     `json:"message"`
	Error     string     `json:"error,omitempty"`
	ReportID  string     `json:"report_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
