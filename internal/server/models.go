package server

import "time"

// HTTPError is the error envelope every failed request returns.
type HTTPError struct {
	Error string `json:"error"`
}

// SummarizeURLRequest asks for a report on a web page.
type SummarizeURLRequest struct {
	URL            string `json:"url"`
	ReportType     string `json:"report_type"`
	GenerateImages *bool  `json:"generate_images,omitempty"`
}

// SummarizeTextRequest asks for a report on pasted text.
type SummarizeTextRequest struct {
	Text           string `json:"text"`
	Title          string `json:"title"`
	ReportType     string `json:"report_type"`
	GenerateImages *bool  `json:"generate_images,omitempty"`
}

// LearnRequest asks for a learning path on a topic.
type LearnRequest struct {
	Topic          string `json:"topic"`
	EducationLevel string `json:"education_level"`
}

// RunAccepted is returned when a run has been queued.
type RunAccepted struct {
	ReportID string `json:"report_id"`
	Status   string `json:"status"`
}

// StatusResponse is the polled state of a run.
type StatusResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	ReportID  string    `json:"report_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
