package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/internal/agent/core"
	"github.com/mohammad-safakhou/brieflab/internal/content"
	"github.com/mohammad-safakhou/brieflab/internal/report"
	"github.com/mohammad-safakhou/brieflab/internal/worker"
	"github.com/mohammad-safakhou/brieflab/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ReportsHandler queues report runs and serves their status and results.
type ReportsHandler struct {
	Jobs           Submitter
	Runs           RunStatuses
	Reports        ReportArchive
	UploadLimit    int64
	GenerateImages bool
	Logger         *zap.Logger
}

func (h *ReportsHandler) Register(g *echo.Group, read, write echo.MiddlewareFunc) {
	bodyLimit := middleware.BodyLimit(fmt.Sprintf("%dM", (h.UploadLimit>>20)+1))
	g.POST("/summarize/url", h.summarizeURL, write)
	g.POST("/summarize/text", h.summarizeText, write)
	g.POST("/summarize/file", h.summarizeFile, write, bodyLimit)
	g.POST("/learn", h.learn, write)
	g.GET("/status/:id", h.status, read)
	g.GET("/report/:id", h.report, read)
	g.GET("/report/:id/download", h.download, read)
	g.GET("/reports", h.list, read)
}

// summarizeURL
//
//	@Summary	Queue a report for a web page
//	@Tags		reports
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		SummarizeURLRequest	true	"Source page"
//	@Success	202		{object}	RunAccepted
//	@Failure	400		{object}	HTTPError
//	@Router		/api/summarize/url [post]
func (h *ReportsHandler) summarizeURL(c echo.Context) error {
	var req SummarizeURLRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	kind, err := parseReportType(req.ReportType)
	if err != nil {
		return err
	}
	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url must be an absolute http(s) URL")
	}
	return h.submit(c, worker.Job{Kind: kind, URL: u.String(), GenerateImages: h.images(req.GenerateImages)})
}

// summarizeText
//
//	@Summary	Queue a report for pasted text
//	@Tags		reports
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		SummarizeTextRequest	true	"Text to analyze"
//	@Success	202		{object}	RunAccepted
//	@Failure	400		{object}	HTTPError
//	@Router		/api/summarize/text [post]
func (h *ReportsHandler) summarizeText(c echo.Context) error {
	var req SummarizeTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	kind, err := parseReportType(req.ReportType)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	return h.submit(c, worker.Job{Kind: kind, Text: req.Text, Title: req.Title, GenerateImages: h.images(req.GenerateImages)})
}

// summarizeFile
//
//	@Summary	Queue a report for an uploaded document
//	@Tags		reports
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		file			formData	file	true	"pdf, docx, epub, html, txt or md document"
//	@Param		title			formData	string	false	"Title override"
//	@Param		report_type		formData	string	false	"summary (alias executive), analysis or linkedin"
//	@Param		generate_images	formData	bool	false	"Generate illustrations"
//	@Success	202				{object}	RunAccepted
//	@Failure	400				{object}	HTTPError
//	@Failure	413				{object}	HTTPError
//	@Failure	415				{object}	HTTPError
//	@Router		/api/summarize/file [post]
func (h *ReportsHandler) summarizeFile(c echo.Context) error {
	kind, err := parseReportType(c.FormValue("report_type"))
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if !content.Supported(fh.Filename) {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType,
			"unsupported file type; supported: "+strings.Join(content.SupportedExtensions, ", "))
	}
	if fh.Size > h.UploadLimit {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", h.UploadLimit>>20))
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.UploadLimit+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	if int64(len(data)) > h.UploadLimit {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", h.UploadLimit>>20))
	}
	if len(data) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "file is empty")
	}

	var generate *bool
	if raw := c.FormValue("generate_images"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "generate_images must be a boolean")
		}
		generate = &v
	}
	return h.submit(c, worker.Job{
		Kind:           kind,
		FileName:       fh.Filename,
		FileData:       data,
		Title:          c.FormValue("title"),
		GenerateImages: h.images(generate),
	})
}

// learn
//
//	@Summary	Queue a learning path
//	@Tags		reports
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		LearnRequest	true	"Topic and education level"
//	@Success	202		{object}	RunAccepted
//	@Failure	400		{object}	HTTPError
//	@Router		/api/learn [post]
func (h *ReportsHandler) learn(c echo.Context) error {
	var req LearnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Topic) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}
	level, err := core.ParseEducationLevel(req.EducationLevel)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.submit(c, worker.Job{Kind: models.ReportLearning, Topic: strings.TrimSpace(req.Topic), Level: level})
}

func (h *ReportsHandler) submit(c echo.Context, job worker.Job) error {
	run, err := h.Jobs.Submit(c.Request().Context(), job)
	if errors.Is(err, worker.ErrShuttingDown) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, RunAccepted{ReportID: run.ID, Status: string(run.Status)})
}

// status
//
//	@Summary	Poll a run
//	@Tags		reports
//	@Produce	json
//	@Param		id	path		string	true	"Report id"
//	@Success	200	{object}	StatusResponse
//	@Failure	404	{object}	HTTPError
//	@Router		/api/status/{id} [get]
func (h *ReportsHandler) status(c echo.Context) error {
	run, err := h.Runs.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, models.ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, StatusResponse{
		ID:        run.ID,
		Kind:      string(run.Kind),
		Status:    string(run.Status),
		Message:   run.Message,
		Error:     run.Error,
		ReportID:  run.ReportID,
		UpdatedAt: run.UpdatedAt,
	})
}

// report
//
//	@Summary	View a finished report
//	@Tags		reports
//	@Produce	html
//	@Param		id	path	string	true	"Report id"
//	@Success	200
//	@Success	202	{object}	HTTPError	"Run still processing"
//	@Failure	404	{object}	HTTPError
//	@Router		/api/report/{id} [get]
func (h *ReportsHandler) report(c echo.Context) error {
	rep, err := h.get(c)
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, rep.HTML)
}

// download
//
//	@Summary	Download a finished report
//	@Tags		reports
//	@Produce	html,application/pdf
//	@Param		id		path	string	true	"Report id"
//	@Param		format	query	string	false	"html (default) or pdf"
//	@Success	200
//	@Failure	404	{object}	HTTPError
//	@Router		/api/report/{id}/download [get]
func (h *ReportsHandler) download(c echo.Context) error {
	format := strings.ToLower(c.QueryParam("format"))
	if format == "" {
		format = "html"
	}
	if format != "html" && format != "pdf" {
		return echo.NewHTTPError(http.StatusBadRequest, "format must be html or pdf")
	}
	rep, err := h.get(c)
	if err != nil {
		return err
	}
	name := report.FileStem(rep.Title, rep.CreatedAt) + "." + format
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	if format == "pdf" {
		if len(rep.PDF) == 0 {
			c.Response().Header().Del(echo.HeaderContentDisposition)
			return echo.NewHTTPError(http.StatusNotFound, "pdf not available for this report")
		}
		return c.Blob(http.StatusOK, "application/pdf", rep.PDF)
	}
	return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, rep.HTML)
}

// list
//
//	@Summary	List or search archived reports
//	@Tags		reports
//	@Produce	json
//	@Param		q		query	string	false	"Full text query"
//	@Param		limit	query	int		false	"Maximum results (default 20, max 100)"
//	@Success	200		{array}	models.ReportListing
//	@Router		/api/reports [get]
func (h *ReportsHandler) list(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxListLimit)
	}
	items, err := h.Reports.List(c.Request().Context(), strings.TrimSpace(c.QueryParam("q")), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []models.ReportListing{}
	}
	return c.JSON(http.StatusOK, items)
}

// get answers 202 for a run that is still processing and 404 only when the id
// is unknown or its run ended without a report.
func (h *ReportsHandler) get(c echo.Context) (models.Report, error) {
	ctx := c.Request().Context()
	id := c.Param("id")
	rep, err := h.Reports.Get(ctx, id)
	if errors.Is(err, models.ErrReportNotFound) {
		if run, rerr := h.Runs.Get(ctx, id); rerr == nil && run.Status == models.RunProcessing {
			return models.Report{}, echo.NewHTTPError(http.StatusAccepted, "report not ready yet")
		}
		return models.Report{}, echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	if err != nil {
		return models.Report{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return rep, nil
}

func (h *ReportsHandler) images(override *bool) bool {
	if override != nil {
		return *override
	}
	return h.GenerateImages
}

func parseReportType(s string) (models.ReportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(models.ReportSummary), "executive":
		return models.ReportSummary, nil
	case string(models.ReportAnalysis):
		return models.ReportAnalysis, nil
	case string(models.ReportLinkedIn):
		return models.ReportLinkedIn, nil
	default:
		return "", echo.NewHTTPError(http.StatusBadRequest, "report_type must be summary, executive, analysis or linkedin")
	}
}
