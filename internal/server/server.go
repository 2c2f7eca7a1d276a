package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/internal/runtime"
	"github.com/mohammad-safakhou/brieflab/internal/worker"
	"github.com/mohammad-safakhou/brieflab/models"
)

// Submitter queues report jobs.
type Submitter interface {
	Submit(ctx context.Context, job worker.Job) (models.Run, error)
}

// RunStatuses answers status polls.
type RunStatuses interface {
	Get(ctx context.Context, id string) (models.Run, error)
}

// ReportArchive serves finished reports.
type ReportArchive interface {
	Get(ctx context.Context, id string) (models.Report, error)
	List(ctx context.Context, q string, limit int) ([]models.ReportListing, error)
}

// Options wires the HTTP server.
type Options struct {
	Jobs    Submitter
	Runs    RunStatuses
	Reports ReportArchive
	// JWTSecret, when set, puts every /api route behind bearer tokens.
	JWTSecret      []byte
	UploadLimitMB  int
	GenerateImages bool
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server is the brieflab HTTP API.
type Server struct {
	echo   *echo.Echo
	logger *zap.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Jobs == nil || opts.Runs == nil || opts.Reports == nil {
		return nil, errors.New("server: jobs, runs and reports are required")
	}
	if opts.UploadLimitMB <= 0 {
		opts.UploadLimitMB = 25
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.HTTPErrorHandler = errorHandler(logger)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	read, write := noop, noop
	if len(opts.JWTSecret) > 0 {
		api.Use(runtime.EchoAuthMiddleware(opts.JWTSecret))
		read = runtime.RequireScopes(runtime.ScopeReportsRead)
		write = runtime.RequireScopes(runtime.ScopeReportsWrite)
	}
	h := &ReportsHandler{
		Jobs:           opts.Jobs,
		Runs:           opts.Runs,
		Reports:        opts.Reports,
		UploadLimit:    int64(opts.UploadLimitMB) << 20,
		GenerateImages: opts.GenerateImages,
		Logger:         logger,
	}
	h.Register(api, read, write)

	return &Server{echo: e, logger: logger}, nil
}

func noop(next echo.HandlerFunc) echo.HandlerFunc { return next }

// errorHandler renders every error as {"error": "..."} and logs server faults.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		fields := []zap.Field{
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("remote", c.RealIP()),
			zap.Error(err),
		}
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Info("request rejected", fields...)
		}
		if c.Response().Committed {
			return
		}
		if req.Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, HTTPError{Error: msg})
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening", zap.String("address", addr))
	s.echo.Server.ReadHeaderTimeout = 10 * time.Second
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
