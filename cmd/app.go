package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/config"
	"github.com/mohammad-safakhou/brieflab/internal/agent/core"
	"github.com/mohammad-safakhou/brieflab/internal/agent/telemetry"
	"github.com/mohammad-safakhou/brieflab/internal/content"
	"github.com/mohammad-safakhou/brieflab/internal/logger"
	"github.com/mohammad-safakhou/brieflab/internal/report"
	"github.com/mohammad-safakhou/brieflab/internal/runtime"
	"github.com/mohammad-safakhou/brieflab/internal/store"
	"github.com/mohammad-safakhou/brieflab/internal/worker"
	"github.com/mohammad-safakhou/brieflab/provider"
	"github.com/mohammad-safakhou/brieflab/repository"
	"github.com/mohammad-safakhou/brieflab/repository/redis_repository"
	"github.com/mohammad-safakhou/brieflab/repository/search"
	"github.com/mohammad-safakhou/brieflab/session"
	"github.com/mohammad-safakhou/brieflab/tools/web_fetch"
)

const reindexLimit = 1000

// app holds the process wide dependencies shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	otel      *runtime.Telemetry
	metrics   *telemetry.Telemetry
	archive   *repository.Archive
	tracker   *session.Tracker
	processor *worker.Processor

	closers []func() error
}

type appOptions struct {
	// writeFiles copies every report to outputDir, or report.output_dir when empty.
	writeFiles bool
	outputDir  string
	progress   func(runID, message string)
}

func loadConfig(cfgPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.General.LogLevel
	if cfg.General.Debug {
		level = "debug"
	}
	log, err := logger.New(level, cfg.General.LogMode)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newApp(ctx context.Context, cfgPath string, opts appOptions) (a *app, err error) {
	cfg, log, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	a = &app{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if a.otel, err = runtime.SetupTelemetry(ctx, cfg.Telemetry, runtime.TelemetryOptions{
		ServiceVersion: version,
		Registerer:     a.registry,
		Logger:         log,
	}); err != nil {
		return nil, err
	}
	var reg prometheus.Registerer
	if cfg.Telemetry.Enabled {
		reg = a.registry
	}
	if a.metrics, err = telemetry.NewTelemetry(cfg.Telemetry, reg, log.Named("telemetry")); err != nil {
		return nil, err
	}

	prov, err := provider.NewProvider(cfg, log)
	if err != nil {
		return nil, err
	}
	orch := core.NewOrchestrator(cfg, prov.Chat, prov.Images(), log.Named("orchestrator"), a.metrics)

	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Scraper.Fetcher), web_fetch.Options{
		Timeout:   cfg.Scraper.Timeout,
		MaxChars:  cfg.Scraper.MaxContentLength,
		UserAgent: cfg.Scraper.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	extractor := content.NewExtractor(fetcher, cfg.Scraper.MaxContentLength, log.Named("content"))

	var printer report.PDFPrinter
	if cfg.Report.PDF {
		printer = report.ChromePrinter{Timeout: cfg.Report.PDFTimeout}
	}

	var rdb *redis.Client
	if cfg.Storage.Archive == string(repository.RepoTypeRedis) || cfg.Server.StatusStore == string(session.RedisStore) {
		r := cfg.Storage.Redis
		if rdb, err = redis_repository.Conn(ctx, r.Addr(), r.Password, r.DB, r.Timeout, log.Named("redis")); err != nil {
			return nil, fmt.Errorf("redis connection failed (%s): %w", r.Addr(), err)
		}
		a.closers = append(a.closers, rdb.Close)
	}

	var pg *store.Store
	if cfg.Storage.Archive == string(repository.RepoTypePostgres) {
		dsn := cfg.Storage.Postgres.DSN()
		if cfg.Storage.AutoMigrate {
			if err = store.Migrate(dsn, "up", 0); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		if pg, err = store.NewWithDSN(ctx, dsn); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
	}

	repo, err := repository.NewReportRepository(repository.RepoType(cfg.Storage.Archive), repository.Backends{
		Redis:     rdb,
		KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		Postgres:  pg,
	})
	if err != nil {
		return nil, err
	}
	index, err := search.Open(cfg.Storage.IndexPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, index.Close)
	a.archive = repository.NewArchive(repo, index, log.Named("archive"))
	if cfg.Storage.Archive != string(repository.RepoTypeMemory) {
		if n, _ := index.Count(); n == 0 {
			indexed, err := a.archive.Reindex(ctx, reindexLimit)
			if err != nil {
				log.Warn("reindex failed", zap.Error(err))
			} else if indexed > 0 {
				log.Info("search index rebuilt", zap.Int("reports", indexed))
			}
		}
	}

	statuses, err := session.NewStore(session.StoreType(cfg.Server.StatusStore), rdb, cfg.Storage.Redis.KeyPrefix, cfg.Server.StatusTTL)
	if err != nil {
		return nil, err
	}
	a.tracker = session.NewTracker(statuses, log.Named("runs"))

	outputDir := ""
	if opts.writeFiles {
		outputDir = opts.outputDir
		if outputDir == "" {
			outputDir = cfg.Report.OutputDir
		}
	}
	a.processor, err = worker.NewProcessor(worker.Options{
		Pipelines:      orch,
		Extractor:      extractor,
		Renderer:       report.NewRenderer(log.Named("report")),
		Printer:        printer,
		Archive:        a.archive,
		Tracker:        a.tracker,
		OutputDir:      outputDir,
		MaxConcurrency: cfg.Server.MaxConcurrentRuns,
		Progress:       opts.progress,
		Logger:         log.Named("worker"),
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// generateImages reports whether runs should be illustrated by default.
func (a *app) generateImages() bool {
	return a.cfg.Images.Enabled && a.cfg.Pipeline.GenerateImages
}

func (a *app) close(ctx context.Context) {
	if err := a.otel.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown", zap.Error(err))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
