package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sitepulse/audit-server/internal/analyzer"
	"github.com/sitepulse/audit-server/internal/config"
	"github.com/sitepulse/audit-server/internal/pagespeed"
	"github.com/sitepulse/audit-server/internal/report"
	"github.com/sitepulse/audit-server/internal/roster"
	"github.com/sitepulse/audit-server/pkg/cache"
	dbbuilder "github.com/sitepulse/audit-server/pkg/database"

	"go.uber.org/zap"
)

// App wires the batch audit pipeline: roster -> PageSpeed -> analysis -> report.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	dbPool   *sql.DB
	cache    *cache.Cache
	runner   *pagespeed.Runner
	analyzer *analyzer.Analyzer
	store    *report.Store
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	dbPool, err := dbbuilder.New(
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
	)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized", zap.String("path", cfg.DBPath))

	client := pagespeed.NewClient(cfg.APIKey, logger)

	runnerOpts := []pagespeed.RunnerOption{
		pagespeed.WithDelay(cfg.RequestDelay),
	}

	var cacheClient *cache.Cache
	if cfg.RedisAddr != "" {
		cacheClient, err = cache.New(ctx,
			cache.WithAddress(cfg.RedisAddr),
		)
		if err != nil {
			return nil, fmt.Errorf("cache init failed: %w", err)
		}
		logger.Info("Payload cache initialized", zap.String("addr", cfg.RedisAddr))
		runnerOpts = append(runnerOpts, pagespeed.WithCache(cacheClient, cfg.PayloadTTL))
	}

	store, err := report.NewStore(cfg.OutputDir, dbPool, logger)
	if err != nil {
		return nil, fmt.Errorf("report store init failed: %w", err)
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		dbPool:   dbPool,
		cache:    cacheClient,
		runner:   pagespeed.NewRunner(client, logger, runnerOpts...),
		analyzer: analyzer.New(logger),
		store:    store,
	}, nil
}

// Run executes one full audit batch and writes the report to disk.
func (a *App) Run(ctx context.Context) error {
	start := time.Now()

	sites, err := roster.LoadDir(a.cfg.RosterDir, a.logger)
	if err != nil {
		return fmt.Errorf("roster load failed: %w", err)
	}
	if len(sites) == 0 {
		return fmt.Errorf("roster %q contains no sites", a.cfg.RosterDir)
	}
	if a.cfg.SiteLimit > 0 && len(sites) > a.cfg.SiteLimit {
		a.logger.Info("limiting roster",
			zap.Int("limit", a.cfg.SiteLimit),
			zap.Int("total", len(sites)))
		sites = sites[:a.cfg.SiteLimit]
	}

	results := a.runner.Run(ctx, sites)

	analysis := a.analyzer.Analyze(results)

	rep := report.Build(analysis, time.Now())
	filename, err := a.store.Save(ctx, rep)
	if err != nil {
		return fmt.Errorf("report save failed: %w", err)
	}

	a.logger.Info("audit batch completed",
		zap.String("report", filename),
		zap.Int("sites", analysis.Summary.TotalSites),
		zap.Int("successful", analysis.Summary.SuccessfulAudits),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Close releases the database pool and cache connection.
func (a *App) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("cache shutdown error", zap.Error(err))
		}
	}
	if err := a.dbPool.Close(); err != nil {
		a.logger.Error("database shutdown error", zap.Error(err))
	}
	_ = a.logger.Sync()
}
