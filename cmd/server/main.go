package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sitepulse/audit-server/internal/config"
	"github.com/sitepulse/audit-server/internal/report"
	"github.com/sitepulse/audit-server/internal/server"
	"github.com/sitepulse/audit-server/pkg/cache"
	dbbuilder "github.com/sitepulse/audit-server/pkg/database"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.LoadFromEnv()

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	dbPool, err := dbbuilder.New(
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
	)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbPool.Close()

	store, err := report.NewStore(cfg.OutputDir, dbPool, logger)
	if err != nil {
		logger.Fatal("Failed to initialize report store", zap.Error(err))
	}

	var cacheClient *cache.Cache
	if cfg.RedisAddr != "" {
		cacheClient, err = cache.New(ctx,
			cache.WithAddress(cfg.RedisAddr),
		)
		if err != nil {
			logger.Fatal("Failed to initialize cache", zap.Error(err))
		}
		defer cacheClient.Close()
	}

	var srvCache server.Cacher
	if cacheClient != nil {
		srvCache = cacheClient
	}
	srv := server.New(store, srvCache, logger, cfg.HTTPCacheTTL)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
}
