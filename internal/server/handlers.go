// Package server exposes the stored reports over HTTP for the dashboard.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sitepulse/audit-server/internal/report"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheTTL       = 5 * time.Minute
	defaultRequestTimeout = 10 * time.Second
)

const (
	cacheKeyRuns   = "http:report_runs"
	cacheKeyLatest = "http:report_latest"
	cacheKeyReport = "http:report:"
)

// Server serves the report documents and the run listing.
type Server struct {
	store    ReportStore
	cache    Cacher
	logger   *zap.Logger
	sfGroup  singleflight.Group
	cacheTTL time.Duration
}

// New creates the HTTP server. cache may be nil, which disables the
// read-through layer.
func New(store ReportStore, cache Cacher, logger *zap.Logger, ttl time.Duration) *Server {
	if store == nil {
		panic("nil ReportStore provided to server.New")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Server{
		store:    store,
		cache:    cache,
		logger:   logger.Named("http"),
		cacheTTL: ttl,
	}
}

// Routes mounts the report API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Route("/api/reports", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Get("/latest", s.handleLatest)
		r.Get("/{name}", s.handleGet)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	runs, err := FindAndCache(ctx, s.cache, &s.sfGroup, cacheKeyRuns, s.cacheTTL, s.logger,
		func(fetchCtx context.Context) ([]report.Run, error) {
			return s.store.List(fetchCtx)
		})
	if err != nil {
		s.writeError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []report.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": runs})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	data, err := FindAndCache(ctx, s.cache, &s.sfGroup, cacheKeyLatest, s.cacheTTL, s.logger,
		func(fetchCtx context.Context) ([]byte, error) {
			return s.store.Latest(fetchCtx)
		})
	if err != nil {
		s.writeError(w, "latest report", err)
		return
	}
	writeRaw(w, data)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	name := chi.URLParam(r, "name")
	data, err := FindAndCache(ctx, s.cache, &s.sfGroup, cacheKeyReport+name, s.cacheTTL, s.logger,
		func(fetchCtx context.Context) ([]byte, error) {
			return s.store.Get(fetchCtx, name)
		})
	if err != nil {
		s.writeError(w, "get report", err)
		return
	}
	writeRaw(w, data)
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, report.ErrNoReports), errors.Is(err, report.ErrNotFound):
		s.logger.Info("report not found", zap.String("op", op))
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
	case errors.Is(err, report.ErrBadName):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report name"})
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("request timeout", zap.String("op", op))
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "request timed out"})
	default:
		s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeRaw serves a stored report document verbatim.
func writeRaw(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
