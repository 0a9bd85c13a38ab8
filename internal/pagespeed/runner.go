package pagespeed

import (
	"context"
	"time"

	"github.com/sitepulse/audit-server/internal/analyzer"
	"github.com/sitepulse/audit-server/internal/lighthouse"
	"github.com/sitepulse/audit-server/internal/roster"
	"go.uber.org/zap"
)

// Quota-safe spacing between API calls (~4 req/s allowed, 1.5s for margin).
const defaultDelay = 1500 * time.Millisecond

// Auditor fetches the Lighthouse payload for one URL.
type Auditor interface {
	Audit(ctx context.Context, url string) (*lighthouse.Result, error)
}

// Cacher is the payload cache in front of the API. Implemented by pkg/cache.
type Cacher interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

type RunnerOption func(*Runner)

// WithDelay overrides the spacing between consecutive API calls.
func WithDelay(delay time.Duration) RunnerOption {
	return func(r *Runner) { r.delay = delay }
}

// WithCache enables payload caching so re-runs skip recently audited sites.
func WithCache(cache Cacher, ttl time.Duration) RunnerOption {
	return func(r *Runner) {
		r.cache = cache
		r.cacheTTL = ttl
	}
}

// Runner walks the roster sequentially and collects one SiteResult per
// site. Individual failures never abort the batch.
type Runner struct {
	auditor  Auditor
	cache    Cacher
	cacheTTL time.Duration
	delay    time.Duration
	logger   *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(auditor Auditor, logger *zap.Logger, opts ...RunnerOption) *Runner {
	if auditor == nil {
		panic("auditor must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		auditor: auditor,
		delay:   defaultDelay,
		logger:  logger.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run audits every site in order and returns one result per site, in the
// same order. Cancelling the context marks the remaining sites as errored
// instead of dropping them, so aggregation still sees the whole roster.
func (r *Runner) Run(ctx context.Context, sites []roster.Site) []analyzer.SiteResult {
	total := len(sites)
	results := make([]analyzer.SiteResult, 0, total)
	start := time.Now()
	successful := 0

	r.logger.Info("starting batch audit",
		zap.Int("sites", total),
		zap.Duration("delay", r.delay))

	for i, s := range sites {
		if ctx.Err() != nil {
			r.logger.Warn("batch cancelled, marking remaining sites as errored",
				zap.Int("remaining", total-i))
			for _, rest := range sites[i:] {
				results = append(results, analyzer.SiteResult{Site: rest, Error: true})
			}
			break
		}

		if i > 0 {
			elapsed := time.Since(start)
			perSite := elapsed / time.Duration(i)
			r.logger.Info("auditing site",
				zap.Int("n", i+1),
				zap.Int("total", total),
				zap.String("site", s.Name),
				zap.String("domain", s.Domain),
				zap.Duration("eta", perSite*time.Duration(total-i)))
		} else {
			r.logger.Info("auditing site",
				zap.Int("n", 1),
				zap.Int("total", total),
				zap.String("site", s.Name),
				zap.String("domain", s.Domain))
		}

		payload := r.fetch(ctx, s)
		if payload != nil {
			successful++
			results = append(results, analyzer.SiteResult{Site: s, Lighthouse: payload})
		} else {
			results = append(results, analyzer.SiteResult{Site: s, Error: true})
		}

		if i < total-1 {
			if err := sleepCtx(ctx, r.delay); err != nil {
				continue
			}
		}
	}

	r.logger.Info("batch audit finished",
		zap.Int("successful", successful),
		zap.Int("failed", len(results)-successful),
		zap.Duration("took", time.Since(start)))
	return results
}

func (r *Runner) fetch(ctx context.Context, s roster.Site) *lighthouse.Result {
	cacheKey := "pagespeed:" + s.Domain

	if r.cache != nil {
		var cached lighthouse.Result
		if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
			r.logger.Debug("payload served from cache", zap.String("domain", s.Domain))
			return &cached
		}
	}

	payload, err := r.auditor.Audit(ctx, NormalizeURL(s.Domain))
	if err != nil {
		r.logger.Warn("audit failed",
			zap.String("site", s.Name),
			zap.String("domain", s.Domain),
			zap.Error(err))
		return nil
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey, payload, r.cacheTTL); err != nil {
			r.logger.Debug("payload cache write failed", zap.Error(err))
		}
	}
	return payload
}
