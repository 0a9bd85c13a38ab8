// Package pagespeed collects Lighthouse payloads for a fleet of sites from
// the PageSpeed Insights v5 API.
package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sitepulse/audit-server/internal/lighthouse"
	"go.uber.org/zap"
	"gopkg.in/resty.v1"
)

const (
	defaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

	// API key quota is ~4 req/s; waits sized to ride out a 429 window.
	defaultTimeout         = 180 * time.Second
	defaultMaxAttempts     = 3
	defaultRateLimitWait   = 60 * time.Second
	defaultServerErrorWait = 5 * time.Second
)

var (
	ErrRateLimited  = errors.New("rate limited by pagespeed api")
	ErrEmptyPayload = errors.New("response carried no lighthouse result")
)

type Options struct {
	Endpoint        string
	Timeout         time.Duration
	MaxAttempts     int
	RateLimitWait   time.Duration
	ServerErrorWait time.Duration
}

type Option func(*Options)

func WithEndpoint(endpoint string) Option {
	return func(o *Options) { o.Endpoint = endpoint }
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) { o.Timeout = timeout }
}

func WithMaxAttempts(attempts int) Option {
	return func(o *Options) { o.MaxAttempts = attempts }
}

func WithRetryWaits(rateLimit, serverError time.Duration) Option {
	return func(o *Options) {
		o.RateLimitWait = rateLimit
		o.ServerErrorWait = serverError
	}
}

// Client calls the PageSpeed Insights API for one URL at a time.
type Client struct {
	http    *resty.Client
	options Options
	apiKey  string
	logger  *zap.Logger
}

// NewClient creates a PageSpeed client. The zero options give the
// production endpoint with the quota-safe retry policy.
func NewClient(apiKey string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	options := Options{
		Endpoint:        defaultEndpoint,
		Timeout:         defaultTimeout,
		MaxAttempts:     defaultMaxAttempts,
		RateLimitWait:   defaultRateLimitWait,
		ServerErrorWait: defaultServerErrorWait,
	}
	for _, opt := range opts {
		opt(&options)
	}

	httpClient := resty.New().SetTimeout(options.Timeout)

	return &Client{
		http:    httpClient,
		options: options,
		apiKey:  apiKey,
		logger:  logger.Named("pagespeed"),
	}
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	LighthouseResult *lighthouse.Result `json:"lighthouseResult"`
	Error            *apiError          `json:"error"`
}

// Audit runs a mobile performance+seo audit for url. 429 responses wait a
// progressively longer window; 502/503/504 are retried after a short pause;
// 500 and client errors are final.
func (c *Client) Audit(ctx context.Context, url string) (*lighthouse.Result, error) {
	var lastErr error

	for attempt := 0; attempt < c.options.MaxAttempts; attempt++ {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("url", url).
			SetQueryParam("key", c.apiKey).
			SetQueryParam("strategy", "mobile").
			SetMultiValueQueryParams(map[string][]string{"category": {"performance", "seo"}}).
			Get(c.options.Endpoint)
		if err != nil {
			lastErr = fmt.Errorf("request: %w", err)
			c.logger.Warn("pagespeed request failed",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			if attempt < c.options.MaxAttempts-1 && sleepCtx(ctx, c.options.ServerErrorWait) == nil {
				continue
			}
			return nil, lastErr
		}

		switch code := resp.StatusCode(); {
		case code == http.StatusOK:
			var payload apiResponse
			if err := json.Unmarshal(resp.Body(), &payload); err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
			if payload.LighthouseResult == nil {
				return nil, ErrEmptyPayload
			}
			return payload.LighthouseResult, nil

		case code == http.StatusTooManyRequests:
			wait := c.options.RateLimitWait * time.Duration(attempt+1)
			c.logger.Warn("rate limit hit, backing off",
				zap.String("url", url),
				zap.Duration("wait", wait))
			lastErr = ErrRateLimited
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}

		case code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout:
			lastErr = fmt.Errorf("pagespeed status %d: %s", code, apiErrorMessage(resp.Body(), code))
			if attempt < c.options.MaxAttempts-1 {
				if err := sleepCtx(ctx, c.options.ServerErrorWait); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr

		default:
			// 500 and client errors do not recover on retry.
			return nil, fmt.Errorf("pagespeed status %d: %s", code, apiErrorMessage(resp.Body(), code))
		}
	}

	return nil, lastErr
}

// NormalizeURL turns a bare roster domain into an audit URL.
func NormalizeURL(domain string) string {
	domain = strings.TrimSpace(domain)
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

func apiErrorMessage(body []byte, code int) string {
	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil && payload.Error.Message != "" {
		msg := payload.Error.Message
		if len(msg) > 100 {
			msg = msg[:100]
		}
		return msg
	}
	return fmt.Sprintf("HTTP %d", code)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
