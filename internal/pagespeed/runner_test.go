package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sitepulse/audit-server/internal/lighthouse"
	"github.com/sitepulse/audit-server/internal/pagespeed/mocks"
	"github.com/sitepulse/audit-server/internal/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fleet(domains ...string) []roster.Site {
	sites := make([]roster.Site, 0, len(domains))
	for _, d := range domains {
		sites = append(sites, roster.Site{Name: d, Domain: d})
	}
	return sites
}

func somePayload() *lighthouse.Result {
	score := 0.8
	return &lighthouse.Result{
		Categories: map[string]lighthouse.Category{
			"performance": {Score: &score},
		},
	}
}

func TestNewRunner(t *testing.T) {
	t.Run("nil auditor panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NewRunner(nil, zap.NewNop())
		})
	})

	t.Run("nil logger gets default", func(t *testing.T) {
		r := NewRunner(&mocks.MockAuditor{}, nil)
		assert.NotNil(t, r.logger)
	})
}

func TestRunnerRun(t *testing.T) {
	t.Run("keeps roster order and marks failures", func(t *testing.T) {
		auditor := &mocks.MockAuditor{
			AuditFunc: func(ctx context.Context, url string) (*lighthouse.Result, error) {
				if url == "https://broken.example.com" {
					return nil, errors.New("boom")
				}
				return somePayload(), nil
			},
		}
		runner := NewRunner(auditor, zap.NewNop(), WithDelay(0))

		results := runner.Run(context.Background(), fleet("a.example.com", "broken.example.com", "b.example.com"))

		require.Len(t, results, 3)
		assert.Equal(t, "a.example.com", results[0].Site.Domain)
		assert.False(t, results[0].Error)
		assert.NotNil(t, results[0].Lighthouse)

		assert.True(t, results[1].Error)
		assert.Nil(t, results[1].Lighthouse)

		assert.False(t, results[2].Error)
	})

	t.Run("normalizes domains into audit urls", func(t *testing.T) {
		auditor := &mocks.MockAuditor{
			AuditFunc: func(ctx context.Context, url string) (*lighthouse.Result, error) {
				return somePayload(), nil
			},
		}
		runner := NewRunner(auditor, zap.NewNop(), WithDelay(0))

		runner.Run(context.Background(), fleet("a.example.com"))

		require.Len(t, auditor.Calls, 1)
		assert.Equal(t, "https://a.example.com", auditor.Calls[0])
	})

	t.Run("cancellation marks remaining sites as errored", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		auditor := &mocks.MockAuditor{
			AuditFunc: func(ctx context.Context, url string) (*lighthouse.Result, error) {
				cancel()
				return somePayload(), nil
			},
		}
		runner := NewRunner(auditor, zap.NewNop(), WithDelay(0))

		results := runner.Run(ctx, fleet("a.example.com", "b.example.com", "c.example.com"))

		require.Len(t, results, 3)
		assert.False(t, results[0].Error)
		assert.True(t, results[1].Error)
		assert.True(t, results[2].Error)
		assert.Len(t, auditor.Calls, 1)
	})

	t.Run("cache hit skips the api", func(t *testing.T) {
		cached := somePayload()
		cache := &mocks.MockCacher{
			GetFunc: func(ctx context.Context, key string, dest any) error {
				raw, _ := json.Marshal(cached)
				return json.Unmarshal(raw, dest)
			},
		}
		auditor := &mocks.MockAuditor{}
		runner := NewRunner(auditor, zap.NewNop(), WithDelay(0), WithCache(cache, time.Hour))

		results := runner.Run(context.Background(), fleet("a.example.com"))

		require.Len(t, results, 1)
		assert.False(t, results[0].Error)
		assert.NotNil(t, results[0].Lighthouse)
		assert.Empty(t, auditor.Calls)
	})

	t.Run("cache miss fetches and stores", func(t *testing.T) {
		var storedKey string
		cache := &mocks.MockCacher{
			GetFunc: func(ctx context.Context, key string, dest any) error {
				return errors.New("miss")
			},
			SetFunc: func(ctx context.Context, key string, value any, expiration time.Duration) error {
				storedKey = key
				assert.Equal(t, time.Hour, expiration)
				return nil
			},
		}
		auditor := &mocks.MockAuditor{
			AuditFunc: func(ctx context.Context, url string) (*lighthouse.Result, error) {
				return somePayload(), nil
			},
		}
		runner := NewRunner(auditor, zap.NewNop(), WithDelay(0), WithCache(cache, time.Hour))

		runner.Run(context.Background(), fleet("a.example.com"))

		assert.Len(t, auditor.Calls, 1)
		assert.Equal(t, "pagespeed:a.example.com", storedKey)
	})

	t.Run("empty roster yields empty results", func(t *testing.T) {
		runner := NewRunner(&mocks.MockAuditor{}, zap.NewNop(), WithDelay(0))

		results := runner.Run(context.Background(), nil)

		assert.Empty(t, results)
	})
}
