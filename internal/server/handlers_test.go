package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sitepulse/audit-server/internal/report"
	"github.com/sitepulse/audit-server/internal/server/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

func TestNew(t *testing.T) {
	t.Run("nil store panics", func(t *testing.T) {
		assert.Panics(t, func() {
			New(nil, nil, zap.NewNop(), time.Minute)
		})
	})

	t.Run("nil cache is allowed", func(t *testing.T) {
		s := New(&mocks.MockReportStore{}, nil, zap.NewNop(), time.Minute)
		assert.NotNil(t, s)
	})
}

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(&mocks.MockReportStore{}, nil, zap.NewNop(), time.Minute)

	rec := doRequest(t, s, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListRuns(t *testing.T) {
	t.Run("returns recorded runs", func(t *testing.T) {
		generatedAt := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
		store := &mocks.MockReportStore{
			ListFunc: func(ctx context.Context) ([]report.Run, error) {
				return []report.Run{{
					ID:               1,
					Filename:         "audit_20260830_090000.json",
					GeneratedAt:      generatedAt,
					TotalSites:       10,
					SuccessfulAudits: 9,
				}}, nil
			},
		}
		s := New(store, nil, zap.NewNop(), time.Minute)

		rec := doRequest(t, s, "/api/reports/")

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Audits []report.Run `json:"audits"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Audits, 1)
		assert.Equal(t, "audit_20260830_090000.json", body.Audits[0].Filename)
		assert.Equal(t, 10, body.Audits[0].TotalSites)
	})

	t.Run("empty store serves an empty list", func(t *testing.T) {
		store := &mocks.MockReportStore{
			ListFunc: func(ctx context.Context) ([]report.Run, error) {
				return nil, nil
			},
		}
		s := New(store, nil, zap.NewNop(), time.Minute)

		rec := doRequest(t, s, "/api/reports/")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"audits":[]}`, rec.Body.String())
	})
}

func TestLatest(t *testing.T) {
	t.Run("serves stored bytes verbatim", func(t *testing.T) {
		doc := []byte(`{"metadata":{"version":"1.0.0"}}`)
		store := &mocks.MockReportStore{
			LatestFunc: func(ctx context.Context) ([]byte, error) {
				return doc, nil
			},
		}
		s := New(store, nil, zap.NewNop(), time.Minute)

		rec := doRequest(t, s, "/api/reports/latest")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, string(doc), rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	})

	t.Run("no reports yet is a 404", func(t *testing.T) {
		store := &mocks.MockReportStore{
			LatestFunc: func(ctx context.Context) ([]byte, error) {
				return nil, report.ErrNoReports
			},
		}
		s := New(store, nil, zap.NewNop(), time.Minute)

		rec := doRequest(t, s, "/api/reports/latest")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetReport(t *testing.T) {
	t.Run("fetches by name", func(t *testing.T) {
		var gotName string
		store := &mocks.MockReportStore{
			GetFunc: func(ctx context.Context, name string) ([]byte, error) {
				gotName = name
				return []byte(`{}`), nil
			},
		}
		s := New(store, nil, zap.NewNop(), time.Minute)

		rec := doRequest(t, s, "/api/reports/audit_20260830_090000.json")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "audit_20260830_090000.json", gotName)
	})

	t.Run("invalid name is a 400", func(t *testing.T) {
		store := &mocks.MockReportStore{
			GetFunc: func(ctx context.Context, name string) ([]byte, error) {
				return nil, report.ErrBadName
			},
		}
		s := New(store, nil, zap.NewNop(), time.Minute)

		rec := doRequest(t, s, "/api/reports/nope.txt")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing report is a 404", func(t *testing.T) {
		store := &mocks.MockReportStore{
			GetFunc: func(ctx context.Context, name string) ([]byte, error) {
				return nil, report.ErrNotFound
			},
		}
		s := New(store, nil, zap.NewNop(), time.Minute)

		rec := doRequest(t, s, "/api/reports/audit_19990101_000000.json")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestFindAndCache(t *testing.T) {
	t.Run("cache hit wins over a fresh fetch", func(t *testing.T) {
		var sf singleflight.Group
		cache := &mocks.MockCacher{
			GetFunc: func(ctx context.Context, key string, dest any) error {
				return json.Unmarshal([]byte(`"cached-value"`), dest)
			},
			SetFunc: func(ctx context.Context, key string, value any, expiration time.Duration) error {
				return nil
			},
		}

		got, err := FindAndCache(context.Background(), cache, &sf, "k", time.Minute, zap.NewNop(),
			func(ctx context.Context) (string, error) {
				return "fresh-value", nil
			})

		require.NoError(t, err)
		assert.Equal(t, "cached-value", got)
	})

	t.Run("nil cache falls through to the fetch", func(t *testing.T) {
		var sf singleflight.Group

		got, err := FindAndCache[string](context.Background(), nil, &sf, "k", time.Minute, zap.NewNop(),
			func(ctx context.Context) (string, error) {
				return "fresh-value", nil
			})

		require.NoError(t, err)
		assert.Equal(t, "fresh-value", got)
	})

	t.Run("fetch errors propagate", func(t *testing.T) {
		var sf singleflight.Group

		_, err := FindAndCache[string](context.Background(), nil, &sf, "k", time.Minute, zap.NewNop(),
			func(ctx context.Context) (string, error) {
				return "", report.ErrNotFound
			})

		assert.ErrorIs(t, err, report.ErrNotFound)
	})
}
