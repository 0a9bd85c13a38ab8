//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sitepulse/audit-server/internal/analyzer"
	"github.com/sitepulse/audit-server/internal/pagespeed"
	"github.com/sitepulse/audit-server/internal/report"
	"github.com/sitepulse/audit-server/internal/roster"
	"github.com/sitepulse/audit-server/internal/server"
	dbbuilder "github.com/sitepulse/audit-server/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// payloadFor fakes a PageSpeed response: perf score on a 0-1 scale plus one
// failing render-blocking audit for every site.
func payloadFor(perf float64) string {
	return fmt.Sprintf(`{
		"lighthouseResult": {
			"audits": {
				"largest-contentful-paint": {"id": "largest-contentful-paint", "score": 0.5, "scoreDisplayMode": "numeric", "numericValue": 2500},
				"render-blocking-resources": {"id": "render-blocking-resources", "title": "Eliminate render-blocking resources", "score": 0.3, "scoreDisplayMode": "binary"}
			},
			"categories": {
				"performance": {"id": "performance", "score": %g, "auditRefs": [
					{"id": "largest-contentful-paint", "weight": 25},
					{"id": "render-blocking-resources", "weight": 0}
				]},
				"seo": {"id": "seo", "score": 0.9, "auditRefs": []}
			}
		}
	}`, perf)
}

func writeRosterFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestE2E_AuditPipeline(t *testing.T) {
	rosterDir := t.TempDir()
	writeRosterFile(t, rosterDir, "fashion.csv", `id,name,slug,brand,domain,account
1,Alpha,alpha,Brand A,alpha.example.com,acct-1
2,Beta,beta,Brand B,beta.example.com,acct-2
`)
	writeRosterFile(t, rosterDir, "beauty.csv", `id,name,slug,brand,domain,account
3,Gamma,gamma,Brand C,gamma.example.com,acct-3
`)

	// gamma always fails, the other two succeed.
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("url") {
		case "https://alpha.example.com":
			fmt.Fprint(w, payloadFor(0.8))
		case "https://beta.example.com":
			fmt.Fprint(w, payloadFor(0.4))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer api.Close()

	logger := zap.NewNop()
	ctx := context.Background()

	sites, err := roster.LoadDir(rosterDir, logger)
	require.NoError(t, err)
	require.Len(t, sites, 3)

	client := pagespeed.NewClient("test-key", logger,
		pagespeed.WithEndpoint(api.URL),
		pagespeed.WithRetryWaits(time.Millisecond, time.Millisecond),
	)
	runner := pagespeed.NewRunner(client, logger, pagespeed.WithDelay(0))

	results := runner.Run(ctx, sites)
	require.Len(t, results, 3)

	analysis := analyzer.New(logger).Analyze(results)
	assert.Equal(t, 3, analysis.Summary.TotalSites)
	assert.Equal(t, 2, analysis.Summary.SuccessfulAudits)

	// render-blocking-resources fails on both successful sites: 100% critical.
	require.Len(t, analysis.CommonIssues.Critical, 1)
	assert.Equal(t, "render-blocking-resources", analysis.CommonIssues.Critical[0].ID)
	assert.Equal(t, 100.0, analysis.CommonIssues.Critical[0].Percentage)

	db, err := dbbuilder.New(
		dbbuilder.WithDriver("sqlite3"),
		dbbuilder.WithDataSource(":memory:"),
		dbbuilder.WithMaxOpenConns(1),
	)
	require.NoError(t, err)
	defer db.Close()

	store, err := report.NewStore(t.TempDir(), db, logger)
	require.NoError(t, err)

	rep := report.Build(analysis, time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC))
	filename, err := store.Save(ctx, rep)
	require.NoError(t, err)
	assert.Equal(t, "audit_20260830_103000.json", filename)

	// Serve what was just written.
	srv := server.New(store, nil, logger, time.Minute)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/reports/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var served report.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&served))
	assert.Equal(t, 3, served.Metadata.TotalSites)
	assert.Equal(t, 2, served.Metadata.SuccessfulAudits)
	require.Len(t, served.BySite, 3)

	byName := map[string]report.SiteRow{}
	for _, row := range served.BySite {
		byName[row.Name] = row
	}
	assert.False(t, byName["Alpha"].Error)
	require.NotNil(t, byName["Alpha"].Scores)
	assert.Equal(t, 80.0, byName["Alpha"].Scores.Performance)
	assert.True(t, byName["Gamma"].Error)
	assert.Nil(t, byName["Gamma"].Scores)
}
