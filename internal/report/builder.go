// Package report shapes an analysis into the dashboard report document and
// persists the run history.
package report

import (
	"time"

	"github.com/sitepulse/audit-server/internal/analyzer"
	"github.com/sitepulse/audit-server/internal/roster"
)

const version = "1.0.0"

// Metadata describes one report run.
type Metadata struct {
	GeneratedAt      time.Time `json:"generated_at"`
	TotalSites       int       `json:"total_sites"`
	SuccessfulAudits int       `json:"successful_audits"`
	Version          string    `json:"version"`
}

// Summary is the fleet rollup surfaced to the dashboard.
type Summary struct {
	AvgPerformance float64                `json:"avg_performance"`
	AvgSEO         float64                `json:"avg_seo"`
	CoreWebVitals  analyzer.CoreWebVitals `json:"core_web_vitals"`
}

// Issue is one catalog entry with the contributor site list dropped to keep
// the document small.
type Issue struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Impact      analyzer.Impact `json:"impact"`
	Metrics     []string        `json:"metrics"`
	Count       int             `json:"count"`
	Percentage  float64         `json:"percentage"`
	Themes      []string        `json:"themes"`
}

// CommonIssues is the tiered issue catalog.
type CommonIssues struct {
	Critical   []Issue `json:"critical"`
	Frequent   []Issue `json:"frequent"`
	Occasional []Issue `json:"occasional"`
}

// SiteRow is one by_site entry.
type SiteRow struct {
	roster.Site
	Scores        *analyzer.Scores       `json:"scores"`
	CoreWebVitals analyzer.CoreWebVitals `json:"core_web_vitals"`
	IssuesCount   int                    `json:"issues_count"`
	Issues        []analyzer.SiteIssue   `json:"issues"`
	Error         bool                   `json:"error"`
}

// Report is the full document written to disk and served to the dashboard.
type Report struct {
	Metadata     Metadata                           `json:"metadata"`
	Summary      Summary                            `json:"summary"`
	CommonIssues CommonIssues                       `json:"common_issues"`
	BySite       []SiteRow                          `json:"by_site"`
	ByTheme      map[string]analyzer.ThemeAggregate `json:"by_theme"`
	Themes       []string                           `json:"themes"`
}

// Build shapes an analysis into the report document. generatedAt is passed
// in so a run is reproducible and testable.
func Build(analysis *analyzer.Analysis, generatedAt time.Time) *Report {
	return &Report{
		Metadata: Metadata{
			GeneratedAt:      generatedAt,
			TotalSites:       analysis.Summary.TotalSites,
			SuccessfulAudits: analysis.Summary.SuccessfulAudits,
			Version:          version,
		},
		Summary: Summary{
			AvgPerformance: analysis.Summary.AvgPerformance,
			AvgSEO:         analysis.Summary.AvgSEO,
			CoreWebVitals:  analysis.Summary.CoreWebVitals,
		},
		CommonIssues: CommonIssues{
			Critical:   simplifyIssues(analysis.CommonIssues.Critical),
			Frequent:   simplifyIssues(analysis.CommonIssues.Frequent),
			Occasional: simplifyIssues(analysis.CommonIssues.Occasional),
		},
		BySite:  siteRows(analysis.BySite),
		ByTheme: analysis.ByTheme,
		Themes:  analysis.Themes,
	}
}

func simplifyIssues(issues []analyzer.IssueAggregate) []Issue {
	out := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, Issue{
			ID:          issue.ID,
			Title:       issue.Title,
			Description: issue.Description,
			Category:    issue.Category,
			Impact:      issue.Impact,
			Metrics:     issue.Metrics,
			Count:       issue.Count,
			Percentage:  issue.Percentage,
			Themes:      issue.Themes,
		})
	}
	return out
}

func siteRows(entries []analyzer.SiteEntry) []SiteRow {
	out := make([]SiteRow, 0, len(entries))
	for _, entry := range entries {
		out = append(out, SiteRow{
			Site:          entry.Site,
			Scores:        entry.Scores,
			CoreWebVitals: entry.CoreWebVitals,
			IssuesCount:   len(entry.Issues),
			Issues:        entry.Issues,
			Error:         entry.Error,
		})
	}
	return out
}
