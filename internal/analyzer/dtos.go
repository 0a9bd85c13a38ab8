package analyzer

import "github.com/sitepulse/audit-server/internal/roster"

// Impact is the coarse classification of how much fixing an audit is
// expected to move the performance score.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Scores holds the category scores of one site on a 0-100 scale.
type Scores struct {
	Performance float64 `json:"performance"`
	SEO         float64 `json:"seo"`
}

// CoreWebVitals maps metric key (lcp, fid, cls, fcp, tbt, si) to its value.
// A nil entry means the payload carried no value for that metric, which is
// distinct from zero.
type CoreWebVitals map[string]*float64

// FailedIssue is one actionable failure extracted from a payload.
type FailedIssue struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Score        float64            `json:"score"`
	DisplayValue string             `json:"displayValue"`
	Category     string             `json:"category"`
	Impact       Impact             `json:"impact"`
	Metrics      []string           `json:"metrics"`
	Savings      map[string]float64 `json:"savings,omitempty"`
}

// IssueAggregate is one issue counted across the whole fleet.
type IssueAggregate struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Impact      Impact   `json:"impact"`
	Metrics     []string `json:"metrics"`
	Count       int      `json:"count"`
	Percentage  float64  `json:"percentage"`
	Sites       []string `json:"sites"`
	Themes      []string `json:"themes"`
}

// SiteIssue is the per-site slice of a failed issue kept in by_site rows.
type SiteIssue struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// SiteEntry is one by_site row. Scores and CoreWebVitals are nil when the
// audit errored.
type SiteEntry struct {
	roster.Site
	Scores        *Scores       `json:"scores"`
	CoreWebVitals CoreWebVitals `json:"core_web_vitals"`
	Issues        []SiteIssue   `json:"issues"`
	Error         bool          `json:"error"`
}

// ThemeAggregate is the per-theme rollup. Themes with no successfully
// audited site are not emitted at all.
type ThemeAggregate struct {
	AvgPerformance float64  `json:"avg_performance"`
	AvgSEO         float64  `json:"avg_seo"`
	SitesCount     int      `json:"sites_count"`
	Sites          []string `json:"sites"`
}

// Summary is the fleet-wide rollup.
type Summary struct {
	AvgPerformance   float64       `json:"avg_performance"`
	AvgSEO           float64       `json:"avg_seo"`
	CoreWebVitals    CoreWebVitals `json:"core_web_vitals"`
	TotalSites       int           `json:"total_sites"`
	SuccessfulAudits int           `json:"successful_audits"`
}

// CommonIssues partitions the issue catalog by how widespread each issue is.
type CommonIssues struct {
	Critical   []IssueAggregate `json:"critical"`
	Frequent   []IssueAggregate `json:"frequent"`
	Occasional []IssueAggregate `json:"occasional"`
}

// Analysis is the full output of one aggregation pass.
type Analysis struct {
	Summary      Summary                   `json:"summary"`
	CommonIssues CommonIssues              `json:"common_issues"`
	BySite       []SiteEntry               `json:"by_site"`
	ByTheme      map[string]ThemeAggregate `json:"by_theme"`
	Themes       []string                  `json:"themes"`
}
