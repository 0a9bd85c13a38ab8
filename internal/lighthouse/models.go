// Package lighthouse holds the subset of the PageSpeed Insights v5 response
// the rest of the system consumes. Payloads are treated as read-only once
// decoded.
package lighthouse

// Result is the lighthouseResult object of one audited site.
type Result struct {
	Audits     map[string]Audit    `json:"audits"`
	Categories map[string]Category `json:"categories"`
}

// Audit is one named check within a result. Score is nil for informational
// audits that carry no pass/fail semantics.
type Audit struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Score            *float64           `json:"score"`
	ScoreDisplayMode string             `json:"scoreDisplayMode"`
	DisplayValue     string             `json:"displayValue"`
	NumericValue     *float64           `json:"numericValue"`
	MetricSavings    map[string]float64 `json:"metricSavings,omitempty"`
}

// Category aggregates a set of audits under one score (0..1 fraction).
type Category struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Score     *float64   `json:"score"`
	AuditRefs []AuditRef `json:"auditRefs"`
}

// AuditRef points from a category to one of its member audits.
type AuditRef struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
	Group  string  `json:"group,omitempty"`
}
