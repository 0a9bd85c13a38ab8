package analyzer

import (
	"sort"

	"github.com/sitepulse/audit-server/internal/lighthouse"
)

// metricAudits are final measurements, not actionable opportunities. They
// surface through ExtractCoreWebVitals and are never reported as failed
// issues, regardless of score.
var metricAudits = map[string]struct{}{
	"largest-contentful-paint": {},
	"first-contentful-paint":   {},
	"speed-index":              {},
	"interactive":              {},
	"total-blocking-time":      {},
	"cumulative-layout-shift":  {},
	"max-potential-fid":        {},
	"first-meaningful-paint":   {},
	"server-response-time":     {},
}

// cwvAudits maps each Core Web Vitals key to the audit it is read from.
// max-potential-fid stands in for FID since lab runs have no real input.
var cwvAudits = []struct {
	key     string
	auditID string
}{
	{"lcp", "largest-contentful-paint"},
	{"fid", "max-potential-fid"},
	{"cls", "cumulative-layout-shift"},
	{"fcp", "first-contentful-paint"},
	{"tbt", "total-blocking-time"},
	{"si", "speed-index"},
}

// excludedDisplayModes are audits that need human judgment or do not apply
// to the page; they never count as failures.
var excludedDisplayModes = map[string]struct{}{
	"manual":        {},
	"notApplicable": {},
	"informative":   {},
}

// ExtractCategoryScores returns the performance and seo scores on a 0-100
// scale, defaulting to 0 when the category or its score is absent.
func ExtractCategoryScores(res *lighthouse.Result) Scores {
	return Scores{
		Performance: categoryScore(res, "performance"),
		SEO:         categoryScore(res, "seo"),
	}
}

func categoryScore(res *lighthouse.Result, id string) float64 {
	cat, ok := res.Categories[id]
	if !ok || cat.Score == nil {
		return 0
	}
	return *cat.Score * 100
}

// ExtractCoreWebVitals reads the six vitals from their audits. A missing
// audit or missing numeric value yields a nil entry, never zero.
func ExtractCoreWebVitals(res *lighthouse.Result) CoreWebVitals {
	out := make(CoreWebVitals, len(cwvAudits))
	for _, m := range cwvAudits {
		var value *float64
		if audit, ok := res.Audits[m.auditID]; ok && audit.NumericValue != nil {
			v := *audit.NumericValue
			value = &v
		}
		out[m.key] = value
	}
	return out
}

// ExtractFailedIssues returns every actionable failed audit of a payload,
// sorted by audit id so a payload always normalizes to the same list.
func ExtractFailedIssues(res *lighthouse.Result) []FailedIssue {
	ids := make([]string, 0, len(res.Audits))
	for id := range res.Audits {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var failed []FailedIssue
	for _, id := range ids {
		audit := res.Audits[id]

		if _, reserved := metricAudits[id]; reserved {
			continue
		}
		if audit.Score == nil || *audit.Score >= 1 {
			continue
		}
		if _, excluded := excludedDisplayModes[audit.ScoreDisplayMode]; excluded {
			continue
		}

		title := audit.Title
		if title == "" {
			title = id
		}

		impact, metrics := classifyImpact(id, audit.MetricSavings)
		failed = append(failed, FailedIssue{
			ID:           id,
			Title:        title,
			Description:  audit.Description,
			Score:        *audit.Score,
			DisplayValue: audit.DisplayValue,
			Category:     auditCategory(res, id),
			Impact:       impact,
			Metrics:      metrics,
			Savings:      audit.MetricSavings,
		})
	}
	return failed
}

// auditCategory resolves the owning category by reverse lookup over the
// category audit refs. First match wins; "unknown" when nothing refers to
// the audit.
func auditCategory(res *lighthouse.Result, auditID string) string {
	catIDs := make([]string, 0, len(res.Categories))
	for id := range res.Categories {
		catIDs = append(catIDs, id)
	}
	sort.Strings(catIDs)

	for _, catID := range catIDs {
		for _, ref := range res.Categories[catID].AuditRefs {
			if ref.ID == auditID {
				return catID
			}
		}
	}
	return "unknown"
}
