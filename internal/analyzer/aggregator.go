// Package analyzer turns the per-site audit payloads of one batch run into
// the cross-site analysis: score averages, Core Web Vitals averages and a
// frequency-ranked issue catalog, optionally rolled up by theme.
package analyzer

import (
	"math"
	"sort"

	"github.com/sitepulse/audit-server/internal/lighthouse"
	"github.com/sitepulse/audit-server/internal/roster"
	"go.uber.org/zap"
)

// Issue frequency boundaries, in percent of successfully audited sites.
const (
	criticalThreshold = 70
	frequentThreshold = 30
)

// SiteResult pairs one fleet site with its audit outcome. Lighthouse is nil
// iff Error is set.
type SiteResult struct {
	Site       roster.Site
	Lighthouse *lighthouse.Result
	Error      bool
}

// Analyzer folds a batch of site results into an Analysis. It holds no
// state across calls; Analyze is a pure function of its input.
type Analyzer struct {
	logger *zap.Logger
}

// New creates an Analyzer.
func New(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

type issueTally struct {
	count       int
	title       string
	description string
	category    string
	impact      Impact
	metrics     []string
	sites       []string
	themes      map[string]struct{}
}

type themeTally struct {
	totalPerformance float64
	totalSEO         float64
	count            int
	sites            []string
}

type metricTally struct {
	sum   float64
	count int
}

// Analyze runs the single aggregation pass. Error sites contribute their
// themes and a by_site row but nothing else; every average is computed over
// successfully audited sites only.
func (a *Analyzer) Analyze(results []SiteResult) *Analysis {
	issues := make(map[string]*issueTally)
	var issueOrder []string

	themes := make(map[string]*themeTally)
	allThemes := make(map[string]struct{})
	cwvTotals := make(map[string]*metricTally)

	var totalPerformance, totalSEO float64
	successful := 0

	bySite := make([]SiteEntry, 0, len(results))

	for _, result := range results {
		for _, theme := range result.Site.Themes {
			allThemes[theme] = struct{}{}
		}

		if result.Error || result.Lighthouse == nil {
			bySite = append(bySite, SiteEntry{
				Site:   result.Site,
				Issues: []SiteIssue{},
				Error:  true,
			})
			continue
		}

		scores := ExtractCategoryScores(result.Lighthouse)
		cwv := ExtractCoreWebVitals(result.Lighthouse)
		failed := ExtractFailedIssues(result.Lighthouse)

		siteIssues := make([]SiteIssue, 0, len(failed))
		for _, f := range failed {
			siteIssues = append(siteIssues, SiteIssue{ID: f.ID, Title: f.Title, Score: f.Score})
		}
		bySite = append(bySite, SiteEntry{
			Site:          result.Site,
			Scores:        &scores,
			CoreWebVitals: cwv,
			Issues:        siteIssues,
		})

		totalPerformance += scores.Performance
		totalSEO += scores.SEO
		successful++

		for metric, value := range cwv {
			if value == nil {
				continue
			}
			t, ok := cwvTotals[metric]
			if !ok {
				t = &metricTally{}
				cwvTotals[metric] = t
			}
			t.sum += *value
			t.count++
		}

		for _, theme := range result.Site.Themes {
			t, ok := themes[theme]
			if !ok {
				t = &themeTally{}
				themes[theme] = t
			}
			t.totalPerformance += scores.Performance
			t.totalSEO += scores.SEO
			t.count++
			t.sites = append(t.sites, result.Site.Name)
		}

		for _, f := range failed {
			tally, ok := issues[f.ID]
			if !ok {
				tally = &issueTally{themes: make(map[string]struct{})}
				issues[f.ID] = tally
				issueOrder = append(issueOrder, f.ID)
			}
			tally.count++
			// Metadata is re-stamped on every occurrence; the last site
			// seen wins when payloads disagree on wording.
			tally.title = f.Title
			tally.description = f.Description
			tally.category = f.Category
			tally.impact = f.Impact
			tally.metrics = f.Metrics
			tally.sites = append(tally.sites, result.Site.Name)
			for _, theme := range result.Site.Themes {
				tally.themes[theme] = struct{}{}
			}
		}
	}

	a.logger.Info("aggregation pass complete",
		zap.Int("sites", len(results)),
		zap.Int("successful", successful),
		zap.Int("distinct_issues", len(issueOrder)))

	return &Analysis{
		Summary: Summary{
			AvgPerformance:   averageOf(totalPerformance, successful),
			AvgSEO:           averageOf(totalSEO, successful),
			CoreWebVitals:    averageVitals(cwvTotals),
			TotalSites:       len(results),
			SuccessfulAudits: successful,
		},
		CommonIssues: classifyIssues(issues, issueOrder, successful),
		BySite:       bySite,
		ByTheme:      rollupThemes(themes),
		Themes:       sortedKeys(allThemes),
	}
}

// classifyIssues computes each issue's share of the successfully audited
// sites and partitions the catalog into the three frequency tiers. Within a
// tier issues sort by count descending; equal counts keep encounter order.
func classifyIssues(issues map[string]*issueTally, order []string, successful int) CommonIssues {
	denominator := successful
	if denominator == 0 {
		denominator = 1
	}

	out := CommonIssues{
		Critical:   []IssueAggregate{},
		Frequent:   []IssueAggregate{},
		Occasional: []IssueAggregate{},
	}

	for _, id := range order {
		tally := issues[id]
		percentage := float64(tally.count) / float64(denominator) * 100

		entry := IssueAggregate{
			ID:          id,
			Title:       tally.title,
			Description: tally.description,
			Category:    tally.category,
			Impact:      tally.impact,
			Metrics:     tally.metrics,
			Count:       tally.count,
			Percentage:  round1(percentage),
			Sites:       tally.sites,
			Themes:      sortedKeys(tally.themes),
		}

		switch {
		case percentage > criticalThreshold:
			out.Critical = append(out.Critical, entry)
		case percentage >= frequentThreshold:
			out.Frequent = append(out.Frequent, entry)
		default:
			out.Occasional = append(out.Occasional, entry)
		}
	}

	for _, tier := range [][]IssueAggregate{out.Critical, out.Frequent, out.Occasional} {
		sort.SliceStable(tier, func(i, j int) bool {
			return tier[i].Count > tier[j].Count
		})
	}
	return out
}

// rollupThemes emits per-theme averages. A theme whose sites all errored
// never reaches the tally map and is omitted rather than reported as zero.
func rollupThemes(themes map[string]*themeTally) map[string]ThemeAggregate {
	out := make(map[string]ThemeAggregate, len(themes))
	for theme, t := range themes {
		if t.count == 0 {
			continue
		}
		out[theme] = ThemeAggregate{
			AvgPerformance: round1(t.totalPerformance / float64(t.count)),
			AvgSEO:         round1(t.totalSEO / float64(t.count)),
			SitesCount:     t.count,
			Sites:          t.sites,
		}
	}
	return out
}

// averageVitals keeps all six metric keys; a metric no site reported stays
// nil so readers can tell "no data" from zero.
func averageVitals(totals map[string]*metricTally) CoreWebVitals {
	out := make(CoreWebVitals, len(cwvAudits))
	for _, m := range cwvAudits {
		var avg *float64
		if t, ok := totals[m.key]; ok && t.count > 0 {
			v := round2(t.sum / float64(t.count))
			avg = &v
		}
		out[m.key] = avg
	}
	return out
}

func averageOf(total float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return round1(total / float64(count))
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
