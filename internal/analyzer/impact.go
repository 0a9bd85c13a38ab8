package analyzer

// Affected-metric tokens used in impact classification and in the
// metricSavings maps of the PageSpeed payload.
const (
	metricLCP = "LCP"
	metricTBT = "TBT"
	metricCLS = "CLS"
	metricFCP = "FCP"
	metricSI  = "SI"
)

type impactInfo struct {
	impact  Impact
	metrics []string
}

// impactByAudit encodes which audits are known to move which Core Web
// Vitals. Image, script and layout work lands on LCP/TBT/CLS (high);
// cache, compression and delivery tuning lands on FCP/SI (medium);
// diagnostics carry no actionable metric (low).
var impactByAudit = map[string]impactInfo{
	// image and render path
	"render-blocking-resources":  {ImpactHigh, []string{metricLCP}},
	"prioritize-lcp-image":       {ImpactHigh, []string{metricLCP}},
	"offscreen-images":           {ImpactHigh, []string{metricLCP}},
	"uses-optimized-images":      {ImpactHigh, []string{metricLCP}},
	"modern-image-formats":       {ImpactHigh, []string{metricLCP}},
	"uses-responsive-images":     {ImpactHigh, []string{metricLCP}},
	"efficient-animated-content": {ImpactHigh, []string{metricLCP}},

	// script work
	"unused-javascript":         {ImpactHigh, []string{metricTBT, metricLCP}},
	"unminified-javascript":     {ImpactHigh, []string{metricTBT, metricLCP}},
	"duplicated-javascript":     {ImpactHigh, []string{metricTBT}},
	"legacy-javascript":         {ImpactHigh, []string{metricTBT}},
	"bootup-time":               {ImpactHigh, []string{metricTBT}},
	"mainthread-work-breakdown": {ImpactHigh, []string{metricTBT}},
	"third-party-summary":       {ImpactHigh, []string{metricTBT}},
	"dom-size":                  {ImpactHigh, []string{metricTBT}},

	// layout stability
	"unsized-images":            {ImpactHigh, []string{metricCLS}},
	"layout-shift-elements":     {ImpactHigh, []string{metricCLS}},
	"non-composited-animations": {ImpactHigh, []string{metricCLS}},

	// cache, compression, delivery
	"uses-long-cache-ttl":     {ImpactMedium, []string{metricFCP, metricSI}},
	"uses-text-compression":   {ImpactMedium, []string{metricFCP, metricSI}},
	"server-response-time":    {ImpactMedium, []string{metricFCP, metricSI}},
	"redirects":               {ImpactMedium, []string{metricFCP, metricSI}},
	"unused-css-rules":        {ImpactMedium, []string{metricFCP, metricSI}},
	"unminified-css":          {ImpactMedium, []string{metricFCP}},
	"uses-rel-preconnect":     {ImpactMedium, []string{metricFCP}},
	"font-display":            {ImpactMedium, []string{metricFCP}},
	"critical-request-chains": {ImpactMedium, []string{metricFCP}},

	// diagnostics
	"largest-contentful-paint-element": {ImpactLow, nil},
	"long-tasks":                       {ImpactLow, nil},
	"network-requests":                 {ImpactLow, nil},
	"main-thread-tasks":                {ImpactLow, nil},
	"resource-summary":                 {ImpactLow, nil},
	"third-party-facades":              {ImpactLow, nil},
}

// savingsWeights scores the metricSavings keys of an audit unknown to the
// static table. The sum over present keys decides the tier.
var savingsWeights = map[string]float64{
	metricTBT: 30,
	metricLCP: 25,
	metricCLS: 25,
	metricFCP: 10,
	metricSI:  10,
}

const (
	savingsHighThreshold   = 25
	savingsMediumThreshold = 10
)

// classifyImpact resolves the impact tier and affected metrics for one
// audit: static table first, then the savings-weight fallback, then low.
func classifyImpact(auditID string, savings map[string]float64) (Impact, []string) {
	if info, ok := impactByAudit[auditID]; ok {
		return info.impact, info.metrics
	}

	if len(savings) > 0 {
		var total float64
		var metrics []string
		for _, m := range []string{metricTBT, metricLCP, metricCLS, metricFCP, metricSI} {
			if _, ok := savings[m]; ok {
				total += savingsWeights[m]
				metrics = append(metrics, m)
			}
		}
		switch {
		case total >= savingsHighThreshold:
			return ImpactHigh, metrics
		case total >= savingsMediumThreshold:
			return ImpactMedium, metrics
		default:
			return ImpactLow, metrics
		}
	}

	return ImpactLow, nil
}
