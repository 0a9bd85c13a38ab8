package analyzer

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
)

// benchFleet builds a fleet whose audit results overlap enough to exercise
// every classification tier.
func benchFleet(n int) []SiteResult {
	themes := []string{"fashion", "beauty", "sport", "home"}
	results := make([]SiteResult, 0, n)
	for i := 0; i < n; i++ {
		s := site(fmt.Sprintf("site-%03d", i), themes[i%len(themes)])
		if i%10 == 9 {
			results = append(results, errResult(s))
			continue
		}
		failing := []string{"render-blocking-resources"}
		if i%2 == 0 {
			failing = append(failing, "unused-javascript")
		}
		if i%5 == 0 {
			failing = append(failing, "uses-long-cache-ttl")
		}
		results = append(results, okResult(s, float64(40+i%60), float64(70+i%30), failing...))
	}
	return results
}

func BenchmarkAnalyze(b *testing.B) {
	results := benchFleet(200)
	a := New(zap.NewNop())

	b.ReportAllocs()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = a.Analyze(results)
	}
}

func BenchmarkExtractFailedIssues(b *testing.B) {
	payload := benchFleet(1)[0].Lighthouse

	b.ReportAllocs()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ExtractFailedIssues(payload)
	}
}
