package analytics

import (
	"context"
	"fmt"
	"time"

	"citewatch/internal/pkg/async"
)

const (
	DefaultTrendDays  = 30
	DefaultTrendWeeks = 4
	DefaultTopPages   = 10
	reportWorkerCount = 4
)

// ReportParams selects the dashboard report.
type ReportParams struct {
	Days   int
	Weeks  int
	Limit  int
	Filter Filter
}

// Report bundles every read model the dashboard renders.
type Report struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Overview    *Overview          `json:"overview"`
	Daily       []DailyBucket      `json:"daily"`
	Weekly      []WeeklyBucket     `json:"weekly"`
	Comparison  *ComparisonMetrics `json:"comparison"`
	Platforms   []PlatformRollup   `json:"platforms"`
	Pages       []PageRollup       `json:"pages"`
	Browsers    []FacetCount       `json:"browsers"`
	Countries   []FacetCount       `json:"countries"`
	Referrers   []FacetCount       `json:"referrers"`
}

// BuildReport runs the independent aggregations concurrently. The first
// failing aggregation fails the report.
func (e *Engine) BuildReport(ctx context.Context, params ReportParams) (*Report, error) {
	if params.Days <= 0 {
		params.Days = DefaultTrendDays
	}
	if params.Weeks <= 0 {
		params.Weeks = DefaultTrendWeeks
	}
	if params.Limit <= 0 {
		params.Limit = DefaultTopPages
	}
	filter := params.Filter

	tasks := []async.Task{
		{Name: "overview", Execute: func(ctx context.Context) (any, error) { return e.Overview(ctx, filter) }},
		{Name: "daily", Execute: func(ctx context.Context) (any, error) { return e.DailyTrendFor(ctx, params.Days, filter) }},
		{Name: "weekly", Execute: func(ctx context.Context) (any, error) { return e.WeeklyComparisonFor(ctx, params.Weeks, filter) }},
		{Name: "platforms", Execute: func(ctx context.Context) (any, error) { return e.PlatformRollups(ctx, filter) }},
		{Name: "pages", Execute: func(ctx context.Context) (any, error) { return e.TopPages(ctx, filter, params.Limit) }},
		{Name: "browsers", Execute: func(ctx context.Context) (any, error) { return e.BrowserFacets(ctx, filter) }},
		{Name: "countries", Execute: func(ctx context.Context) (any, error) { return e.CountryFacets(ctx, filter) }},
		{Name: "referrers", Execute: func(ctx context.Context) (any, error) { return e.ReferrerFacets(ctx, filter) }},
	}

	results := async.NewPool(reportWorkerCount).Execute(ctx, tasks)
	for _, task := range tasks {
		result, ok := results[task.Name]
		if !ok {
			return nil, fmt.Errorf("%s aggregation did not complete", task.Name)
		}
		if result.Err != nil {
			return nil, fmt.Errorf("%s aggregation failed: %w", task.Name, result.Err)
		}
	}

	report := &Report{
		GeneratedAt: e.now(),
		Overview:    results["overview"].Data.(*Overview),
		Daily:       results["daily"].Data.([]DailyBucket),
		Weekly:      results["weekly"].Data.([]WeeklyBucket),
		Platforms:   results["platforms"].Data.([]PlatformRollup),
		Pages:       results["pages"].Data.([]PageRollup),
		Browsers:    results["browsers"].Data.([]FacetCount),
		Countries:   results["countries"].Data.([]FacetCount),
		Referrers:   results["referrers"].Data.([]FacetCount),
	}
	report.Comparison = CompareWeeks(report.Weekly)
	return report, nil
}
