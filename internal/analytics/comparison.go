package analytics

// ComparisonMetrics represents week-over-week percentage changes
type ComparisonMetrics struct {
	CitationsChange *float64 `json:"citations_change,omitempty"`
	CrawlsChange    *float64 `json:"crawls_change,omitempty"`
}

// ComparisonData holds current and previous period counts for comparison
type ComparisonData struct {
	CurrentCitations  int
	PreviousCitations int
	CurrentCrawls     int
	PreviousCrawls    int
}

// CalculateComparisonMetrics computes period-over-period percentage changes.
// A change is nil when the previous period had nothing to compare against.
func CalculateComparisonMetrics(data ComparisonData) *ComparisonMetrics {
	calculatePercentageChange := func(current, previous int) *float64 {
		if previous > 0 {
			change := roundTo(float64(current-previous)/float64(previous)*100, 1)
			return &change
		}
		return nil
	}

	return &ComparisonMetrics{
		CitationsChange: calculatePercentageChange(data.CurrentCitations, data.PreviousCitations),
		CrawlsChange:    calculatePercentageChange(data.CurrentCrawls, data.PreviousCrawls),
	}
}

// CompareWeeks compares the current week against the one before it. weeks
// must be ordered current week first, as WeeklyComparison returns them.
func CompareWeeks(weeks []WeeklyBucket) *ComparisonMetrics {
	if len(weeks) < 2 {
		return &ComparisonMetrics{}
	}
	return CalculateComparisonMetrics(ComparisonData{
		CurrentCitations:  weeks[0].CitationCount,
		PreviousCitations: weeks[1].CitationCount,
		CurrentCrawls:     weeks[0].CrawlCount,
		PreviousCrawls:    weeks[1].CrawlCount,
	})
}
