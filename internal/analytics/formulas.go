package analytics

import (
	"math"
	"time"
)

const secondsPerDay = 86400

// CaptureRate is the percentage of citations that carried a search query,
// rounded to a whole number. It is 0 when there are no citations.
func CaptureRate(queriesCaptured, citationCount int) int {
	if citationCount <= 0 {
		return 0
	}
	return int(math.Round(float64(queriesCaptured) / float64(citationCount) * 100))
}

// PercentOfTotal returns part as a percentage of total with one decimal.
func PercentOfTotal(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return roundTo(float64(part)/float64(total)*100, 1)
}

// DaysActive is the number of started days between first and last, never less than 1.
func DaysActive(first, last time.Time) int {
	seconds := last.Sub(first).Seconds()
	days := int(math.Ceil(seconds / secondsPerDay))
	if days < 1 {
		return 1
	}
	return days
}

// AveragePerDay divides count over days with one decimal.
func AveragePerDay(count, days int) float64 {
	if days < 1 {
		days = 1
	}
	return roundTo(float64(count)/float64(days), 1)
}

// CitationRate is the share of tracked AI visits that were human
// click-throughs rather than crawler fetches, with one decimal.
func CitationRate(citations, crawls int) float64 {
	return PercentOfTotal(citations, citations+crawls)
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}
