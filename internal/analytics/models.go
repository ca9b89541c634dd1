package analytics

import (
	"time"

	"citewatch/internal/events"
	"citewatch/internal/pkg/platforms"
)

// Filter narrows the events an aggregation reads. Zero values mean "all".
type Filter struct {
	From        time.Time
	To          time.Time
	Platform    platforms.Platform
	TrafficType events.TrafficType
	// Browser matches the parsed browser name, so it is applied after the read.
	Browser string
	Country string
}

func (f Filter) eventFilters() events.EventFilters {
	return events.EventFilters{
		From:        f.From,
		To:          f.To,
		TrafficType: f.TrafficType,
		Platform:    f.Platform,
		Country:     f.Country,
	}
}

// withTrafficType returns a copy that defaults to trafficType when unset.
func (f Filter) withTrafficType(trafficType events.TrafficType) Filter {
	if f.TrafficType == "" {
		f.TrafficType = trafficType
	}
	return f
}

type DailyBucket struct {
	Date          time.Time `json:"date"`
	CitationCount int       `json:"citation_count"`
	CrawlCount    int       `json:"crawl_count"`
}

type WeeklyBucket struct {
	WeekStart     time.Time `json:"week_start"`
	CitationCount int       `json:"citation_count"`
	CrawlCount    int       `json:"crawl_count"`
}

type PlatformRollup struct {
	Platform        platforms.Platform `json:"platform"`
	Count           int                `json:"count"`
	QueriesCaptured int                `json:"queries_captured"`
	FirstSeen       time.Time          `json:"first_seen"`
	LastSeen        time.Time          `json:"last_seen"`
	CaptureRate     int                `json:"capture_rate"`
	PercentOfTotal  float64            `json:"percent_of_total"`
	DaysActive      int                `json:"days_active"`
	AvgPerDay       float64            `json:"avg_per_day"`
}

type PageRollup struct {
	URL               string    `json:"url"`
	PostTitle         string    `json:"post_title,omitempty"`
	CitationCount     int       `json:"citation_count"`
	DistinctPlatforms int       `json:"distinct_platforms"`
	FirstCited        time.Time `json:"first_cited"`
	LastCited         time.Time `json:"last_cited"`
	DaysActive        int       `json:"days_active"`
	AvgPerDay         float64   `json:"avg_per_day"`
}

// FacetCount is one selectable filter value with its event count.
type FacetCount struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Overview struct {
	TotalCitations  int     `json:"total_citations"`
	TotalCrawls     int     `json:"total_crawls"`
	QueriesCaptured int     `json:"queries_captured"`
	CaptureRate     int     `json:"capture_rate"`
	CitationRate    float64 `json:"citation_rate"`
	PlatformCount   int     `json:"platform_count"`
}
