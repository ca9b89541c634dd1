package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citewatch/internal/analytics"
	"citewatch/internal/content"
	"citewatch/internal/events"
	"citewatch/internal/pkg/platforms"
	"citewatch/internal/testsupport"
	"citewatch/internal/timeframe"
)

// Wednesday
var now = time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

func setupEngine(t *testing.T, visits ...testsupport.Visit) *analytics.Engine {
	t.Helper()
	dbManager, logger := testsupport.SetupTestDBManager(t)
	testsupport.CreateVisits(t, dbManager.GetConnection(), visits...)
	resolver := content.NewDirectory([]content.Post{
		{ID: 1, Title: "HVAC guide", Path: "/blog/hvac"},
		{ID: 2, Title: "Pricing", Path: "/pricing"},
	})
	return analytics.NewEngine(
		events.NewGormStore(dbManager, logger),
		analytics.WithClock(&timeframe.FixedTimeProvider{At: now}),
		analytics.WithContent(resolver),
	)
}

func TestDailyTrend(t *testing.T) {
	engine := setupEngine(t,
		testsupport.Visit{Platform: platforms.ChatGPT, Timestamp: now.Add(-time.Hour)},
		testsupport.Visit{Platform: platforms.Perplexity, Timestamp: now.Add(-2 * time.Hour)},
		testsupport.Visit{Platform: platforms.ChatGPT, TrafficType: events.TrafficTypeBotCrawl, Timestamp: now.Add(-3 * time.Hour)},
		testsupport.Visit{Platform: platforms.Claude, Timestamp: now.AddDate(0, 0, -29)},
		// Outside the window
		testsupport.Visit{Platform: platforms.Claude, Timestamp: now.AddDate(0, 0, -30)},
	)

	buckets, err := engine.DailyTrend(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, buckets, 30)

	for i := 1; i < len(buckets); i++ {
		assert.True(t, buckets[i].Date.After(buckets[i-1].Date), "buckets must ascend")
	}

	first := buckets[0]
	assert.Equal(t, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, 1, first.CitationCount)

	last := buckets[29]
	assert.Equal(t, time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC), last.Date)
	assert.Equal(t, 2, last.CitationCount)
	assert.Equal(t, 1, last.CrawlCount)

	zeroDays := 0
	for _, b := range buckets {
		if b.CitationCount == 0 && b.CrawlCount == 0 {
			zeroDays++
		}
	}
	assert.Equal(t, 28, zeroDays)
}

func TestDailyTrendEmptyStoreIsDense(t *testing.T) {
	engine := setupEngine(t)
	buckets, err := engine.DailyTrend(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, buckets, 7)
}

func TestWeeklyComparison(t *testing.T) {
	monday := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	engine := setupEngine(t,
		testsupport.Visit{Platform: platforms.ChatGPT, Timestamp: monday},
		testsupport.Visit{Platform: platforms.ChatGPT, Timestamp: monday.Add(-time.Second)}, // Sunday of previous week
		testsupport.Visit{Platform: platforms.Gemini, TrafficType: events.TrafficTypeBotCrawl, Timestamp: monday.AddDate(0, 0, -14)},
		testsupport.Visit{Platform: platforms.Gemini, Timestamp: monday.AddDate(0, 0, -28)},
	)

	weeks, err := engine.WeeklyComparison(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, weeks, 4)

	assert.Equal(t, monday, weeks[0].WeekStart)
	assert.Equal(t, 1, weeks[0].CitationCount)
	assert.Equal(t, monday.AddDate(0, 0, -7), weeks[1].WeekStart)
	assert.Equal(t, 1, weeks[1].CitationCount)
	assert.Equal(t, 1, weeks[2].CrawlCount)
	assert.Equal(t, 0, weeks[3].CitationCount)
}

func TestPlatformRollups(t *testing.T) {
	engine := setupEngine(t,
		testsupport.Visit{Platform: platforms.Perplexity, Query: "hvac", Timestamp: now.AddDate(0, 0, -3)},
		testsupport.Visit{Platform: platforms.Perplexity, Timestamp: now.Add(-time.Hour)},
		testsupport.Visit{Platform: platforms.ChatGPT, Timestamp: now.Add(-2 * time.Hour)},
		testsupport.Visit{Platform: platforms.ChatGPT, Timestamp: now.Add(-5 * time.Hour)},
		testsupport.Visit{Platform: platforms.Claude, Timestamp: now.Add(-30 * time.Minute)},
		testsupport.Visit{Platform: platforms.ChatGPT, TrafficType: events.TrafficTypeBotCrawl, Timestamp: now},
	)

	rollups, err := engine.PlatformRollups(context.Background(), analytics.Filter{})
	require.NoError(t, err)
	require.Len(t, rollups, 3)

	// Perplexity and ChatGPT tie on count; Perplexity was seen more recently.
	assert.Equal(t, platforms.Perplexity, rollups[0].Platform)
	assert.Equal(t, platforms.ChatGPT, rollups[1].Platform)
	assert.Equal(t, platforms.Claude, rollups[2].Platform)

	perplexity := rollups[0]
	assert.Equal(t, 2, perplexity.Count)
	assert.Equal(t, 1, perplexity.QueriesCaptured)
	assert.Equal(t, 50, perplexity.CaptureRate)
	assert.Equal(t, 40.0, perplexity.PercentOfTotal)
	assert.Equal(t, 3, perplexity.DaysActive)
	assert.Equal(t, 0.7, perplexity.AvgPerDay)

	chatgpt := rollups[1]
	assert.Equal(t, 2, chatgpt.Count, "crawls are not citations")
	assert.Equal(t, 0, chatgpt.CaptureRate)
	assert.Equal(t, 1, chatgpt.DaysActive)

	crawls, err := engine.PlatformRollups(context.Background(), analytics.Filter{TrafficType: events.TrafficTypeBotCrawl})
	require.NoError(t, err)
	require.Len(t, crawls, 1)
	assert.Equal(t, platforms.ChatGPT, crawls[0].Platform)
}

func TestPlatformRollupsTieBreaksOnName(t *testing.T) {
	ts := now.Add(-time.Hour)
	engine := setupEngine(t,
		testsupport.Visit{Platform: platforms.Gemini, Timestamp: ts},
		testsupport.Visit{Platform: platforms.Claude, Timestamp: ts},
	)

	rollups, err := engine.PlatformRollups(context.Background(), analytics.Filter{})
	require.NoError(t, err)
	require.Len(t, rollups, 2)
	assert.Equal(t, platforms.Claude, rollups[0].Platform)
	assert.Equal(t, platforms.Gemini, rollups[1].Platform)
}

func TestTopPages(t *testing.T) {
	engine := setupEngine(t,
		testsupport.Visit{Platform: platforms.Perplexity, URL: "https://example.com/blog/hvac", PostID: 1, Timestamp: now.AddDate(0, 0, -2)},
		testsupport.Visit{Platform: platforms.ChatGPT, URL: "https://example.com/blog/hvac", Timestamp: now.Add(-time.Hour)},
		testsupport.Visit{Platform: platforms.ChatGPT, URL: "https://example.com/pricing", Timestamp: now.Add(-2 * time.Hour)},
		testsupport.Visit{Platform: platforms.ChatGPT, URL: "https://example.com/about", Timestamp: now.Add(-3 * time.Hour)},
		testsupport.Visit{Platform: platforms.ChatGPT, URL: "https://example.com/about", TrafficType: events.TrafficTypeBotCrawl, Timestamp: now},
	)

	pages, err := engine.TopPages(context.Background(), analytics.Filter{}, 2)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	hvac := pages[0]
	assert.Equal(t, "https://example.com/blog/hvac", hvac.URL)
	assert.Equal(t, "HVAC guide", hvac.PostTitle)
	assert.Equal(t, 2, hvac.CitationCount)
	assert.Equal(t, 2, hvac.DistinctPlatforms)
	assert.Equal(t, 2, hvac.DaysActive)
	assert.Equal(t, 1.0, hvac.AvgPerDay)

	// Resolved by URL when no post id was stored.
	assert.Equal(t, "https://example.com/pricing", pages[1].URL)
	assert.Equal(t, "Pricing", pages[1].PostTitle)

	all, err := engine.TopPages(context.Background(), analytics.Filter{}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOverview(t *testing.T) {
	engine := setupEngine(t,
		testsupport.Visit{Platform: platforms.Perplexity, Query: "a", Timestamp: now},
		testsupport.Visit{Platform: platforms.Perplexity, Timestamp: now},
		testsupport.Visit{Platform: platforms.ChatGPT, Timestamp: now},
		testsupport.Visit{Platform: platforms.Claude, TrafficType: events.TrafficTypeBotCrawl, Timestamp: now},
	)

	overview, err := engine.Overview(context.Background(), analytics.Filter{TrafficType: events.TrafficTypeCitationClick})
	require.NoError(t, err)
	assert.Equal(t, 3, overview.TotalCitations)
	assert.Equal(t, 1, overview.TotalCrawls)
	assert.Equal(t, 1, overview.QueriesCaptured)
	assert.Equal(t, 33, overview.CaptureRate)
	assert.Equal(t, 75.0, overview.CitationRate)
	assert.Equal(t, 3, overview.PlatformCount)
}

func TestFacets(t *testing.T) {
	engine := setupEngine(t,
		testsupport.Visit{Platform: platforms.ChatGPT, UserAgent: testsupport.ChromeDesktopUA, Country: "DE", Timestamp: now},
		testsupport.Visit{Platform: platforms.ChatGPT, UserAgent: testsupport.ChromeDesktopUA, Country: "DE", Timestamp: now},
		testsupport.Visit{Platform: platforms.ChatGPT, UserAgent: testsupport.SafariIPhoneUA, Country: "US", Timestamp: now},
		testsupport.Visit{Platform: platforms.ChatGPT, UserAgent: testsupport.FirefoxLinuxUA, Timestamp: now},
	)
	ctx := context.Background()

	browsers, err := engine.BrowserFacets(ctx, analytics.Filter{Browser: "Safari"})
	require.NoError(t, err)
	require.Len(t, browsers, 3, "the browser selection must not hide other options")
	assert.Equal(t, analytics.FacetCount{Value: "Chrome", Label: "Chrome", Count: 2}, browsers[0])
	assert.Equal(t, "Firefox", browsers[1].Value)
	assert.Equal(t, "Safari", browsers[2].Value)

	countries, err := engine.CountryFacets(ctx, analytics.Filter{})
	require.NoError(t, err)
	require.Len(t, countries, 3)
	assert.Equal(t, analytics.FacetCount{Value: "DE", Label: "Germany", Count: 2}, countries[0])
	assert.Equal(t, analytics.UnknownCountry, countries[1].Value)
	assert.Equal(t, "Unknown", countries[1].Label)
	assert.Equal(t, "US", countries[2].Value)

	devices, err := engine.DeviceFacets(ctx, analytics.Filter{})
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "Desktop", devices[0].Label)
	assert.Equal(t, 3, devices[0].Count)

	systems, err := engine.OSFacets(ctx, analytics.Filter{})
	require.NoError(t, err)
	assert.Len(t, systems, 3)
}

func TestReferrerFacets(t *testing.T) {
	engine := setupEngine(t,
		testsupport.Visit{Platform: platforms.ChatGPT, Referer: "https://chatgpt.com/c/1", Timestamp: now},
		testsupport.Visit{Platform: platforms.ChatGPT, Referer: "https://chatgpt.com/", Timestamp: now},
		testsupport.Visit{Platform: platforms.Perplexity, Referer: "https://www.perplexity.ai/search?q=crm", Timestamp: now},
		testsupport.Visit{Platform: platforms.Claude, Timestamp: now},
	)

	referrers, err := engine.ReferrerFacets(context.Background(), analytics.Filter{})
	require.NoError(t, err)
	require.Len(t, referrers, 3)
	assert.Equal(t, analytics.FacetCount{Value: "chatgpt.com", Label: "ChatGPT", Count: 2}, referrers[0])
	assert.Equal(t, analytics.FacetCount{Value: "direct", Label: "Direct", Count: 1}, referrers[1])
	assert.Equal(t, analytics.FacetCount{Value: "perplexity.ai", Label: "Perplexity", Count: 1}, referrers[2])
}

func TestBrowserFilterAppliesOnRead(t *testing.T) {
	engine := setupEngine(t,
		testsupport.Visit{Platform: platforms.ChatGPT, UserAgent: testsupport.ChromeDesktopUA, Timestamp: now},
		testsupport.Visit{Platform: platforms.Claude, UserAgent: testsupport.FirefoxLinuxUA, Timestamp: now},
	)

	rollups, err := engine.PlatformRollups(context.Background(), analytics.Filter{Browser: "firefox"})
	require.NoError(t, err)
	require.Len(t, rollups, 1)
	assert.Equal(t, platforms.Claude, rollups[0].Platform)
}

func TestAggregationIsIdempotent(t *testing.T) {
	engine := setupEngine(t,
		testsupport.Visit{Platform: platforms.ChatGPT, Timestamp: now},
		testsupport.Visit{Platform: platforms.Perplexity, Query: "q", Timestamp: now.Add(-time.Minute)},
	)
	ctx := context.Background()

	first, err := engine.BuildReport(ctx, analytics.ReportParams{})
	require.NoError(t, err)
	second, err := engine.BuildReport(ctx, analytics.ReportParams{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildReport(t *testing.T) {
	engine := setupEngine(t,
		testsupport.Visit{Platform: platforms.ChatGPT, URL: "https://example.com/pricing", Country: "US", Timestamp: now},
		testsupport.Visit{Platform: platforms.ChatGPT, TrafficType: events.TrafficTypeBotCrawl, Timestamp: now},
	)

	report, err := engine.BuildReport(context.Background(), analytics.ReportParams{Days: 7, Weeks: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, now, report.GeneratedAt)
	assert.Len(t, report.Daily, 7)
	assert.Len(t, report.Weekly, 2)
	assert.Equal(t, 1, report.Overview.TotalCitations)
	require.Len(t, report.Platforms, 1)
	require.Len(t, report.Pages, 1)
	assert.Equal(t, "Pricing", report.Pages[0].PostTitle)
	assert.NotNil(t, report.Comparison)
	assert.NotEmpty(t, report.Browsers)
	assert.NotEmpty(t, report.Countries)
	assert.NotEmpty(t, report.Referrers)
}

type failingReader struct{}

func (failingReader) FindEvents(context.Context, events.EventFilters) ([]events.VisitEvent, error) {
	return nil, errors.New("database is locked")
}

func TestBuildReportPropagatesStoreErrors(t *testing.T) {
	engine := analytics.NewEngine(failingReader{})
	_, err := engine.BuildReport(context.Background(), analytics.ReportParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}
