// Package analytics derives dashboard read models from the visit event log.
// Every result is recomputed from the store on each call.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"citewatch/internal/content"
	"citewatch/internal/events"
	"citewatch/internal/pkg/platforms"
	"citewatch/internal/timeframe"
)

// Engine runs read-only aggregations. It holds no state between calls and
// is safe for concurrent use.
type Engine struct {
	store   events.Reader
	clock   timeframe.TimeProvider
	content content.Resolver
}

type EngineOption func(*Engine)

// WithClock overrides the time source used for "today".
func WithClock(clock timeframe.TimeProvider) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithContent resolves post titles for page rollups.
func WithContent(resolver content.Resolver) EngineOption {
	return func(e *Engine) {
		if resolver != nil {
			e.content = resolver
		}
	}
}

func NewEngine(store events.Reader, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   store,
		clock:   &timeframe.DefaultTimeProvider{},
		content: content.NopResolver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) now() time.Time {
	return e.clock.Now(time.UTC)
}

func (e *Engine) load(ctx context.Context, filter Filter) ([]events.VisitEvent, error) {
	rows, err := e.store.FindEvents(ctx, filter.eventFilters())
	if err != nil {
		return nil, fmt.Errorf("failed to load visit events: %w", err)
	}
	if filter.Browser == "" {
		return rows, nil
	}

	filtered := rows[:0]
	for _, row := range rows {
		if strings.EqualFold(row.ParsedUserAgent().Browser, filter.Browser) {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// DailyTrend returns exactly days UTC dates ending today, oldest first.
func (e *Engine) DailyTrend(ctx context.Context, days int) ([]DailyBucket, error) {
	return e.DailyTrendFor(ctx, days, Filter{})
}

// DailyTrendFor is DailyTrend restricted by filter. The filter's date range
// is replaced by the trend window.
func (e *Engine) DailyTrendFor(ctx context.Context, days int, filter Filter) ([]DailyBucket, error) {
	tf, err := timeframe.LastDays(e.now(), days)
	if err != nil {
		return nil, err
	}
	filter.From, filter.To = tf.From, tf.To

	rows, err := e.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	points := tf.Buckets()
	index := make(map[time.Time]int, len(points))
	buckets := make([]DailyBucket, len(points))
	for i, point := range points {
		index[point] = i
		buckets[i] = DailyBucket{Date: point}
	}

	for _, row := range rows {
		i, ok := index[tf.BucketFor(row.Timestamp)]
		if !ok {
			continue
		}
		switch row.TrafficType {
		case events.TrafficTypeCitationClick:
			buckets[i].CitationCount++
		case events.TrafficTypeBotCrawl:
			buckets[i].CrawlCount++
		}
	}
	return buckets, nil
}

// WeeklyComparison returns weeks ISO weeks, the current week first.
func (e *Engine) WeeklyComparison(ctx context.Context, weeks int) ([]WeeklyBucket, error) {
	return e.WeeklyComparisonFor(ctx, weeks, Filter{})
}

// WeeklyComparisonFor is WeeklyComparison restricted by filter.
func (e *Engine) WeeklyComparisonFor(ctx context.Context, weeks int, filter Filter) ([]WeeklyBucket, error) {
	tf, err := timeframe.LastWeeks(e.now(), weeks)
	if err != nil {
		return nil, err
	}
	filter.From, filter.To = tf.From, tf.To

	rows, err := e.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	points := tf.Buckets()
	index := make(map[time.Time]int, len(points))
	buckets := make([]WeeklyBucket, len(points))
	// Week 0 is the current week.
	for i, point := range points {
		pos := len(points) - 1 - i
		index[point] = pos
		buckets[pos] = WeeklyBucket{WeekStart: point}
	}

	for _, row := range rows {
		i, ok := index[tf.BucketFor(row.Timestamp)]
		if !ok {
			continue
		}
		switch row.TrafficType {
		case events.TrafficTypeCitationClick:
			buckets[i].CitationCount++
		case events.TrafficTypeBotCrawl:
			buckets[i].CrawlCount++
		}
	}
	return buckets, nil
}

// PlatformRollups groups events by platform. Citation clicks are counted
// unless filter selects another traffic type.
func (e *Engine) PlatformRollups(ctx context.Context, filter Filter) ([]PlatformRollup, error) {
	rows, err := e.load(ctx, filter.withTrafficType(events.TrafficTypeCitationClick))
	if err != nil {
		return nil, err
	}

	byPlatform := make(map[platforms.Platform]*PlatformRollup)
	for _, row := range rows {
		rollup, ok := byPlatform[row.AIPlatform]
		if !ok {
			rollup = &PlatformRollup{Platform: row.AIPlatform, FirstSeen: row.Timestamp, LastSeen: row.Timestamp}
			byPlatform[row.AIPlatform] = rollup
		}
		rollup.Count++
		if row.HasSearchQuery() {
			rollup.QueriesCaptured++
		}
		if row.Timestamp.Before(rollup.FirstSeen) {
			rollup.FirstSeen = row.Timestamp
		}
		if row.Timestamp.After(rollup.LastSeen) {
			rollup.LastSeen = row.Timestamp
		}
	}

	total := len(rows)
	rollups := make([]PlatformRollup, 0, len(byPlatform))
	for _, rollup := range byPlatform {
		rollup.CaptureRate = CaptureRate(rollup.QueriesCaptured, rollup.Count)
		rollup.PercentOfTotal = PercentOfTotal(rollup.Count, total)
		rollup.DaysActive = DaysActive(rollup.FirstSeen, rollup.LastSeen)
		rollup.AvgPerDay = AveragePerDay(rollup.Count, rollup.DaysActive)
		rollups = append(rollups, *rollup)
	}

	sort.SliceStable(rollups, func(i, j int) bool {
		return ranksBefore(rollups[i].Count, rollups[j].Count,
			rollups[i].LastSeen, rollups[j].LastSeen,
			string(rollups[i].Platform), string(rollups[j].Platform))
	})
	return rollups, nil
}

// TopPages groups citation clicks by URL. limit <= 0 returns every page.
func (e *Engine) TopPages(ctx context.Context, filter Filter, limit int) ([]PageRollup, error) {
	rows, err := e.load(ctx, filter.withTrafficType(events.TrafficTypeCitationClick))
	if err != nil {
		return nil, err
	}

	type pageAcc struct {
		rollup    PageRollup
		postID    *uint
		platforms map[platforms.Platform]struct{}
	}

	byURL := make(map[string]*pageAcc)
	for _, row := range rows {
		acc, ok := byURL[row.URL]
		if !ok {
			acc = &pageAcc{
				rollup:    PageRollup{URL: row.URL, FirstCited: row.Timestamp, LastCited: row.Timestamp},
				platforms: make(map[platforms.Platform]struct{}),
			}
			byURL[row.URL] = acc
		}
		acc.rollup.CitationCount++
		acc.platforms[row.AIPlatform] = struct{}{}
		if acc.postID == nil && row.PostID != nil {
			acc.postID = row.PostID
		}
		if row.Timestamp.Before(acc.rollup.FirstCited) {
			acc.rollup.FirstCited = row.Timestamp
		}
		if row.Timestamp.After(acc.rollup.LastCited) {
			acc.rollup.LastCited = row.Timestamp
		}
	}

	pages := make([]PageRollup, 0, len(byURL))
	for _, acc := range byURL {
		page := acc.rollup
		page.DistinctPlatforms = len(acc.platforms)
		page.DaysActive = DaysActive(page.FirstCited, page.LastCited)
		page.AvgPerDay = AveragePerDay(page.CitationCount, page.DaysActive)
		page.PostTitle = e.postTitle(page.URL, acc.postID)
		pages = append(pages, page)
	}

	sort.SliceStable(pages, func(i, j int) bool {
		return ranksBefore(pages[i].CitationCount, pages[j].CitationCount,
			pages[i].LastCited, pages[j].LastCited,
			pages[i].URL, pages[j].URL)
	})

	if limit > 0 && len(pages) > limit {
		pages = pages[:limit]
	}
	return pages, nil
}

func (e *Engine) postTitle(pageURL string, postID *uint) string {
	if postID != nil {
		if title, ok := e.content.Title(*postID); ok {
			return title
		}
	}
	if post, ok := e.content.Resolve(pageURL); ok {
		return post.Title
	}
	return ""
}

// Overview summarizes the filtered window. The filter's traffic type is
// ignored so citations and crawls can be compared.
func (e *Engine) Overview(ctx context.Context, filter Filter) (*Overview, error) {
	filter.TrafficType = ""
	rows, err := e.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	overview := &Overview{}
	seen := make(map[platforms.Platform]struct{})
	for _, row := range rows {
		switch row.TrafficType {
		case events.TrafficTypeCitationClick:
			overview.TotalCitations++
			if row.HasSearchQuery() {
				overview.QueriesCaptured++
			}
		case events.TrafficTypeBotCrawl:
			overview.TotalCrawls++
		}
		seen[row.AIPlatform] = struct{}{}
	}

	overview.CaptureRate = CaptureRate(overview.QueriesCaptured, overview.TotalCitations)
	overview.CitationRate = CitationRate(overview.TotalCitations, overview.TotalCrawls)
	overview.PlatformCount = len(seen)
	return overview, nil
}

// ranksBefore orders by count desc, then most recent first, then identity asc.
func ranksBefore(countA, countB int, lastA, lastB time.Time, idA, idB string) bool {
	if countA != countB {
		return countA > countB
	}
	if !lastA.Equal(lastB) {
		return lastA.After(lastB)
	}
	return idA < idB
}
