package timeframe

import (
	"fmt"
	"time"
)

// DefaultWindowDays is the report window when no dates are given.
const DefaultWindowDays = 30

type TimeFrameParserParams struct {
	FromDate string
	ToDate   string
	// Days is used when FromDate is empty.
	Days int
}

type TimeFrameParser struct {
	timeProvider TimeProvider
}

func NewTimeFrameParser(timeProvider ...TimeProvider) *TimeFrameParser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}

	return &TimeFrameParser{
		timeProvider: provider,
	}
}

// ParseTimeFrame builds a daily frame from YYYY-MM-DD dates interpreted in
// UTC. An empty ToDate means today; an empty FromDate means Days (or
// DefaultWindowDays) back from ToDate.
func (p *TimeFrameParser) ParseTimeFrame(params TimeFrameParserParams) (*TimeFrame, error) {
	now := p.timeProvider.Now(time.UTC)

	to := TruncateToBucket(now, TimeFrameBucketSizeDay)
	if params.ToDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", params.ToDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid 'to' date: %w", err)
		}
		to = parsed
	}

	days := params.Days
	if days <= 0 {
		days = DefaultWindowDays
	}
	from := to.AddDate(0, 0, -(days - 1))
	if params.FromDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", params.FromDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid 'from' date: %w", err)
		}
		from = parsed
	}

	return NewTimeFrame(from, EndOfBucket(to, TimeFrameBucketSizeDay), TimeFrameBucketSizeDay)
}

// Now returns the provider's current time in UTC.
func (p *TimeFrameParser) Now() time.Time {
	return p.timeProvider.Now(time.UTC)
}
