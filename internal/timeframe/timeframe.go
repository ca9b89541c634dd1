package timeframe

import (
	"fmt"
	"time"
)

// TimeFrameBucketSize is the width of one point in a time series.
type TimeFrameBucketSize string

const (
	TimeFrameBucketSizeWeek TimeFrameBucketSize = "week"
	TimeFrameBucketSizeDay  TimeFrameBucketSize = "day"
)

// MaxBuckets bounds series generation.
const MaxBuckets = 1000

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

// Now returns the current time in loc
func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider always returns At. Used by tests and by the CLI when
// replaying a report for a given day.
type FixedTimeProvider struct {
	At time.Time
}

func (p *FixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.At.In(loc)
}

// TimeFrame is a closed UTC interval split into dense buckets.
type TimeFrame struct {
	From       time.Time
	To         time.Time
	BucketSize TimeFrameBucketSize
}

func NewTimeFrame(from, to time.Time, bucketSize TimeFrameBucketSize) (*TimeFrame, error) {
	if from.After(to) {
		return nil, fmt.Errorf("fromTime must be before toTime")
	}
	switch bucketSize {
	case TimeFrameBucketSizeDay, TimeFrameBucketSizeWeek:
	default:
		return nil, fmt.Errorf("unknown bucket size: %s", bucketSize)
	}
	return &TimeFrame{From: from.UTC(), To: to.UTC(), BucketSize: bucketSize}, nil
}

// LastDays covers exactly days calendar dates ending with the date of now, in UTC.
func LastDays(now time.Time, days int) (*TimeFrame, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	end := TruncateToBucket(now, TimeFrameBucketSizeDay)
	from := end.AddDate(0, 0, -(days - 1))
	return NewTimeFrame(from, EndOfBucket(end, TimeFrameBucketSizeDay), TimeFrameBucketSizeDay)
}

// LastWeeks covers exactly weeks ISO weeks ending with the week containing now.
func LastWeeks(now time.Time, weeks int) (*TimeFrame, error) {
	if weeks < 1 {
		return nil, fmt.Errorf("weeks must be positive, got %d", weeks)
	}
	current := TruncateToBucket(now, TimeFrameBucketSizeWeek)
	from := current.AddDate(0, 0, -7*(weeks-1))
	return NewTimeFrame(from, EndOfBucket(current, TimeFrameBucketSizeWeek), TimeFrameBucketSizeWeek)
}

// Buckets returns the start of every bucket in the frame, ascending.
func (tf *TimeFrame) Buckets() []time.Time {
	var points []time.Time
	current := TruncateToBucket(tf.From, tf.BucketSize)
	for !current.After(tf.To) && len(points) < MaxBuckets {
		points = append(points, current)
		current = next(current, tf.BucketSize)
	}
	return points
}

// BucketFor returns the bucket start t falls into.
func (tf *TimeFrame) BucketFor(t time.Time) time.Time {
	return TruncateToBucket(t, tf.BucketSize)
}

// Contains reports whether t lies inside the frame, both ends inclusive.
func (tf *TimeFrame) Contains(t time.Time) bool {
	return !t.Before(tf.From) && !t.After(tf.To)
}

func (tf *TimeFrame) Duration() time.Duration {
	return tf.To.Sub(tf.From)
}

// TruncateToBucket returns the UTC start of the day, or the Monday of the ISO week, containing t.
func TruncateToBucket(t time.Time, bucketSize TimeFrameBucketSize) time.Time {
	utc := t.UTC()
	year, month, day := utc.Year(), utc.Month(), utc.Day()

	switch bucketSize {
	case TimeFrameBucketSizeWeek:
		weekday := int(utc.Weekday())
		if weekday == 0 { // Sunday
			weekday = 7
		}
		return time.Date(year, month, day-(weekday-1), 0, 0, 0, 0, time.UTC)
	case TimeFrameBucketSizeDay:
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	default:
		return utc
	}
}

// EndOfBucket returns the last instant of the bucket starting at start.
func EndOfBucket(start time.Time, bucketSize TimeFrameBucketSize) time.Time {
	return next(start, bucketSize).Add(-time.Nanosecond)
}

func next(t time.Time, bucketSize TimeFrameBucketSize) time.Time {
	if bucketSize == TimeFrameBucketSizeWeek {
		return t.AddDate(0, 0, 7)
	}
	return t.AddDate(0, 0, 1)
}
