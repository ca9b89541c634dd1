package timeframe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citewatch/internal/timeframe"
)

func TestLastDaysIsDenseAndAscending(t *testing.T) {
	now := time.Date(2025, 3, 2, 17, 45, 0, 0, time.UTC)

	tf, err := timeframe.LastDays(now, 30)
	require.NoError(t, err)

	buckets := tf.Buckets()
	require.Len(t, buckets, 30)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), buckets[0])
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), buckets[29])
	for i := 1; i < len(buckets); i++ {
		assert.Equal(t, 24*time.Hour, buckets[i].Sub(buckets[i-1]))
	}
	assert.True(t, tf.Contains(time.Date(2025, 3, 2, 23, 59, 59, 0, time.UTC)))
	assert.False(t, tf.Contains(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)))
}

func TestLastDaysUsesUTCDate(t *testing.T) {
	// 23:30 in New York on Mar 1 is already Mar 2 in UTC.
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2025, 3, 1, 23, 30, 0, 0, ny)

	tf, err := timeframe.LastDays(now, 1)
	require.NoError(t, err)
	buckets := tf.Buckets()
	require.Len(t, buckets, 1)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), buckets[0])
}

func TestLastWeeks(t *testing.T) {
	// Wednesday
	now := time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC)

	tf, err := timeframe.LastWeeks(now, 4)
	require.NoError(t, err)

	buckets := tf.Buckets()
	require.Len(t, buckets, 4)
	assert.Equal(t, time.Date(2024, 12, 16, 0, 0, 0, 0, time.UTC), buckets[0])
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), buckets[3])
	for _, b := range buckets {
		assert.Equal(t, time.Monday, b.Weekday())
	}
	assert.Equal(t, time.Date(2025, 1, 12, 23, 59, 59, 999999999, time.UTC), tf.To)
}

func TestTruncateToBucketWeekHandlesSunday(t *testing.T) {
	sunday := time.Date(2025, 1, 12, 23, 59, 0, 0, time.UTC)
	assert.Equal(t,
		time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		timeframe.TruncateToBucket(sunday, timeframe.TimeFrameBucketSizeWeek))

	monday := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, timeframe.TruncateToBucket(monday, timeframe.TimeFrameBucketSizeWeek))
}

func TestTimeFrameValidation(t *testing.T) {
	now := time.Now()
	_, err := timeframe.NewTimeFrame(now, now.Add(-time.Hour), timeframe.TimeFrameBucketSizeDay)
	assert.Error(t, err)

	_, err = timeframe.NewTimeFrame(now, now, "month")
	assert.Error(t, err)

	_, err = timeframe.LastDays(now, 0)
	assert.Error(t, err)

	_, err = timeframe.LastWeeks(now, -1)
	assert.Error(t, err)
}

func TestTimeFrameParser(t *testing.T) {
	fixed := time.Date(2024, 7, 15, 14, 30, 0, 0, time.UTC)
	parser := timeframe.NewTimeFrameParser(&timeframe.FixedTimeProvider{At: fixed})

	testCases := []struct {
		name         string
		params       timeframe.TimeFrameParserParams
		expectedFrom time.Time
		expectedTo   time.Time
		expectError  bool
	}{
		{
			name:         "defaults to last 30 days",
			params:       timeframe.TimeFrameParserParams{},
			expectedFrom: time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC),
			expectedTo:   time.Date(2024, 7, 15, 23, 59, 59, 999999999, time.UTC),
		},
		{
			name:         "days window",
			params:       timeframe.TimeFrameParserParams{Days: 7},
			expectedFrom: time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC),
			expectedTo:   time.Date(2024, 7, 15, 23, 59, 59, 999999999, time.UTC),
		},
		{
			name:         "explicit dates",
			params:       timeframe.TimeFrameParserParams{FromDate: "2024-07-01", ToDate: "2024-07-03"},
			expectedFrom: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			expectedTo:   time.Date(2024, 7, 3, 23, 59, 59, 999999999, time.UTC),
		},
		{
			name:        "invalid from",
			params:      timeframe.TimeFrameParserParams{FromDate: "07/01/2024"},
			expectError: true,
		},
		{
			name:        "from after to",
			params:      timeframe.TimeFrameParserParams{FromDate: "2024-07-10", ToDate: "2024-07-01"},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tf, err := parser.ParseTimeFrame(tc.params)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedFrom, tf.From)
			assert.Equal(t, tc.expectedTo, tf.To)
			assert.Equal(t, timeframe.TimeFrameBucketSizeDay, tf.BucketSize)
		})
	}
}
