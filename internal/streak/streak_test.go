package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	daysAgo := func(n int, hour int) time.Time {
		return time.Date(2026, 10, 19-n, hour, 0, 0, 0, time.UTC)
	}

	testCases := []struct {
		name   string
		events []time.Time
		want   Streak
	}{
		{
			name: "empty history",
			want: Streak{0, 0},
		},
		{
			name:   "three consecutive days ending today",
			events: []time.Time{daysAgo(0, 9), daysAgo(1, 9), daysAgo(2, 9)},
			want:   Streak{Current: 3, Longest: 3},
		},
		{
			name:   "gap breaks run",
			events: []time.Time{daysAgo(0, 9), daysAgo(3, 9)},
			want:   Streak{Current: 1, Longest: 1},
		},
		{
			name:   "yesterday keeps streak alive",
			events: []time.Time{daysAgo(1, 20), daysAgo(2, 8)},
			want:   Streak{Current: 2, Longest: 2},
		},
		{
			name:   "two days ago breaks current streak",
			events: []time.Time{daysAgo(2, 8), daysAgo(3, 8), daysAgo(4, 8)},
			want:   Streak{Current: 0, Longest: 3},
		},
		{
			name: "duplicates and unordered input",
			events: []time.Time{
				daysAgo(1, 7), daysAgo(0, 1), daysAgo(1, 22), daysAgo(0, 14), daysAgo(0, 23),
			},
			want: Streak{Current: 2, Longest: 2},
		},
		{
			name: "longest run in the past",
			events: []time.Time{
				daysAgo(0, 9),
				daysAgo(10, 9), daysAgo(11, 9), daysAgo(12, 9), daysAgo(13, 9),
				daysAgo(20, 9), daysAgo(21, 9),
			},
			want: Streak{Current: 1, Longest: 4},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Calculate(tc.events, now))
		})
	}
}

func TestCalculateAcrossMonthBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []time.Time{
		time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 27, 8, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, Streak{Current: 3, Longest: 3}, Calculate(events, now))
}

func TestCalculateUsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, loc)

	// 02:00 UTC on the 19th is still the 18th in UTC-5.
	events := []time.Time{
		time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, Streak{Current: 2, Longest: 2}, Calculate(events, now))
}

func TestCalculateIsRepeatable(t *testing.T) {
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	events := []time.Time{now, now.AddDate(0, 0, -1), now.AddDate(0, 0, -5)}

	first := Calculate(events, now)
	assert.Equal(t, first, Calculate(events, now))
}
