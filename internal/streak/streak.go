// Package streak derives consecutive-day study streaks from review history.
package streak

import (
	"slices"
	"time"
)

// Streak is the current and longest run of consecutive study days.
type Streak struct {
	Current int
	Longest int
}

// day is a calendar date. Days are kept at UTC midnight so that stepping
// by one day never crosses a DST transition.
type day time.Time

func toDay(t time.Time, loc *time.Location) day {
	y, m, d := t.In(loc).Date()
	return day(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func (d day) prev() day {
	return day(time.Time(d).AddDate(0, 0, -1))
}

func (d day) next() day {
	return day(time.Time(d).AddDate(0, 0, 1))
}

// Calculate returns the streaks found in events. Events are bucketed into
// calendar days in now's location; several reviews on one day count once.
// The current streak is zero unless the latest study day is today or
// yesterday.
func Calculate(events []time.Time, now time.Time) Streak {
	if len(events) == 0 {
		return Streak{}
	}

	loc := now.Location()
	seen := make(map[day]struct{}, len(events))
	days := make([]day, 0, len(events))
	for _, e := range events {
		d := toDay(e, loc)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	slices.SortFunc(days, func(a, b day) int {
		return time.Time(a).Compare(time.Time(b))
	})

	return Streak{
		Current: current(days, seen, toDay(now, loc)),
		Longest: longest(days),
	}
}

// current counts back from the latest study day. days is ascending.
func current(days []day, seen map[day]struct{}, today day) int {
	latest := days[len(days)-1]
	if latest != today && latest != today.prev() {
		return 0
	}

	count := 0
	for d := latest; ; d = d.prev() {
		if _, ok := seen[d]; !ok {
			break
		}
		count++
	}
	return count
}

// longest finds the longest run in ascending unique days.
func longest(days []day) int {
	best, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i] == days[i-1].next() {
			run++
		} else {
			run = 1
		}
		best = max(best, run)
	}
	return best
}
