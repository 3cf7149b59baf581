// Package sm2 implements the SM-2 spaced repetition calculation.
package sm2

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/barprep/internal/domain"
)

// Params holds the tunable constants of the SM-2 algorithm.
type Params struct {
	MinEasinessFactor float64        // floor the EF is clamped to
	PassingQuality    domain.Quality // lowest quality counted as a successful recall
	FirstInterval     int            // days after the first successful review
	SecondInterval    int            // days after the second successful review
}

// DefaultParams returns the classic SM-2 constants.
func DefaultParams() *Params {
	return &Params{
		MinEasinessFactor: domain.MinEasinessFactor,
		PassingQuality:    domain.PassingQuality,
		FirstInterval:     1,
		SecondInterval:    6,
	}
}

// Result is the scheduling state produced by one review.
type Result struct {
	Interval       int
	Repetitions    int
	EasinessFactor float64
}

// Calculate returns the next interval, repetition count and easiness factor
// after a review of the given quality.
//
// Quality outside [0,5] is clamped into range, and a previous interval
// below 1 is treated as 1, so the returned interval is always at least one day.
func (p *Params) Calculate(quality domain.Quality, repetitions, previousInterval int, easinessFactor float64) Result {
	quality = clampQuality(quality)
	if previousInterval < 1 {
		previousInterval = 1
	}
	if repetitions < 0 {
		repetitions = 0
	}

	ef := p.nextEasinessFactor(easinessFactor, quality)

	if quality < p.PassingQuality {
		return Result{
			Interval:       1,
			Repetitions:    0,
			EasinessFactor: ef,
		}
	}

	repetitions++
	var interval int
	switch repetitions {
	case 1:
		interval = p.FirstInterval
	case 2:
		interval = p.SecondInterval
	default:
		interval = int(math.Round(float64(previousInterval) * ef))
	}
	if interval < 1 {
		interval = 1
	}

	return Result{
		Interval:       interval,
		Repetitions:    repetitions,
		EasinessFactor: ef,
	}
}

// nextEasinessFactor applies EF' = EF + (0.1 - (5-q) * (0.08 + (5-q) * 0.02))
// and clamps the result to the configured floor.
func (p *Params) nextEasinessFactor(ef float64, quality domain.Quality) float64 {
	d := float64(domain.MaxQuality - quality)
	next := ef + (0.1 - d*(0.08+d*0.02))
	if next < p.MinEasinessFactor {
		next = p.MinEasinessFactor
	}
	return next
}

func clampQuality(q domain.Quality) domain.Quality {
	if q < domain.MinQuality {
		return domain.MinQuality
	}
	if q > domain.MaxQuality {
		return domain.MaxQuality
	}
	return q
}

// NextReviewDate returns the date interval days after lastReview.
func NextReviewDate(lastReview time.Time, interval int) time.Time {
	return lastReview.AddDate(0, 0, interval)
}

// IsDue reports whether a card scheduled for nextReview is due at now.
func IsDue(nextReview, now time.Time) bool {
	return !now.Before(nextReview)
}

// IntervalLabel renders a day count as a short human readable label,
// e.g. "3 days" or "2 weeks".
func IntervalLabel(days int) string {
	switch {
	case days <= 0:
		return "Today"
	case days < 7:
		return plural(days, "day")
	case days < 30:
		return plural(days/7, "week")
	case days < 365:
		return plural(days/30, "month")
	default:
		return plural(days/365, "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
