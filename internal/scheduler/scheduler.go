// Package scheduler applies the SM-2 engine across a user's cards: it picks
// the due set, orders it for study, records reviews and summarises the deck.
package scheduler

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/conorfennell/barprep/internal/domain"
	"github.com/conorfennell/barprep/internal/sm2"
)

// DefaultMatureInterval is the interval, in days, from which a card counts
// as mature.
const DefaultMatureInterval = 21

// ErrInvalidQuality is returned by UpdateCard for a quality outside 0-5.
var ErrInvalidQuality = errors.New("quality must be between 0 and 5")

// Scheduler holds only configuration; every method is a pure function of
// its arguments.
type Scheduler struct {
	Params         *sm2.Params
	MatureInterval int
}

// New creates a scheduler. A nil params uses sm2.DefaultParams.
func New(params *sm2.Params) *Scheduler {
	if params == nil {
		params = sm2.DefaultParams()
	}
	return &Scheduler{
		Params:         params,
		MatureInterval: DefaultMatureInterval,
	}
}

// IsDue reports whether card should be studied at now. Cards that have
// never been reviewed are always due.
func IsDue(card domain.ScheduledCard, now time.Time) bool {
	if card.State.IsNew() {
		return true
	}
	return sm2.IsDue(*card.State.NextReviewDate, now)
}

// DueCards returns the cards due at now, in input order.
func (s *Scheduler) DueCards(cards []domain.ScheduledCard, now time.Time) []domain.ScheduledCard {
	var due []domain.ScheduledCard
	for _, c := range cards {
		if IsDue(c, now) {
			due = append(due, c)
		}
	}
	return due
}

// priorityKey orders cards by (new first, most overdue first, lowest
// easiness first).
type priorityKey struct {
	reviewed int
	overdue  time.Duration
	easiness float64
}

func keyFor(card domain.ScheduledCard, now time.Time) priorityKey {
	if card.State.IsNew() {
		return priorityKey{reviewed: 0, easiness: card.State.EasinessFactor}
	}
	return priorityKey{
		reviewed: 1,
		overdue:  now.Sub(*card.State.NextReviewDate),
		easiness: card.State.EasinessFactor,
	}
}

func comparePriority(a, b priorityKey) int {
	return cmp.Or(
		cmp.Compare(a.reviewed, b.reviewed),
		cmp.Compare(b.overdue, a.overdue),
		cmp.Compare(a.easiness, b.easiness),
	)
}

// Prioritize returns a new slice holding cards in study order. The input is
// left untouched and equal keys keep their input order.
func (s *Scheduler) Prioritize(cards []domain.ScheduledCard, now time.Time) []domain.ScheduledCard {
	type keyed struct {
		card domain.ScheduledCard
		key  priorityKey
	}
	ks := make([]keyed, len(cards))
	for i, c := range cards {
		ks[i] = keyed{card: c, key: keyFor(c, now)}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		return comparePriority(a.key, b.key)
	})

	out := make([]domain.ScheduledCard, len(ks))
	for i, k := range ks {
		out[i] = k.card
	}
	return out
}

// UpdateCard records a review of card at now and returns the updated copy.
// It is the only operation that changes interval, repetitions or easiness.
func (s *Scheduler) UpdateCard(card domain.ScheduledCard, quality domain.Quality, now time.Time) (domain.ScheduledCard, error) {
	if !quality.IsValid() {
		return domain.ScheduledCard{}, fmt.Errorf("%w: got %d", ErrInvalidQuality, int(quality))
	}

	state := card.State.Hydrate()
	res := s.Params.Calculate(quality, state.Repetitions, state.Interval, state.EasinessFactor)

	reviewed := now
	next := sm2.NextReviewDate(now, res.Interval)
	q := quality

	card.State = domain.ReviewState{
		Interval:       res.Interval,
		Repetitions:    res.Repetitions,
		EasinessFactor: res.EasinessFactor,
		NextReviewDate: &next,
		LastReviewDate: &reviewed,
		LastQuality:    &q,
	}
	return card, nil
}

// Statistics summarises a deck for one user.
// Rates are percentages over reviewed cards only.
type Statistics struct {
	Total           int
	New             int
	Young           int
	Mature          int
	Due             int
	Reviewed        int
	AverageEasiness float64
	RetentionRate   float64
}

// Statistics partitions cards into new, young and mature and reports due
// count, mean easiness and retention. With no reviewed cards the mean
// easiness is the default 2.5 and retention is 0.
func (s *Scheduler) Statistics(cards []domain.ScheduledCard, now time.Time) Statistics {
	st := Statistics{Total: len(cards)}

	var easinessSum float64
	var retained int
	for _, c := range cards {
		if IsDue(c, now) {
			st.Due++
		}
		if c.State.IsNew() {
			st.New++
			continue
		}

		st.Reviewed++
		easinessSum += c.State.EasinessFactor
		if c.State.LastQuality != nil && c.State.LastQuality.Successful() {
			retained++
		}
		if c.State.Interval >= s.MatureInterval {
			st.Mature++
		} else {
			st.Young++
		}
	}

	st.AverageEasiness = domain.DefaultEasinessFactor
	if st.Reviewed > 0 {
		st.AverageEasiness = easinessSum / float64(st.Reviewed)
		st.RetentionRate = float64(retained) / float64(st.Reviewed) * 100
	}
	return st
}
