package domain

import (
	"fmt"
	"time"
)

// Quality is the 0-5 self-assessment of recall given after a review.
//
//	0: complete blackout
//	1: incorrect, answer recognised
//	2: incorrect, answer seemed easy
//	3: correct with serious difficulty
//	4: correct after hesitation
//	5: perfect recall
type Quality int

const (
	MinQuality     Quality = 0
	MaxQuality     Quality = 5
	PassingQuality Quality = 3
)

// IsValid reports whether q lies in [MinQuality, MaxQuality].
func (q Quality) IsValid() bool {
	return q >= MinQuality && q <= MaxQuality
}

// Successful reports whether q counts as a successful recall.
func (q Quality) Successful() bool {
	return q >= PassingQuality
}

func (q Quality) String() string {
	if !q.IsValid() {
		return fmt.Sprintf("Quality(%d)", int(q))
	}
	return fmt.Sprintf("%d", int(q))
}

// Defaults for a card that has never been reviewed.
const (
	DefaultInterval       = 1
	DefaultEasinessFactor = 2.5
	MinEasinessFactor     = 1.3
)

// ReviewState is the SM-2 scheduling state of one card for one user.
// Nil dates and quality mean the card has never been reviewed.
type ReviewState struct {
	Interval       int
	Repetitions    int
	EasinessFactor float64
	NextReviewDate *time.Time
	LastReviewDate *time.Time
	LastQuality    *Quality
}

// NewReviewState returns the fully populated state of a card that has
// never been reviewed.
func NewReviewState() ReviewState {
	return ReviewState{
		Interval:       DefaultInterval,
		Repetitions:    0,
		EasinessFactor: DefaultEasinessFactor,
	}
}

// IsNew reports whether the card has never been reviewed. New cards are
// always due.
func (s ReviewState) IsNew() bool {
	return s.LastReviewDate == nil || s.NextReviewDate == nil
}

// Hydrate replaces zero or out-of-range numeric fields with the defaults
// of NewReviewState. Records loaded from older stores may lack them.
func (s ReviewState) Hydrate() ReviewState {
	if s.Interval < 1 {
		s.Interval = DefaultInterval
	}
	if s.Repetitions < 0 {
		s.Repetitions = 0
	}
	if s.EasinessFactor == 0 {
		s.EasinessFactor = DefaultEasinessFactor
	}
	if s.EasinessFactor < MinEasinessFactor {
		s.EasinessFactor = MinEasinessFactor
	}
	return s
}
