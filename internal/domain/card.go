package domain

import (
	"time"

	"github.com/google/uuid"
)

// Card represents a single flashcard parsed from a deck.
type Card struct {
	Question string
	Answer   string
	Context  string
	Subject  string
	Hash     string
}

// ScheduledCard pairs a card with one user's review state for it.
// Version is the optimistic concurrency token owned by storage.
type ScheduledCard struct {
	Card
	UserID  string
	State   ReviewState
	Version int64
}

// ReviewLog records a single review event for a card.
// Subject is copied from the card at review time so history survives
// content edits.
type ReviewLog struct {
	ID        uuid.UUID
	UserID    string
	CardHash  string
	Subject   string
	Quality   Quality
	Timestamp time.Time
}

// NewReviewLog creates a review log entry with a fresh ID.
func NewReviewLog(card ScheduledCard, quality Quality, at time.Time) ReviewLog {
	return ReviewLog{
		ID:        uuid.New(),
		UserID:    card.UserID,
		CardHash:  card.Hash,
		Subject:   card.Subject,
		Quality:   quality,
		Timestamp: at,
	}
}
