package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/barprep/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "barprep.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedSource(t *testing.T, db *DB, cards ...domain.Card) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := db.InsertSource(ctx, "/decks/"+t.Name(), SourceLocal)
	require.NoError(t, err)
	for _, c := range cards {
		require.NoError(t, db.InsertCard(ctx, c, id))
	}
	return id
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	id, err := db.InsertSource(ctx, "https://example.com/decks.git", SourceGit)
	require.NoError(t, err)

	s, err := db.FindSourceByPath(ctx, "https://example.com/decks.git")
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, SourceGit, s.Type)
	assert.False(t, s.LastScanned.Valid)

	scanned := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	require.NoError(t, db.UpdateSourceLastScanned(ctx, id, scanned))

	all, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].LastScanned.Valid)
	assert.True(t, scanned.Equal(all[0].LastScanned.Time))

	_, err = db.InsertSource(ctx, "https://example.com/decks.git", SourceGit)
	assert.Error(t, err, "paths are unique")

	_, err = db.FindSourceByPath(ctx, "/nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCards(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	card := domain.Card{Hash: "h1", Question: "Q", Answer: "A", Context: "C", Subject: "Torts"}
	id := seedSource(t, db, card)

	got, err := db.FindCardByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, card, *got)

	require.NoError(t, db.UpdateCardSubject(ctx, "h1", "Contracts"))
	cards, err := db.GetCardsBySourceID(ctx, id)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Contracts", cards[0].Subject)

	_, err = db.FindCardByHash(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScheduledCardsHydratesNewCards(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedSource(t, db, domain.Card{Hash: "h1", Question: "Q1"}, domain.Card{Hash: "h2", Question: "Q2"})

	cards, err := db.ScheduledCards(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cards, 2)
	for _, c := range cards {
		assert.Equal(t, "alice", c.UserID)
		assert.Equal(t, domain.NewReviewState(), c.State)
		assert.Zero(t, c.Version)
	}
	assert.Equal(t, "h1", cards[0].Hash)
	assert.Equal(t, "h2", cards[1].Hash)
}

func reviewed(card domain.ScheduledCard, at time.Time, q domain.Quality) domain.ScheduledCard {
	next := at.AddDate(0, 0, 6)
	card.State = domain.ReviewState{
		Interval:       6,
		Repetitions:    2,
		EasinessFactor: 2.36,
		NextReviewDate: &next,
		LastReviewDate: &at,
		LastQuality:    &q,
	}
	return card
}

func TestRecordReview(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedSource(t, db, domain.Card{Hash: "h1", Question: "Q1", Subject: "Evidence"})
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	card, err := db.ScheduledCard(ctx, "alice", "h1")
	require.NoError(t, err)

	saved, err := db.RecordReview(ctx, reviewed(card, at, 3), domain.NewReviewLog(card, 3, at))
	require.NoError(t, err)
	assert.EqualValues(t, 1, saved.Version)

	loaded, err := db.ScheduledCard(ctx, "alice", "h1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, loaded.Version)
	assert.Equal(t, 6, loaded.State.Interval)
	assert.Equal(t, 2, loaded.State.Repetitions)
	assert.InDelta(t, 2.36, loaded.State.EasinessFactor, 1e-9)
	require.NotNil(t, loaded.State.LastReviewDate)
	assert.True(t, at.Equal(*loaded.State.LastReviewDate))
	require.NotNil(t, loaded.State.NextReviewDate)
	assert.True(t, at.AddDate(0, 0, 6).Equal(*loaded.State.NextReviewDate))
	require.NotNil(t, loaded.State.LastQuality)
	assert.Equal(t, domain.Quality(3), *loaded.State.LastQuality)

	// another user is unaffected
	bob, err := db.ScheduledCard(ctx, "bob", "h1")
	require.NoError(t, err)
	assert.True(t, bob.State.IsNew())

	logs, err := db.ReviewLogs(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Evidence", logs[0].Subject)
	assert.Equal(t, domain.Quality(3), logs[0].Quality)
	assert.True(t, at.Equal(logs[0].Timestamp))
}

func TestRecordReviewDetectsStaleWrites(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedSource(t, db, domain.Card{Hash: "h1", Question: "Q1"})
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	// Two tabs read the never-reviewed card.
	tab1, err := db.ScheduledCard(ctx, "alice", "h1")
	require.NoError(t, err)
	tab2 := tab1

	_, err = db.RecordReview(ctx, reviewed(tab1, at, 4), domain.NewReviewLog(tab1, 4, at))
	require.NoError(t, err)

	_, err = db.RecordReview(ctx, reviewed(tab2, at, 1), domain.NewReviewLog(tab2, 1, at))
	assert.ErrorIs(t, err, ErrConflict)

	// Same race once the row exists.
	v1, err := db.ScheduledCard(ctx, "alice", "h1")
	require.NoError(t, err)
	stale := v1

	_, err = db.RecordReview(ctx, reviewed(v1, at.Add(time.Hour), 5), domain.NewReviewLog(v1, 5, at.Add(time.Hour)))
	require.NoError(t, err)
	_, err = db.RecordReview(ctx, reviewed(stale, at.Add(time.Hour), 2), domain.NewReviewLog(stale, 2, at.Add(time.Hour)))
	assert.ErrorIs(t, err, ErrConflict)

	logs, err := db.ReviewLogs(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, logs, 2, "rejected reviews must not be logged")
}

func TestReviewTimestamps(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedSource(t, db, domain.Card{Hash: "h1", Question: "Q1"}, domain.Card{Hash: "h2", Question: "Q2"})
	day1 := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	c2, err := db.ScheduledCard(ctx, "alice", "h2")
	require.NoError(t, err)
	_, err = db.RecordReview(ctx, reviewed(c2, day2, 4), domain.NewReviewLog(c2, 4, day2))
	require.NoError(t, err)

	c1, err := db.ScheduledCard(ctx, "alice", "h1")
	require.NoError(t, err)
	_, err = db.RecordReview(ctx, reviewed(c1, day1, 4), domain.NewReviewLog(c1, 4, day1))
	require.NoError(t, err)

	times, err := db.ReviewTimestamps(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, times, 2)
	assert.True(t, day1.Equal(times[0]))
	assert.True(t, day2.Equal(times[1]))

	none, err := db.ReviewTimestamps(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUnlinkCardDeletesOnlyWhenNoSourceHoldsIt(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	card := domain.Card{Hash: "h1", Question: "Q1"}
	first := seedSource(t, db, card)
	second, err := db.InsertSource(ctx, "/decks/second", SourceLocal)
	require.NoError(t, err)
	require.NoError(t, db.LinkCard(ctx, "h1", second))
	require.NoError(t, db.LinkCard(ctx, "h1", second), "linking twice is a no-op")

	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	c, err := db.ScheduledCard(ctx, "alice", "h1")
	require.NoError(t, err)
	_, err = db.RecordReview(ctx, reviewed(c, at, 4), domain.NewReviewLog(c, 4, at))
	require.NoError(t, err)

	deleted, err := db.UnlinkCard(ctx, "h1", first)
	require.NoError(t, err)
	assert.False(t, deleted)

	kept, err := db.ScheduledCard(ctx, "alice", "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), kept.Version, "review state survives")
	inFirst, err := db.GetCardsBySourceID(ctx, first)
	require.NoError(t, err)
	assert.Empty(t, inFirst)

	deleted, err = db.UnlinkCard(ctx, "h1", second)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = db.ScheduledCard(ctx, "alice", "h1")
	assert.ErrorIs(t, err, ErrNotFound)

	logs, err := db.ReviewLogs(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, logs, 1, "history is kept")
}

func TestDeleteSource(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	id := seedSource(t, db, domain.Card{Hash: "h1", Question: "Q1"})

	require.NoError(t, db.DeleteSource(ctx, id))

	cards, err := db.ScheduledCards(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, cards)

	assert.ErrorIs(t, db.DeleteSource(ctx, id), ErrNotFound)
}

func TestDeleteSourceKeepsSharedCards(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	first := seedSource(t, db, domain.Card{Hash: "shared", Question: "Q1"}, domain.Card{Hash: "own", Question: "Q2"})
	second, err := db.InsertSource(ctx, "/decks/second", SourceLocal)
	require.NoError(t, err)
	require.NoError(t, db.LinkCard(ctx, "shared", second))

	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	c, err := db.ScheduledCard(ctx, "alice", "shared")
	require.NoError(t, err)
	_, err = db.RecordReview(ctx, reviewed(c, at, 5), domain.NewReviewLog(c, 5, at))
	require.NoError(t, err)

	require.NoError(t, db.DeleteSource(ctx, first))

	kept, err := db.ScheduledCard(ctx, "alice", "shared")
	require.NoError(t, err)
	assert.False(t, kept.State.IsNew())
	assert.Equal(t, int64(1), kept.Version)

	_, err = db.FindCardByHash(ctx, "own")
	assert.ErrorIs(t, err, ErrNotFound)
}
