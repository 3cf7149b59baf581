package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/barprep/internal/domain"
)

const scheduledCardColumns = `
	c.hash, c.question, c.answer, c.context, c.subject,
	rs.interval_days, rs.repetitions, rs.easiness_factor,
	rs.next_review, rs.last_review, rs.last_quality, rs.version
`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanScheduledCard reads a card LEFT JOINed with its review state. A card
// without a state row is hydrated as never reviewed.
func scanScheduledCard(row rowScanner, userID string) (domain.ScheduledCard, error) {
	var (
		sc          domain.ScheduledCard
		interval    sql.NullInt64
		repetitions sql.NullInt64
		easiness    sql.NullFloat64
		next, last  sql.NullTime
		quality     sql.NullInt64
		version     sql.NullInt64
	)
	if err := row.Scan(
		&sc.Hash, &sc.Question, &sc.Answer, &sc.Context, &sc.Subject,
		&interval, &repetitions, &easiness,
		&next, &last, &quality, &version,
	); err != nil {
		return domain.ScheduledCard{}, err
	}

	sc.UserID = userID
	sc.State = domain.NewReviewState()
	if !version.Valid {
		return sc, nil
	}

	sc.Version = version.Int64
	sc.State.Interval = int(interval.Int64)
	sc.State.Repetitions = int(repetitions.Int64)
	sc.State.EasinessFactor = easiness.Float64
	if next.Valid {
		t := next.Time
		sc.State.NextReviewDate = &t
	}
	if last.Valid {
		t := last.Time
		sc.State.LastReviewDate = &t
	}
	if quality.Valid {
		q := domain.Quality(quality.Int64)
		sc.State.LastQuality = &q
	}
	sc.State = sc.State.Hydrate()
	return sc, nil
}

// ScheduledCards returns every card with userID's review state.
func (db *DB) ScheduledCards(ctx context.Context, userID string) ([]domain.ScheduledCard, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+scheduledCardColumns+`
		FROM cards c
		LEFT JOIN review_states rs ON rs.card_hash = c.hash AND rs.user_id = ?
		ORDER BY c.rowid
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled cards for user %s: %w", userID, err)
	}
	defer rows.Close()

	var cards []domain.ScheduledCard
	for rows.Next() {
		sc, err := scanScheduledCard(rows, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled card for user %s: %w", userID, err)
		}
		cards = append(cards, sc)
	}
	return cards, rows.Err()
}

// ScheduledCard returns one card with userID's review state.
func (db *DB) ScheduledCard(ctx context.Context, userID, hash string) (domain.ScheduledCard, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+scheduledCardColumns+`
		FROM cards c
		LEFT JOIN review_states rs ON rs.card_hash = c.hash AND rs.user_id = ?
		WHERE c.hash = ?
	`, userID, hash)

	sc, err := scanScheduledCard(row, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ScheduledCard{}, fmt.Errorf("card %s: %w", hash, ErrNotFound)
		}
		return domain.ScheduledCard{}, fmt.Errorf("failed to get scheduled card %s: %w", hash, err)
	}
	return sc, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullQuality(q *domain.Quality) sql.NullInt64 {
	if q == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*q), Valid: true}
}

// RecordReview stores card's new review state and appends entry to the
// review history in one transaction. card.Version must be the version the
// state was read at; if another writer has saved since, ErrConflict is
// returned and nothing is written. The stored card is returned with its
// new version.
func (db *DB) RecordReview(ctx context.Context, card domain.ScheduledCard, entry domain.ReviewLog) (domain.ScheduledCard, error) {
	st := card.State
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		if card.Version == 0 {
			res, err = tx.ExecContext(ctx, `
				INSERT INTO review_states (user_id, card_hash, interval_days, repetitions, easiness_factor,
					next_review, last_review, last_quality, version)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
				ON CONFLICT(user_id, card_hash) DO NOTHING
			`, card.UserID, card.Hash, st.Interval, st.Repetitions, st.EasinessFactor,
				nullTime(st.NextReviewDate), nullTime(st.LastReviewDate), nullQuality(st.LastQuality))
		} else {
			res, err = tx.ExecContext(ctx, `
				UPDATE review_states
				SET interval_days = ?, repetitions = ?, easiness_factor = ?,
					next_review = ?, last_review = ?, last_quality = ?, version = version + 1
				WHERE user_id = ? AND card_hash = ? AND version = ?
			`, st.Interval, st.Repetitions, st.EasinessFactor,
				nullTime(st.NextReviewDate), nullTime(st.LastReviewDate), nullQuality(st.LastQuality),
				card.UserID, card.Hash, card.Version)
		}
		if err != nil {
			return fmt.Errorf("failed to save review state for card %s: %w", card.Hash, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to save review state for card %s: %w", card.Hash, err)
		}
		if n == 0 {
			return fmt.Errorf("card %s at version %d: %w", card.Hash, card.Version, ErrConflict)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO review_logs (id, user_id, card_hash, subject, quality, reviewed_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, entry.ID, entry.UserID, entry.CardHash, entry.Subject, int(entry.Quality), entry.Timestamp.UTC()); err != nil {
			return fmt.Errorf("failed to insert review log for card %s: %w", card.Hash, err)
		}
		return nil
	})
	if err != nil {
		return domain.ScheduledCard{}, err
	}

	card.Version++
	return card, nil
}

// ReviewLogs returns userID's review history, oldest first.
func (db *DB) ReviewLogs(ctx context.Context, userID string) ([]domain.ReviewLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, card_hash, subject, quality, reviewed_at
		FROM review_logs WHERE user_id = ?
		ORDER BY reviewed_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs for user %s: %w", userID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var l domain.ReviewLog
		var quality int
		if err := rows.Scan(&l.ID, &l.UserID, &l.CardHash, &l.Subject, &quality, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan review log for user %s: %w", userID, err)
		}
		l.Quality = domain.Quality(quality)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ReviewTimestamps returns when userID reviewed, oldest first.
func (db *DB) ReviewTimestamps(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT reviewed_at FROM review_logs WHERE user_id = ?
		ORDER BY reviewed_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review timestamps for user %s: %w", userID, err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan review timestamp for user %s: %w", userID, err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}
