package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/barprep/internal/domain"
)

// InsertCard inserts a new card and records that sourceID contains it.
func (db *DB) InsertCard(ctx context.Context, card domain.Card, sourceID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cards (hash, question, answer, context, subject)
			VALUES (?, ?, ?, ?, ?)
		`,
			card.Hash,
			card.Question,
			card.Answer,
			card.Context,
			card.Subject,
		)
		if err != nil {
			return fmt.Errorf("failed to insert card %s: %w", card.Hash, err)
		}
		return linkCard(ctx, tx, card.Hash, sourceID)
	})
}

// LinkCard records that sourceID contains an existing card. Linking twice
// is a no-op.
func (db *DB) LinkCard(ctx context.Context, hash string, sourceID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return linkCard(ctx, tx, hash, sourceID)
	})
}

func linkCard(ctx context.Context, tx *sql.Tx, hash string, sourceID int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO card_sources (card_hash, source_id)
		VALUES (?, ?)
		ON CONFLICT(card_hash, source_id) DO NOTHING
	`, hash, sourceID); err != nil {
		return fmt.Errorf("failed to link card %s to source ID %d: %w", hash, sourceID, err)
	}
	return nil
}

// UpdateCardSubject moves an existing card to another subject.
func (db *DB) UpdateCardSubject(ctx context.Context, hash, subject string) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE cards SET subject = ? WHERE hash = ?
	`, subject, hash)
	if err != nil {
		return fmt.Errorf("failed to update subject for card %s: %w", hash, err)
	}
	return nil
}

// FindCardByHash retrieves a card by its hash.
func (db *DB) FindCardByHash(ctx context.Context, hash string) (*domain.Card, error) {
	var c domain.Card
	row := db.conn.QueryRowContext(ctx, `
		SELECT hash, question, answer, context, subject
		FROM cards WHERE hash = ?
	`, hash)

	if err := row.Scan(&c.Hash, &c.Question, &c.Answer, &c.Context, &c.Subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("card %s: %w", hash, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find card by hash %s: %w", hash, err)
	}
	return &c, nil
}

// GetCardsBySourceID retrieves all cards contained in a specific source.
func (db *DB) GetCardsBySourceID(ctx context.Context, sourceID int64) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT c.hash, c.question, c.answer, c.context, c.subject
		FROM cards c
		JOIN card_sources cs ON cs.card_hash = c.hash
		WHERE cs.source_id = ?
		ORDER BY c.rowid
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.Hash, &c.Question, &c.Answer, &c.Context, &c.Subject); err != nil {
			return nil, fmt.Errorf("failed to scan card row for source ID %d: %w", sourceID, err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// UnlinkCard records that sourceID no longer contains the card. When no
// other source holds it, the card and every user's review state for it are
// deleted and deleted is true. Review logs are kept.
func (db *DB) UnlinkCard(ctx context.Context, hash string, sourceID int64) (deleted bool, err error) {
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM card_sources WHERE card_hash = ? AND source_id = ?
		`, hash, sourceID); err != nil {
			return fmt.Errorf("failed to unlink card %s from source ID %d: %w", hash, sourceID, err)
		}

		var remaining int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM card_sources WHERE card_hash = ?
		`, hash).Scan(&remaining); err != nil {
			return fmt.Errorf("failed to count sources of card %s: %w", hash, err)
		}
		if remaining > 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM review_states WHERE card_hash = ?`, hash); err != nil {
			return fmt.Errorf("failed to delete review states for card %s: %w", hash, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE hash = ?`, hash); err != nil {
			return fmt.Errorf("failed to delete card with hash %s: %w", hash, err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}
