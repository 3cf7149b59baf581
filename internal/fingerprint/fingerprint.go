// Package fingerprint derives the stable identity of a card from its content.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/barprep/internal/domain"
)

// Normalize lowercases each content field, collapses runs of whitespace
// (including CRLF line endings) to single spaces, and joins the fields with
// newlines so that text cannot shift from one field to the next unnoticed.
// The subject is not part of a card's identity.
func Normalize(card domain.Card) string {
	parts := []string{card.Question, card.Answer, card.Context}
	for i, p := range parts {
		parts[i] = strings.Join(strings.Fields(strings.ToLower(p)), " ")
	}
	return strings.Join(parts, "\n")
}

// Hash returns the hex encoded SHA-256 of the normalized card.
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}

// Stamp returns cards with their Hash fields filled in.
func Stamp(cards []domain.Card) []domain.Card {
	out := make([]domain.Card, len(cards))
	for i, c := range cards {
		c.Hash = Hash(c)
		out[i] = c
	}
	return out
}
