// Package parser reads flashcards from markdown decks.
//
// A deck is a sequence of blocks introduced by a prefix at the start of a
// line:
//
//	Q: question (starts a new card)
//	A: answer
//	C: context, e.g. the rule or case it comes from
//	S: subject, e.g. "Torts"
//
// A block continues over following lines until the next prefix. Cards are
// also ended by a "---" line. A "# Subject: <name>" heading sets the subject
// for the cards after it that have no S: block of their own.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/barprep/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	subjectPrefix  = "S:"
	subjectHeading = "# Subject:"
	separator      = "---"
)

type field int

const (
	fieldNone field = iota
	fieldQuestion
	fieldAnswer
	fieldContext
	fieldSubject
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{questionPrefix, fieldQuestion},
	{answerPrefix, fieldAnswer},
	{contextPrefix, fieldContext},
	{subjectPrefix, fieldSubject},
}

// ParseFile reads a deck from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

type deckReader struct {
	cards          []domain.Card
	card           domain.Card
	current        field
	block          []string
	defaultSubject string
}

// flushBlock stores the lines collected so far into the current field.
func (d *deckReader) flushBlock() {
	if d.current == fieldNone || len(d.block) == 0 {
		d.block = nil
		return
	}
	content := strings.TrimSpace(strings.Join(d.block, "\n"))
	switch d.current {
	case fieldQuestion:
		d.card.Question = content
	case fieldAnswer:
		d.card.Answer = content
	case fieldContext:
		d.card.Context = content
	case fieldSubject:
		d.card.Subject = content
	}
	d.block = nil
}

// finishCard closes the current card. Cards without a question are dropped.
func (d *deckReader) finishCard() {
	d.flushBlock()
	if d.card.Question != "" {
		if d.card.Subject == "" {
			d.card.Subject = d.defaultSubject
		}
		d.cards = append(d.cards, d.card)
	}
	d.card = domain.Card{}
	d.current = fieldNone
}

func matchPrefix(line string) (field, string) {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p.prefix) {
			return p.field, strings.TrimPrefix(line[len(p.prefix):], " ")
		}
	}
	return fieldNone, ""
}

// Parse reads a deck from r and extracts all cards.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	d := &deckReader{}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == separator {
			d.finishCard()
			continue
		}

		if strings.HasPrefix(line, subjectHeading) {
			d.finishCard()
			d.defaultSubject = strings.TrimSpace(line[len(subjectHeading):])
			continue
		}

		f, rest := matchPrefix(line)
		if f == fieldNone {
			if d.current != fieldNone {
				d.block = append(d.block, line)
			}
			continue
		}

		// A new question starts a new card unless only the card's
		// subject or context has been given so far.
		if f == fieldQuestion && (d.card.Question != "" || d.current == fieldQuestion) {
			d.finishCard()
		} else {
			d.flushBlock()
		}
		d.current = f
		d.block = append(d.block, rest)
	}

	d.finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return d.cards, nil
}
