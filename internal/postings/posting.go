// Package postings holds the in-memory inverted list representation and the
// forward-only cursors the query operators walk over it.
package postings

import (
	"fmt"

	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// Posting records one term's occurrences in one document field.
type Posting struct {
	DocID     int   `json:"doc_id"`
	TF        int   `json:"tf"`
	Positions []int `json:"positions"`
}

// InvertedList is the ascending-by-docid sequence of postings for a single
// (term, field) pair. Once handed to a Cursor it must not be modified.
type InvertedList struct {
	Term     string
	Field    string
	DF       int
	CTF      int64
	Postings []Posting
}

func NewInvertedList(term, field string) *InvertedList {
	return &InvertedList{
		Term:     term,
		Field:    field,
		Postings: make([]Posting, 0),
	}
}

// FromPostings validates a pre-built posting slice and wraps it in a list.
func FromPostings(term, field string, postings []Posting) (*InvertedList, error) {
	l := NewInvertedList(term, field)
	for _, p := range postings {
		if err := l.Append(p.DocID, p.Positions); err != nil {
			return nil, fmt.Errorf("building list for %s.%s: %w", term, field, err)
		}
	}
	return l, nil
}

// Append adds a posting for docID. Docids must arrive in strictly increasing
// order and positions must be strictly increasing within the posting.
func (l *InvertedList) Append(docID int, positions []int) error {
	if len(positions) == 0 {
		return fmt.Errorf("%w: doc %d has no positions", qerrors.ErrInvalidPostings, docID)
	}
	if n := len(l.Postings); n > 0 && l.Postings[n-1].DocID >= docID {
		return fmt.Errorf("%w: doc %d appended after doc %d",
			qerrors.ErrInvalidPostings, docID, l.Postings[n-1].DocID)
	}
	for i := 1; i < len(positions); i++ {
		if positions[i] <= positions[i-1] {
			return fmt.Errorf("%w: doc %d positions not increasing at index %d",
				qerrors.ErrInvalidPostings, docID, i)
		}
	}
	locs := make([]int, len(positions))
	copy(locs, positions)
	l.Postings = append(l.Postings, Posting{
		DocID:     docID,
		TF:        len(locs),
		Positions: locs,
	})
	l.DF++
	l.CTF += int64(len(locs))
	return nil
}

func (l *InvertedList) Len() int {
	return len(l.Postings)
}
