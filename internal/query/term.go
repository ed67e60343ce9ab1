package query

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/postings"
)

// listCursor is the cursor half shared by every ListNode.
type listCursor struct {
	field string
	list  *postings.InvertedList
	cur   *postings.Cursor
}

func (l *listCursor) Field() string {
	return l.field
}

func (l *listCursor) List() *postings.InvertedList {
	return l.list
}

func (l *listCursor) cursor() *postings.Cursor {
	return l.cur
}

func (l *listCursor) attach(list *postings.InvertedList) {
	l.list = list
	l.cur = postings.NewCursor(list)
}

func (l *listCursor) HasMatch(model.Model) bool {
	return l.cur != nil && l.cur.HasMatch()
}

func (l *listCursor) DocID() int {
	return l.cur.DocID()
}

func (l *listCursor) AdvanceTo(docID int) {
	if l.cur != nil {
		l.cur.AdvanceTo(docID)
	}
}

func (l *listCursor) AdvancePast(docID int) {
	if l.cur != nil {
		l.cur.AdvancePast(docID)
	}
}

func (l *listCursor) sealed() {}

// Term reads the inverted list of one term in one field.
type Term struct {
	listCursor
	term string
}

func NewTerm(term, field string) *Term {
	return &Term{listCursor: listCursor{field: field}, term: term}
}

func (t *Term) Term() string {
	return t.term
}

func (t *Term) Initialize(ctx context.Context, store index.Store) error {
	list, err := store.InvertedList(ctx, t.term, t.field)
	if err != nil {
		return fmt.Errorf("loading postings for %s: %w", t, err)
	}
	t.attach(list)
	return nil
}

func (t *Term) String() string {
	return t.term + "." + t.field
}
