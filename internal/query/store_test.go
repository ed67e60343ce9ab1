package query

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/postings"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// fakeStore serves hand-built postings so tests control every statistic.
type fakeStore struct {
	lists   map[string]*postings.InvertedList
	lengths map[string]map[int]int
	numDocs int64
	listErr error
	lenErr  error
}

func newFakeStore(numDocs int64) *fakeStore {
	return &fakeStore{
		lists:   make(map[string]*postings.InvertedList),
		lengths: make(map[string]map[int]int),
		numDocs: numDocs,
	}
}

// add registers a term in field with the given docid -> positions map.
func (f *fakeStore) add(t *testing.T, term, field string, docs map[int][]int) {
	t.Helper()
	ids := make([]int, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	list := postings.NewInvertedList(term, field)
	for _, id := range ids {
		if err := list.Append(id, docs[id]); err != nil {
			t.Fatalf("add %s: %v", term, err)
		}
		if _, ok := f.lengths[field][id]; !ok {
			f.setLength(field, id, 100)
		}
	}
	f.lists[term+"."+field] = list
}

func (f *fakeStore) setLength(field string, docID, n int) {
	if f.lengths[field] == nil {
		f.lengths[field] = make(map[int]int)
	}
	f.lengths[field][docID] = n
}

func (f *fakeStore) InvertedList(_ context.Context, term, field string) (*postings.InvertedList, error) {
	if f.listErr != nil {
		return nil, qerrors.Store("inverted list", f.listErr)
	}
	if l, ok := f.lists[term+"."+field]; ok {
		return l, nil
	}
	return postings.NewInvertedList(term, field), nil
}

func (f *fakeStore) FieldLength(field string, docID int) (int, error) {
	if f.lenErr != nil {
		return 0, qerrors.Store("field length", f.lenErr)
	}
	return f.lengths[field][docID], nil
}

func (f *fakeStore) SumFieldLengths(field string) (int64, error) {
	var sum int64
	for _, n := range f.lengths[field] {
		sum += int64(n)
	}
	return sum, nil
}

func (f *fakeStore) DocCount(field string) (int64, error) {
	return int64(len(f.lengths[field])), nil
}

func (f *fakeStore) NumDocs() (int64, error) {
	return f.numDocs, nil
}

func (f *fakeStore) ExternalID(docID int) (string, error) {
	return fmt.Sprintf("doc-%d", docID), nil
}

func (f *fakeStore) InternalID(ext string) (int, error) {
	var id int
	if _, err := fmt.Sscanf(ext, "doc-%d", &id); err != nil {
		return 0, fmt.Errorf("%w: %s", qerrors.ErrDocumentNotFound, ext)
	}
	return id, nil
}

