package index

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

func newTestIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex()
	docs := []Document{
		{ID: "d0", Fields: map[string]string{"body": "dog bites man", "title": "dog news"}},
		{ID: "d1", Fields: map[string]string{"body": "man bites dog dog"}},
		{ID: "d2", Fields: map[string]string{"body": "cat sleeps"}},
	}
	for i, d := range docs {
		id, err := idx.AddDocument(d)
		if err != nil {
			t.Fatalf("AddDocument(%s): %v", d.ID, err)
		}
		if id != i {
			t.Fatalf("AddDocument(%s) = %d, want %d", d.ID, id, i)
		}
	}
	return idx
}

func TestMemoryIndex_InvertedList(t *testing.T) {
	idx := newTestIndex(t)
	list, err := idx.InvertedList(context.Background(), "dog", "body")
	if err != nil {
		t.Fatal(err)
	}
	if list.DF != 2 || list.CTF != 3 {
		t.Fatalf("DF=%d CTF=%d, want 2 and 3", list.DF, list.CTF)
	}
	if list.Postings[0].DocID != 0 || list.Postings[1].DocID != 1 {
		t.Errorf("unexpected docids %+v", list.Postings)
	}
	if got := list.Postings[1].Positions; len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("positions = %v, want [2 3]", got)
	}
}

func TestMemoryIndex_UnknownTermIsEmpty(t *testing.T) {
	idx := newTestIndex(t)
	for _, field := range []string{"body", "inlink"} {
		list, err := idx.InvertedList(context.Background(), "zebra", field)
		if err != nil {
			t.Fatalf("unknown term error: %v", err)
		}
		if list.Len() != 0 || list.DF != 0 {
			t.Errorf("%s: expected empty list, got %+v", field, list)
		}
	}
}

func TestMemoryIndex_FieldStats(t *testing.T) {
	idx := newTestIndex(t)
	n, _ := idx.NumDocs()
	if n != 3 {
		t.Errorf("NumDocs = %d, want 3", n)
	}
	dc, _ := idx.DocCount("title")
	if dc != 1 {
		t.Errorf("DocCount(title) = %d, want 1", dc)
	}
	sum, _ := idx.SumFieldLengths("body")
	if sum != 9 {
		t.Errorf("SumFieldLengths(body) = %d, want 9", sum)
	}
	l, err := idx.FieldLength("title", 1)
	if err != nil || l != 0 {
		t.Errorf("FieldLength(title, 1) = %d, %v; want 0", l, err)
	}
	if _, err := idx.FieldLength("body", 7); !errors.Is(err, qerrors.ErrDocumentNotFound) {
		t.Errorf("FieldLength out of range err = %v", err)
	}
}

func TestMemoryIndex_IDMapping(t *testing.T) {
	idx := newTestIndex(t)
	ext, err := idx.ExternalID(2)
	if err != nil || ext != "d2" {
		t.Errorf("ExternalID(2) = %q, %v", ext, err)
	}
	id, err := idx.InternalID("d1")
	if err != nil || id != 1 {
		t.Errorf("InternalID(d1) = %d, %v", id, err)
	}
	if _, err := idx.InternalID("nope"); !errors.Is(err, qerrors.ErrDocumentNotFound) {
		t.Errorf("InternalID(nope) err = %v", err)
	}
	if _, err := idx.AddDocument(Document{ID: "d1"}); !errors.Is(err, qerrors.ErrInvalidInput) {
		t.Errorf("duplicate id err = %v", err)
	}
}

func TestMemoryIndex_ListIsSnapshot(t *testing.T) {
	idx := newTestIndex(t)
	before, _ := idx.InvertedList(context.Background(), "cat", "body")
	if _, err := idx.AddDocument(Document{ID: "d3", Fields: map[string]string{"body": "cat"}}); err != nil {
		t.Fatal(err)
	}
	if before.Len() != 1 {
		t.Errorf("snapshot grew to %d postings", before.Len())
	}
	after, _ := idx.InvertedList(context.Background(), "cat", "body")
	if after.Len() != 2 {
		t.Errorf("new list has %d postings, want 2", after.Len())
	}
}

func TestMemoryIndex_LoadJSONL(t *testing.T) {
	corpus := `{"id":"a","fields":{"body":"retrieval models"}}

{"id":"b","fields":{"body":"query evaluation","title":"models"}}
`
	idx := NewMemoryIndex()
	n, err := idx.LoadJSONL(strings.NewReader(corpus))
	if err != nil {
		t.Fatalf("LoadJSONL: %v", err)
	}
	if n != 2 {
		t.Errorf("loaded %d docs, want 2", n)
	}
	if _, err := idx.LoadJSONL(strings.NewReader("{bad json}\n")); !errors.Is(err, qerrors.ErrInvalidInput) {
		t.Errorf("malformed line err = %v", err)
	}
}

func TestMemoryIndex_ConcurrentReaders(t *testing.T) {
	idx := newTestIndex(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := idx.InvertedList(context.Background(), "dog", "body"); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestIsField(t *testing.T) {
	if !IsField("keywords") || IsField("author") {
		t.Error("IsField mismatch")
	}
}
