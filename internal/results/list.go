// Package results holds the ranked output of a query evaluation and its
// TREC rank-file encoding.
package results

import "sort"

// Entry is one scored document, identified by its internal docid.
type Entry struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// List collects entries in evaluation order. Call Sort before reading a
// ranking out of it.
type List struct {
	entries []Entry
}

func NewList() *List {
	return &List{entries: make([]Entry, 0, 64)}
}

func (l *List) Add(docID int, score float64) {
	l.entries = append(l.entries, Entry{DocID: docID, Score: score})
}

func (l *List) Len() int {
	return len(l.entries)
}

func (l *List) At(i int) Entry {
	return l.entries[i]
}

// Entries returns the backing slice; callers must not modify it.
func (l *List) Entries() []Entry {
	return l.entries
}

// Sort orders entries by descending score. Ties keep the order in which the
// entries were added.
func (l *List) Sort() {
	sort.SliceStable(l.entries, func(i, j int) bool {
		return l.entries[i].Score > l.entries[j].Score
	})
}

// Truncate keeps at most the first n entries.
func (l *List) Truncate(n int) {
	if n >= 0 && n < len(l.entries) {
		l.entries = l.entries[:n]
	}
}
