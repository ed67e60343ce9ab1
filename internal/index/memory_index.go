package index

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/postings"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// fieldIndex holds the postings and length statistics of one field.
type fieldIndex struct {
	lists    map[string]*postings.InvertedList
	lengths  map[int]int
	sumLen   int64
	docCount int64
}

// MemoryIndex is a Store built by tokenizing documents in memory. Internal
// docids are assigned sequentially from 0 in insertion order, so every
// inverted list is appended to in ascending docid order.
type MemoryIndex struct {
	mu          sync.RWMutex
	fields      map[string]*fieldIndex
	externalIDs []string
	internalIDs map[string]int
	size        int64
	logger      *slog.Logger
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		fields:      make(map[string]*fieldIndex),
		internalIDs: make(map[string]int),
		logger:      slog.Default().With("component", "memory-index"),
	}
}

// AddDocument tokenizes every field of doc and returns its internal docid.
func (m *MemoryIndex) AddDocument(doc Document) (int, error) {
	if doc.ID == "" {
		return 0, fmt.Errorf("%w: document id is empty", qerrors.ErrInvalidInput)
	}

	analyzed := Analyze(doc)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.internalIDs[doc.ID]; exists {
		return 0, fmt.Errorf("%w: duplicate document id %q", qerrors.ErrInvalidInput, doc.ID)
	}
	docID := len(m.externalIDs)
	m.externalIDs = append(m.externalIDs, doc.ID)
	m.internalIDs[doc.ID] = docID

	for field, ft := range analyzed {
		fi, exists := m.fields[field]
		if !exists {
			fi = &fieldIndex{
				lists:   make(map[string]*postings.InvertedList),
				lengths: make(map[int]int),
			}
			m.fields[field] = fi
		}
		for term, positions := range ft.Terms {
			list, exists := fi.lists[term]
			if !exists {
				list = postings.NewInvertedList(term, field)
				fi.lists[term] = list
			}
			if err := list.Append(docID, positions); err != nil {
				return 0, fmt.Errorf("indexing %s.%s for %q: %w", term, field, doc.ID, err)
			}
			m.size += int64(len(term) + len(positions)*8 + 32)
		}
		fi.lengths[docID] = ft.Length
		fi.sumLen += int64(ft.Length)
		fi.docCount++
	}
	return docID, nil
}

// LoadJSONL reads one JSON Document per line and indexes it. Blank lines are
// skipped. It returns the number of documents added.
func (m *MemoryIndex) LoadJSONL(r io.Reader) (int, error) {
	count, err := ReadJSONL(r, func(doc Document) error {
		_, err := m.AddDocument(doc)
		return err
	})
	if err != nil {
		return count, err
	}
	m.logger.Info("corpus loaded", "documents", count, "bytes_estimate", m.Size())
	return count, nil
}

// InvertedList returns a read-only view of the term's list. Documents added
// afterwards are not visible through it.
func (m *MemoryIndex) InvertedList(_ context.Context, term, field string) (*postings.InvertedList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fi, ok := m.fields[field]
	if !ok {
		return postings.NewInvertedList(term, field), nil
	}
	list, ok := fi.lists[term]
	if !ok {
		return postings.NewInvertedList(term, field), nil
	}
	n := len(list.Postings)
	return &postings.InvertedList{
		Term:     list.Term,
		Field:    list.Field,
		DF:       list.DF,
		CTF:      list.CTF,
		Postings: list.Postings[:n:n],
	}, nil
}

func (m *MemoryIndex) FieldLength(field string, docID int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if docID < 0 || docID >= len(m.externalIDs) {
		return 0, fmt.Errorf("%w: internal id %d", qerrors.ErrDocumentNotFound, docID)
	}
	fi, ok := m.fields[field]
	if !ok {
		return 0, nil
	}
	return fi.lengths[docID], nil
}

func (m *MemoryIndex) SumFieldLengths(field string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if fi, ok := m.fields[field]; ok {
		return fi.sumLen, nil
	}
	return 0, nil
}

func (m *MemoryIndex) DocCount(field string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if fi, ok := m.fields[field]; ok {
		return fi.docCount, nil
	}
	return 0, nil
}

func (m *MemoryIndex) NumDocs() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.externalIDs)), nil
}

func (m *MemoryIndex) ExternalID(docID int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if docID < 0 || docID >= len(m.externalIDs) {
		return "", fmt.Errorf("%w: internal id %d", qerrors.ErrDocumentNotFound, docID)
	}
	return m.externalIDs[docID], nil
}

func (m *MemoryIndex) InternalID(externalID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.internalIDs[externalID]
	if !ok {
		return 0, fmt.Errorf("%w: external id %q", qerrors.ErrDocumentNotFound, externalID)
	}
	return id, nil
}

// Size is a rough estimate of the bytes held by the postings.
func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields = make(map[string]*fieldIndex)
	m.externalIDs = nil
	m.internalIDs = make(map[string]int)
	m.size = 0
}
