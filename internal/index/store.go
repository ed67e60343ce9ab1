// Package index defines the contract between the query evaluator and the
// posting store it reads from, and provides an in-memory implementation.
package index

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/postings"
)

// Store is the read-only view of an inverted index the evaluator needs.
// Implementations must be safe for concurrent readers.
//
// InvertedList returns an empty list, not an error, for a term that does not
// occur in the field. FieldLength returns 0 for a document without the field.
// Failures of the backing storage are returned wrapped in errors.ErrStore.
type Store interface {
	InvertedList(ctx context.Context, term, field string) (*postings.InvertedList, error)
	FieldLength(field string, docID int) (int, error)
	SumFieldLengths(field string) (int64, error)
	DocCount(field string) (int64, error)
	NumDocs() (int64, error)
	ExternalID(docID int) (string, error)
	InternalID(externalID string) (int, error)
}

// Fields lists the document fields the query language can address.
var Fields = []string{"body", "title", "url", "keywords", "inlink"}

// IsField reports whether name is one of Fields.
func IsField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}
