// Package query evaluates operator trees over inverted lists. Inverted-list
// operators (Term, Near, Window) produce postings; score operators (Score,
// And, Or, Sum, WAnd, WSum) combine their children's scores under a
// retrieval model.
//
// A tree is built once per query, initialized against a Store, and walked
// forward exactly once. Trees carry cursor state and must not be shared
// between concurrent evaluations.
package query

import (
	"context"
	"math"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/postings"
)

// Node is the document-cursor contract every operator implements. DocID is
// valid only after HasMatch returned true; advancing never moves backward.
type Node interface {
	Initialize(ctx context.Context, store index.Store) error
	HasMatch(m model.Model) bool
	DocID() int
	AdvanceTo(docID int)
	AdvancePast(docID int)
	String() string

	sealed()
}

// ListNode is an operator whose matches carry positions.
type ListNode interface {
	Node
	Field() string
	// List is the materialized inverted list, nil before Initialize.
	List() *postings.InvertedList
	cursor() *postings.Cursor
}

// ScoreNode is an operator that can score its current match.
type ScoreNode interface {
	Node
	// Score scores the document the node is positioned on.
	Score(m model.Model) (float64, error)
	// DefaultScore scores docID for a node that does not match it.
	DefaultScore(m model.Model, docID int) (float64, error)
}

// match caches the result of the last HasMatch call of a composite node.
type match struct {
	ok  bool
	doc int
}

func (mt *match) DocID() int {
	return mt.doc
}

// matchAll positions every child on the same docid by probing with the first
// child and retrying from the first docid that disagrees.
func matchAll[N Node](m model.Model, args []N) (int, bool) {
	if len(args) == 0 {
		return 0, false
	}
	for {
		if !args[0].HasMatch(m) {
			return 0, false
		}
		candidate := args[0].DocID()
		agreed := true
		for _, arg := range args[1:] {
			arg.AdvanceTo(candidate)
			if !arg.HasMatch(m) {
				return 0, false
			}
			if d := arg.DocID(); d != candidate {
				args[0].AdvanceTo(d)
				agreed = false
				break
			}
		}
		if agreed {
			return candidate, true
		}
	}
}

// matchMin positions the node on the smallest docid any child matches.
func matchMin[N Node](m model.Model, args []N) (int, bool) {
	minDoc := math.MaxInt
	found := false
	for _, arg := range args {
		if arg.HasMatch(m) {
			if d := arg.DocID(); d < minDoc {
				minDoc = d
			}
			found = true
		}
	}
	return minDoc, found
}

// matchesAt reports whether child is currently positioned on docID.
func matchesAt(m model.Model, child Node, docID int) bool {
	return child.HasMatch(m) && child.DocID() == docID
}

func initializeAll[N Node](ctx context.Context, store index.Store, args []N) error {
	for _, arg := range args {
		if err := arg.Initialize(ctx, store); err != nil {
			return err
		}
	}
	return nil
}

func advanceAllTo[N Node](args []N, docID int) {
	for _, arg := range args {
		arg.AdvanceTo(docID)
	}
}

func advanceAllPast[N Node](args []N, docID int) {
	for _, arg := range args {
		arg.AdvancePast(docID)
	}
}
