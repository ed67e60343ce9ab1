package query

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/results"
)

// Evaluate initializes root against store and scores every document it
// matches, in docid order. The returned list is unsorted. On error no list
// is returned.
func Evaluate(ctx context.Context, root ScoreNode, m model.Model, store index.Store) (*results.List, error) {
	if err := root.Initialize(ctx, store); err != nil {
		return nil, fmt.Errorf("initializing %s: %w", root, err)
	}
	list := results.NewList()
	for root.HasMatch(m) {
		docID := root.DocID()
		score, err := root.Score(m)
		if err != nil {
			return nil, fmt.Errorf("scoring doc %d: %w", docID, err)
		}
		list.Add(docID, score)
		root.AdvancePast(docID)
	}
	return list, nil
}
