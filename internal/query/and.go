package query

import (
	"context"
	"math"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// And requires every argument to match under the boolean models. Under
// Indri it matches any document an argument matches and scores the missing
// arguments with their default scores.
type And struct {
	match
	args []ScoreNode
}

func NewAnd(args ...ScoreNode) *And {
	return &And{args: args}
}

func (a *And) Args() []ScoreNode { return a.args }

func (a *And) Initialize(ctx context.Context, store index.Store) error {
	return initializeAll(ctx, store, a.args)
}

func (a *And) HasMatch(m model.Model) bool {
	if m.Kind == model.Indri {
		a.doc, a.ok = matchMin(m, a.args)
	} else {
		a.doc, a.ok = matchAll(m, a.args)
	}
	return a.ok
}

func (a *And) AdvanceTo(docID int)   { advanceAllTo(a.args, docID) }
func (a *And) AdvancePast(docID int) { advanceAllPast(a.args, docID) }
func (a *And) String() string        { return format("#and", a.args, nil) }
func (a *And) sealed()               {}

func (a *And) Score(m model.Model) (float64, error) {
	switch m.Kind {
	case model.UnrankedBoolean:
		if !a.ok {
			return 0, nil
		}
		return 1, nil
	case model.RankedBoolean:
		if !a.ok {
			return 0, nil
		}
		lowest := math.Inf(1)
		for _, arg := range a.args {
			s, err := arg.Score(m)
			if err != nil {
				return 0, err
			}
			lowest = min(lowest, s)
		}
		return lowest, nil
	case model.Indri:
		if !a.ok {
			return 0, nil
		}
		product := 1.0
		for _, arg := range a.args {
			s, err := scoreOrDefault(m, arg, a.doc)
			if err != nil {
				return 0, err
			}
			product *= s
		}
		return math.Pow(product, 1/float64(len(a.args))), nil
	default:
		return 0, qerrors.Unsupported("And", m.Kind.String(), "score")
	}
}

func (a *And) DefaultScore(m model.Model, docID int) (float64, error) {
	if m.Kind != model.Indri {
		return 0, qerrors.Unsupported("And", m.Kind.String(), "default score")
	}
	product := 1.0
	for _, arg := range a.args {
		s, err := arg.DefaultScore(m, docID)
		if err != nil {
			return 0, err
		}
		product *= s
	}
	return math.Pow(product, 1/float64(len(a.args))), nil
}

// scoreOrDefault uses the live score of an argument positioned on docID and
// its default score otherwise.
func scoreOrDefault(m model.Model, arg ScoreNode, docID int) (float64, error) {
	if matchesAt(m, arg, docID) {
		return arg.Score(m)
	}
	return arg.DefaultScore(m, docID)
}
