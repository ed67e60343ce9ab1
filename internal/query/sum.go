package query

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// Sum adds the scores of the arguments that match a document. It is a BM25
// operator; under Indri it scores every document 0.
type Sum struct {
	match
	args []ScoreNode
}

func NewSum(args ...ScoreNode) *Sum {
	return &Sum{args: args}
}

func (s *Sum) Args() []ScoreNode { return s.args }

func (s *Sum) Initialize(ctx context.Context, store index.Store) error {
	return initializeAll(ctx, store, s.args)
}

func (s *Sum) HasMatch(m model.Model) bool {
	s.doc, s.ok = matchMin(m, s.args)
	return s.ok
}

func (s *Sum) AdvanceTo(docID int)   { advanceAllTo(s.args, docID) }
func (s *Sum) AdvancePast(docID int) { advanceAllPast(s.args, docID) }
func (s *Sum) String() string        { return format("#sum", s.args, nil) }
func (s *Sum) sealed()               {}

func (s *Sum) Score(m model.Model) (float64, error) {
	switch m.Kind {
	case model.BM25:
		if !s.ok {
			return 0, nil
		}
		var total float64
		for _, arg := range s.args {
			if !matchesAt(m, arg, s.doc) {
				continue
			}
			v, err := arg.Score(m)
			if err != nil {
				return 0, err
			}
			total += v
		}
		return total, nil
	case model.Indri:
		// TODO: Sum has no Indri formula yet; define the live and default
		// scores together before relying on #sum in Indri queries.
		return 0, nil
	default:
		return 0, qerrors.Unsupported("Sum", m.Kind.String(), "score")
	}
}

func (s *Sum) DefaultScore(m model.Model, _ int) (float64, error) {
	if m.Kind != model.Indri {
		return 0, qerrors.Unsupported("Sum", m.Kind.String(), "default score")
	}
	return 0, nil
}
