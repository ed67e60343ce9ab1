package query

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// Or matches any document an argument matches.
type Or struct {
	match
	args []ScoreNode
}

func NewOr(args ...ScoreNode) *Or {
	return &Or{args: args}
}

func (o *Or) Args() []ScoreNode { return o.args }

func (o *Or) Initialize(ctx context.Context, store index.Store) error {
	return initializeAll(ctx, store, o.args)
}

func (o *Or) HasMatch(m model.Model) bool {
	o.doc, o.ok = matchMin(m, o.args)
	return o.ok
}

func (o *Or) AdvanceTo(docID int)   { advanceAllTo(o.args, docID) }
func (o *Or) AdvancePast(docID int) { advanceAllPast(o.args, docID) }
func (o *Or) String() string        { return format("#or", o.args, nil) }
func (o *Or) sealed()               {}

func (o *Or) Score(m model.Model) (float64, error) {
	switch m.Kind {
	case model.UnrankedBoolean:
		if !o.ok {
			return 0, nil
		}
		return 1, nil
	case model.RankedBoolean:
		if !o.ok {
			return 0, nil
		}
		var highest float64
		for _, arg := range o.args {
			if !matchesAt(m, arg, o.doc) {
				continue
			}
			s, err := arg.Score(m)
			if err != nil {
				return 0, err
			}
			highest = max(highest, s)
		}
		return highest, nil
	case model.Indri:
		if !o.ok {
			return 0, nil
		}
		miss := 1.0
		for _, arg := range o.args {
			s, err := scoreOrDefault(m, arg, o.doc)
			if err != nil {
				return 0, err
			}
			miss *= 1 - s
		}
		return 1 - miss, nil
	default:
		return 0, qerrors.Unsupported("Or", m.Kind.String(), "score")
	}
}

func (o *Or) DefaultScore(m model.Model, docID int) (float64, error) {
	if m.Kind != model.Indri {
		return 0, qerrors.Unsupported("Or", m.Kind.String(), "default score")
	}
	miss := 1.0
	for _, arg := range o.args {
		s, err := arg.DefaultScore(m, docID)
		if err != nil {
			return 0, err
		}
		miss *= 1 - s
	}
	return 1 - miss, nil
}
