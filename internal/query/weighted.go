package query

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// weighted holds arguments with their co-indexed weights.
type weighted struct {
	match
	args      []ScoreNode
	weights   []float64
	sumWeight float64
}

func newWeighted(name string, args []ScoreNode, weights []float64) (weighted, error) {
	if len(args) == 0 {
		return weighted{}, fmt.Errorf("%w: %s needs at least one argument", qerrors.ErrInvalidQuery, name)
	}
	if len(args) != len(weights) {
		return weighted{}, fmt.Errorf("%w: %s has %d arguments but %d weights",
			qerrors.ErrInvalidQuery, name, len(args), len(weights))
	}
	var sum float64
	for i, w := range weights {
		if !(w > 0) || math.IsInf(w, 0) {
			return weighted{}, fmt.Errorf("%w: %s weight %d is %v, must be positive",
				qerrors.ErrInvalidQuery, name, i, w)
		}
		sum += w
	}
	return weighted{
		args:      args,
		weights:   append([]float64(nil), weights...),
		sumWeight: sum,
	}, nil
}

func (w *weighted) Args() []ScoreNode     { return w.args }
func (w *weighted) Weights() []float64    { return w.weights }
func (w *weighted) SumWeight() float64    { return w.sumWeight }
func (w *weighted) AdvanceTo(docID int)   { advanceAllTo(w.args, docID) }
func (w *weighted) AdvancePast(docID int) { advanceAllPast(w.args, docID) }
func (w *weighted) sealed()               {}

func (w *weighted) Initialize(ctx context.Context, store index.Store) error {
	return initializeAll(ctx, store, w.args)
}

func (w *weighted) HasMatch(m model.Model) bool {
	w.doc, w.ok = matchMin(m, w.args)
	return w.ok
}

// WAnd is the weighted geometric mean of its arguments. Indri only.
type WAnd struct {
	weighted
}

func NewWAnd(args []ScoreNode, weights []float64) (*WAnd, error) {
	w, err := newWeighted("#wand", args, weights)
	if err != nil {
		return nil, err
	}
	return &WAnd{weighted: w}, nil
}

func (w *WAnd) String() string { return format("#wand", w.args, w.weights) }

func (w *WAnd) Score(m model.Model) (float64, error) {
	if m.Kind != model.Indri {
		return 0, qerrors.Unsupported("WAnd", m.Kind.String(), "score")
	}
	if !w.ok {
		return 0, nil
	}
	product := 1.0
	for i, arg := range w.args {
		s, err := scoreOrDefault(m, arg, w.doc)
		if err != nil {
			return 0, err
		}
		product *= math.Pow(s, w.weights[i])
	}
	return math.Pow(product, 1/w.sumWeight), nil
}

func (w *WAnd) DefaultScore(m model.Model, docID int) (float64, error) {
	if m.Kind != model.Indri {
		return 0, qerrors.Unsupported("WAnd", m.Kind.String(), "default score")
	}
	product := 1.0
	for i, arg := range w.args {
		s, err := arg.DefaultScore(m, docID)
		if err != nil {
			return 0, err
		}
		product *= math.Pow(s, w.weights[i])
	}
	return math.Pow(product, 1/w.sumWeight), nil
}

// WSum is the weighted arithmetic mean of its arguments. Under BM25 the
// weights act as query term frequencies and are saturated by k3.
type WSum struct {
	weighted
}

func NewWSum(args []ScoreNode, weights []float64) (*WSum, error) {
	w, err := newWeighted("#wsum", args, weights)
	if err != nil {
		return nil, err
	}
	return &WSum{weighted: w}, nil
}

func (w *WSum) String() string { return format("#wsum", w.args, w.weights) }

func (w *WSum) Score(m model.Model) (float64, error) {
	switch m.Kind {
	case model.BM25:
		if !w.ok {
			return 0, nil
		}
		var total float64
		for i, arg := range w.args {
			if !matchesAt(m, arg, w.doc) {
				continue
			}
			s, err := arg.Score(m)
			if err != nil {
				return 0, err
			}
			qtf := w.weights[i]
			total += s * (m.K3 + 1) * qtf / (m.K3 + qtf)
		}
		return total / w.sumWeight, nil
	case model.Indri:
		if !w.ok {
			return 0, nil
		}
		var total float64
		for i, arg := range w.args {
			s, err := scoreOrDefault(m, arg, w.doc)
			if err != nil {
				return 0, err
			}
			total += w.weights[i] * s
		}
		return total / w.sumWeight, nil
	default:
		return 0, qerrors.Unsupported("WSum", m.Kind.String(), "score")
	}
}

func (w *WSum) DefaultScore(m model.Model, docID int) (float64, error) {
	if m.Kind != model.Indri {
		return 0, qerrors.Unsupported("WSum", m.Kind.String(), "default score")
	}
	var total float64
	for i, arg := range w.args {
		s, err := arg.DefaultScore(m, docID)
		if err != nil {
			return 0, err
		}
		total += w.weights[i] * s
	}
	return total / w.sumWeight, nil
}

// format renders an operator in query syntax, weights before each argument.
func format(op string, args []ScoreNode, weights []float64) string {
	var b strings.Builder
	b.WriteString(op)
	b.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		if weights != nil {
			b.WriteString(strconv.FormatFloat(weights[i], 'g', -1, 64))
			b.WriteByte(' ')
		}
		b.WriteString(unwrapScore(arg))
	}
	b.WriteByte(')')
	return b.String()
}

// unwrapScore prints a Score leaf as its argument, the way it is written in
// a query.
func unwrapScore(n ScoreNode) string {
	if s, ok := n.(*Score); ok {
		return s.arg.String()
	}
	return n.String()
}
