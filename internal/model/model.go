// Package model describes the retrieval models the evaluator can score
// under and validates their parameters.
package model

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/config"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// Kind identifies a retrieval model.
type Kind int

const (
	UnrankedBoolean Kind = iota
	RankedBoolean
	BM25
	Indri
)

func (k Kind) String() string {
	switch k {
	case UnrankedBoolean:
		return "UnrankedBoolean"
	case RankedBoolean:
		return "RankedBoolean"
	case BM25:
		return "BM25"
	case Indri:
		return "Indri"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Model is a retrieval model together with its parameters. Only the fields
// for Kind are meaningful; the rest stay zero.
type Model struct {
	Kind Kind

	// BM25
	K1 float64
	B  float64
	K3 float64

	// Indri
	Mu     float64
	Lambda float64
}

func NewUnrankedBoolean() Model {
	return Model{Kind: UnrankedBoolean}
}

func NewRankedBoolean() Model {
	return Model{Kind: RankedBoolean}
}

// NewBM25 requires k1 >= 0, 0 <= b <= 1 and k3 >= 0.
func NewBM25(k1, b, k3 float64) (Model, error) {
	if k1 < 0 {
		return Model{}, fmt.Errorf("%w: bm25 k1 must be >= 0, got %v", qerrors.ErrInvalidModel, k1)
	}
	if b < 0 || b > 1 {
		return Model{}, fmt.Errorf("%w: bm25 b must be in [0,1], got %v", qerrors.ErrInvalidModel, b)
	}
	if k3 < 0 {
		return Model{}, fmt.Errorf("%w: bm25 k3 must be >= 0, got %v", qerrors.ErrInvalidModel, k3)
	}
	return Model{Kind: BM25, K1: k1, B: b, K3: k3}, nil
}

// NewIndri requires mu >= 0 and 0 <= lambda <= 1.
func NewIndri(mu, lambda float64) (Model, error) {
	if mu < 0 {
		return Model{}, fmt.Errorf("%w: indri mu must be >= 0, got %v", qerrors.ErrInvalidModel, mu)
	}
	if lambda < 0 || lambda > 1 {
		return Model{}, fmt.Errorf("%w: indri lambda must be in [0,1], got %v", qerrors.ErrInvalidModel, lambda)
	}
	return Model{Kind: Indri, Mu: mu, Lambda: lambda}, nil
}

// DefaultOperator is the operator an unstructured query is wrapped in.
func (m Model) DefaultOperator() string {
	if m.Kind == BM25 {
		return "#sum"
	}
	return "#and"
}

func (m Model) String() string {
	switch m.Kind {
	case BM25:
		return fmt.Sprintf("BM25(k1=%g,b=%g,k3=%g)", m.K1, m.B, m.K3)
	case Indri:
		return fmt.Sprintf("Indri(mu=%g,lambda=%g)", m.Mu, m.Lambda)
	default:
		return m.Kind.String()
	}
}

// Parse resolves a case-insensitive model name to its Kind.
func Parse(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "unrankedboolean":
		return UnrankedBoolean, nil
	case "rankedboolean":
		return RankedBoolean, nil
	case "bm25":
		return BM25, nil
	case "indri":
		return Indri, nil
	default:
		return 0, fmt.Errorf("%w: unknown model %q", qerrors.ErrInvalidModel, name)
	}
}

// FromConfig builds the model named by cfg.Algorithm using the parameters
// of its config section.
func FromConfig(cfg config.RetrievalConfig) (Model, error) {
	return Named(cfg.Algorithm, cfg)
}

// Named builds the model called name, taking parameters from cfg. It lets a
// request pick a model other than the configured default.
func Named(name string, cfg config.RetrievalConfig) (Model, error) {
	kind, err := Parse(name)
	if err != nil {
		return Model{}, err
	}
	switch kind {
	case BM25:
		return NewBM25(cfg.BM25.K1, cfg.BM25.B, cfg.BM25.K3)
	case Indri:
		return NewIndri(cfg.Indri.Mu, cfg.Indri.Lambda)
	case RankedBoolean:
		return NewRankedBoolean(), nil
	default:
		return NewUnrankedBoolean(), nil
	}
}
