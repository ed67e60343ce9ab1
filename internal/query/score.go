package query

import (
	"context"
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// Score turns the postings of a single ListNode into document scores.
type Score struct {
	arg   ListNode
	store index.Store

	numDocs  int64
	docCount int64
	sumLen   int64
}

func NewScore(arg ListNode) *Score {
	return &Score{arg: arg}
}

func (s *Score) Arg() ListNode {
	return s.arg
}

// Initialize loads the argument's postings and the field statistics every
// model formula needs.
func (s *Score) Initialize(ctx context.Context, store index.Store) error {
	if err := s.arg.Initialize(ctx, store); err != nil {
		return err
	}
	field := s.arg.Field()
	var err error
	if s.numDocs, err = store.NumDocs(); err != nil {
		return fmt.Errorf("reading document count: %w", err)
	}
	if s.docCount, err = store.DocCount(field); err != nil {
		return fmt.Errorf("reading doc count of %s: %w", field, err)
	}
	if s.sumLen, err = store.SumFieldLengths(field); err != nil {
		return fmt.Errorf("reading length of %s: %w", field, err)
	}
	s.store = store
	return nil
}

func (s *Score) HasMatch(m model.Model) bool { return s.arg.HasMatch(m) }
func (s *Score) DocID() int                  { return s.arg.DocID() }
func (s *Score) AdvanceTo(docID int)         { s.arg.AdvanceTo(docID) }
func (s *Score) AdvancePast(docID int)       { s.arg.AdvancePast(docID) }
func (s *Score) sealed()                     {}

func (s *Score) String() string {
	return "#score(" + s.arg.String() + ")"
}

func (s *Score) Score(m model.Model) (float64, error) {
	if !s.arg.HasMatch(m) {
		return 0, nil
	}
	tf := s.arg.cursor().Posting().TF
	switch m.Kind {
	case model.UnrankedBoolean:
		return 1, nil
	case model.RankedBoolean:
		return float64(tf), nil
	case model.BM25:
		docLen, err := s.fieldLength(s.arg.DocID())
		if err != nil {
			return 0, err
		}
		return s.bm25(m, tf, docLen), nil
	case model.Indri:
		docLen, err := s.fieldLength(s.arg.DocID())
		if err != nil {
			return 0, err
		}
		return s.indri(m, tf, docLen), nil
	default:
		return 0, qerrors.Unsupported("Score", m.Kind.String(), "score")
	}
}

// DefaultScore is the Indri smoothing formula with tf fixed at 0.
func (s *Score) DefaultScore(m model.Model, docID int) (float64, error) {
	if m.Kind != model.Indri {
		return 0, qerrors.Unsupported("Score", m.Kind.String(), "default score")
	}
	docLen, err := s.fieldLength(docID)
	if err != nil {
		return 0, err
	}
	return s.indri(m, 0, docLen), nil
}

func (s *Score) fieldLength(docID int) (int, error) {
	n, err := s.store.FieldLength(s.arg.Field(), docID)
	if err != nil {
		return 0, fmt.Errorf("reading length of %s in doc %d: %w", s.arg.Field(), docID, err)
	}
	return n, nil
}

func (s *Score) bm25(m model.Model, tf, docLen int) float64 {
	return bm25(m, float64(s.numDocs), float64(s.arg.List().DF), float64(tf), float64(docLen), s.avgLen())
}

func (s *Score) avgLen() float64 {
	if s.docCount == 0 {
		return 0
	}
	return float64(s.sumLen) / float64(s.docCount)
}

func (s *Score) indri(m model.Model, tf, docLen int) float64 {
	var pMLE float64
	if s.sumLen > 0 {
		pMLE = float64(s.arg.List().CTF) / float64(s.sumLen)
	}
	return indri(m, float64(tf), float64(docLen), pMLE)
}

// bm25 is the RSJ idf, floored at zero, times the saturated term frequency.
func bm25(m model.Model, n, df, tf, docLen, avgLen float64) float64 {
	if tf == 0 {
		return 0
	}
	idf := math.Max(0, math.Log((n-df+0.5)/(df+0.5)))
	norm := 1 - m.B
	if avgLen > 0 {
		norm += m.B * docLen / avgLen
	}
	return idf * tf / (tf + m.K1*norm)
}

// indri is Dirichlet smoothing mixed with the collection model.
func indri(m model.Model, tf, docLen, pMLE float64) float64 {
	var smoothed float64
	if denom := m.Mu + docLen; denom > 0 {
		smoothed = (tf + m.Mu*pMLE) / denom
	}
	return (1-m.Lambda)*smoothed + m.Lambda*pMLE
}
