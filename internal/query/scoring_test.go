package query

import (
	"context"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
)

const epsilon = 1e-9

func TestBM25_DogScenario(t *testing.T) {
	s := newFakeStore(1000)
	docs := map[int][]int{0: {4, 17, 60}}
	for id := 1; id < 10; id++ {
		docs[id] = []int{1}
	}
	s.add(t, "dog", "body", docs)
	s.setLength("body", 0, 100)
	for id := 1; id < 9; id++ {
		s.setLength("body", id, 122)
	}
	s.setLength("body", 9, 124)

	list := evaluate(t, term("dog"), mustBM25(t), s)
	if list.At(0).DocID != 0 {
		t.Fatalf("first match is doc %d", list.At(0).DocID)
	}

	idf := math.Log((1000.0 - 10 + 0.5) / (10 + 0.5))
	tfWeight := 3 / (3 + 1.2*((1-0.75)+0.75*100.0/120.0))
	want := idf * tfWeight
	if got := list.At(0).Score; math.Abs(got-want) > epsilon {
		t.Errorf("BM25(dog) = %.12f, want %.12f", got, want)
	}
}

func TestBM25_LeafBounds(t *testing.T) {
	m := mustBM25(t)
	if got := bm25(m, 1000, 10, 0, 100, 120); got != 0 {
		t.Errorf("tf=0 scored %v, want 0", got)
	}
	for _, df := range []float64{0, 1, 10, 499, 500, 501, 999, 1000} {
		if got := bm25(m, 1000, df, 3, 100, 120); got < 0 || math.IsNaN(got) {
			t.Errorf("df=%v scored %v, want >= 0", df, got)
		}
	}
}

func TestWSum_BM25QueryTermDiscount(t *testing.T) {
	s := newFakeStore(1000)
	s.add(t, "a", "body", map[int][]int{1: {1, 2}})
	s.add(t, "b", "body", map[int][]int{2: {1}})

	m, err := model.NewBM25(1.2, 0.75, 7)
	if err != nil {
		t.Fatal(err)
	}
	root, err := NewWSum([]ScoreNode{term("a"), term("b")}, []float64{1, 3})
	if err != nil {
		t.Fatal(err)
	}
	list := evaluate(t, root, m, s)

	leaf := evaluate(t, term("a"), m, s).At(0).Score
	want := leaf * (7 + 1) * 1 / (7 + 1) / 4
	if got := list.At(0).Score; math.Abs(got-want) > epsilon {
		t.Errorf("WSum(doc 1) = %v, want %v", got, want)
	}
}

func TestIndri_LeafDefaultMatchesZeroTF(t *testing.T) {
	s := newFakeStore(10)
	s.add(t, "a", "body", map[int][]int{1: {1, 2}})
	s.setLength("body", 2, 37)

	m := mustIndri(t)
	leaf := term("a")
	if err := leaf.Initialize(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	got, err := leaf.DefaultScore(m, 2)
	if err != nil {
		t.Fatal(err)
	}
	pMLE := 2.0 / (100 + 37)
	if want := indri(m, 0, 37, pMLE); math.Abs(got-want) > epsilon {
		t.Errorf("DefaultScore = %v, want live formula at tf=0 %v", got, want)
	}
}

func TestIndri_AndUsesDefaultForMissingArgument(t *testing.T) {
	s := newFakeStore(10)
	s.add(t, "a", "body", map[int][]int{1: {1, 2}})
	s.add(t, "b", "body", map[int][]int{2: {5}})

	m := mustIndri(t)
	list := evaluate(t, NewAnd(term("a"), term("b")), m, s)
	if list.Len() != 2 {
		t.Fatalf("got %d matches, want 2", list.Len())
	}
	pA, pB := 2.0/200, 1.0/200
	want := math.Sqrt(indri(m, 2, 100, pA) * indri(m, 0, 100, pB))
	if got := list.At(0).Score; math.Abs(got-want) > epsilon {
		t.Errorf("AND(doc 1) = %v, want %v", got, want)
	}
}

func TestIndri_CombinatorsStayInUnitInterval(t *testing.T) {
	s := newFakeStore(50)
	s.add(t, "a", "body", map[int][]int{1: {1, 2, 3}, 4: {7}, 9: {2}})
	s.add(t, "b", "body", map[int][]int{2: {1}, 4: {2, 9}, 11: {3}})
	s.add(t, "c", "body", map[int][]int{4: {3}, 9: {4}, 12: {1, 2, 3, 4, 5}})
	s.setLength("body", 12, 5)

	m := mustIndri(t)
	roots := map[string]func() ScoreNode{
		"and": func() ScoreNode { return NewAnd(term("a"), term("b"), term("c")) },
		"or":  func() ScoreNode { return NewOr(term("a"), term("b"), term("c")) },
		"wand": func() ScoreNode {
			n, _ := NewWAnd([]ScoreNode{term("a"), term("b"), term("c")}, []float64{0.2, 1.5, 3})
			return n
		},
		"wsum": func() ScoreNode {
			n, _ := NewWSum([]ScoreNode{term("a"), NewOr(term("b"), term("c"))}, []float64{2, 1})
			return n
		},
	}
	for name, root := range roots {
		t.Run(name, func(t *testing.T) {
			list := evaluate(t, root(), m, s)
			if list.Len() == 0 {
				t.Fatal("no matches")
			}
			for _, e := range list.Entries() {
				if e.Score < 0 || e.Score > 1 || math.IsNaN(e.Score) {
					t.Errorf("doc %d scored %v outside [0,1]", e.DocID, e.Score)
				}
			}
			n := root()
			if err := n.Initialize(context.Background(), s); err != nil {
				t.Fatal(err)
			}
			d, err := n.DefaultScore(m, 3)
			if err != nil {
				t.Fatal(err)
			}
			if d < 0 || d > 1 {
				t.Errorf("default score %v outside [0,1]", d)
			}
		})
	}
}

func TestIndri_WSumDefaultIsWeightedMean(t *testing.T) {
	s := newFakeStore(10)
	s.add(t, "a", "body", map[int][]int{1: {1}})
	s.add(t, "b", "body", map[int][]int{1: {2}})
	m := mustIndri(t)

	root, _ := NewWSum([]ScoreNode{term("a"), term("b")}, []float64{1, 3})
	if err := root.Initialize(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	got, err := root.DefaultScore(m, 1)
	if err != nil {
		t.Fatal(err)
	}
	d := indri(m, 0, 100, 1.0/100)
	if math.Abs(got-d) > epsilon {
		t.Errorf("DefaultScore = %v, want %v", got, d)
	}
}

func TestUnrankedBoolean_ScoresOne(t *testing.T) {
	list := evaluate(t, NewOr(term("a"), NewAnd(term("a"), term("b"))), model.NewUnrankedBoolean(), abStore(t))
	for _, e := range list.Entries() {
		if e.Score != 1 {
			t.Errorf("doc %d scored %v, want 1", e.DocID, e.Score)
		}
	}
}
