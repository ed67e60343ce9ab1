package parser

import (
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/query"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

func bm25(t *testing.T) model.Model {
	t.Helper()
	m, err := model.NewBM25(1.2, 0.75, 0)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestParse_WrapsInDefaultOperator(t *testing.T) {
	p := New("body")
	tests := []struct {
		name  string
		m     model.Model
		query string
		want  string
	}{
		{"bm25 sums", bm25(t), "dogs barking", "#sum(dog.body bark.body)"},
		{"boolean ands", model.NewRankedBoolean(), "dogs barking", "#and(dog.body bark.body)"},
		{"field suffix", model.NewUnrankedBoolean(), "apple.title pie", "#and(apple.title pie.body)"},
		{"unknown suffix stays in term", model.NewUnrankedBoolean(), "mr.smith", "#and(mr.body smith.body)"},
		{"stopwords dropped", model.NewUnrankedBoolean(), "the cat and the hat", "#and(cat.body hat.body)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := p.Parse(tt.query, tt.m)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := plan.Root.String(); got != tt.want {
				t.Errorf("tree = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParse_NestedOperators(t *testing.T) {
	p := New("body")
	plan, err := p.Parse("#or(#near/2(white house) #window/8(president.title obama.title)) #wsum(0.3 cat 0.7 #and(dog fish))", model.NewRankedBoolean())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "#and(#or(#near/2(white.body house.body) #window/8(president.title obama.title)) " +
		"#wsum(0.3 cat.body 0.7 #and(dog.body fish.body)))"
	if got := plan.Root.String(); got != want {
		t.Errorf("tree =\n%s\nwant\n%s", got, want)
	}
}

func TestParse_ListOperatorsAreWrappedInScore(t *testing.T) {
	plan, err := New("body").Parse("#near/1(new york)", model.NewRankedBoolean())
	if err != nil {
		t.Fatal(err)
	}
	and, ok := plan.Root.(*query.And)
	if !ok {
		t.Fatalf("root is %T, want *query.And", plan.Root)
	}
	if _, ok := and.Args()[0].(*query.Score); !ok {
		t.Errorf("near argument is %T, want *query.Score", and.Args()[0])
	}
}

func TestParse_StopwordDropsItsWeight(t *testing.T) {
	plan, err := New("body").Parse("#wand(0.2 the 0.8 cat)", model.NewRankedBoolean())
	if err != nil {
		t.Fatal(err)
	}
	and := plan.Root.(*query.And)
	wand, ok := and.Args()[0].(*query.WAnd)
	if !ok {
		t.Fatalf("argument is %T, want *query.WAnd", and.Args()[0])
	}
	if len(wand.Weights()) != 1 || wand.Weights()[0] != 0.8 {
		t.Errorf("weights = %v, want [0.8]", wand.Weights())
	}
}

func TestParse_EmptyQueries(t *testing.T) {
	p := New("body")
	for _, q := range []string{"", "   ", "the of a", "#or(the)"} {
		plan, err := p.Parse(q, model.NewUnrankedBoolean())
		if err != nil {
			t.Fatalf("Parse(%q): %v", q, err)
		}
		if !plan.Empty() {
			t.Errorf("Parse(%q) root = %s, want empty", q, plan.Root)
		}
	}
}

func TestParse_FreshTreeEachCall(t *testing.T) {
	p := New("body")
	a, _ := p.Parse("cat dog", bm25(t))
	b, _ := p.Parse("cat dog", bm25(t))
	if a.Root == b.Root {
		t.Error("Parse returned a shared tree")
	}
}

func TestParse_Errors(t *testing.T) {
	p := New("body")
	queries := []string{
		"#and(cat",
		"cat)",
		"#syn(cat kitty)",
		"#near(cat dog)",
		"#near/x(cat dog)",
		"#window/-1(cat dog)",
		"#wand(cat 0.5 dog)",
		"#wsum(0.5 cat 0 dog)",
		"#near/2(cat #and(dog fish))",
		"#near/2(cat.title dog.body)",
		"#and cat",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			_, err := p.Parse(q, model.NewRankedBoolean())
			if !errors.Is(err, qerrors.ErrInvalidQuery) {
				t.Errorf("Parse(%q) err = %v, want ErrInvalidQuery", q, err)
			}
		})
	}
}

func TestParse_ProximityArgumentsShareAField(t *testing.T) {
	p := New("body")
	tests := []struct {
		query string
		ok    bool
	}{
		{"#window/3(cat.title dog.title)", true},
		{"#near/1(cat dog.body)", true},
		{"#window/3(cat.title dog)", false},
		{"#near/1(cat dog.title)", false},
		{"#or(#window/8(president.title obama))", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := p.Parse(tt.query, model.NewRankedBoolean())
			if tt.ok && err != nil {
				t.Errorf("Parse(%q): %v", tt.query, err)
			}
			if !tt.ok && !errors.Is(err, qerrors.ErrInvalidQuery) {
				t.Errorf("Parse(%q) err = %v, want ErrInvalidQuery", tt.query, err)
			}
		})
	}
}

func TestLex(t *testing.T) {
	got := lex("#and(a  b.title)\t#or( c )")
	want := []string{"#and", "(", "a", "b.title", ")", "#or", "(", "c", ")"}
	if len(got) != len(want) {
		t.Fatalf("lex = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}
