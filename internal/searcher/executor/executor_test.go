package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/searcher/parser"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/metrics"
)

func newTestExecutor(t *testing.T, m *metrics.Metrics) *Executor {
	t.Helper()
	idx := index.NewMemoryIndex()
	docs := []index.Document{
		{ID: "d0", Fields: map[string]string{"body": "dog bites man"}},
		{ID: "d1", Fields: map[string]string{"body": "man bites dog dog"}},
		{ID: "d2", Fields: map[string]string{"body": "cat sleeps"}},
	}
	for _, d := range docs {
		if _, err := idx.AddDocument(d); err != nil {
			t.Fatalf("AddDocument(%s): %v", d.ID, err)
		}
	}
	return New(idx, parser.New("body"), m)
}

func TestExecute_RanksAndMapsIDs(t *testing.T) {
	e := newTestExecutor(t, nil)
	res, err := e.Execute(context.Background(), "dog", model.NewRankedBoolean(), 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.TotalHits != 2 {
		t.Errorf("TotalHits = %d, want 2", res.TotalHits)
	}
	if len(res.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(res.Results))
	}
	top := res.Results[0]
	if top.ExternalID != "d1" || top.DocID != 1 || top.Score != 2 {
		t.Errorf("top = %+v, want d1 with score 2", top)
	}
	if res.Model != "RankedBoolean" {
		t.Errorf("Model = %q", res.Model)
	}
}

func TestExecute_TiesKeepDocOrder(t *testing.T) {
	e := newTestExecutor(t, nil)
	res, err := e.Execute(context.Background(), "dog", model.NewUnrankedBoolean(), 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var got []string
	for _, d := range res.Results {
		got = append(got, d.ExternalID)
	}
	if strings.Join(got, ",") != "d0,d1" {
		t.Errorf("order = %v, want [d0 d1]", got)
	}
}

func TestExecute_EmptyQuery(t *testing.T) {
	e := newTestExecutor(t, nil)
	for _, q := range []string{"", "the", "#and(of the)"} {
		res, err := e.Execute(context.Background(), q, model.NewUnrankedBoolean(), 10)
		if err != nil {
			t.Fatalf("Execute(%q): %v", q, err)
		}
		if res.TotalHits != 0 || res.Results == nil || len(res.Results) != 0 {
			t.Errorf("Execute(%q) = %+v, want empty non-nil results", q, res)
		}
	}
}

func TestExecute_Errors(t *testing.T) {
	bm25, err := model.NewBM25(1.2, 0.75, 0)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name  string
		query string
		m     model.Model
		want  error
	}{
		{"unknown operator", "#foo(dog)", model.NewUnrankedBoolean(), qerrors.ErrInvalidQuery},
		{"unbalanced", "#and(dog", model.NewUnrankedBoolean(), qerrors.ErrInvalidQuery},
		{"and under bm25", "#and(dog man)", bm25, qerrors.ErrUnsupported},
	}
	e := newTestExecutor(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Execute(context.Background(), tt.query, tt.m, 10)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if res != nil {
				t.Error("expected no result on error")
			}
		})
	}
}

func TestExecute_RecordsMetrics(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := newTestExecutor(t, m)
	ctx := context.Background()

	if _, err := e.Execute(ctx, "dog", model.NewRankedBoolean(), 10); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Execute(ctx, "the", model.NewRankedBoolean(), 10); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Execute(ctx, "#bad(dog)", model.NewRankedBoolean(), 10); err == nil {
		t.Fatal("expected parse error")
	}

	for outcome, want := range map[string]float64{"ok": 1, "empty": 1, "error": 1} {
		got := testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("RankedBoolean", outcome))
		if got != want {
			t.Errorf("evaluations{%s} = %v, want %v", outcome, got, want)
		}
	}
}

func TestReadQueries(t *testing.T) {
	in := "10:apple pie\n\n11: #and(a b)\n12:\n"
	qs, err := ReadQueries(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadQueries: %v", err)
	}
	want := []Query{{"10", "apple pie"}, {"11", "#and(a b)"}, {"12", ""}}
	if len(qs) != len(want) {
		t.Fatalf("got %d queries, want %d", len(qs), len(want))
	}
	for i := range want {
		if qs[i] != want[i] {
			t.Errorf("query %d = %+v, want %+v", i, qs[i], want[i])
		}
	}

	if _, err := ReadQueries(strings.NewReader("10 apple pie\n")); !errors.Is(err, qerrors.ErrInvalidInput) {
		t.Errorf("missing colon error = %v, want ErrInvalidInput", err)
	}
}

func TestRunBatch_WritesTREC(t *testing.T) {
	e := newTestExecutor(t, nil)
	queries := []Query{{"1", "dog"}, {"2", "cat"}, {"3", "the"}}
	var buf bytes.Buffer
	stats, err := e.RunBatch(context.Background(), queries, model.NewRankedBoolean(),
		BatchOptions{Limit: 10, Concurrency: 2, RunID: "run"}, &buf)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	want := "1 Q0 d1 1 2.000000000000000000 run\n" +
		"1 Q0 d0 2 1.000000000000000000 run\n" +
		"2 Q0 d2 1 1.000000000000000000 run\n" +
		"3 Q0 dummy 1 0 run\n"
	if buf.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", buf.String(), want)
	}
	if stats.Queries != 3 || stats.Empty != 1 {
		t.Errorf("stats = %+v, want 3 queries and 1 empty", stats)
	}
}

func TestRunBatch_ConcurrencyDoesNotChangeOutput(t *testing.T) {
	e := newTestExecutor(t, nil)
	var queries []Query
	for i := 0; i < 40; i++ {
		text := []string{"dog", "cat", "#or(dog cat)", "#near/1(bites dog)", "man"}[i%5]
		queries = append(queries, Query{ID: fmt.Sprint(i), Text: text})
	}
	run := func(concurrency int) string {
		var buf bytes.Buffer
		_, err := e.RunBatch(context.Background(), queries, model.NewRankedBoolean(),
			BatchOptions{Limit: 5, Concurrency: concurrency, RunID: "r"}, &buf)
		if err != nil {
			t.Fatalf("RunBatch(%d): %v", concurrency, err)
		}
		return buf.String()
	}
	if serial, parallel := run(1), run(8); serial != parallel {
		t.Error("parallel batch output differs from serial output")
	}
}

func TestRunBatch_FailureWritesNothing(t *testing.T) {
	e := newTestExecutor(t, nil)
	queries := []Query{{"1", "dog"}, {"2", "#near/x(dog)"}}
	var buf bytes.Buffer
	_, err := e.RunBatch(context.Background(), queries, model.NewRankedBoolean(),
		BatchOptions{Limit: 10, Concurrency: 2, RunID: "r"}, &buf)
	if !errors.Is(err, qerrors.ErrInvalidQuery) {
		t.Fatalf("error = %v, want ErrInvalidQuery", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %q after failure", buf.String())
	}
}

// lostDocStore fails external id lookups for one document.
type lostDocStore struct {
	index.Store
	lost int
}

func (s lostDocStore) ExternalID(docID int) (string, error) {
	if docID == s.lost {
		return "", fmt.Errorf("%w: internal id %d", qerrors.ErrDocumentNotFound, docID)
	}
	return s.Store.ExternalID(docID)
}

func TestRunBatch_IDLookupFailureWritesNothing(t *testing.T) {
	base := newTestExecutor(t, nil)
	e := New(lostDocStore{Store: base.store, lost: 2}, parser.New("body"), nil)

	// Enough output ahead of the failing query to overflow a write buffer.
	var queries []Query
	for i := 0; i < 200; i++ {
		queries = append(queries, Query{ID: fmt.Sprint(i), Text: "dog"})
	}
	queries = append(queries, Query{ID: "lost", Text: "cat"})

	var buf bytes.Buffer
	_, err := e.RunBatch(context.Background(), queries, model.NewRankedBoolean(),
		BatchOptions{Limit: 10, Concurrency: 4, RunID: "r"}, &buf)
	if !errors.Is(err, qerrors.ErrDocumentNotFound) {
		t.Fatalf("error = %v, want ErrDocumentNotFound", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes before the lookup failure", buf.Len())
	}
}
