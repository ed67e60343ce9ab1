// Package executor runs parsed queries against a posting store: it builds
// the operator tree, evaluates it under a retrieval model, ranks the result
// list and maps docids back to external ids.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/query"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/results"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/tracing"
)

type SearchResult struct {
	Query     string      `json:"query"`
	Model     string      `json:"model"`
	TotalHits int         `json:"total_hits"`
	Results   []ScoredDoc `json:"results"`
}

type ScoredDoc struct {
	DocID      int     `json:"doc_id"`
	ExternalID string  `json:"external_id"`
	Score      float64 `json:"score"`
}

type Executor struct {
	store   index.Store
	parser  *parser.Parser
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns an Executor. m may be nil when metrics are disabled.
func New(store index.Store, p *parser.Parser, m *metrics.Metrics) *Executor {
	return &Executor{
		store:   store,
		parser:  p,
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Rank parses raw, evaluates it under m and returns every matching document
// sorted by descending score. A query with no surviving terms yields an
// empty list.
func (e *Executor) Rank(ctx context.Context, raw string, m model.Model) (*results.List, error) {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "evaluate")
	defer span.End()
	span.SetAttr("model", m.Kind.String())

	_, parseSpan := tracing.StartChildSpan(ctx, "parse")
	plan, err := e.parser.Parse(raw, m)
	parseSpan.End()
	if err != nil {
		e.observe(m, "error", start, 0)
		return nil, fmt.Errorf("parsing query %q: %w", raw, err)
	}
	if plan.Empty() {
		e.observe(m, "empty", start, 0)
		return results.NewList(), nil
	}
	span.SetAttr("tree", plan.Root.String())

	list, err := query.Evaluate(ctx, plan.Root, m, e.store)
	if err != nil {
		e.observe(m, "error", start, 0)
		return nil, fmt.Errorf("evaluating %s: %w", plan.Root, err)
	}
	list.Sort()
	span.SetAttr("matches", list.Len())
	e.observe(m, "ok", start, list.Len())

	e.logger.Debug("query evaluated",
		"query", raw,
		"model", m.Kind.String(),
		"matches", list.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return list, nil
}

// Execute ranks raw and returns the top limit documents with their external
// ids. TotalHits counts every matching document, not only those returned.
func (e *Executor) Execute(ctx context.Context, raw string, m model.Model, limit int) (*SearchResult, error) {
	list, err := e.Rank(ctx, raw, m)
	if err != nil {
		return nil, err
	}
	total := list.Len()
	if limit > 0 {
		list.Truncate(limit)
	}
	docs := make([]ScoredDoc, 0, list.Len())
	for _, entry := range list.Entries() {
		ext, err := e.store.ExternalID(entry.DocID)
		if err != nil {
			return nil, fmt.Errorf("mapping doc %d: %w", entry.DocID, err)
		}
		docs = append(docs, ScoredDoc{DocID: entry.DocID, ExternalID: ext, Score: entry.Score})
	}
	return &SearchResult{
		Query:     raw,
		Model:     m.Kind.String(),
		TotalHits: total,
		Results:   docs,
	}, nil
}

func (e *Executor) observe(m model.Model, outcome string, start time.Time, matches int) {
	if e.metrics == nil {
		return
	}
	name := m.Kind.String()
	e.metrics.EvaluationsTotal.WithLabelValues(name, outcome).Inc()
	e.metrics.EvaluationLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if outcome != "error" {
		e.metrics.ResultsCount.WithLabelValues(name).Observe(float64(matches))
	}
}
