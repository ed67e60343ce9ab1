package executor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/results"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/tracing"
)

// Query is one line of a query file.
type Query struct {
	ID   string
	Text string
}

// ReadQueries parses a query file with one "qid:query" per line. Blank lines
// are skipped.
func ReadQueries(r io.Reader) ([]Query, error) {
	var queries []Query
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		qid, text, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: missing ':' in %q", qerrors.ErrInvalidInput, lineNo, line)
		}
		queries = append(queries, Query{ID: strings.TrimSpace(qid), Text: strings.TrimSpace(text)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}
	return queries, nil
}

// BatchOptions controls a batch run.
type BatchOptions struct {
	Limit       int
	Concurrency int
	RunID       string
	// Initial holds rankings read from an earlier run. A query whose id is
	// present takes that list instead of being evaluated.
	Initial map[string]*results.List
}

// BatchStats summarizes a completed batch run.
type BatchStats struct {
	Queries  int
	Empty    int
	Duration time.Duration
}

// RunBatch evaluates every query under m and writes a TREC rank file to w in
// input order. Each query gets its own operator tree, so up to
// opts.Concurrency queries are evaluated at once. Every query's lines,
// external ids included, are rendered before the first byte reaches w, so
// an evaluation or id lookup failure cancels the remaining queries and
// leaves w untouched.
func (e *Executor) RunBatch(ctx context.Context, queries []Query, m model.Model, opts BatchOptions, w io.Writer) (BatchStats, error) {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "batch")
	defer span.End()
	span.SetAttr("queries", len(queries))

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	rendered := make([][]byte, len(queries))
	empty := make([]bool, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, q := range queries {
		initial, reused := opts.Initial[q.ID]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			list := initial
			if reused {
				e.countBatch("reused")
			} else {
				var err error
				if list, err = e.Rank(gctx, q.Text, m); err != nil {
					e.countBatch("error")
					return fmt.Errorf("query %s: %w", q.ID, err)
				}
				e.countBatch("ok")
			}
			var buf bytes.Buffer
			if err := results.WriteTREC(&buf, q.ID, list, e.store, opts.Limit, opts.RunID); err != nil {
				return fmt.Errorf("writing results: %w", err)
			}
			rendered[i] = buf.Bytes()
			empty[i] = list.Len() == 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Error("batch evaluation failed", "error", err)
		return BatchStats{}, err
	}

	stats := BatchStats{Queries: len(queries)}
	bw := bufio.NewWriter(w)
	for i := range queries {
		if empty[i] {
			stats.Empty++
		}
		if _, err := bw.Write(rendered[i]); err != nil {
			return BatchStats{}, fmt.Errorf("writing results: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return BatchStats{}, fmt.Errorf("writing results: %w", err)
	}
	stats.Duration = time.Since(start)

	e.logger.Info("batch evaluated",
		"queries", stats.Queries,
		"empty", stats.Empty,
		"model", m.Kind.String(),
		"concurrency", concurrency,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return stats, nil
}

func (e *Executor) countBatch(status string) {
	if e.metrics != nil {
		e.metrics.BatchQueriesTotal.WithLabelValues(status).Inc()
	}
}
