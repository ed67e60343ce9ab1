// Command qryeval evaluates a file of "qid:query" lines and writes a TREC
// rank file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/results"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	queriesPath := flag.String("queries", "", "query file, one qid:query per line (default stdin)")
	outPath := flag.String("out", "", "TREC rank file to write (default stdout)")
	modelName := flag.String("model", "", "retrieval model, overriding retrieval.algorithm")
	limit := flag.Int("limit", 0, "documents per query (default retrieval.maxResults)")
	initialPath := flag.String("initial", "", "TREC rank file whose rankings replace evaluation for the queries it lists")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, options{
		queries: *queriesPath,
		out:     *outPath,
		model:   *modelName,
		limit:   *limit,
		initial: *initialPath,
	}); err != nil {
		slog.Error("evaluation failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	queries string
	out     string
	model   string
	limit   int
	initial string
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	if opts.model == "" {
		opts.model = cfg.Retrieval.Algorithm
	}
	m, err := model.Named(opts.model, cfg.Retrieval)
	if err != nil {
		return err
	}
	if opts.limit <= 0 {
		opts.limit = cfg.Retrieval.MaxResults
	}

	queries, err := readQueries(opts.queries)
	if err != nil {
		return err
	}

	store, err := bootstrap.OpenStore(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("opening posting store: %w", err)
	}
	defer store.Close()

	var initial map[string]*results.List
	if opts.initial != "" {
		if initial, err = readInitial(opts.initial, store); err != nil {
			return err
		}
	}

	if cfg.Tracing.Enabled {
		var span *tracing.Span
		ctx, span = tracing.StartSpan(ctx, "qryeval", tracing.NewTraceID())
		defer func() {
			span.End()
			span.Log(slog.Default())
		}()
	}

	out, closeOut, err := openOutput(opts.out)
	if err != nil {
		return err
	}
	exec := executor.New(store, parser.New(cfg.Retrieval.DefaultField), nil)
	stats, err := exec.RunBatch(ctx, queries, m, executor.BatchOptions{
		Limit:       opts.limit,
		Concurrency: cfg.Retrieval.BatchConcurrency,
		RunID:       cfg.Retrieval.RunID,
		Initial:     initial,
	}, out)
	if cerr := closeOut(); err == nil && cerr != nil {
		err = fmt.Errorf("closing %s: %w", opts.out, cerr)
	}
	if err != nil {
		return err
	}

	if cfg.Kafka.Enabled {
		publishRun(ctx, cfg, analytics.NewBatchEvent(cfg.Retrieval.RunID, m.Kind.String(), stats.Queries, stats.Empty, stats.Duration))
	}
	return nil
}

func readQueries(path string) ([]executor.Query, error) {
	if path == "" {
		return executor.ReadQueries(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening query file: %w", err)
	}
	defer f.Close()
	return executor.ReadQueries(f)
}

func readInitial(path string, ids results.IDMapper) (map[string]*results.List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening initial ranking: %w", err)
	}
	defer f.Close()
	lists, _, err := results.ReadTREC(f, ids)
	if err != nil {
		return nil, fmt.Errorf("reading initial ranking %s: %w", path, err)
	}
	return lists, nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating rank file: %w", err)
	}
	return f, f.Close, nil
}

// publishRun reports the run to the analytics topic. A broker outage only
// costs the event.
func publishRun(ctx context.Context, cfg *config.Config, ev analytics.BatchEvent) {
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EvaluationEvents)
	defer producer.Close()
	if err := producer.Publish(ctx, kafka.Event{Key: ev.RunID, Value: ev}); err != nil {
		slog.Warn("failed to publish batch event", "run_id", ev.RunID, "error", err)
	}
}
