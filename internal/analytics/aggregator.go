package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/kafka"
)

// maxLatencySamples bounds the window used for latency percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalEvaluations  int64            `json:"total_evaluations"`
	Errors            int64            `json:"errors"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	ByModel           map[string]int64 `json:"by_model"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	Batches           int64            `json:"batches"`
	BatchQueries      int64            `json:"batch_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds evaluation events into in-memory statistics.
type Aggregator struct {
	mu                sync.RWMutex
	totalEvaluations  int64
	errors            int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	batches           int64
	batchQueries      int64
	byModel           map[string]int64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byModel:           make(map[string]int64),
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		if err := agg.RecordJSON(value); err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
		}
		return nil
	}
}

// PublishBatch records events in-process, letting the aggregator stand in
// for Kafka when no broker is configured.
func (a *Aggregator) PublishBatch(_ context.Context, events []kafka.Event) error {
	for _, e := range events {
		switch v := e.Value.(type) {
		case EvaluationEvent:
			a.recordEvaluation(v)
		case BatchEvent:
			a.recordBatch(v)
		case []byte:
			if err := a.RecordJSON(v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported analytics event %T", e.Value)
		}
	}
	return nil
}

// RecordJSON decodes a serialized event and records it.
func (a *Aggregator) RecordJSON(value []byte) error {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(value, &head); err != nil {
		return fmt.Errorf("decoding event type: %w", err)
	}
	switch head.Type {
	case EventBatch:
		ev, err := kafka.DecodeJSON[BatchEvent](value)
		if err != nil {
			return err
		}
		a.recordBatch(ev)
	case EventSearch, EventZeroResult, EventError:
		ev, err := kafka.DecodeJSON[EvaluationEvent](value)
		if err != nil {
			return err
		}
		a.recordEvaluation(ev)
	default:
		return fmt.Errorf("unknown event type %q", head.Type)
	}
	return nil
}

func (a *Aggregator) recordEvaluation(event EvaluationEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalEvaluations++
	a.byModel[event.Model]++
	if event.Type == EventError {
		a.errors++
		return
	}
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if event.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	}
	a.queryCounts[event.Query]++
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) recordBatch(event BatchEvent) {
	a.mu.Lock()
	a.batches++
	a.batchQueries += int64(event.Queries)
	a.mu.Unlock()
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalEvaluations: a.totalEvaluations,
		Errors:           a.errors,
		CacheHits:        a.cacheHits,
		CacheMisses:      a.cacheMisses,
		ZeroResultCount:  a.zeroResults,
		ByModel:          make(map[string]int64, len(a.byModel)),
		Batches:          a.batches,
		BatchQueries:     a.batchQueries,
	}
	for m, n := range a.byModel {
		stats.ByModel[m] = n
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalEvaluations) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then by query so ties are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

// StatsHandler serves the current statistics as JSON.
func (a *Aggregator) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(a.Stats()); err != nil {
			a.logger.Error("failed to write analytics response", "error", err)
		}
	}
}
