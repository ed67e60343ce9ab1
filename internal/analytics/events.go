// Package analytics tracks query evaluation events. A Collector batches
// events and hands them to a Publisher (Kafka, or an Aggregator directly);
// the Aggregator folds them into the statistics served by Handler.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventError      EventType = "error"
	EventBatch      EventType = "batch"
)

// EvaluationEvent describes one evaluated query.
type EvaluationEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Model     string    `json:"model"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// BatchEvent describes one query-file run.
type BatchEvent struct {
	Type       EventType `json:"type"`
	RunID      string    `json:"run_id"`
	Model      string    `json:"model"`
	Queries    int       `json:"queries"`
	Empty      int       `json:"empty"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvaluationEvent classifies an evaluation by its outcome.
func NewEvaluationEvent(query, model string, totalHits, returned int, latency time.Duration, cacheHit bool, err error) EvaluationEvent {
	ev := EvaluationEvent{
		Type:      EventSearch,
		Query:     query,
		Model:     model,
		TotalHits: totalHits,
		Returned:  returned,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
	}
	switch {
	case err != nil:
		ev.Type = EventError
		ev.Error = err.Error()
	case totalHits == 0:
		ev.Type = EventZeroResult
	}
	return ev
}

// NewBatchEvent summarizes a finished query-file run.
func NewBatchEvent(runID, model string, queries, empty int, duration time.Duration) BatchEvent {
	return BatchEvent{
		Type:       EventBatch,
		RunID:      runID,
		Model:      model,
		Queries:    queries,
		Empty:      empty,
		DurationMs: duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
}
