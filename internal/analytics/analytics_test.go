package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/kafka"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollector_FlushesOnBatchSizeAndClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 2, time.Hour)
	c.Start(context.Background())
	for i := 0; i < 5; i++ {
		c.Track("BM25", i)
	}
	c.Close()

	if got := pub.count(); got != 5 {
		t.Fatalf("published %d events, want 5", got)
	}
	if len(pub.batches[0]) != 2 {
		t.Errorf("first batch has %d events, want 2", len(pub.batches[0]))
	}
	c.Track("BM25", "late")
	c.Close()
}

func TestCollector_FlushesOnInterval(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 100, 10*time.Millisecond)
	c.Start(context.Background())
	defer c.Close()
	c.Track("Indri", "event")

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event never flushed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCollector_DropsWhenFull(t *testing.T) {
	c := NewCollector(&recordingPublisher{}, 1, 10, time.Hour)
	c.Track("k", 1)
	c.Track("k", 2)
	if c.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", c.Dropped())
	}
	c.Close()
}

func TestCollector_PublishErrorDoesNotStop(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 10, 1, time.Hour)
	c.Start(context.Background())
	c.Track("k", 1)
	c.Track("k", 2)
	c.Close()
	if pub.count() != 0 {
		t.Error("failed batches were recorded")
	}
}

func TestAggregator_Stats(t *testing.T) {
	agg := NewAggregator()
	events := []kafka.Event{
		{Key: "BM25", Value: NewEvaluationEvent("dog", "BM25", 3, 3, 4*time.Millisecond, false, nil)},
		{Key: "BM25", Value: NewEvaluationEvent("dog", "BM25", 3, 3, 1*time.Millisecond, true, nil)},
		{Key: "Indri", Value: NewEvaluationEvent("zebra", "Indri", 0, 0, 2*time.Millisecond, false, nil)},
		{Key: "BM25", Value: NewEvaluationEvent("#and(a b)", "BM25", 0, 0, 0, false, errors.New("unsupported"))},
		{Key: "batch", Value: BatchEvent{Type: EventBatch, Queries: 7}},
	}
	if err := agg.PublishBatch(context.Background(), events); err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}

	s := agg.Stats()
	if s.TotalEvaluations != 4 || s.Errors != 1 {
		t.Errorf("evaluations=%d errors=%d, want 4 and 1", s.TotalEvaluations, s.Errors)
	}
	if s.CacheHits != 1 || s.CacheMisses != 2 {
		t.Errorf("hits=%d misses=%d, want 1 and 2", s.CacheHits, s.CacheMisses)
	}
	if s.ZeroResultCount != 1 || len(s.ZeroResultQueries) != 1 || s.ZeroResultQueries[0].Query != "zebra" {
		t.Errorf("zero results = %d %+v", s.ZeroResultCount, s.ZeroResultQueries)
	}
	if s.ByModel["BM25"] != 3 || s.ByModel["Indri"] != 1 {
		t.Errorf("by model = %v", s.ByModel)
	}
	if len(s.TopQueries) == 0 || s.TopQueries[0] != (QueryCount{Query: "dog", Count: 2}) {
		t.Errorf("top queries = %+v", s.TopQueries)
	}
	if s.Batches != 1 || s.BatchQueries != 7 {
		t.Errorf("batches=%d queries=%d", s.Batches, s.BatchQueries)
	}
	if s.P99LatencyMs != 4 {
		t.Errorf("p99 = %d, want 4", s.P99LatencyMs)
	}
}

func TestHandleEvent_DecodesJSON(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	raw, err := json.Marshal(NewEvaluationEvent("cat", "RankedBoolean", 2, 2, time.Millisecond, false, nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := handle(context.Background(), []byte("RankedBoolean"), raw); err != nil {
		t.Fatal(err)
	}
	if err := handle(context.Background(), nil, []byte("not json")); err != nil {
		t.Errorf("bad messages must be skipped, got %v", err)
	}
	if got := agg.Stats().ByModel["RankedBoolean"]; got != 1 {
		t.Errorf("recorded %d RankedBoolean events, want 1", got)
	}
}

func TestAggregator_StatsHandler(t *testing.T) {
	agg := NewAggregator()
	agg.PublishBatch(context.Background(), []kafka.Event{
		{Value: NewEvaluationEvent("dog", "BM25", 1, 1, 0, false, nil)},
	})
	rec := httptest.NewRecorder()
	agg.StatsHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var s AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.TotalEvaluations != 1 {
		t.Errorf("total = %d, want 1", s.TotalEvaluations)
	}
}
