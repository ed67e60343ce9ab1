// Package cache stores search results in Redis, keyed by the normalized
// query, the retrieval model and the result limit.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/redis"
)

const (
	keyPrefix = "search:"

	defaultComputeTimeout = 30 * time.Second
)

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	client         Backend
	ttl            time.Duration
	computeTimeout time.Duration
	group          singleflight.Group
	metrics        *metrics.Metrics
	logger         *slog.Logger
	hits           atomic.Int64
	misses         atomic.Int64
}

// New returns a cache over client. m may be nil.
func New(client Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:         client,
		ttl:            ttl,
		computeTimeout: defaultComputeTimeout,
		metrics:        m,
		logger:         slog.Default().With("component", "query-cache"),
	}
}

// SetComputeTimeout bounds shared computations started after the call.
// Non-positive values are ignored.
func (c *QueryCache) SetComputeTimeout(d time.Duration) {
	if d > 0 {
		c.computeTimeout = d
	}
}

func (c *QueryCache) Get(ctx context.Context, query, model string, limit int) (*executor.SearchResult, bool) {
	key := buildKey(query, model, limit)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", query, "model", model, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, query, model string, limit int, result *executor.SearchResult) {
	key := buildKey(query, model, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or computes, stores and returns a new
// one. Concurrent misses for the same key share a single computation. The
// boolean reports a cache hit.
//
// The shared computation runs on a context detached from every caller's
// cancellation and bounded by the compute timeout, so one caller giving up
// neither fails the others nor aborts the work. A caller whose ctx ends
// first returns ctx.Err() while the computation carries on.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query, model string,
	limit int,
	computeFn func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, query, model, limit); ok {
		return result, true, nil
	}
	key := buildKey(query, model, limit)
	flight := c.group.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()
		result, err := computeFn(flightCtx)
		if err != nil {
			return nil, err
		}
		c.Set(flightCtx, query, model, limit, result)
		return result, nil
	})
	select {
	case res := <-flight:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*executor.SearchResult), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(query, model string, limit int) string {
	raw := fmt.Sprintf("%s|%s|limit=%d", normalizeQuery(query), strings.ToLower(model), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery lowercases the query and collapses whitespace, including
// around parentheses. Argument order is kept since #near and the weighted
// operators depend on it.
func normalizeQuery(query string) string {
	q := strings.ToLower(query)
	q = strings.ReplaceAll(q, "(", " ( ")
	q = strings.ReplaceAll(q, ")", " ) ")
	return strings.Join(strings.Fields(q), " ")
}
