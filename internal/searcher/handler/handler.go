// Package handler exposes query evaluation over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/config"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/tracing"
)

type SearchExecutor interface {
	Execute(ctx context.Context, raw string, m model.Model, limit int) (*executor.SearchResult, error)
}

// EventTracker receives one event per evaluated query.
type EventTracker interface {
	Track(key string, event any)
}

type Handler struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	tracker      EventTracker
	retrieval    config.RetrievalConfig
	defaultModel model.Model
	traceSpans   bool
	logger       *slog.Logger
}

// New builds a Handler. queryCache and tracker may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, tracker EventTracker, cfg *config.Config) (*Handler, error) {
	m, err := model.FromConfig(cfg.Retrieval)
	if err != nil {
		return nil, fmt.Errorf("default retrieval model: %w", err)
	}
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		tracker:      tracker,
		retrieval:    cfg.Retrieval,
		defaultModel: m,
		traceSpans:   cfg.Tracing.Enabled,
		logger:       slog.Default().With("component", "search-handler"),
	}, nil
}

// Register mounts the search routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "search", middleware.GetRequestID(r.Context()))
	log := logger.FromContext(ctx)

	query, m, limit, err := h.parseRequest(r)
	if err != nil {
		span.End()
		h.writeFailure(w, log, query, err)
		return
	}
	span.SetAttr("query", query)
	span.SetAttr("limit", limit)

	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, m.Kind.String(), limit, func(ctx context.Context) (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, query, m, limit)
		})
	} else {
		result, err = h.executor.Execute(ctx, query, m, limit)
	}
	span.End()
	latency := time.Since(start)
	if h.traceSpans {
		span.Log(log)
	}

	if err != nil {
		h.track(ctx, m, analytics.NewEvaluationEvent(query, m.Kind.String(), 0, 0, latency, false, err))
		h.writeFailure(w, log.With("model", m.Kind.String()), query, err)
		return
	}

	log.Info("search completed",
		"query", query,
		"model", result.Model,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.track(ctx, m, analytics.NewEvaluationEvent(query, m.Kind.String(), result.TotalHits, len(result.Results), latency, cacheHit, nil))
	h.writeJSON(w, http.StatusOK, result)
}

// parseRequest reads q, model and limit. A missing model falls back to the
// configured one; limit is capped at retrieval.maxResults.
func (h *Handler) parseRequest(r *http.Request) (string, model.Model, int, error) {
	params := r.URL.Query()
	query := params.Get("q")
	if query == "" {
		return "", model.Model{}, 0, qerrors.New(qerrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required")
	}

	m := h.defaultModel
	if name := params.Get("model"); name != "" {
		var err error
		if m, err = model.Named(name, h.retrieval); err != nil {
			return query, model.Model{}, 0, err
		}
	}

	limit := h.retrieval.DefaultLimit
	if raw := params.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return query, model.Model{}, 0, qerrors.Newf(qerrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer, got %q", raw)
		}
		limit = min(parsed, h.retrieval.MaxResults)
	}
	return query, m, limit, nil
}

// writeFailure maps err to a status. Server-side failures are logged and
// hidden behind a generic message.
func (h *Handler) writeFailure(w http.ResponseWriter, log *slog.Logger, query string, err error) {
	status := qerrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, status, "search failed")
		return
	}
	log.Info("search rejected", "query", query, "error", err)
	h.writeError(w, status, err.Error())
}

func (h *Handler) track(ctx context.Context, m model.Model, ev analytics.EvaluationEvent) {
	if h.tracker == nil {
		return
	}
	ev.RequestID = middleware.GetRequestID(ctx)
	h.tracker.Track(m.Kind.String(), ev)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
