// Package pgstore serves postings and document statistics from PostgreSQL.
//
// Positions are stored as INTEGER[] and read through pq.Array. Field length
// tables are read once per field and cached, since scoring asks for a
// document length on every match. Every query runs behind a circuit breaker
// with retries.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/postings"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/resilience"
)

// Schema creates the tables the store reads. Docids are dense and start at 0.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
    docid       INTEGER PRIMARY KEY,
    external_id TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS field_lengths (
    field  TEXT    NOT NULL,
    docid  INTEGER NOT NULL REFERENCES documents(docid),
    length INTEGER NOT NULL,
    PRIMARY KEY (field, docid)
);
CREATE TABLE IF NOT EXISTS postings (
    term      TEXT      NOT NULL,
    field     TEXT      NOT NULL,
    docid     INTEGER   NOT NULL REFERENCES documents(docid),
    positions INTEGER[] NOT NULL,
    PRIMARY KEY (term, field, docid)
);`

// Options tunes the store. Zero values select defaults.
type Options struct {
	QueryTimeout time.Duration
	Retry        resilience.RetryConfig
	Breaker      resilience.CircuitBreakerConfig
	Metrics      *metrics.Metrics
}

type fieldStats struct {
	lengths  map[int]int
	sumLen   int64
	docCount int64
}

// Store implements index.Store on a database/sql pool.
type Store struct {
	db      *sql.DB
	timeout time.Duration
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	fields  map[string]*fieldStats
	numDocs int64
	loaded  bool
}

func New(db *sql.DB, opts Options) *Store {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 10 * time.Second
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = func(err error) bool {
			return resilience.IsRetryable(err) && !errors.Is(err, qerrors.ErrInvalidPostings)
		}
	}
	// Malformed rows say nothing about the database's health.
	if opts.Breaker.IsFailure == nil {
		opts.Breaker.IsFailure = func(err error) bool {
			return resilience.IsFailure(err) && !errors.Is(err, qerrors.ErrInvalidPostings)
		}
	}
	if opts.Metrics != nil && opts.Breaker.OnStateChange == nil {
		gauge := opts.Metrics.CircuitBreakerState
		opts.Breaker.OnStateChange = func(name string, _, to resilience.State) {
			gauge.WithLabelValues(name).Set(float64(to))
		}
	}
	return &Store{
		db:      db,
		timeout: opts.QueryTimeout,
		retry:   opts.Retry,
		breaker: resilience.NewCircuitBreaker("pgstore", opts.Breaker),
		metrics: opts.Metrics,
		logger:  slog.Default().With("component", "pgstore"),
		fields:  make(map[string]*fieldStats),
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return qerrors.Store("creating schema", err)
	}
	return nil
}

// do runs fn with a per-attempt timeout behind the breaker and retry policy.
func (s *Store) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	retry := s.retry
	if s.metrics != nil {
		retries := s.metrics.StoreRetriesTotal.WithLabelValues(op)
		retry.OnRetry = func(int, error) { retries.Inc() }
	}
	err := resilience.Retry(ctx, "pgstore."+op, retry, func() error {
		return s.breaker.Execute(func() error {
			return resilience.WithTimeout(ctx, s.timeout, op, fn)
		})
	})
	status := "ok"
	if err != nil {
		status = "error"
		s.logger.Error("store operation failed", "operation", op, "error", err)
	}
	if s.metrics != nil {
		s.metrics.StoreRequestsTotal.WithLabelValues(op, status).Inc()
	}
	if err != nil {
		return qerrors.Store(op, err)
	}
	return nil
}

// BreakerState reports whether the store is currently failing fast.
func (s *Store) BreakerState() resilience.State {
	return s.breaker.GetState()
}

func (s *Store) InvertedList(ctx context.Context, term, field string) (*postings.InvertedList, error) {
	var list *postings.InvertedList
	err := s.do(ctx, "inverted_list", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT docid, positions FROM postings WHERE term = $1 AND field = $2 ORDER BY docid`,
			term, field)
		if err != nil {
			return err
		}
		defer rows.Close()

		l := postings.NewInvertedList(term, field)
		for rows.Next() {
			var docID int
			var raw []int64
			if err := rows.Scan(&docID, pq.Array(&raw)); err != nil {
				return err
			}
			positions := make([]int, len(raw))
			for i, p := range raw {
				positions[i] = int(p)
			}
			if err := l.Append(docID, positions); err != nil {
				return err
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		list = l
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inverted list %s.%s: %w", term, field, err)
	}
	return list, nil
}

func (s *Store) FieldLength(field string, docID int) (int, error) {
	n, err := s.NumDocs()
	if err != nil {
		return 0, err
	}
	if docID < 0 || int64(docID) >= n {
		return 0, fmt.Errorf("%w: docid %d", qerrors.ErrDocumentNotFound, docID)
	}
	fs, err := s.field(field)
	if err != nil {
		return 0, err
	}
	return fs.lengths[docID], nil
}

func (s *Store) SumFieldLengths(field string) (int64, error) {
	fs, err := s.field(field)
	if err != nil {
		return 0, err
	}
	return fs.sumLen, nil
}

func (s *Store) DocCount(field string) (int64, error) {
	fs, err := s.field(field)
	if err != nil {
		return 0, err
	}
	return fs.docCount, nil
}

func (s *Store) NumDocs() (int64, error) {
	s.mu.RLock()
	if s.loaded {
		n := s.numDocs
		s.mu.RUnlock()
		return n, nil
	}
	s.mu.RUnlock()

	var n int64
	err := s.do(context.Background(), "num_docs", func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	})
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.numDocs, s.loaded = n, true
	s.mu.Unlock()
	return n, nil
}

func (s *Store) ExternalID(docID int) (string, error) {
	var ext string
	found, err := s.lookup(context.Background(), "external_id",
		`SELECT external_id FROM documents WHERE docid = $1`, docID, &ext)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: docid %d", qerrors.ErrDocumentNotFound, docID)
	}
	return ext, nil
}

func (s *Store) InternalID(externalID string) (int, error) {
	var docID int
	found, err := s.lookup(context.Background(), "internal_id",
		`SELECT docid FROM documents WHERE external_id = $1`, externalID, &docID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: %q", qerrors.ErrDocumentNotFound, externalID)
	}
	return docID, nil
}

// lookup scans a single-row, single-column query into dest. A missing row is
// not a store failure, so it neither trips the breaker nor retries.
func (s *Store) lookup(ctx context.Context, op, query string, arg, dest any) (bool, error) {
	found := true
	err := s.do(ctx, op, func(ctx context.Context) error {
		err := s.db.QueryRowContext(ctx, query, arg).Scan(dest)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	return found, err
}

// Invalidate drops cached statistics so that rows written since are seen.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.fields = make(map[string]*fieldStats)
	s.loaded = false
	s.mu.Unlock()
}

func (s *Store) field(field string) (*fieldStats, error) {
	s.mu.RLock()
	fs, ok := s.fields[field]
	s.mu.RUnlock()
	if ok {
		return fs, nil
	}

	var loaded *fieldStats
	err := s.do(context.Background(), "field_lengths", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `SELECT docid, length FROM field_lengths WHERE field = $1`, field)
		if err != nil {
			return err
		}
		defer rows.Close()
		// Each attempt scans into its own stats so a retry never adds onto a
		// partial read.
		stats := &fieldStats{lengths: make(map[int]int)}
		for rows.Next() {
			var docID, length int
			if err := rows.Scan(&docID, &length); err != nil {
				return err
			}
			stats.lengths[docID] = length
			stats.sumLen += int64(length)
			stats.docCount++
		}
		if err := rows.Err(); err != nil {
			return err
		}
		loaded = stats
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.fields[field]; ok {
		return existing, nil
	}
	s.fields[field] = loaded
	s.logger.Debug("field statistics cached", "field", field, "documents", loaded.docCount)
	return loaded, nil
}
