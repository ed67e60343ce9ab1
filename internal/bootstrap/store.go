// Package bootstrap wires the posting store selected by configuration. Both
// binaries share it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index/pgstore"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/resilience"
)

// Store is an opened posting store plus its health check and cleanup.
type Store struct {
	index.Store
	Check health.Check
	close func() error
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStore opens the store named by cfg.Store.Driver. m may be nil.
func OpenStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return openMemory(cfg.Store.CorpusPath, m)
	case "postgres":
		return openPostgres(ctx, cfg, m)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openMemory(path string, m *metrics.Metrics) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	idx := index.NewMemoryIndex()
	n, err := idx.LoadJSONL(f)
	if err != nil {
		return nil, fmt.Errorf("loading corpus %s: %w", path, err)
	}
	if m != nil {
		m.DocumentsLoaded.Set(float64(n))
	}
	return &Store{
		Store: idx,
		Check: func(context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents in memory", n)}
		},
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Store, error) {
	client, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	store := pgstore.New(client.DB, pgstore.Options{Metrics: m})
	if err := store.EnsureSchema(ctx); err != nil {
		client.Close()
		return nil, err
	}
	if cfg.Store.CorpusPath != "" {
		if err := importIfEmpty(ctx, client, store, cfg.Store.CorpusPath); err != nil {
			client.Close()
			return nil, err
		}
	}
	n, err := store.NumDocs()
	if err != nil {
		client.Close()
		return nil, err
	}
	if m != nil {
		m.DocumentsLoaded.Set(float64(n))
	}
	return &Store{
		Store: store,
		Check: func(ctx context.Context) health.ComponentHealth {
			if err := client.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			if state := store.BreakerState(); state != resilience.StateClosed {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit breaker " + state.String()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		},
		close: client.Close,
	}, nil
}

// importIfEmpty seeds an empty database from the corpus file, if it exists.
func importIfEmpty(ctx context.Context, client *postgres.Client, store *pgstore.Store, path string) error {
	n, err := store.NumDocs()
	if err != nil || n > 0 {
		return err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()
	count, err := pgstore.Import(ctx, client, f)
	if err != nil {
		return err
	}
	store.Invalidate()
	slog.Info("corpus imported into postgres", "documents", count, "path", path)
	return nil
}
