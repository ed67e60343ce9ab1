package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"model", cfg.Retrieval.Algorithm,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, m.Handler())
		defer shutdownMetrics(context.Background())
	}

	store, err := bootstrap.OpenStore(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to open posting store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	exec := executor.New(store, parser.New(cfg.Retrieval.DefaultField), m)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			queryCache.SetComputeTimeout(cfg.Server.WriteTimeout)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	var publisher analytics.Publisher = aggregator
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EvaluationEvents)
		defer producer.Close()
		publisher = producer

		consumer = kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.EvaluationEvents, analytics.HandleEvent(aggregator))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics routed through kafka", "topic", cfg.Kafka.Topics.EvaluationEvents)
	}
	collector := analytics.NewCollector(publisher, 10000, 100, 5*time.Second)
	collector.Start(ctx)
	defer collector.Close()

	checker := health.NewChecker(2 * time.Second)
	checker.Register("store", store.Check)
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("analytics", func(ctx context.Context) health.ComponentHealth {
		if dropped := collector.Dropped(); dropped > 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: fmt.Sprintf("%d events dropped", dropped)}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	if consumer != nil {
		checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
			msg := fmt.Sprintf("lag %d, processed %d, failed %d", consumer.Lag(), consumer.Processed(), consumer.Failed())
			if consumer.Failed() > 0 {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: msg}
			}
			return health.ComponentHealth{Status: health.StatusUp, Message: msg}
		})
	}

	h, err := handler.New(exec, queryCache, collector, cfg)
	if err != nil {
		slog.Error("failed to create search handler", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", aggregator.StatsHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", m.Handler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.WriteTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
