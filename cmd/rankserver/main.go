package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/events"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/handler"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/resilience"
)

const defaultK = 10

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting rank server", "port", cfg.Server.Port, "default_ranker", cfg.Ranker.Method)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	eng, err := engine.Open(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to build index", "error", err)
		os.Exit(1)
	}

	searchers := make(map[string]handler.Searcher)
	for _, name := range ranking.Names() {
		exec, err := eng.Executor(name, cfg.Ranker.Params)
		if err != nil {
			slog.Error("failed to create ranker", "ranker", name, "error", err)
			os.Exit(1)
		}
		searchers[name] = exec
	}
	defaultRanker := strings.ToLower(cfg.Ranker.Method)
	if _, ok := searchers[defaultRanker]; !ok {
		slog.Error("unknown default ranker", "ranker", cfg.Ranker.Method, "known", ranking.Names())
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if eng.Index.NumDocs() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", eng.Index.NumDocs())}
		}
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "empty corpus"}
	})

	opts := []handler.Option{handler.WithMetrics(m)}
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			opts = append(opts, handler.WithCache(newResultCache(redisClient, cfg.Redis.CacheTTL, m)))
			checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	aggregator := events.NewAggregator()
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer producer.Close()
		collector := events.NewCollector(producer, 10000)
		collector.Start(ctx)
		defer collector.Close()
		opts = append(opts, handler.WithTracker(collector))

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents, aggregator.HandleMessage)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				slog.Error("query event consumer failed", "error", err)
			}
		}()
		slog.Info("query events enabled", "topic", cfg.Kafka.Topics.QueryEvents, "group", cfg.Kafka.ConsumerGroup)
	} else {
		opts = append(opts, handler.WithTracker(aggregator))
	}
	if cfg.Analytics.Persist {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, stats snapshots disabled", "error", err)
		} else {
			defer db.Close()
			checker.Register("postgres", health.Ping(db.Ping, health.StatusDegraded))
			snapshotsDone := make(chan struct{})
			go func() {
				defer close(snapshotsDone)
				events.NewSnapshotStore(db.DB).Run(ctx, aggregator, cfg.Analytics.SnapshotInterval)
			}()
			defer func() { <-snapshotsDone }()
		}
	}

	h := handler.New(eng.Builder, eng.Index, searchers, handler.Config{
		DefaultRanker: defaultRanker,
		DefaultK:      min(defaultK, cfg.Search.NumResults),
		MaxK:          cfg.Search.NumResults,
	}, opts...)

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /api/v1/analytics", aggregator.StatsHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Metrics(m),
	}
	if cfg.Server.RateLimit > 0 {
		chain = append(chain, middleware.RateLimit(middleware.NewLimiter(ctx, cfg.Server.RateLimit, cfg.Server.RateWindow)))
		slog.Info("rate limiting enabled", "limit", cfg.Server.RateLimit, "window", cfg.Server.RateWindow)
	}
	chain = append(chain, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, chain...),
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

	slog.Info("rank server listening", "addr", server.Addr, "rankers", ranking.Names())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("rank server stopped")
}

func newResultCache(store cache.Store, ttl time.Duration, m *metrics.Metrics) *cache.QueryCache {
	return cache.New(store, ttl, m, cache.WithBreaker(resilience.NewBreaker("redis", 5, 30*time.Second)))
}
