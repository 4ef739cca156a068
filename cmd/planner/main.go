package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/export"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/planner"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/planner/cache"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/planner/handler"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting reading planner", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("postgres connected", "host", cfg.Postgres.Host, "table", cfg.Postgres.ChapterTable)

	chapters := source.NewResilient(source.NewPostgres(db), source.ResilientConfig{
		Retry: resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second},
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		AttemptTimeout: 5 * time.Second,
		TTL:            cfg.Planner.UnitsTTL,
	}, m)

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, plan caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			slog.Info("plan cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	planCache := cache.New(redisClient, cfg.Redis.CacheTTL, m)

	aggregator := analytics.NewAggregator(nil)
	var tracker analytics.Tracker = aggregator
	var kafkaPing func(context.Context) error
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.PlanEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector

		aggregator.SetConsumer(kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(aggregator)))
		go func() {
			if err := aggregator.Start(ctx); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		kafkaPing = func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}
		slog.Info("plan events enabled", "topic", topic, "brokers", cfg.Kafka.Brokers)
	}

	var snapshots *analytics.Store
	if cfg.Analytics.SnapshotInterval > 0 {
		snapshots = analytics.NewStore(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			slog.Warn("stats snapshots disabled", "error", err)
			snapshots = nil
		} else {
			snapshots.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		}
	}

	svc := planner.NewService(chapters, planCache, tracker, m, cfg.Planner, "http")
	sink := export.NewFileSink(cfg.Export.ResultDir, cfg.Export.FileNamePattern, cfg.Export.HeaderLanguage, m)
	h := handler.New(svc, sink, cfg.Export.FileNamePattern, cfg.Export.HeaderLanguage)
	analyticsH := analytics.NewHandler(aggregator, snapshots)

	checker := health.NewChecker(2 * time.Second)
	checker.Register("postgres", health.PingCheck(db.Ping, true))
	var redisPing func(context.Context) error
	if redisClient != nil {
		redisPing = redisClient.Ping
	}
	checker.Register("redis", health.PingCheck(redisPing, false))
	if cfg.Kafka.Enabled {
		checker.Register("kafka", health.PingCheck(kafkaPing, false))
	}
	checker.Register("chapter_source", func(ctx context.Context) health.ComponentHealth {
		switch state := chapters.BreakerState(); state {
		case resilience.StateClosed:
			return health.ComponentHealth{Status: health.StatusUp}
		default:
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit " + state.String()}
		}
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsH.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.Window)
		defer limiter.Stop()
		chain = middleware.RateLimit(limiter, cfg.RateLimit.Requests, m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
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

	slog.Info("reading planner listening", "addr", server.Addr, "result_dir", cfg.Export.ResultDir)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("reading planner stopped")
}
