// Command analytics starts the standalone plan analytics service.
//
// It consumes plan events from Kafka, aggregates them in memory (plan counts,
// latency percentiles, cache hit rate, popular day counts) and exposes them at
// GET /api/v1/analytics. When analytics.snapshotInterval is set and PostgreSQL
// is reachable, snapshots are persisted and served at
// GET /api/v1/analytics/snapshots.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/postgres"
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
	slog.Info("starting analytics service", "port", cfg.Server.Port)
	if !cfg.Kafka.Enabled {
		slog.Error("kafka is disabled; the analytics service has nothing to consume")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topic := cfg.Kafka.Topics.PlanEvents
	aggregator := analytics.NewAggregator(nil)
	aggregator.SetConsumer(kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(aggregator)))
	go func() {
		if err := aggregator.Start(ctx); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", topic)

	checker := health.NewChecker(2 * time.Second)
	checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}, true))

	var store *analytics.Store
	if cfg.Analytics.SnapshotInterval > 0 {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer db.Close()
			store = analytics.NewStore(db)
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Error("failed to prepare snapshot table", "error", err)
				os.Exit(1)
			}
			if latest, err := store.LatestSnapshot(ctx); err == nil && latest != nil {
				slog.Info("previous snapshot found", "total_plans", latest.TotalPlans)
			}
			store.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
			checker.Register("postgres", health.PingCheck(db.Ping, false))
		}
	}

	analyticsHandler := analytics.NewHandler(aggregator, store)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsHandler.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
