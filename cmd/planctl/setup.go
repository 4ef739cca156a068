package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/export"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/planner"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/resilience"
)

// env is what every command needs: loaded config plus the planner wired to
// the selected chapter source.
type env struct {
	cfg     *config.Config
	service *planner.Service
	sink    *export.FileSink
	close   func()
}

func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configPath, g.envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.resultDir != "" {
		cfg.Export.ResultDir = g.resultDir
	}
	if g.lang != "" {
		cfg.Export.HeaderLanguage = g.lang
	}
	slog.SetDefault(logger.New(os.Stderr, cfg.Logging.Level, "text"))
	return cfg, nil
}

func setup(g *globalFlags) (*env, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	var src source.Source
	closeFn := func() {}
	if g.input != "" {
		src = source.NewCSV(g.input)
	} else {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closeFn = func() { db.Close() }
		src = source.NewResilient(source.NewPostgres(db), source.ResilientConfig{
			Retry:          resilience.RetryConfig{MaxAttempts: 3},
			AttemptTimeout: 10 * time.Second,
			TTL:            cfg.Planner.UnitsTTL,
		}, nil)
	}

	return &env{
		cfg:     cfg,
		service: planner.NewService(src, nil, nil, nil, cfg.Planner, "cli"),
		sink:    export.NewFileSink(cfg.Export.ResultDir, cfg.Export.FileNamePattern, cfg.Export.HeaderLanguage, nil),
		close:   closeFn,
	}, nil
}
