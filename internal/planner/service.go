// Package planner turns a day count into a reading schedule: it fetches the
// chapter list, derives the target average and runs the partition search,
// reusing cached results where possible.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/export"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/plan"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/planner/cache"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/tracing"
)

// Plan is a generated schedule.
type Plan struct {
	Days          int               `json:"days"`
	Groups        int               `json:"groups"`
	Diff          int               `json:"diff"`
	Iterations    int               `json:"iterations"`
	Tolerance     float64           `json:"tolerance"`
	Converged     bool              `json:"converged"`
	CacheHit      bool              `json:"cache_hit"`
	TargetAverage float64           `json:"target_average"`
	TotalSize     int64             `json:"total_size"`
	Units         int               `json:"units"`
	Rows          []export.Row      `json:"rows"`
	Partition     plan.Partition    `json:"-"`
	Result        plan.SearchResult `json:"-"`
}

// Service generates plans. Cache, tracker and metrics are optional.
type Service struct {
	source  source.Source
	cache   *cache.PlanCache
	tracker analytics.Tracker
	metrics *metrics.Metrics
	cfg     config.PlannerConfig
	origin  string
	logger  *slog.Logger
}

// NewService wires a planner. origin tags emitted events ("http", "cli").
func NewService(
	src source.Source,
	planCache *cache.PlanCache,
	tracker analytics.Tracker,
	m *metrics.Metrics,
	cfg config.PlannerConfig,
	origin string,
) *Service {
	if planCache == nil {
		planCache = cache.New(nil, 0, m)
	}
	if tracker == nil {
		tracker = analytics.Discard{}
	}
	return &Service{
		source:  src,
		cache:   planCache,
		tracker: tracker,
		metrics: m,
		cfg:     cfg,
		origin:  origin,
		logger:  slog.Default().With("component", "planner"),
	}
}

// Cache returns the plan cache in use.
func (s *Service) Cache() *cache.PlanCache {
	return s.cache
}

// ParseDays accepts any number with an integral value, so "30", "30.0" and
// "3e1" all mean 30. Range checks are left to ValidateDays.
func ParseDays(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q is not an integer", apperrors.ErrInvalidTarget, raw)
	}
	return int(f), nil
}

// ValidateDays rejects non-positive counts and counts above the configured
// maximum.
func (s *Service) ValidateDays(days int) error {
	if days <= 0 {
		return fmt.Errorf("%w: got %d", apperrors.ErrInvalidTarget, days)
	}
	if s.cfg.MaxDays > 0 && days > s.cfg.MaxDays {
		return fmt.Errorf("%w: %d exceeds the maximum of %d", apperrors.ErrInvalidTarget, days, s.cfg.MaxDays)
	}
	return nil
}

func (s *Service) searchOptions() plan.Options {
	opts := plan.Options{
		ConvergenceTolerance: s.cfg.ConvergenceTolerance,
		MaxIterations:        s.cfg.MaxIterations,
		Step:                 s.cfg.Step,
	}
	if s.metrics != nil {
		opts.Observer = s.metrics
	}
	return opts
}

// Generate builds the schedule for days.
func (s *Service) Generate(ctx context.Context, days int) (*Plan, error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "plan.generate")
	span.SetAttr("days", days)
	log := logger.FromContext(ctx).With("component", "planner", "days", days)

	p, err := s.generate(ctx, days)
	span.End(err)
	span.Log(log)

	latency := time.Since(start)
	if err != nil {
		s.observe("error", "none", latency)
		s.tracker.Track(analytics.PlanEvent{
			Type:      analytics.EventPlanFailed,
			Days:      days,
			LatencyMs: latency.Milliseconds(),
			Origin:    s.origin,
			Error:     apperrors.PublicMessage(err),
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestID(ctx),
		})
		if errors.Is(err, apperrors.ErrInvalidTarget) {
			log.Info("plan rejected", "error", err)
		} else {
			log.Error("plan generation failed", "error", err)
		}
		return nil, err
	}

	cacheStatus := "miss"
	if p.CacheHit {
		cacheStatus = "hit"
	}
	s.observe("ok", cacheStatus, latency)
	s.tracker.Track(analytics.PlanEvent{
		Type:       analytics.EventPlanGenerated,
		Days:       days,
		Groups:     p.Groups,
		Diff:       p.Diff,
		Iterations: p.Iterations,
		Converged:  p.Converged,
		CacheHit:   p.CacheHit,
		LatencyMs:  latency.Milliseconds(),
		Origin:     s.origin,
		Timestamp:  time.Now().UTC(),
		RequestID:  logger.RequestID(ctx),
	})
	log.Info("plan generated",
		"groups", p.Groups,
		"diff", p.Diff,
		"iterations", p.Iterations,
		"cache_hit", p.CacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	return p, nil
}

func (s *Service) generate(ctx context.Context, days int) (*Plan, error) {
	if err := s.ValidateDays(days); err != nil {
		return nil, err
	}

	fetchCtx, fetchSpan := tracing.StartChildSpan(ctx, "source.fetch")
	units, err := s.source.FetchUnits(fetchCtx)
	fetchSpan.SetAttr("units", len(units))
	fetchSpan.End(err)
	if err != nil {
		if !errors.Is(err, apperrors.ErrSourceUnavailable) && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %w", apperrors.ErrSourceUnavailable, err)
		}
		return nil, err
	}

	avg := plan.TargetAverage(units, days)
	key := cache.Key{
		Days:                 days,
		Fingerprint:          cache.Fingerprint(units),
		InitialTolerance:     s.cfg.InitialTolerance,
		ConvergenceTolerance: s.cfg.ConvergenceTolerance,
		MaxIterations:        s.cfg.MaxIterations,
		Step:                 s.cfg.Step,
	}

	_, searchSpan := tracing.StartChildSpan(ctx, "plan.search")
	result, hit, err := s.cache.GetOrCompute(ctx, key, func() (*plan.SearchResult, error) {
		res, err := plan.Search(units, avg, s.cfg.InitialTolerance, days, s.searchOptions())
		if err != nil {
			return nil, err
		}
		return &res, nil
	})
	searchSpan.SetAttr("cache_hit", hit)
	searchSpan.End(err)
	if err != nil {
		return nil, err
	}
	searchSpan.SetAttr("iterations", result.Iterations)
	searchSpan.SetAttr("diff", result.Diff)

	return &Plan{
		Days:          days,
		Groups:        result.Partition.Len(),
		Diff:          result.Diff,
		Iterations:    result.Iterations,
		Tolerance:     result.Tolerance,
		Converged:     result.Converged,
		CacheHit:      hit,
		TargetAverage: avg,
		TotalSize:     units.TotalSize(),
		Units:         len(units),
		Rows:          export.Rows(result.Partition),
		Partition:     result.Partition,
		Result:        *result,
	}, nil
}

// GenerateMany builds one plan per day count in parallel. Results keep the
// order of days; the first failure cancels the rest.
func (s *Service) GenerateMany(ctx context.Context, days []int) ([]*Plan, error) {
	for _, d := range days {
		if err := s.ValidateDays(d); err != nil {
			return nil, err
		}
	}
	plans := make([]*Plan, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, d := range days {
		g.Go(func() error {
			p, err := s.Generate(gctx, d)
			if err != nil {
				return fmt.Errorf("generating %d-day plan: %w", d, err)
			}
			plans[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

// Export hands a generated plan to sink and records the export.
func (s *Service) Export(ctx context.Context, sink export.Sink, p *Plan) (export.Artifact, error) {
	root := tracing.SpanFromContext(ctx) == nil
	ctx, span := s.startSpan(ctx, "plan.export")
	span.SetAttr("days", p.Days)
	art, err := sink.Emit(ctx, p.Partition, p.Days)
	span.End(err)
	if root {
		span.Log(logger.FromContext(ctx).With("component", "planner"))
	}
	if err != nil {
		return export.Artifact{}, err
	}
	s.tracker.Track(analytics.PlanEvent{
		Type:      analytics.EventPlanExported,
		Days:      p.Days,
		Groups:    p.Groups,
		Origin:    s.origin,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(ctx),
	})
	return art, nil
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, *tracing.Span) {
	if tracing.SpanFromContext(ctx) != nil {
		return tracing.StartChildSpan(ctx, name)
	}
	traceID := logger.RequestID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return tracing.StartSpan(ctx, name, traceID)
}

func (s *Service) observe(outcome, cacheStatus string, latency time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.PlansTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		s.metrics.PlanLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}
}
