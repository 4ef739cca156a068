package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/plan"
	apperrors "github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/resilience"
)

// ResilientConfig controls the wrapper around an unreliable source.
type ResilientConfig struct {
	// A nil Retry.Retryable retries any failure, timed-out attempts included,
	// while the caller's context is live.
	Retry   resilience.RetryConfig
	Breaker resilience.CircuitBreakerConfig
	// AttemptTimeout bounds each call to the inner source. Zero means no
	// per-attempt limit.
	AttemptTimeout time.Duration
	// TTL is how long a fetched list is served without asking the inner
	// source again. Zero disables reuse.
	TTL time.Duration
}

// Resilient retries failed fetches with backoff behind a circuit breaker and
// reuses the last good list for TTL. Failures surface as
// errors.ErrSourceUnavailable.
type Resilient struct {
	inner   Source
	cfg     ResilientConfig
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	units     plan.UnitList
	fetchedAt time.Time
}

// NewResilient wraps inner. m may be nil.
func NewResilient(inner Source, cfg ResilientConfig, m *metrics.Metrics) *Resilient {
	r := &Resilient{
		inner:   inner,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "chapter-source"),
		now:     time.Now,
	}
	onChange := cfg.Breaker.OnStateChange
	cfg.Breaker.OnStateChange = func(name string, to resilience.State) {
		if m != nil {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
		if onChange != nil {
			onChange(name, to)
		}
	}
	r.breaker = resilience.NewCircuitBreaker("chapter-source", cfg.Breaker)
	if m != nil {
		m.CircuitBreakerState.WithLabelValues("chapter-source").Set(float64(resilience.StateClosed))
	}
	return r
}

func (r *Resilient) FetchUnits(ctx context.Context) (plan.UnitList, error) {
	if units, ok := r.cached(); ok {
		return units, nil
	}

	start := time.Now()
	retry := r.cfg.Retry
	if retry.Retryable == nil {
		// A timed-out attempt is worth repeating; a finished caller is not.
		retry.Retryable = func(error) bool { return ctx.Err() == nil }
	}
	var units plan.UnitList
	err := r.breaker.Execute(func() error {
		return resilience.Retry(ctx, "fetch-chapters", retry, func() error {
			fetched, err := resilience.CallWithTimeout(ctx, r.cfg.AttemptTimeout, "fetch-chapters", r.inner.FetchUnits)
			if err != nil {
				return err
			}
			units = fetched
			return nil
		})
	})
	if err == nil {
		err = Validate(units)
	}
	r.observe(start, err, len(units))
	if err != nil {
		r.logger.Error("chapter fetch failed", "error", err, "breaker", r.breaker.GetState().String())
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSourceUnavailable, err)
	}

	r.mu.Lock()
	r.units = units
	r.fetchedAt = r.now()
	r.mu.Unlock()
	r.logger.Info("chapters loaded", "count", len(units), "duration", time.Since(start))
	return copyUnits(units), nil
}

// Invalidate drops the reused list so the next fetch reaches the inner source.
func (r *Resilient) Invalidate() {
	r.mu.Lock()
	r.units = nil
	r.fetchedAt = time.Time{}
	r.mu.Unlock()
}

// BreakerState reports the circuit state of the inner source.
func (r *Resilient) BreakerState() resilience.State {
	return r.breaker.GetState()
}

func (r *Resilient) cached() (plan.UnitList, bool) {
	if r.cfg.TTL <= 0 {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.units == nil || r.now().Sub(r.fetchedAt) >= r.cfg.TTL {
		return nil, false
	}
	return copyUnits(r.units), true
}

func (r *Resilient) observe(start time.Time, err error, n int) {
	if r.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.SourceFetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err == nil {
		r.metrics.SourceUnits.Set(float64(n))
	}
}

func copyUnits(units plan.UnitList) plan.UnitList {
	out := make(plan.UnitList, len(units))
	copy(out, units)
	return out
}
