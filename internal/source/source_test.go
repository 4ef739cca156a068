package source

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/plan"
	apperrors "github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var genesis = plan.UnitList{
	{Index: 1, Label: "창세기", GroupLabel: "1", Size: 3100},
	{Index: 32, Label: "창세기", GroupLabel: "2", Size: 2500},
	{Index: 57, Label: "창세기", GroupLabel: "3", Size: 2800},
	{Index: 81, Label: "출애굽기", GroupLabel: "1", Size: 1500},
}

func TestStatic_ReturnsCopy(t *testing.T) {
	s := Static(genesis)
	units, err := s.FetchUnits(context.Background())
	require.NoError(t, err)
	require.Equal(t, genesis, units)

	units[0].Size = 0
	again, _ := s.FetchUnits(context.Background())
	assert.Equal(t, int64(3100), again[0].Size)
}

func TestStatic_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Static(genesis).FetchUnits(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		units plan.UnitList
		ok    bool
	}{
		{"empty", nil, true},
		{"ordered", genesis, true},
		{"zero size", plan.UnitList{{Index: 1, Size: 0}}, true},
		{"negative size", plan.UnitList{{Index: 1, Size: -1}}, false},
		{"duplicate index", plan.UnitList{{Index: 1}, {Index: 1}}, false},
		{"descending", plan.UnitList{{Index: 5}, {Index: 2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.units)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chapters.csv")
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, genesis))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	units, err := NewCSV(path).FetchUnits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, genesis, units)
}

func TestCSVSource_MissingFile(t *testing.T) {
	_, err := NewCSV(filepath.Join(t.TempDir(), "nope.csv")).FetchUnits(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr string
	}{
		{"empty file", "", 0, ""},
		{"header only", "index,label,chapter,size\n", 0, ""},
		{"bom header", "\ufeffindex,label,chapter,size\n1,룻기,1,900\n", 1, ""},
		{"spaces", "index, label, chapter, size\n1, 룻기, 1, 900\n2, 룻기, 2, 800\n", 2, ""},
		{"wrong header", "idx,label,chapter,size\n", 0, "unexpected header"},
		{"bad size", "index,label,chapter,size\n1,룻기,1,many\n", 0, "invalid size"},
		{"bad index", "index,label,chapter,size\nx,룻기,1,1\n", 0, "invalid index"},
		{"short row", "index,label,chapter,size\n1,룻기,1\n", 0, "wrong number of fields"},
		{"unordered", "index,label,chapter,size\n2,룻기,2,1\n1,룻기,1,1\n", 0, "does not follow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, err := ReadCSV(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, units, tt.want)
		})
	}
}

type flakySource struct {
	failures int32
	calls    atomic.Int32
	units    plan.UnitList
}

func (f *flakySource) FetchUnits(ctx context.Context) (plan.UnitList, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, errors.New("connection refused")
	}
	return f.units, nil
}

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestResilient_RetriesTransientFailures(t *testing.T) {
	inner := &flakySource{failures: 2, units: genesis}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	r := NewResilient(inner, ResilientConfig{Retry: fastRetry(3)}, m)

	units, err := r.FetchUnits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, genesis, units)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestResilient_WrapsFailureAsUnavailable(t *testing.T) {
	inner := &flakySource{failures: 100}
	r := NewResilient(inner, ResilientConfig{Retry: fastRetry(2)}, nil)

	_, err := r.FetchUnits(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	assert.Equal(t, 503, apperrors.HTTPStatusCode(err))
}

func TestResilient_RejectsInvalidList(t *testing.T) {
	inner := &flakySource{units: plan.UnitList{{Index: 2}, {Index: 1}}}
	r := NewResilient(inner, ResilientConfig{Retry: fastRetry(1)}, nil)
	_, err := r.FetchUnits(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
}

func TestResilient_BreakerOpens(t *testing.T) {
	inner := &flakySource{failures: 100}
	var opened atomic.Bool
	r := NewResilient(inner, ResilientConfig{
		Retry: fastRetry(1),
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: 2,
			ResetTimeout:     time.Hour,
			OnStateChange: func(_ string, to resilience.State) {
				if to == resilience.StateOpen {
					opened.Store(true)
				}
			},
		},
	}, metrics.NewWithRegistry(prometheus.NewRegistry()))

	r.FetchUnits(context.Background())
	r.FetchUnits(context.Background())
	require.Equal(t, resilience.StateOpen, r.BreakerState())
	assert.True(t, opened.Load())

	calls := inner.calls.Load()
	_, err := r.FetchUnits(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	assert.Equal(t, calls, inner.calls.Load(), "open breaker must not reach the source")
}

func TestResilient_ReusesWithinTTL(t *testing.T) {
	inner := &flakySource{units: genesis}
	r := NewResilient(inner, ResilientConfig{Retry: fastRetry(1), TTL: time.Minute}, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := r.FetchUnits(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), inner.calls.Load())

	now = now.Add(time.Minute)
	_, err := r.FetchUnits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())

	r.Invalidate()
	_, err = r.FetchUnits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestResilient_ZeroTTLAlwaysFetches(t *testing.T) {
	inner := &flakySource{units: genesis}
	r := NewResilient(inner, ResilientConfig{Retry: fastRetry(1)}, nil)
	r.FetchUnits(context.Background())
	r.FetchUnits(context.Background())
	assert.Equal(t, int32(2), inner.calls.Load())
}

type blockingSource struct{ calls atomic.Int32 }

func (b *blockingSource) FetchUnits(ctx context.Context) (plan.UnitList, error) {
	b.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResilient_RetriesTimedOutAttempts(t *testing.T) {
	inner := &blockingSource{}
	r := NewResilient(inner, ResilientConfig{Retry: fastRetry(3), AttemptTimeout: 10 * time.Millisecond}, nil)

	_, err := r.FetchUnits(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrAttemptTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestResilient_CallerDeadlineStopsRetries(t *testing.T) {
	inner := &blockingSource{}
	r := NewResilient(inner, ResilientConfig{Retry: fastRetry(3)}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.FetchUnits(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), inner.calls.Load())
}

// sleepySource ignores ctx and answers after delay.
type sleepySource struct {
	delay time.Duration
	calls atomic.Int32
}

func (s *sleepySource) FetchUnits(context.Context) (plan.UnitList, error) {
	n := s.calls.Add(1)
	time.Sleep(s.delay)
	return plan.UnitList{{Index: int64(n), Size: 1}}, nil
}

func TestResilient_LateAttemptDoesNotLeak(t *testing.T) {
	inner := &sleepySource{delay: 50 * time.Millisecond}
	r := NewResilient(inner, ResilientConfig{Retry: fastRetry(2), AttemptTimeout: 10 * time.Millisecond}, nil)

	units, err := r.FetchUnits(context.Background())
	assert.ErrorIs(t, err, resilience.ErrAttemptTimeout)
	assert.Nil(t, units)

	// Let the abandoned calls finish; under -race any shared write shows up.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), inner.calls.Load())
	_, ok := r.cached()
	assert.False(t, ok)
}
