package plan

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_EqualUnitsConvergeImmediately(t *testing.T) {
	units := unitsOf(100, 100, 100, 100, 100)
	avg := TargetAverage(units, 5)
	require.Equal(t, float64(100), avg)

	res, err := Search(units, avg, 0.01, 5, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Diff)
	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, res.Partition, 5)
	for i, g := range res.Partition {
		assert.Equal(t, units[i], g.Start)
		assert.Equal(t, units[i], g.End)
		assert.Equal(t, int64(100), g.AccumulatedSize)
	}
}

func TestSearch_SkewedUnits(t *testing.T) {
	units := unitsOf(10, 10000, 10)
	avg := TargetAverage(units, 2)

	res, err := Search(units, avg, 0.01, 2, DefaultOptions())
	require.NoError(t, err)
	assertCovers(t, units, res.Partition)

	// No tolerance on the explored grid does better than the returned diff.
	best := res.Diff
	for tol := DefaultStep; tol <= 2; tol += DefaultStep {
		d := absInt(BuildChunks(units, avg, tol).Len() - 2)
		assert.GreaterOrEqual(t, d, best, "tol %.3f", tol)
	}
}

func TestSearch_AdjustsToleranceUpward(t *testing.T) {
	// threshold 63 gives 3 groups; any threshold in [20, 39] gives 5.
	units := unitsOf(80, 20, 20, 80, 20, 20, 80)
	avg := TargetAverage(units, 5)
	require.Equal(t, float64(64), avg)
	require.Equal(t, 3, BuildChunks(units, avg, 0.01).Len())

	obs := &countingObserver{}
	opts := DefaultOptions()
	opts.Observer = obs

	res, err := Search(units, avg, 0.01, 5, opts)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Diff)
	assert.True(t, res.Converged)
	assert.Greater(t, res.Iterations, 1)
	assert.Greater(t, res.Tolerance, 0.01)
	assert.Len(t, res.Partition, 5)
	assertCovers(t, units, res.Partition)

	assert.Equal(t, res.Iterations, obs.chunks)
	assert.Equal(t, 1, obs.searches)
	assert.True(t, obs.converged)
}

func TestSearch_AdjustsToleranceDownward(t *testing.T) {
	// At tolerance 0.6 the threshold is 48 and every unit closes alone.
	units := unitsOf(60, 60, 60, 60, 60, 60)
	avg := TargetAverage(units, 3)
	require.Equal(t, 6, BuildChunks(units, avg, 0.6).Len())

	res, err := Search(units, avg, 0.6, 3, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Diff)
	assert.Greater(t, res.Iterations, 1)
	assert.Less(t, res.Tolerance, 0.6)
	assert.Len(t, res.Partition, 3)
}

func TestSearch_TargetAboveUnitCount(t *testing.T) {
	sizes := make([]int64, 10)
	for i := range sizes {
		sizes[i] = 100
	}
	units := unitsOf(sizes...)
	avg := TargetAverage(units, 50)

	obs := &countingObserver{}
	opts := DefaultOptions()
	opts.Observer = obs

	res, err := Search(units, avg, 0.01, 50, opts)
	require.NoError(t, err)

	assert.Equal(t, 40, res.Diff)
	assert.False(t, res.Converged)
	assert.Equal(t, DefaultMaxIterations, res.Iterations)
	assert.Len(t, res.Partition, 10)
	assertCovers(t, units, res.Partition)
	assert.Equal(t, DefaultMaxIterations, obs.chunks)
	assert.Equal(t, 40, obs.lastDiff)
}

func TestSearch_OscillationReturnsBest(t *testing.T) {
	// Twelve equal units never split into exactly five groups: thresholds
	// in [200, 300) give four, below 200 give six.
	sizes := make([]int64, 12)
	for i := range sizes {
		sizes[i] = 100
	}
	units := unitsOf(sizes...)

	res, err := Search(units, TargetAverage(units, 5), 0.01, 5, Options{MaxIterations: 800})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Diff)
	assert.False(t, res.Converged)
	assert.Equal(t, 800, res.Iterations)
	assertCovers(t, units, res.Partition)
}

func TestSearch_ConvergenceTolerance(t *testing.T) {
	sizes := make([]int64, 12)
	for i := range sizes {
		sizes[i] = 100
	}
	units := unitsOf(sizes...)

	res, err := Search(units, TargetAverage(units, 5), 0.01, 5, Options{ConvergenceTolerance: 1})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 1, res.Diff)
}

func TestSearch_SingleUnit(t *testing.T) {
	units := unitsOf(12345)
	for _, target := range []int{1, 2, 30} {
		res, err := Search(units, TargetAverage(units, target), 0.01, target, Options{MaxIterations: 50})
		require.NoError(t, err)
		require.Len(t, res.Partition, 1)
		assert.Equal(t, target-1, res.Diff)
	}
}

func TestSearch_EmptyInput(t *testing.T) {
	_, err := Search(nil, 100, 0.01, 5, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPartitionUnavailable))
	assert.True(t, errors.Is(err, ErrEmptyInput))
}

func TestSearch_NeverFailsOnNonEmptyInput(t *testing.T) {
	for seed := int64(1); seed <= 15; seed++ {
		units := randomUnits(seed, 40)
		for _, days := range []int{1, 7, 39, 40, 41, 365} {
			res, err := Search(units, TargetAverage(units, days), 0.01, days, Options{MaxIterations: 300})
			require.NoError(t, err, "seed %d days %d", seed, days)
			assertCovers(t, units, res.Partition)
			assert.Equal(t, absInt(res.Partition.Len()-days), res.Diff)
		}
	}
}

func TestSearch_StepFloorsTolerance(t *testing.T) {
	units := unitsOf(100, 100, 100, 100)

	// Initial tolerance below the step is raised to the step.
	res, err := Search(units, 400, 0, 1, Options{Step: 0.01})
	require.NoError(t, err)
	assert.Equal(t, 0.01, res.Tolerance)
	assert.Len(t, res.Partition, 1)
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{ConvergenceTolerance: -4}.withDefaults()
	assert.Equal(t, 0, o.ConvergenceTolerance)
	assert.Equal(t, DefaultMaxIterations, o.MaxIterations)
	assert.Equal(t, DefaultStep, o.Step)

	o = Options{ConvergenceTolerance: 2, MaxIterations: 10, Step: 0.05}.withDefaults()
	assert.Equal(t, 2, o.ConvergenceTolerance)
	assert.Equal(t, 10, o.MaxIterations)
	assert.Equal(t, 0.05, o.Step)
}

func BenchmarkSearch(b *testing.B) {
	units := randomUnits(7, 1189)
	for _, days := range []int{30, 90, 365} {
		avg := TargetAverage(units, days)
		b.Run("days_"+strconv.Itoa(days), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Search(units, avg, 0.01, days, DefaultOptions()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
