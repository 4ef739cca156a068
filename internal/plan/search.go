package plan

import (
	"fmt"
	"math"
)

const (
	DefaultMaxIterations = 5000
	DefaultStep          = 0.001
)

// Options tunes Search. Zero values select the defaults.
type Options struct {
	// ConvergenceTolerance is the group-count difference at which the search
	// stops early.
	ConvergenceTolerance int
	MaxIterations        int
	// Step is added to or removed from the tolerance fraction per iteration.
	Step     float64
	Observer Observer
}

// DefaultOptions returns an exact-match search with the default budget.
func DefaultOptions() Options {
	return Options{
		ConvergenceTolerance: 0,
		MaxIterations:        DefaultMaxIterations,
		Step:                 DefaultStep,
	}
}

func (o Options) withDefaults() Options {
	if o.ConvergenceTolerance < 0 {
		o.ConvergenceTolerance = 0
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Step <= 0 || math.IsNaN(o.Step) {
		o.Step = DefaultStep
	}
	return o
}

// Search runs BuildChunks repeatedly, nudging the tolerance fraction up when a
// candidate has too few groups and down when it has too many, and returns the
// first candidate within opts.ConvergenceTolerance of targetGroupCount. When
// the iteration budget runs out it returns the closest candidate seen; that is
// not an error. The only failure is an empty unit list.
//
// targetGroupCount must already be validated as positive by the caller.
func Search(units UnitList, targetAverage, initialTolerance float64, targetGroupCount int, opts Options) (SearchResult, error) {
	opts = opts.withDefaults()
	if len(units) == 0 {
		return SearchResult{}, fmt.Errorf("%w: %w", ErrPartitionUnavailable, ErrEmptyInput)
	}

	current := math.Max(opts.Step, initialTolerance)
	var (
		best     SearchResult
		bestDiff = math.MaxInt
		found    bool
	)

	for i := 0; i < opts.MaxIterations; i++ {
		candidate := buildChunks(units, targetAverage, current, opts.Observer)
		diff := absInt(candidate.Len() - targetGroupCount)

		if diff < bestDiff {
			bestDiff = diff
			best = SearchResult{
				Partition: candidate,
				Target:    targetGroupCount,
				Diff:      diff,
				Tolerance: current,
			}
			found = true
		}

		if diff <= opts.ConvergenceTolerance {
			result := SearchResult{
				Partition:  candidate,
				Target:     targetGroupCount,
				Diff:       diff,
				Iterations: i + 1,
				Tolerance:  current,
				Converged:  true,
			}
			observeSearch(opts.Observer, result)
			return result, nil
		}

		switch {
		case candidate.Len() < targetGroupCount:
			current += opts.Step
		case candidate.Len() > targetGroupCount:
			current = math.Max(opts.Step, current-opts.Step)
		}
	}

	if !found {
		return SearchResult{}, ErrPartitionUnavailable
	}
	best.Iterations = opts.MaxIterations
	observeSearch(opts.Observer, best)
	return best, nil
}

func observeSearch(obs Observer, r SearchResult) {
	if obs != nil {
		obs.ObserveSearch(r.Iterations, r.Diff, r.Converged)
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
