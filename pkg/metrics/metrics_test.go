package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the first sample of each family, keyed by family name.
func gathered(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]float64, len(mfs))
	for _, mf := range mfs {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		metric := mf.GetMetric()[0]
		switch {
		case metric.GetCounter() != nil:
			out[mf.GetName()] = metric.GetCounter().GetValue()
		case metric.GetHistogram() != nil:
			out[mf.GetName()] = float64(metric.GetHistogram().GetSampleCount())
		case metric.GetGauge() != nil:
			out[mf.GetName()] = metric.GetGauge().GetValue()
		}
	}
	return out
}

func TestObserveChunksAndSearch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveChunks(12)
	m.ObserveChunks(14)
	m.ObserveSearch(2, 0, true)

	got := gathered(t, reg)
	assert.Equal(t, float64(2), got["chunk_builds_total"])
	assert.Equal(t, float64(2), got["chunk_groups"])
	assert.Equal(t, float64(1), got["search_iterations"])
	assert.Equal(t, float64(1), got["search_group_diff"])
}

func TestNewWithRegistry_Independent(t *testing.T) {
	regA, regB := prometheus.NewRegistry(), prometheus.NewRegistry()
	a := NewWithRegistry(regA)
	NewWithRegistry(regB)

	a.CacheHitsTotal.Inc()
	assert.Equal(t, float64(1), gathered(t, regA)["cache_hits_total"])
	assert.Equal(t, float64(0), gathered(t, regB)["cache_hits_total"])
}
