package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/kafka"
)

type AggregatedStats struct {
	TotalPlans     int64      `json:"total_plans"`
	FailedPlans    int64      `json:"failed_plans"`
	Exports        int64      `json:"exports"`
	CacheHits      int64      `json:"cache_hits"`
	CacheMisses    int64      `json:"cache_misses"`
	NotConverged   int64      `json:"not_converged"`
	AvgDiff        float64    `json:"avg_diff"`
	AvgIterations  float64    `json:"avg_iterations"`
	AvgLatencyMs   float64    `json:"avg_latency_ms"`
	P50LatencyMs   int64      `json:"p50_latency_ms"`
	P95LatencyMs   int64      `json:"p95_latency_ms"`
	P99LatencyMs   int64      `json:"p99_latency_ms"`
	TopDays        []DayCount `json:"top_days"`
	PlansPerMinute float64    `json:"plans_per_minute"`
}

type DayCount struct {
	Days  int   `json:"days"`
	Count int64 `json:"count"`
}

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type Aggregator struct {
	mu           sync.RWMutex
	totalPlans   int64
	failedPlans  int64
	exports      int64
	cacheHits    int64
	cacheMisses  int64
	notConverged int64
	sumDiff      int64
	sumIter      int64
	latencies    []int64
	dayCounts    map[int]int64
	startTime    time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
	now      func() time.Time
}

// NewAggregator creates an aggregator. consumer may be nil when events are
// delivered in-process through Track.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies: make([]int64, 0, 1024),
		dayCounts: make(map[int]int64),
		startTime: time.Now(),
		consumer:  consumer,
		logger:    slog.Default().With("component", "analytics-aggregator"),
		now:       time.Now,
	}
}

// SetConsumer attaches the Kafka consumer that Start runs.
func (a *Aggregator) SetConsumer(c *kafka.Consumer) {
	a.consumer = c
}

// Start consumes plan events until ctx ends. Without a consumer it returns
// immediately.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.consumer == nil {
		return nil
	}
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent adapts the aggregator to a Kafka message handler. Undecodable
// messages are logged and skipped so they are committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[PlanEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode plan event", "key", string(key), "error", err)
			return nil
		}
		agg.Track(event)
		return nil
	}
}

// Track records one event.
func (a *Aggregator) Track(event PlanEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch event.Type {
	case EventPlanFailed:
		a.failedPlans++
		return
	case EventPlanExported:
		a.exports++
		return
	case EventPlanGenerated:
	default:
		a.logger.Warn("unknown plan event type", "type", event.Type)
		return
	}

	a.totalPlans++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if !event.Converged {
		a.notConverged++
	}
	a.sumDiff += int64(event.Diff)
	a.sumIter += int64(event.Iterations)
	a.dayCounts[event.Days]++
	if len(a.latencies) >= maxLatencySamples {
		a.latencies = a.latencies[1:]
	}
	a.latencies = append(a.latencies, event.LatencyMs)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalPlans:   a.totalPlans,
		FailedPlans:  a.failedPlans,
		Exports:      a.exports,
		CacheHits:    a.cacheHits,
		CacheMisses:  a.cacheMisses,
		NotConverged: a.notConverged,
	}
	if a.totalPlans > 0 {
		stats.AvgDiff = float64(a.sumDiff) / float64(a.totalPlans)
		stats.AvgIterations = float64(a.sumIter) / float64(a.totalPlans)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopDays = topN(a.dayCounts, 10)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.PlansPerMinute = float64(stats.TotalPlans) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[int]int64, n int) []DayCount {
	result := make([]DayCount, 0, len(counts))
	for days, count := range counts {
		result = append(result, DayCount{Days: days, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Days < result[j].Days
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
