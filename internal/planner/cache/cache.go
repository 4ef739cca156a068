// Package cache stores finished search results in Redis keyed by day count,
// search parameters and a fingerprint of the chapter list.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/plan"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "plan:"

// Key identifies one search. Two requests with equal keys produce the same
// result.
type Key struct {
	Days                 int
	Fingerprint          string
	InitialTolerance     float64
	ConvergenceTolerance int
	MaxIterations        int
	Step                 float64
}

func (k Key) String() string {
	raw := fmt.Sprintf("days=%d|units=%s|tol=%g|conv=%d|iter=%d|step=%g",
		k.Days, k.Fingerprint, k.InitialTolerance, k.ConvergenceTolerance, k.MaxIterations, k.Step)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%d:%x", keyPrefix, k.Days, hash[:16])
}

// Fingerprint hashes the fields of units that influence a search.
func Fingerprint(units plan.UnitList) string {
	h := sha256.New()
	var buf [8]byte
	for _, u := range units {
		binary.BigEndian.PutUint64(buf[:], uint64(u.Index))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], uint64(u.Size))
		h.Write(buf[:])
		h.Write([]byte(u.Label))
		h.Write([]byte{0})
		h.Write([]byte(u.GroupLabel))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:12])
}

// PlanCache is a read-through cache of search results. A nil Redis client
// disables storage; concurrent identical computations are still collapsed.
type PlanCache struct {
	client  *pkgredis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(client *pkgredis.Client, ttl time.Duration, m *metrics.Metrics) *PlanCache {
	return &PlanCache{
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "plan-cache"),
	}
}

// Enabled reports whether results are stored in Redis.
func (c *PlanCache) Enabled() bool {
	return c.client != nil
}

func (c *PlanCache) Get(ctx context.Context, key Key) (*plan.SearchResult, bool) {
	if c.client == nil {
		c.miss()
		return nil, false
	}
	k := key.String()
	data, err := c.client.Get(ctx, k)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", k, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result plan.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "days", key.Days, "key", k)
	return &result, true
}

func (c *PlanCache) Set(ctx context.Context, key Key, result *plan.SearchResult) {
	if c.client == nil {
		return
	}
	k := key.String()
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.client.Set(ctx, k, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached result for key or runs computeFn once for
// all concurrent callers with the same key. The bool reports a cache hit.
func (c *PlanCache) GetOrCompute(
	ctx context.Context,
	key Key,
	computeFn func() (*plan.SearchResult, error),
) (*plan.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*plan.SearchResult), false, nil
}

// Invalidate removes every cached plan and returns how many were deleted.
func (c *PlanCache) Invalidate(ctx context.Context) (int64, error) {
	if c.client == nil {
		return 0, nil
	}
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

// Stats summarises cache usage since start.
type Stats struct {
	Enabled bool    `json:"enabled"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Keys    int64   `json:"keys"`
}

func (c *PlanCache) Stats(ctx context.Context) (Stats, error) {
	s := Stats{Enabled: c.client != nil, Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	if c.client == nil {
		return s, nil
	}
	n, err := c.client.CountByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return s, err
	}
	s.Keys = n
	return s, nil
}

func (c *PlanCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
