// Package analytics tracks generated plans. The service emits PlanEvents to a
// Collector that batches them onto Kafka; an Aggregator consumes them (or
// receives them directly when Kafka is off) and serves summary stats.
package analytics

import "time"

type EventType string

const (
	EventPlanGenerated EventType = "plan_generated"
	EventPlanFailed    EventType = "plan_failed"
	EventPlanExported  EventType = "plan_exported"
)

type PlanEvent struct {
	Type       EventType `json:"type"`
	Days       int       `json:"days"`
	Groups     int       `json:"groups"`
	Diff       int       `json:"diff"`
	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`
	CacheHit   bool      `json:"cache_hit"`
	LatencyMs  int64     `json:"latency_ms"`
	Origin     string    `json:"origin,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Tracker accepts plan events without blocking the caller.
type Tracker interface {
	Track(event PlanEvent)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Track(PlanEvent) {}
