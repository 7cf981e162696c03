// Package metrics defines the observability interfaces recorded by the
// scheduler. Implementations live under infra/metrics.
package metrics

import "time"

// CycleEvent summarises one scheduler cycle.
type CycleEvent struct {
	Outcome       string // "published", "skipped" or "superseded"
	Duration      time.Duration
	Observations  int
	Rejected      int
	StaleSegments int
	Time          time.Time
}

// PlanEvent summarises a published allocation plan.
type PlanEvent struct {
	PlanID           string
	Resources        int
	Segments         int
	RiskReduction    float64
	SkippedResources int
	Time             time.Time
}

// MetricsSink records scheduler cycles and published plans.
type MetricsSink interface {
	RecordCycle(ev CycleEvent) error
	RecordPlan(ev PlanEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycle(CycleEvent) error { return nil }
func (NopSink) RecordPlan(PlanEvent) error   { return nil }
