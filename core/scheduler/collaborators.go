package scheduler

import (
	"context"

	"github.com/rkiskaupas/roadrisk/core/model"
)

// ObservationSource delivers pending condition observations. Fetch must
// return within the context deadline and deliver at most limit entries.
type ObservationSource interface {
	Name() string
	Fetch(ctx context.Context, limit int) ([]model.Observation, error)
}

// ResourceDirectory supplies the current clearing resource set per cycle.
type ResourceDirectory interface {
	Resources(ctx context.Context) ([]model.Resource, error)
}

// PlanSink receives the current plan after each successful cycle.
// Delivery failure does not roll back the internally held current plan.
type PlanSink interface {
	Publish(plan model.AllocationPlan) error
}

// NopPlanSink discards plans. Used when no delivery transport is
// configured and plans are consumed from the in-process bus instead.
type NopPlanSink struct{}

// Publish does nothing.
func (NopPlanSink) Publish(model.AllocationPlan) error { return nil }

// StaticDirectory is a ResourceDirectory over a fixed resource set.
type StaticDirectory struct {
	Set []model.Resource
}

// Resources returns the fixed set.
func (d StaticDirectory) Resources(context.Context) ([]model.Resource, error) {
	return d.Set, nil
}
