// Package alloc turns a condition-graph snapshot and the current resource
// set into a prioritized clearing plan. The strategy is greedy
// risk-priority packing: predictable and explainable, unlike exact
// multi-vehicle routing which is NP-hard.
package alloc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rkiskaupas/roadrisk/core/graph"
	"github.com/rkiskaupas/roadrisk/core/logger"
	"github.com/rkiskaupas/roadrisk/core/model"
)

// ErrDisconnectedResource indicates a resource located on a node absent
// from the topology. The resource is skipped; others still get work.
var ErrDisconnectedResource = errors.New("disconnected resource")

// Engine computes allocation plans.
type Engine struct {
	cfg Config
	log logger.Logger
}

// New creates an allocation engine.
func New(cfg Config, log logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		return nil, fmt.Errorf("alloc: nil logger")
	}
	return &Engine{cfg: cfg, log: log}, nil
}

// Result carries the plan and per-resource diagnostics.
type Result struct {
	Plan    model.AllocationPlan
	Skipped map[string]error
}

type candidate struct {
	seg         model.Segment
	priority    float64
	classWeight float64
}

// Allocate produces one plan from the snapshot and resource set. An empty
// resource set yields an empty plan, not an error. Cancellation is checked
// between assignments; a cancelled run returns ctx.Err() and no plan.
func (e *Engine) Allocate(ctx context.Context, snap *graph.Snapshot, resources []model.Resource, now time.Time) (Result, error) {
	res := Result{
		Plan:    model.AllocationPlan{ID: uuid.NewString(), GeneratedAt: now},
		Skipped: make(map[string]error),
	}

	remaining := e.rankSegments(snap)

	ordered := make([]model.Resource, len(resources))
	copy(ordered, resources)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Window.Start.Equal(ordered[j].Window.Start) {
			return ordered[i].Window.Start.Before(ordered[j].Window.Start)
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, r := range ordered {
		if !snap.HasNode(r.Location) {
			res.Skipped[r.ID] = fmt.Errorf("%w: %s at node %s", ErrDisconnectedResource, r.ID, r.Location)
			e.log.Warnf("resource %s skipped: location %s not in topology", r.ID, r.Location)
			continue
		}
		assigned, err := e.packResource(ctx, snap, r, now, &remaining)
		if err != nil {
			return Result{}, err
		}
		if len(assigned.Segments) > 0 {
			res.Plan.Assignments = append(res.Plan.Assignments, assigned)
		}
		if len(remaining) == 0 {
			break
		}
	}

	for _, a := range res.Plan.Assignments {
		for _, segID := range a.Segments {
			res.Plan.RiskReduction += e.segmentPriority(snap, segID)
		}
	}
	return res, nil
}

// packResource greedily assigns the highest-priority reachable segments to
// one resource until capacity or time runs out. The simulated position is
// local to the cycle; the supplied resource record is never mutated.
func (e *Engine) packResource(ctx context.Context, snap *graph.Snapshot, r model.Resource, now time.Time, remaining *[]candidate) (model.Assignment, error) {
	assignment := model.Assignment{ResourceID: r.ID}

	pos := r.Location
	capLeft := r.Capacity
	budget := e.timeBudget(r, now)
	if budget <= 0 {
		return assignment, nil
	}

	for len(*remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return model.Assignment{}, err
		}

		bestIdx, bestTravel, bestApproach := -1, math.Inf(1), ""
		for i, c := range *remaining {
			travel, approach, ok := e.approachCost(snap, pos, c.seg)
			if !ok {
				continue
			}
			if c.seg.Length > capLeft {
				continue
			}
			if (travel+c.seg.Length)/e.cfg.ClearRateMPS > budget.Seconds() {
				continue
			}
			if bestIdx == -1 || better(c, (*remaining)[bestIdx], travel, bestTravel) {
				bestIdx, bestTravel, bestApproach = i, travel, approach
			}
		}
		if bestIdx == -1 {
			break
		}

		chosen := (*remaining)[bestIdx]
		assignment.Segments = append(assignment.Segments, chosen.seg.ID)
		capLeft -= chosen.seg.Length
		budget -= time.Duration((bestTravel + chosen.seg.Length) / e.cfg.ClearRateMPS * float64(time.Second))
		pos = chosen.seg.Other(bestApproach)
		*remaining = append((*remaining)[:bestIdx], (*remaining)[bestIdx+1:]...)
	}
	return assignment, nil
}

// better orders candidates by priority, then class weight, then travel
// cost from the current position, then segment identifier.
func better(a, b candidate, aTravel, bTravel float64) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if a.classWeight != b.classWeight {
		return a.classWeight > b.classWeight
	}
	if aTravel != bTravel {
		return aTravel < bTravel
	}
	return a.seg.ID < b.seg.ID
}

// approachCost returns the cheaper risk-weighted path cost from pos to
// either endpoint of the segment, along with the chosen approach endpoint.
func (e *Engine) approachCost(snap *graph.Snapshot, pos string, seg model.Segment) (float64, string, bool) {
	cost, approach, found := math.Inf(1), "", false
	for _, end := range []string{seg.From, seg.To} {
		if c, _, ok := snap.ShortestPath(pos, end); ok && c < cost {
			cost, approach, found = c, end, true
		}
	}
	return cost, approach, found
}

func (e *Engine) timeBudget(r model.Resource, now time.Time) time.Duration {
	if r.Window.Start.IsZero() && r.Window.End.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	start := now
	if r.Window.Start.After(start) {
		start = r.Window.Start
	}
	return r.Window.End.Sub(start)
}

// rankSegments computes composite priorities for every segment, sorted by
// priority, class weight, then identifier for deterministic plans.
func (e *Engine) rankSegments(snap *graph.Snapshot) []candidate {
	var ranked []candidate
	for _, seg := range snap.Segments() {
		ranked = append(ranked, candidate{
			seg:         seg,
			priority:    e.segmentPriority(snap, seg.ID),
			classWeight: e.cfg.ClassWeights[seg.Class.String()],
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].priority != ranked[j].priority {
			return ranked[i].priority > ranked[j].priority
		}
		if ranked[i].classWeight != ranked[j].classWeight {
			return ranked[i].classWeight > ranked[j].classWeight
		}
		return ranked[i].seg.ID < ranked[j].seg.ID
	})
	return ranked
}

// segmentPriority is risk x class weight x base weight, discounted when stale.
func (e *Engine) segmentPriority(snap *graph.Snapshot, segmentID string) float64 {
	seg, ok := snap.Segment(segmentID)
	if !ok {
		return 0
	}
	state, _ := snap.State(segmentID)
	p := state.Risk * e.cfg.ClassWeights[seg.Class.String()] * seg.Priority
	if state.Stale {
		p *= e.cfg.StalenessDiscount
	}
	return p
}
