package alloc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkiskaupas/roadrisk/core/graph"
	"github.com/rkiskaupas/roadrisk/core/model"
	"github.com/rkiskaupas/roadrisk/core/registry"
	"github.com/rkiskaupas/roadrisk/infra/logger"
)

type segmentSpec struct {
	seg   model.Segment
	risk  float64
	stale bool
}

func buildSnapshot(t *testing.T, nodes []string, specs []segmentSpec) *graph.Snapshot {
	t.Helper()
	r := registry.New()
	for _, id := range nodes {
		require.NoError(t, r.RegisterNode(model.Node{ID: id}))
	}
	for _, sp := range specs {
		require.NoError(t, r.RegisterSegment(sp.seg))
	}
	gcfg := graph.Config{}
	gcfg.SetDefaults()
	g, err := graph.New(gcfg, r.Topology())
	require.NoError(t, err)
	now := time.Now()
	for _, sp := range specs {
		st := model.FusedState{Risk: sp.risk, Stale: sp.stale}
		if !sp.stale {
			st.UpdatedAt = now
		}
		require.NoError(t, g.ApplyFusion(sp.seg.ID, st))
	}
	return g.Snapshot()
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := Config{}
	cfg.SetDefaults()
	e, err := New(cfg, logger.NopLogger{})
	require.NoError(t, err)
	return e
}

func TestHighestPrioritySegmentWins(t *testing.T) {
	// One resource with capacity for a single segment, adjacent to both:
	// the risky arterial is cleared, the quiet local road is not.
	snap := buildSnapshot(t,
		[]string{"n0", "n1", "n2"},
		[]segmentSpec{
			{seg: model.Segment{ID: "S1", From: "n0", To: "n1", Length: 500, Class: model.ClassArterial, Priority: 1}, risk: 0.9},
			{seg: model.Segment{ID: "S2", From: "n0", To: "n2", Length: 500, Class: model.ClassLocal, Priority: 1}, risk: 0.3},
		})
	res := []model.Resource{{ID: "plow1", Capacity: 500, Location: "n0"}}

	result, err := newEngine(t).Allocate(context.Background(), snap, res, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Plan.Assignments, 1)
	assert.Equal(t, []string{"S1"}, result.Plan.Assignments[0].Segments)
	assert.InDelta(t, 0.9*2.0, result.Plan.RiskReduction, 1e-9)
}

func TestNoSegmentAssignedTwice(t *testing.T) {
	snap := buildSnapshot(t,
		[]string{"n0", "n1", "n2", "n3"},
		[]segmentSpec{
			{seg: model.Segment{ID: "a", From: "n0", To: "n1", Length: 300, Class: model.ClassArterial, Priority: 1}, risk: 0.8},
			{seg: model.Segment{ID: "b", From: "n1", To: "n2", Length: 300, Class: model.ClassArterial, Priority: 1}, risk: 0.7},
			{seg: model.Segment{ID: "c", From: "n2", To: "n3", Length: 300, Class: model.ClassArterial, Priority: 1}, risk: 0.6},
		})
	res := []model.Resource{
		{ID: "r1", Capacity: 900, Location: "n0"},
		{ID: "r2", Capacity: 900, Location: "n3"},
	}

	result, err := newEngine(t).Allocate(context.Background(), snap, res, time.Now())
	require.NoError(t, err)

	seen := map[string]string{}
	for _, a := range result.Plan.Assignments {
		for _, segID := range a.Segments {
			if prev, dup := seen[segID]; dup {
				t.Fatalf("segment %s assigned to both %s and %s", segID, prev, a.ResourceID)
			}
			seen[segID] = a.ResourceID
		}
	}
	assert.Len(t, seen, 3, "all segments should be cleared")
}

func TestCapacityNeverExceeded(t *testing.T) {
	snap := buildSnapshot(t,
		[]string{"n0", "n1", "n2", "n3"},
		[]segmentSpec{
			{seg: model.Segment{ID: "a", From: "n0", To: "n1", Length: 400, Class: model.ClassArterial, Priority: 1}, risk: 0.9},
			{seg: model.Segment{ID: "b", From: "n1", To: "n2", Length: 400, Class: model.ClassArterial, Priority: 1}, risk: 0.9},
			{seg: model.Segment{ID: "c", From: "n2", To: "n3", Length: 400, Class: model.ClassArterial, Priority: 1}, risk: 0.9},
		})
	res := []model.Resource{{ID: "r1", Capacity: 1000, Location: "n0"}}

	result, err := newEngine(t).Allocate(context.Background(), snap, res, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Plan.Assignments, 1)

	var total float64
	for _, segID := range result.Plan.Assignments[0].Segments {
		seg, ok := snap.Segment(segID)
		require.True(t, ok)
		total += seg.Length
	}
	assert.LessOrEqual(t, total, 1000.0)
	assert.Len(t, result.Plan.Assignments[0].Segments, 2)
}

func TestNoResourcesYieldsEmptyPlan(t *testing.T) {
	snap := buildSnapshot(t,
		[]string{"n0", "n1"},
		[]segmentSpec{
			{seg: model.Segment{ID: "a", From: "n0", To: "n1", Length: 100, Class: model.ClassLocal, Priority: 1}, risk: 0.9},
		})

	result, err := newEngine(t).Allocate(context.Background(), snap, nil, time.Now())
	require.NoError(t, err, "absence of resources is not a failure")
	assert.True(t, result.Plan.Empty())
	assert.Empty(t, result.Skipped)
}

func TestAllocateIsDeterministic(t *testing.T) {
	snap := buildSnapshot(t,
		[]string{"n0", "n1", "n2", "n3"},
		[]segmentSpec{
			{seg: model.Segment{ID: "a", From: "n0", To: "n1", Length: 300, Class: model.ClassArterial, Priority: 1}, risk: 0.8},
			{seg: model.Segment{ID: "b", From: "n1", To: "n2", Length: 300, Class: model.ClassCollector, Priority: 1}, risk: 0.5},
			{seg: model.Segment{ID: "c", From: "n2", To: "n3", Length: 300, Class: model.ClassLocal, Priority: 1}, risk: 0.4, stale: true},
		})
	res := []model.Resource{
		{ID: "r1", Capacity: 600, Location: "n0"},
		{ID: "r2", Capacity: 600, Location: "n2"},
	}

	e := newEngine(t)
	first, err := e.Allocate(context.Background(), snap, res, time.Now())
	require.NoError(t, err)
	second, err := e.Allocate(context.Background(), snap, res, time.Now())
	require.NoError(t, err)

	assert.Equal(t, first.Plan.Assignments, second.Plan.Assignments)
	assert.Equal(t, first.Plan.RiskReduction, second.Plan.RiskReduction)
}

func TestDisconnectedResourceSkipped(t *testing.T) {
	snap := buildSnapshot(t,
		[]string{"n0", "n1"},
		[]segmentSpec{
			{seg: model.Segment{ID: "a", From: "n0", To: "n1", Length: 100, Class: model.ClassArterial, Priority: 1}, risk: 0.9},
		})
	res := []model.Resource{
		{ID: "lost", Capacity: 1000, Location: "elsewhere"},
		{ID: "ok", Capacity: 1000, Location: "n0"},
	}

	result, err := newEngine(t).Allocate(context.Background(), snap, res, time.Now())
	require.NoError(t, err)
	require.Contains(t, result.Skipped, "lost")
	assert.True(t, errors.Is(result.Skipped["lost"], ErrDisconnectedResource))
	require.Len(t, result.Plan.Assignments, 1)
	assert.Equal(t, "ok", result.Plan.Assignments[0].ResourceID)
}

func TestStalenessDiscountLowersPriority(t *testing.T) {
	// Same risk and class; the stale segment loses.
	snap := buildSnapshot(t,
		[]string{"n0", "n1", "n2"},
		[]segmentSpec{
			{seg: model.Segment{ID: "fresh", From: "n0", To: "n1", Length: 500, Class: model.ClassArterial, Priority: 1}, risk: 0.8},
			{seg: model.Segment{ID: "old", From: "n0", To: "n2", Length: 500, Class: model.ClassArterial, Priority: 1}, risk: 0.8, stale: true},
		})
	res := []model.Resource{{ID: "r1", Capacity: 500, Location: "n0"}}

	result, err := newEngine(t).Allocate(context.Background(), snap, res, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Plan.Assignments, 1)
	assert.Equal(t, []string{"fresh"}, result.Plan.Assignments[0].Segments)
}

func TestTieBrokenByLowerSegmentID(t *testing.T) {
	snap := buildSnapshot(t,
		[]string{"n0", "n1", "n2"},
		[]segmentSpec{
			{seg: model.Segment{ID: "sB", From: "n0", To: "n1", Length: 500, Class: model.ClassArterial, Priority: 1}, risk: 0.8},
			{seg: model.Segment{ID: "sA", From: "n0", To: "n2", Length: 500, Class: model.ClassArterial, Priority: 1}, risk: 0.8},
		})
	res := []model.Resource{{ID: "r1", Capacity: 500, Location: "n0"}}

	result, err := newEngine(t).Allocate(context.Background(), snap, res, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Plan.Assignments, 1)
	assert.Equal(t, []string{"sA"}, result.Plan.Assignments[0].Segments)
}

func TestAvailabilityWindowLimitsWork(t *testing.T) {
	now := time.Now()
	snap := buildSnapshot(t,
		[]string{"n0", "n1"},
		[]segmentSpec{
			{seg: model.Segment{ID: "a", From: "n0", To: "n1", Length: 1000, Class: model.ClassArterial, Priority: 1}, risk: 0.9},
		})
	res := []model.Resource{{
		ID: "r1", Capacity: 5000, Location: "n0",
		// 1000m at the default 4 m/s needs 250s; only 60s available.
		Window: model.AvailabilityWindow{Start: now, End: now.Add(time.Minute)},
	}}

	result, err := newEngine(t).Allocate(context.Background(), snap, res, now)
	require.NoError(t, err)
	assert.True(t, result.Plan.Empty())
}

func TestCancellationDiscardsPartialPlan(t *testing.T) {
	snap := buildSnapshot(t,
		[]string{"n0", "n1"},
		[]segmentSpec{
			{seg: model.Segment{ID: "a", From: "n0", To: "n1", Length: 100, Class: model.ClassArterial, Priority: 1}, risk: 0.9},
		})
	res := []model.Resource{{ID: "r1", Capacity: 1000, Location: "n0"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := newEngine(t).Allocate(ctx, snap, res, time.Now())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Plan.Assignments)
}
