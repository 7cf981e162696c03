package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkiskaupas/roadrisk/core/alloc"
	"github.com/rkiskaupas/roadrisk/core/fusion"
	"github.com/rkiskaupas/roadrisk/core/graph"
	"github.com/rkiskaupas/roadrisk/core/metrics"
	"github.com/rkiskaupas/roadrisk/core/model"
	"github.com/rkiskaupas/roadrisk/core/registry"
	"github.com/rkiskaupas/roadrisk/infra/logger"
	"github.com/rkiskaupas/roadrisk/infra/mqtt"
	"github.com/rkiskaupas/roadrisk/internal/eventbus"
)

type funcSource struct {
	name string
	fn   func(ctx context.Context, limit int) ([]model.Observation, error)
}

func (s funcSource) Name() string { return s.name }
func (s funcSource) Fetch(ctx context.Context, limit int) ([]model.Observation, error) {
	return s.fn(ctx, limit)
}

type recordingSink struct {
	cycles []metrics.CycleEvent
	plans  []metrics.PlanEvent
}

func (r *recordingSink) RecordCycle(ev metrics.CycleEvent) error {
	r.cycles = append(r.cycles, ev)
	return nil
}

func (r *recordingSink) RecordPlan(ev metrics.PlanEvent) error {
	r.plans = append(r.plans, ev)
	return nil
}

type fixture struct {
	sched *Scheduler
	graph *graph.Graph
	sink  *mqtt.MockPlanSink
	rec   *recordingSink
	bus   *eventbus.Bus[model.AllocationPlan]
}

func newFixture(t *testing.T, sources []ObservationSource, resources []model.Resource) *fixture {
	t.Helper()
	r := registry.New()
	for _, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, r.RegisterNode(model.Node{ID: id}))
	}
	require.NoError(t, r.RegisterSegment(model.Segment{ID: "s1", From: "n1", To: "n2", Length: 500, Class: model.ClassArterial, Priority: 1}))
	require.NoError(t, r.RegisterSegment(model.Segment{ID: "s2", From: "n2", To: "n3", Length: 500, Class: model.ClassLocal, Priority: 1}))
	topo := r.Topology()

	fcfg := fusion.Config{}
	fcfg.SetDefaults()
	fu, err := fusion.New(fcfg, topo)
	require.NoError(t, err)

	gcfg := graph.Config{}
	gcfg.SetDefaults()
	g, err := graph.New(gcfg, topo)
	require.NoError(t, err)

	acfg := alloc.Config{}
	acfg.SetDefaults()
	engine, err := alloc.New(acfg, logger.NopLogger{})
	require.NoError(t, err)

	scfg := Config{}
	scfg.SetDefaults()

	sink := &mqtt.MockPlanSink{}
	rec := &recordingSink{}
	bus := eventbus.New[model.AllocationPlan]()

	sched, err := New(scfg, sources, StaticDirectory{Set: resources}, sink,
		fu, g, engine, logger.NopLogger{}, rec, bus)
	require.NoError(t, err)
	return &fixture{sched: sched, graph: g, sink: sink, rec: rec, bus: bus}
}

func staticSource(obs ...model.Observation) ObservationSource {
	return funcSource{name: "static", fn: func(context.Context, int) ([]model.Observation, error) {
		return obs, nil
	}}
}

func TestCyclePublishesPlan(t *testing.T) {
	now := time.Now()
	fx := newFixture(t,
		[]ObservationSource{staticSource(
			model.Observation{SegmentID: "s1", Source: model.SourceSegmentation, Risk: 0.9, Confidence: 1, Timestamp: now},
		)},
		[]model.Resource{{ID: "plow1", Capacity: 500, Location: "n1"}},
	)

	require.NoError(t, fx.sched.Cycle(context.Background(), now))

	plan, ok := fx.sched.CurrentPlan()
	require.True(t, ok)
	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, []string{"s1"}, plan.Assignments[0].Segments)

	published := fx.sink.Published()
	require.Len(t, published, 1)
	assert.Equal(t, plan.ID, published[0].ID)

	require.Len(t, fx.rec.cycles, 1)
	assert.Equal(t, "published", fx.rec.cycles[0].Outcome)
	assert.Equal(t, 1, fx.rec.cycles[0].Observations)
	assert.Equal(t, Idle, fx.sched.State())
}

func TestFetchFailureKeepsPreviousPlan(t *testing.T) {
	now := time.Now()
	good := staticSource(model.Observation{SegmentID: "s1", Source: model.SourceWeather, Risk: 0.7, Confidence: 1, Timestamp: now})

	failing := false
	flaky := funcSource{name: "flaky", fn: func(context.Context, int) ([]model.Observation, error) {
		if failing {
			return nil, fmt.Errorf("upstream unavailable")
		}
		return nil, nil
	}}

	fx := newFixture(t, []ObservationSource{good, flaky},
		[]model.Resource{{ID: "plow1", Capacity: 500, Location: "n1"}})

	require.NoError(t, fx.sched.Cycle(context.Background(), now))
	first, ok := fx.sched.CurrentPlan()
	require.True(t, ok)

	failing = true
	err := fx.sched.Cycle(context.Background(), now.Add(5*time.Minute))
	require.Error(t, err)

	current, ok := fx.sched.CurrentPlan()
	require.True(t, ok, "previous plan must remain current")
	assert.Equal(t, first.ID, current.ID)
	require.Len(t, fx.rec.cycles, 2)
	assert.Equal(t, "skipped", fx.rec.cycles[1].Outcome)
	assert.Len(t, fx.sink.Published(), 1)
}

func TestMalformedObservationDoesNotAbortCycle(t *testing.T) {
	now := time.Now()
	fx := newFixture(t,
		[]ObservationSource{staticSource(
			model.Observation{SegmentID: "ghost", Source: model.SourceWeather, Risk: 0.5, Confidence: 1, Timestamp: now},
			model.Observation{SegmentID: "s1", Source: model.SourceWeather, Risk: 2.5, Confidence: 1, Timestamp: now},
			model.Observation{SegmentID: "s1", Source: model.SourceSegmentation, Risk: 0.8, Confidence: 1, Timestamp: now},
		)},
		[]model.Resource{{ID: "plow1", Capacity: 500, Location: "n1"}},
	)

	require.NoError(t, fx.sched.Cycle(context.Background(), now))
	require.Len(t, fx.rec.cycles, 1)
	assert.Equal(t, 2, fx.rec.cycles[0].Rejected)

	plan, ok := fx.sched.CurrentPlan()
	require.True(t, ok)
	assert.Equal(t, []string{"s1"}, plan.Assignments[0].Segments)
}

func TestNoResourcesIsSuccess(t *testing.T) {
	now := time.Now()
	fx := newFixture(t, []ObservationSource{staticSource()}, nil)

	require.NoError(t, fx.sched.Cycle(context.Background(), now))
	plan, ok := fx.sched.CurrentPlan()
	require.True(t, ok)
	assert.True(t, plan.Empty())
	assert.Equal(t, "published", fx.rec.cycles[0].Outcome)
}

func TestMinReplanInterval(t *testing.T) {
	now := time.Now()
	fx := newFixture(t, []ObservationSource{staticSource()},
		[]model.Resource{{ID: "plow1", Capacity: 500, Location: "n1"}})

	require.NoError(t, fx.sched.Cycle(context.Background(), now))
	assert.True(t, fx.sched.tooSoon(now.Add(30*time.Second)))
	assert.False(t, fx.sched.tooSoon(now.Add(3*time.Minute)))
}

func TestSupersededCycleDiscardsPlan(t *testing.T) {
	now := time.Now()
	fx := newFixture(t, []ObservationSource{staticSource()},
		[]model.Resource{{ID: "plow1", Capacity: 500, Location: "n1"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := fx.sched.Cycle(ctx, now)
	require.Error(t, err)

	_, ok := fx.sched.CurrentPlan()
	assert.False(t, ok, "cancelled cycle must not install a plan")
	assert.Empty(t, fx.sink.Published())
}

func TestOlderCycleCannotReplaceNewerPlan(t *testing.T) {
	now := time.Now()
	fx := newFixture(t, []ObservationSource{staticSource()},
		[]model.Resource{{ID: "plow1", Capacity: 500, Location: "n1"}})

	require.NoError(t, fx.sched.Cycle(context.Background(), now))
	newer, ok := fx.sched.CurrentPlan()
	require.True(t, ok)

	// A lagging cycle finishing out of order must not install its plan.
	err := fx.sched.Cycle(context.Background(), now.Add(-time.Minute))
	require.Error(t, err)

	current, ok := fx.sched.CurrentPlan()
	require.True(t, ok)
	assert.Equal(t, newer.ID, current.ID)
	assert.Len(t, fx.sink.Published(), 1)
	require.Len(t, fx.rec.cycles, 2)
	assert.Equal(t, "superseded", fx.rec.cycles[1].Outcome)
}

func TestPublishFailureKeepsPlanCurrent(t *testing.T) {
	now := time.Now()
	fx := newFixture(t, []ObservationSource{staticSource()},
		[]model.Resource{{ID: "plow1", Capacity: 500, Location: "n1"}})
	fx.sink.Fail = true

	require.NoError(t, fx.sched.Cycle(context.Background(), now))
	_, ok := fx.sched.CurrentPlan()
	assert.True(t, ok, "delivery failure does not roll back the current plan")
}

func TestBusBroadcastsPlan(t *testing.T) {
	now := time.Now()
	fx := newFixture(t, []ObservationSource{staticSource()},
		[]model.Resource{{ID: "plow1", Capacity: 500, Location: "n1"}})

	plans, unsubscribe := fx.bus.Subscribe()
	defer unsubscribe()

	require.NoError(t, fx.sched.Cycle(context.Background(), now))
	select {
	case plan := <-plans:
		current, _ := fx.sched.CurrentPlan()
		assert.Equal(t, current.ID, plan.ID)
	case <-time.After(time.Second):
		t.Fatalf("no plan broadcast on the bus")
	}
}
