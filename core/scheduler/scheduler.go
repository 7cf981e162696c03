package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rkiskaupas/roadrisk/core/alloc"
	"github.com/rkiskaupas/roadrisk/core/fusion"
	"github.com/rkiskaupas/roadrisk/core/graph"
	"github.com/rkiskaupas/roadrisk/core/logger"
	"github.com/rkiskaupas/roadrisk/core/metrics"
	"github.com/rkiskaupas/roadrisk/core/model"
	"github.com/rkiskaupas/roadrisk/internal/eventbus"
)

// State is the scheduler's position in the refresh cycle.
type State int

const (
	Idle State = iota
	Fetching
	Fusing
	Replanning
	Publishing
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Fusing:
		return "fusing"
	case Replanning:
		return "replanning"
	case Publishing:
		return "publishing"
	default:
		return "unknown"
	}
}

// Scheduler owns the refresh loop.
type Scheduler struct {
	cfg     Config
	sources []ObservationSource
	dir     ResourceDirectory
	sink    PlanSink
	fusion  *fusion.Unit
	graph   *graph.Graph
	engine  *alloc.Engine
	log     logger.Logger
	metrics metrics.MetricsSink
	bus     *eventbus.Bus[model.AllocationPlan]

	mu         sync.Mutex
	state      State
	current    model.AllocationPlan
	hasPlan    bool
	lastPlanAt time.Time
}

// New creates a scheduler. The metrics sink and bus may be nil.
func New(cfg Config, sources []ObservationSource, dir ResourceDirectory, sink PlanSink,
	fu *fusion.Unit, g *graph.Graph, engine *alloc.Engine,
	log logger.Logger, sinkM metrics.MetricsSink, bus *eventbus.Bus[model.AllocationPlan]) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dir == nil || sink == nil || fu == nil || g == nil || engine == nil || log == nil {
		return nil, fmt.Errorf("scheduler: nil collaborator")
	}
	if sinkM == nil {
		sinkM = metrics.NopSink{}
	}
	return &Scheduler{
		cfg: cfg, sources: sources, dir: dir, sink: sink,
		fusion: fu, graph: g, engine: engine,
		log: log, metrics: sinkM, bus: bus,
	}, nil
}

// Run drives cycles until the context is cancelled. A tick that fires
// before the minimum replan interval has elapsed is skipped; a tick that
// fires while a cycle is still replanning supersedes it.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.cfg.TickSeconds) * time.Second)
	defer ticker.Stop()

	var cancelPrev context.CancelFunc
	for {
		select {
		case <-ctx.Done():
			if cancelPrev != nil {
				cancelPrev()
			}
			return
		case now := <-ticker.C:
			if s.tooSoon(now) {
				s.log.Debugf("tick skipped: min replan interval not elapsed")
				continue
			}
			if cancelPrev != nil {
				cancelPrev()
			}
			var cctx context.Context
			cctx, cancelPrev = context.WithCancel(ctx)
			go func(cctx context.Context, now time.Time) {
				if err := s.Cycle(cctx, now); err != nil {
					s.log.Warnf("cycle at %s: %v", now.Format(time.RFC3339), err)
				}
			}(cctx, now)
		}
	}
}

func (s *Scheduler) tooSoon(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasPlan && now.Sub(s.lastPlanAt) < time.Duration(s.cfg.MinReplanSeconds)*time.Second
}

// Cycle runs one full fetch-fuse-replan-publish pass. A fetch failure
// skips the cycle entirely and the previous plan remains current.
func (s *Scheduler) Cycle(ctx context.Context, now time.Time) error {
	started := time.Now()
	ev := metrics.CycleEvent{Time: now}
	defer func() {
		ev.Duration = time.Since(started)
		if err := s.metrics.RecordCycle(ev); err != nil {
			s.log.Errorf("cycle metrics: %v", err)
		}
		s.setState(Idle)
	}()

	s.setState(Fetching)
	observations, err := s.fetchAll(ctx)
	if err != nil {
		ev.Outcome = "skipped"
		return fmt.Errorf("fetch: %w", err)
	}
	ev.Observations = len(observations)

	s.setState(Fusing)
	for _, obs := range observations {
		if err := s.fusion.Ingest(obs); err != nil {
			ev.Rejected++
			s.log.Warnf("observation rejected: %v", err)
		}
	}
	fused := s.fusion.Fuse(now, s.graph.States())
	for segID, state := range fused {
		if state.Stale {
			ev.StaleSegments++
		}
		if err := s.graph.ApplyFusion(segID, state); err != nil {
			return fmt.Errorf("apply fusion: %w", err)
		}
	}

	s.setState(Replanning)
	resources, err := s.dir.Resources(ctx)
	if err != nil {
		ev.Outcome = "skipped"
		return fmt.Errorf("resource directory: %w", err)
	}
	snap := s.graph.Snapshot()
	result, err := s.engine.Allocate(ctx, snap, resources, now)
	if err != nil {
		// Superseded by a newer tick: discard partial results.
		ev.Outcome = "superseded"
		return fmt.Errorf("allocate: %w", err)
	}

	s.setState(Publishing)
	s.mu.Lock()
	// A superseded cycle may slip past its last cancellation check; never
	// let it replace a plan from a newer cycle.
	if s.hasPlan && !now.After(s.lastPlanAt) {
		s.mu.Unlock()
		ev.Outcome = "superseded"
		return fmt.Errorf("plan at %s superseded by a newer cycle", now.Format(time.RFC3339))
	}
	s.current = result.Plan
	s.hasPlan = true
	s.lastPlanAt = now
	s.mu.Unlock()

	if err := s.sink.Publish(result.Plan); err != nil {
		s.log.Errorf("plan publication: %v", err)
	}
	if s.bus != nil {
		s.bus.Publish(result.Plan)
	}
	ev.Outcome = "published"
	if err := s.metrics.RecordPlan(metrics.PlanEvent{
		PlanID:           result.Plan.ID,
		Resources:        len(result.Plan.Assignments),
		Segments:         result.Plan.SegmentCount(),
		RiskReduction:    result.Plan.RiskReduction,
		SkippedResources: len(result.Skipped),
		Time:             now,
	}); err != nil {
		s.log.Errorf("plan metrics: %v", err)
	}
	s.log.Infof("plan %s published: %d segments across %d resources, risk reduction %.3f",
		result.Plan.ID, result.Plan.SegmentCount(), len(result.Plan.Assignments), result.Plan.RiskReduction)
	return nil
}

// fetchAll pulls bounded batches from all sources in parallel. Any source
// failure fails the whole fetch: a stale-but-valid plan beats a plan built
// on partial evidence.
func (s *Scheduler) fetchAll(ctx context.Context) ([]model.Observation, error) {
	var (
		mu  sync.Mutex
		all []model.Observation
	)
	g, gctx := errgroup.WithContext(ctx)
	timeout := time.Duration(s.cfg.FetchTimeoutSeconds) * time.Second
	for _, src := range s.sources {
		src := src
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()
			batch, err := src.Fetch(fctx, s.cfg.BatchLimit)
			if err != nil {
				return fmt.Errorf("source %s: %w", src.Name(), err)
			}
			mu.Lock()
			all = append(all, batch...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the scheduler's current cycle phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentPlan returns the most recently published plan, if any.
func (s *Scheduler) CurrentPlan() (model.AllocationPlan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasPlan
}
