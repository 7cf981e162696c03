// Package graph holds the live condition graph: the static topology plus
// the current fused risk state per segment. The graph is the single source
// of truth for the allocation engine, which only ever sees immutable
// snapshots.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rkiskaupas/roadrisk/core/model"
	"github.com/rkiskaupas/roadrisk/core/registry"
)

// ErrUnknownSegment indicates a fused state for a segment outside the topology.
var ErrUnknownSegment = errors.New("unknown segment")

// Config defines graph parameters.
type Config struct {
	// RiskWeightK scales how much fused risk inflates edge traversal cost:
	// weight = length * (1 + k*risk).
	RiskWeightK float64 `json:"risk_weight_k" yaml:"risk_weight_k"`
	// NeutralPrior seeds the state of segments before any fusion pass.
	NeutralPrior float64 `json:"neutral_prior" yaml:"neutral_prior"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.RiskWeightK == 0 {
		c.RiskWeightK = 2
	}
	if c.NeutralPrior == 0 {
		c.NeutralPrior = 0.2
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RiskWeightK < 0 {
		return fmt.Errorf("risk_weight_k must not be negative")
	}
	if c.NeutralPrior < 0 || c.NeutralPrior > 1 {
		return fmt.Errorf("neutral_prior must be in [0,1]")
	}
	return nil
}

// Graph is the mutable condition graph.
type Graph struct {
	mu      sync.RWMutex
	topo    *registry.Topology
	cfg     Config
	states  map[string]model.FusedState
	version uint64
}

// New builds a condition graph over the topology. Every segment starts at
// the neutral prior, marked stale.
func New(cfg Config, topo *registry.Topology) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if topo == nil {
		return nil, fmt.Errorf("graph: nil topology")
	}
	g := &Graph{topo: topo, cfg: cfg, states: make(map[string]model.FusedState, topo.SegmentCount())}
	for _, s := range topo.Segments() {
		g.states[s.ID] = model.FusedState{Risk: cfg.NeutralPrior, Stale: true}
	}
	return g, nil
}

// ApplyFusion replaces the fused state of one segment. It is the only
// mutator and is called exclusively by the scheduler after a fusion pass.
func (g *Graph) ApplyFusion(segmentID string, state model.FusedState) error {
	if _, ok := g.topo.Segment(segmentID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSegment, segmentID)
	}
	g.mu.Lock()
	g.states[segmentID] = state
	g.version++
	g.mu.Unlock()
	return nil
}

// States returns a copy of the current per-segment states, used as the
// prior for the next fusion pass.
func (g *Graph) States() map[string]model.FusedState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]model.FusedState, len(g.states))
	for id, st := range g.states {
		out[id] = st
	}
	return out
}

// Snapshot returns an immutable copy of the full graph state. The
// allocation engine operates on one snapshot end to end.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.RLock()
	states := make(map[string]model.FusedState, len(g.states))
	for id, st := range g.states {
		states[id] = st
	}
	version := g.version
	g.mu.RUnlock()

	snap := &Snapshot{
		topo:    g.topo,
		k:       g.cfg.RiskWeightK,
		states:  states,
		version: version,
		adj:     make(map[string][]model.Segment),
	}
	for _, s := range g.topo.Segments() {
		snap.adj[s.From] = append(snap.adj[s.From], s)
		snap.adj[s.To] = append(snap.adj[s.To], s)
	}
	return snap
}
