// Package fusion resolves asynchronous condition observations into one
// current risk estimate per segment. Observations arrive concurrently from
// segmentation, classification and weather collaborators; fusion runs on
// demand when the scheduler asks for it.
package fusion

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/rkiskaupas/roadrisk/core/model"
	"github.com/rkiskaupas/roadrisk/core/registry"
)

var (
	// ErrUnknownSegment indicates an observation references an unregistered segment.
	ErrUnknownSegment = errors.New("unknown segment")
	// ErrInvalidObservation indicates a malformed observation.
	ErrInvalidObservation = errors.New("invalid observation")
)

const shardCount = 16

type shard struct {
	mu      sync.Mutex
	windows map[string][]model.Observation
}

// Unit maintains per-segment observation windows and computes fused states.
type Unit struct {
	cfg    Config
	topo   *registry.Topology
	shards [shardCount]*shard
}

// New creates a fusion unit over the given topology.
func New(cfg Config, topo *registry.Topology) (*Unit, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if topo == nil {
		return nil, fmt.Errorf("fusion: nil topology")
	}
	u := &Unit{cfg: cfg, topo: topo}
	for i := range u.shards {
		u.shards[i] = &shard{windows: make(map[string][]model.Observation)}
	}
	return u, nil
}

func (u *Unit) shardFor(segmentID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(segmentID))
	return u.shards[h.Sum32()%shardCount]
}

// Ingest validates and stores a single observation. Category-valued
// observations are mapped to a risk score through the configured lookup.
// Writes for one segment are serialized; other segments proceed in parallel.
func (u *Unit) Ingest(obs model.Observation) error {
	if _, ok := u.topo.Segment(obs.SegmentID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSegment, obs.SegmentID)
	}
	if obs.Category != "" {
		risk, ok := u.cfg.CategoryRisk[obs.Category]
		if !ok {
			return fmt.Errorf("%w: unmapped category %q", ErrInvalidObservation, obs.Category)
		}
		obs.Risk = risk
	}
	if obs.Risk < 0 || obs.Risk > 1 {
		return fmt.Errorf("%w: risk %.3f out of range", ErrInvalidObservation, obs.Risk)
	}
	if obs.Confidence < 0 || obs.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.3f out of range", ErrInvalidObservation, obs.Confidence)
	}
	if obs.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidObservation)
	}

	s := u.shardFor(obs.SegmentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	win := append(s.windows[obs.SegmentID], obs)
	sort.SliceStable(win, func(i, j int) bool { return win[i].Timestamp.Before(win[j].Timestamp) })
	if excess := len(win) - u.cfg.WindowSize; excess > 0 {
		win = win[excess:]
	}
	s.windows[obs.SegmentID] = win
	return nil
}

// WindowLen returns the number of retained observations for a segment.
func (u *Unit) WindowLen(segmentID string) int {
	s := u.shardFor(segmentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows[segmentID])
}

// Fuse computes the fused state of every registered segment at the given
// time. prior carries the states applied in earlier cycles; segments
// without any history default to the neutral prior.
func (u *Unit) Fuse(now time.Time, prior map[string]model.FusedState) map[string]model.FusedState {
	out := make(map[string]model.FusedState, u.topo.SegmentCount())
	for _, seg := range u.topo.Segments() {
		out[seg.ID] = u.fuseSegment(seg.ID, now, prior[seg.ID])
	}
	return out
}

func (u *Unit) fuseSegment(segmentID string, now time.Time, prev model.FusedState) model.FusedState {
	fresh := u.freshObservations(segmentID, now)
	if len(fresh) == 0 {
		return u.carryForward(now, prev)
	}

	kindRisk := make(map[model.SourceKind]float64)
	for kind, obs := range groupByKind(fresh) {
		risks := make([]float64, len(obs))
		weights := make([]float64, len(obs))
		var sum float64
		for i, o := range obs {
			risks[i] = o.Risk
			weights[i] = o.Confidence * recencyWeight(now.Sub(o.Timestamp), u.halfLife())
			sum += weights[i]
		}
		if sum > 0 {
			kindRisk[kind] = stat.Mean(risks, weights)
		}
	}
	if len(kindRisk) == 0 {
		// Fresh but uninformative evidence (all zero confidence): the
		// previous value stands and the segment is not stale.
		state := u.carryForward(now, prev)
		state.Stale = false
		return state
	}

	var weighted, total float64
	for kind, risk := range kindRisk {
		w := u.cfg.SourceWeights[kind.String()]
		weighted += risk * w
		total += w
	}
	if total == 0 {
		state := u.carryForward(now, prev)
		state.Stale = false
		return state
	}
	return model.FusedState{Risk: clamp01(weighted / total), UpdatedAt: now}
}

// carryForward keeps the previous fused value for a segment without fresh
// evidence, decaying toward the neutral prior once past the expiry window.
func (u *Unit) carryForward(now time.Time, prev model.FusedState) model.FusedState {
	if prev.UpdatedAt.IsZero() {
		return model.FusedState{Risk: u.cfg.NeutralPrior, Stale: true}
	}
	state := model.FusedState{Risk: prev.Risk, UpdatedAt: prev.UpdatedAt, Stale: true}
	expiry := time.Duration(u.cfg.ExpiryWindowSeconds) * time.Second
	if now.Sub(prev.UpdatedAt) > expiry {
		state.Risk = clamp01(prev.Risk + (u.cfg.NeutralPrior-prev.Risk)*u.cfg.DecayRate)
	}
	return state
}

func (u *Unit) freshObservations(segmentID string, now time.Time) []model.Observation {
	freshness := time.Duration(u.cfg.FreshnessWindowSeconds) * time.Second
	s := u.shardFor(segmentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	var fresh []model.Observation
	for _, o := range s.windows[segmentID] {
		if o.Expired(now) {
			continue
		}
		if now.Sub(o.Timestamp) > freshness {
			continue
		}
		fresh = append(fresh, o)
	}
	return fresh
}

func groupByKind(obs []model.Observation) map[model.SourceKind][]model.Observation {
	groups := make(map[model.SourceKind][]model.Observation)
	for _, o := range obs {
		groups[o.Source] = append(groups[o.Source], o)
	}
	return groups
}

func (u *Unit) halfLife() time.Duration {
	return time.Duration(u.cfg.HalfLifeSeconds) * time.Second
}

// recencyWeight halves an observation's weight every half-life of age.
func recencyWeight(age, halfLife time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	return math.Exp2(-age.Seconds() / halfLife.Seconds())
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
