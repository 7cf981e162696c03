// Package synthetic generates plausible condition observations over a
// topology. It stands in for the real camera and weather feeds during
// demos and load tests, so the full cycle can run without a broker.
package synthetic

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rkiskaupas/roadrisk/core/model"
	"github.com/rkiskaupas/roadrisk/core/registry"
)

// Config defines the generator parameters.
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Seed fixes the random stream. Zero seeds from the clock.
	Seed int64 `json:"seed" yaml:"seed"`
	// SegmentFraction is the share of segments observed per fetch.
	SegmentFraction float64 `json:"segment_fraction" yaml:"segment_fraction"`
	// Drift bounds the per-fetch random walk of each segment's base risk.
	Drift float64 `json:"drift" yaml:"drift"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.SegmentFraction == 0 {
		c.SegmentFraction = 0.3
	}
	if c.Drift == 0 {
		c.Drift = 0.1
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SegmentFraction <= 0 || c.SegmentFraction > 1 {
		return fmt.Errorf("segment_fraction must be in (0,1]")
	}
	if c.Drift < 0 || c.Drift > 1 {
		return fmt.Errorf("drift must be in [0,1]")
	}
	return nil
}

// Source emits observations whose risk follows a bounded random walk per
// segment, so successive cycles see coherent conditions rather than noise.
type Source struct {
	cfg  Config
	topo *registry.Topology

	mu   sync.Mutex
	rng  *rand.Rand
	base map[string]float64
}

// New creates a synthetic source over the topology.
func New(cfg Config, topo *registry.Topology) (*Source, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if topo == nil {
		return nil, fmt.Errorf("synthetic: nil topology")
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{
		cfg:  cfg,
		topo: topo,
		rng:  rand.New(rand.NewSource(seed)),
		base: make(map[string]float64),
	}, nil
}

// Name identifies the source in logs and fetch errors.
func (s *Source) Name() string { return "synthetic" }

// Fetch returns one observation for a random subset of segments.
func (s *Source) Fetch(ctx context.Context, limit int) ([]model.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	segments := s.topo.Segments()
	kinds := []model.SourceKind{model.SourceSegmentation, model.SourceClassification, model.SourceWeather}

	var out []model.Observation
	for _, seg := range segments {
		if len(out) >= limit {
			break
		}
		if s.rng.Float64() > s.cfg.SegmentFraction {
			continue
		}
		risk := s.walk(seg.ID)
		obs := model.Observation{
			SegmentID:  seg.ID,
			Source:     kinds[s.rng.Intn(len(kinds))],
			Risk:       risk,
			Confidence: 0.5 + 0.5*s.rng.Float64(),
			Timestamp:  now,
		}
		if obs.Source == model.SourceClassification {
			obs.Risk = 0
			obs.Category = categoryFor(risk)
		}
		out = append(out, obs)
	}
	return out, nil
}

// walk advances the segment's base risk by a bounded random step.
func (s *Source) walk(segID string) float64 {
	base, ok := s.base[segID]
	if !ok {
		base = s.rng.Float64()
	}
	base += (s.rng.Float64()*2 - 1) * s.cfg.Drift
	if base < 0 {
		base = 0
	}
	if base > 1 {
		base = 1
	}
	s.base[segID] = base
	return base
}

func categoryFor(risk float64) string {
	switch {
	case risk < 0.2:
		return "dry"
	case risk < 0.5:
		return "wet"
	case risk < 0.7:
		return "slush"
	case risk < 0.85:
		return "snow"
	default:
		return "ice"
	}
}
