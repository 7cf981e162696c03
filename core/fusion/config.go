package fusion

import "fmt"

// Config defines the fusion parameters.
type Config struct {
	// WindowSize bounds the per-segment observation history.
	WindowSize int `json:"window_size" yaml:"window_size"`
	// FreshnessWindowSeconds is the age beyond which an observation no
	// longer contributes and the segment is considered stale.
	FreshnessWindowSeconds int `json:"freshness_window_seconds" yaml:"freshness_window_seconds"`
	// ExpiryWindowSeconds is the staleness age beyond which the fused
	// value starts decaying toward the neutral prior.
	ExpiryWindowSeconds int `json:"expiry_window_seconds" yaml:"expiry_window_seconds"`
	// HalfLifeSeconds controls the exponential recency decay of
	// observation weights inside the freshness window.
	HalfLifeSeconds int `json:"half_life_seconds" yaml:"half_life_seconds"`
	// DecayRate is the per-tick fraction by which an expired fused value
	// moves toward the neutral prior.
	DecayRate float64 `json:"decay_rate" yaml:"decay_rate"`
	// NeutralPrior is the risk assumed for segments without evidence.
	NeutralPrior float64 `json:"neutral_prior" yaml:"neutral_prior"`
	// SourceWeights assigns a relative weight per source kind. Visual/ML
	// sources should outweigh weather proxies.
	SourceWeights map[string]float64 `json:"source_weights" yaml:"source_weights"`
	// CategoryRisk maps discrete condition categories to risk scores.
	CategoryRisk map[string]float64 `json:"category_risk" yaml:"category_risk"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.WindowSize == 0 {
		c.WindowSize = 8
	}
	if c.FreshnessWindowSeconds == 0 {
		c.FreshnessWindowSeconds = 900
	}
	if c.ExpiryWindowSeconds == 0 {
		c.ExpiryWindowSeconds = 3600
	}
	if c.HalfLifeSeconds == 0 {
		c.HalfLifeSeconds = 600
	}
	if c.DecayRate == 0 {
		c.DecayRate = 0.2
	}
	if c.NeutralPrior == 0 {
		c.NeutralPrior = 0.2
	}
	if c.SourceWeights == nil {
		c.SourceWeights = map[string]float64{
			"segmentation":   1.0,
			"classification": 1.0,
			"weather":        0.5,
		}
	}
	if c.CategoryRisk == nil {
		c.CategoryRisk = map[string]float64{
			"dry":   0.05,
			"wet":   0.35,
			"slush": 0.6,
			"snow":  0.75,
			"ice":   0.95,
		}
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive")
	}
	if c.FreshnessWindowSeconds <= 0 {
		return fmt.Errorf("freshness_window_seconds must be positive")
	}
	if c.ExpiryWindowSeconds < c.FreshnessWindowSeconds {
		return fmt.Errorf("expiry_window_seconds must not be shorter than the freshness window")
	}
	if c.HalfLifeSeconds <= 0 {
		return fmt.Errorf("half_life_seconds must be positive")
	}
	if c.DecayRate <= 0 || c.DecayRate > 1 {
		return fmt.Errorf("decay_rate must be in (0,1]")
	}
	if c.NeutralPrior < 0 || c.NeutralPrior > 1 {
		return fmt.Errorf("neutral_prior must be in [0,1]")
	}
	for k, w := range c.SourceWeights {
		if w < 0 {
			return fmt.Errorf("source weight %s must not be negative", k)
		}
	}
	for cat, r := range c.CategoryRisk {
		if r < 0 || r > 1 {
			return fmt.Errorf("category risk %s must be in [0,1]", cat)
		}
	}
	return nil
}
