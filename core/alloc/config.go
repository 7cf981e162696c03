package alloc

import "fmt"

// Config defines allocation parameters.
type Config struct {
	// StalenessDiscount multiplies the priority of segments whose fused
	// state is stale.
	StalenessDiscount float64 `json:"staleness_discount" yaml:"staleness_discount"`
	// ClassWeights assigns a priority multiplier per road class.
	ClassWeights map[string]float64 `json:"class_weights" yaml:"class_weights"`
	// ClearRateMPS converts travelled and cleared metres into elapsed
	// time against a resource's availability window.
	ClearRateMPS float64 `json:"clear_rate_mps" yaml:"clear_rate_mps"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.StalenessDiscount == 0 {
		c.StalenessDiscount = 0.5
	}
	if c.ClassWeights == nil {
		c.ClassWeights = map[string]float64{
			"arterial":  2.0,
			"collector": 1.5,
			"local":     1.0,
		}
	}
	if c.ClearRateMPS == 0 {
		c.ClearRateMPS = 4
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.StalenessDiscount < 0 || c.StalenessDiscount > 1 {
		return fmt.Errorf("staleness_discount must be in [0,1]")
	}
	if c.ClearRateMPS <= 0 {
		return fmt.Errorf("clear_rate_mps must be positive")
	}
	for class, w := range c.ClassWeights {
		if w <= 0 {
			return fmt.Errorf("class weight %s must be positive", class)
		}
	}
	return nil
}
