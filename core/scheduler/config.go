package scheduler

import "fmt"

// Config defines cycle timing parameters.
type Config struct {
	// TickSeconds is the refresh interval.
	TickSeconds int `json:"tick_seconds" yaml:"tick_seconds"`
	// MinReplanSeconds is the minimum interval between two replans even
	// if ticks fire faster.
	MinReplanSeconds int `json:"min_replan_seconds" yaml:"min_replan_seconds"`
	// FetchTimeoutSeconds bounds each observation-source fetch.
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds" yaml:"fetch_timeout_seconds"`
	// BatchLimit bounds how many observations one source may deliver per tick.
	BatchLimit int `json:"batch_limit" yaml:"batch_limit"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TickSeconds == 0 {
		c.TickSeconds = 180
	}
	if c.MinReplanSeconds == 0 {
		c.MinReplanSeconds = 120
	}
	if c.FetchTimeoutSeconds == 0 {
		c.FetchTimeoutSeconds = 10
	}
	if c.BatchLimit == 0 {
		c.BatchLimit = 256
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TickSeconds <= 0 {
		return fmt.Errorf("tick_seconds must be positive")
	}
	if c.MinReplanSeconds < 0 {
		return fmt.Errorf("min_replan_seconds must not be negative")
	}
	if c.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch_timeout_seconds must be positive")
	}
	if c.BatchLimit <= 0 {
		return fmt.Errorf("batch_limit must be positive")
	}
	return nil
}
