// Package config loads the service configuration from YAML or JSON files
// with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/rkiskaupas/roadrisk/core/alloc"
	"github.com/rkiskaupas/roadrisk/core/fusion"
	"github.com/rkiskaupas/roadrisk/core/graph"
	coremetrics "github.com/rkiskaupas/roadrisk/core/metrics"
	"github.com/rkiskaupas/roadrisk/core/scheduler"
	"github.com/rkiskaupas/roadrisk/infra/mqtt"
	"github.com/rkiskaupas/roadrisk/infra/synthetic"
)

// Config aggregates all subsystem configurations.
type Config struct {
	// TopologyPath points to the road network description file.
	TopologyPath string `json:"topology_path"`
	// ResourcesPath points to the clearing resource set. Optional when a
	// remote resource directory is wired in instead.
	ResourcesPath string `json:"resources_path"`

	Fusion    fusion.Config      `json:"fusion"`
	Graph     graph.Config       `json:"graph"`
	Alloc     alloc.Config       `json:"alloc"`
	Scheduler scheduler.Config   `json:"scheduler"`
	// MQTT is skipped entirely when no broker is configured; the
	// synthetic source then has to cover observation input.
	MQTT      mqtt.Config        `json:"mqtt"`
	Metrics   coremetrics.Config `json:"metrics"`
	Synthetic synthetic.Config   `json:"synthetic"`
}

// Load reads the configuration file at path. Environment variables
// prefixed RR_ override file values, with __ separating nesting levels.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("RR_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "rr_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Fusion.SetDefaults()
	c.Graph.SetDefaults()
	c.Alloc.SetDefaults()
	c.Scheduler.SetDefaults()
	c.MQTT.SetDefaults()
	c.Metrics.SetDefaults()
	c.Synthetic.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.TopologyPath == "" {
		return fmt.Errorf("topology_path is required")
	}
	if err := c.Fusion.Validate(); err != nil {
		return fmt.Errorf("fusion: %w", err)
	}
	if err := c.Graph.Validate(); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	if err := c.Alloc.Validate(); err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	// The MQTT section is optional: the synthetic source can drive the
	// whole pipeline without a broker, and one-shot planning needs none.
	if c.MQTT.Broker != "" {
		if err := c.MQTT.Validate(); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if err := c.Synthetic.Validate(); err != nil {
		return fmt.Errorf("synthetic: %w", err)
	}
	return nil
}
