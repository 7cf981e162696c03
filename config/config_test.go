package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
topology_path: /etc/roadrisk/topology.yaml
resources_path: /etc/roadrisk/resources.yaml
fusion:
  window_size: 12
scheduler:
  tick_seconds: 60
mqtt:
  broker: tcp://localhost:1883
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/roadrisk/topology.yaml", cfg.TopologyPath)
	assert.Equal(t, 12, cfg.Fusion.WindowSize)
	assert.Equal(t, 60, cfg.Scheduler.TickSeconds)

	// Unspecified sections fall back to defaults.
	assert.Equal(t, 120, cfg.Scheduler.MinReplanSeconds)
	assert.InDelta(t, 0.2, cfg.Fusion.NeutralPrior, 1e-9)
	assert.Equal(t, "roadrisk/plan", cfg.MQTT.PlanTopic)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json",
		`{"topology_path": "/tmp/topo.json", "graph": {"risk_weight_k": 3}, "mqtt": {"broker": "tcp://localhost:1883"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 3, cfg.Graph.RiskWeightK, 1e-9)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", "topology_path: /from/file.yaml\nmqtt:\n  broker: tcp://localhost:1883\n")
	t.Setenv("RR_TOPOLOGY_PATH", "/from/env.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.yaml", cfg.TopologyPath)
}

func TestLoadBrokerlessSynthetic(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
topology_path: /tmp/topo.yaml
synthetic:
  enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err, "synthetic-only deployments need no broker")
	assert.Empty(t, cfg.MQTT.Broker)
	assert.True(t, cfg.Synthetic.Enabled)
}

func TestLoadRequiresTopologyPath(t *testing.T) {
	path := writeConfig(t, "config.yaml", "resources_path: /tmp/resources.yaml\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidSection(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
topology_path: /tmp/topo.yaml
mqtt:
  broker: tcp://localhost:1883
fusion:
  decay_rate: 1.5
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "fusion")
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", "topology_path = \"/tmp/topo.yaml\"\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported config format")
}
