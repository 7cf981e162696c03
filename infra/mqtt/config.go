package mqtt

import "fmt"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker                string `json:"broker" yaml:"broker"`
	ClientID              string `json:"client_id" yaml:"client_id"`
	Username              string `json:"username" yaml:"username"`
	Password              string `json:"password" yaml:"password"`
	PlanTopic             string `json:"plan_topic" yaml:"plan_topic"`
	ObservationTopic      string `json:"observation_topic" yaml:"observation_topic"`
	QoS                   byte   `json:"qos" yaml:"qos"`
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds" yaml:"connect_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PlanTopic == "" {
		c.PlanTopic = "roadrisk/plan"
	}
	if c.ObservationTopic == "" {
		c.ObservationTopic = "roadrisk/observations/+"
	}
	if c.ConnectTimeoutSeconds == 0 {
		c.ConnectTimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2")
	}
	return nil
}
