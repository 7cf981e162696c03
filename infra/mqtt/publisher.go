// Package mqtt connects the planning core to external collaborators over
// MQTT: plans go out on the plan topic, observations come in from the
// segmentation, classification and weather producers.
package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/rkiskaupas/roadrisk/core/model"
	"github.com/rkiskaupas/roadrisk/infra/logger"
)

// PlanPublisher publishes allocation plans to the configured topic. It
// implements scheduler.PlanSink.
type PlanPublisher struct {
	cli   paho.Client
	topic string
	qos   byte
	log   logger.Logger
}

// NewPlanPublisher connects to the broker and returns a publisher.
func NewPlanPublisher(cfg Config) (*PlanPublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.New("mqtt-plan")
	opts := clientOptions(cfg, "plan-pub", log)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); !token.WaitTimeout(connectTimeout(cfg)) || token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", tokenErr(token))
	}
	return &PlanPublisher{cli: cli, topic: cfg.PlanTopic, qos: cfg.QoS, log: log}, nil
}

// Publish serialises the plan and publishes it. Failure is reported to the
// caller; the scheduler keeps the plan current regardless.
func (p *PlanPublisher) Publish(plan model.AllocationPlan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	token := p.cli.Publish(p.topic, p.qos, false, payload)
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return fmt.Errorf("publish plan %s: %w", plan.ID, tokenErr(token))
	}
	p.log.Debugf("plan %s published to %s", plan.ID, p.topic)
	return nil
}

// Close disconnects from the broker.
func (p *PlanPublisher) Close() {
	p.cli.Disconnect(250)
}

// MockPlanSink records published plans for tests.
type MockPlanSink struct {
	mu    sync.Mutex
	Plans []model.AllocationPlan
	Fail  bool
}

// Publish stores the plan or fails when configured to.
func (m *MockPlanSink) Publish(plan model.AllocationPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Plans = append(m.Plans, plan)
	return nil
}

// Published returns a copy of the recorded plans.
func (m *MockPlanSink) Published() []model.AllocationPlan {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AllocationPlan, len(m.Plans))
	copy(out, m.Plans)
	return out
}

func clientOptions(cfg Config, suffix string, log logger.Logger) *paho.ClientOptions {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "roadrisk-" + uuid.NewString()[:8]
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID + "-" + suffix)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	return opts
}

func connectTimeout(cfg Config) time.Duration {
	return time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
}

func tokenErr(token paho.Token) error {
	if err := token.Error(); err != nil {
		return err
	}
	return fmt.Errorf("timeout")
}
