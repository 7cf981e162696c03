package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/rkiskaupas/roadrisk/core/model"
	"github.com/rkiskaupas/roadrisk/infra/logger"
)

// maxBuffered bounds the number of observations held between ticks.
// Oldest entries are dropped when producers outpace the scheduler.
const maxBuffered = 4096

// wireObservation is the JSON shape produced by the external collaborators.
type wireObservation struct {
	SegmentID  string    `json:"segment_id"`
	Source     string    `json:"source"`
	Risk       float64   `json:"risk"`
	Category   string    `json:"category,omitempty"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	Expiry     time.Time `json:"expiry,omitempty"`
}

// ObservationSource buffers observations arriving on the observation topic
// and hands them to the scheduler in bounded batches. It implements
// scheduler.ObservationSource.
type ObservationSource struct {
	cli paho.Client
	log logger.Logger

	mu      sync.Mutex
	pending []model.Observation
	dropped int
}

// NewObservationSource connects and subscribes to the observation topic.
func NewObservationSource(cfg Config) (*ObservationSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.New("mqtt-observations")
	src := &ObservationSource{log: log}

	opts := clientOptions(cfg, "obs-sub", log)
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(cfg.ObservationTopic, cfg.QoS, src.onMessage); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	cli := paho.NewClient(opts)
	if token := cli.Connect(); !token.WaitTimeout(connectTimeout(cfg)) || token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", tokenErr(token))
	}
	src.cli = cli
	return src, nil
}

func (s *ObservationSource) onMessage(_ paho.Client, msg paho.Message) {
	var w wireObservation
	if err := json.Unmarshal(msg.Payload(), &w); err != nil {
		s.log.Warnf("malformed observation on %s: %v", msg.Topic(), err)
		return
	}
	kind, err := model.ParseSourceKind(w.Source)
	if err != nil {
		s.log.Warnf("observation on %s: %v", msg.Topic(), err)
		return
	}
	obs := model.Observation{
		SegmentID:  w.SegmentID,
		Source:     kind,
		Risk:       w.Risk,
		Category:   w.Category,
		Confidence: w.Confidence,
		Timestamp:  w.Timestamp,
		Expiry:     w.Expiry,
	}
	s.mu.Lock()
	s.pending = append(s.pending, obs)
	if excess := len(s.pending) - maxBuffered; excess > 0 {
		s.pending = s.pending[excess:]
		s.dropped += excess
	}
	s.mu.Unlock()
}

// Name identifies the source in diagnostics.
func (s *ObservationSource) Name() string { return "mqtt" }

// Fetch drains up to limit buffered observations.
func (s *ObservationSource) Fetch(ctx context.Context, limit int) ([]model.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropped > 0 {
		s.log.Warnf("%d observations dropped since last fetch", s.dropped)
		s.dropped = 0
	}
	n := len(s.pending)
	if n > limit {
		n = limit
	}
	batch := make([]model.Observation, n)
	copy(batch, s.pending[:n])
	s.pending = s.pending[n:]
	return batch, nil
}

// Close disconnects from the broker.
func (s *ObservationSource) Close() {
	s.cli.Disconnect(250)
}
