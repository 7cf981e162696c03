package metrics

import (
	"context"
	"net/http"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	coremetrics "github.com/rkiskaupas/roadrisk/core/metrics"
	"github.com/rkiskaupas/roadrisk/infra/logger"
)

// InfluxSink writes cycle and plan events to an InfluxDB instance.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordCycle writes a cycle point.
func (s *InfluxSink) RecordCycle(ev coremetrics.CycleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := influxdb2.NewPoint("cycle",
		map[string]string{"outcome": ev.Outcome},
		map[string]any{
			"duration_ms":    ev.Duration.Milliseconds(),
			"observations":   ev.Observations,
			"rejected":       ev.Rejected,
			"stale_segments": ev.StaleSegments,
		},
		ev.Time)
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		s.log.Errorf("influx write: %v", err)
		return err
	}
	return nil
}

// RecordPlan writes a plan point.
func (s *InfluxSink) RecordPlan(ev coremetrics.PlanEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := influxdb2.NewPoint("plan",
		map[string]string{"plan_id": ev.PlanID},
		map[string]any{
			"resources":         ev.Resources,
			"segments":          ev.Segments,
			"risk_reduction":    ev.RiskReduction,
			"skipped_resources": ev.SkippedResources,
		},
		ev.Time)
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		s.log.Errorf("influx write: %v", err)
		return err
	}
	return nil
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }
