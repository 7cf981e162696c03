package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/rkiskaupas/roadrisk/core/metrics"
)

// PromSink records scheduler cycles and plans in Prometheus metrics.
type PromSink struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	rejected      prometheus.Counter
	staleSegments prometheus.Gauge
	planSegments  prometheus.Gauge
	riskReduction prometheus.Gauge
	skipped       prometheus.Gauge
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The exposition server should be started separately via StartPromServer.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadrisk_cycles_total",
			Help: "Total number of scheduler cycles by outcome",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roadrisk_cycle_duration_seconds",
			Help:    "Duration of one fetch-fuse-replan-publish cycle",
			Buckets: prometheus.DefBuckets,
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadrisk_observations_rejected_total",
			Help: "Total number of malformed observations discarded",
		}),
		staleSegments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roadrisk_stale_segments",
			Help: "Number of segments without fresh observations",
		}),
		planSegments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roadrisk_plan_segments",
			Help: "Segments assigned in the current plan",
		}),
		riskReduction: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roadrisk_plan_risk_reduction",
			Help: "Aggregate risk reduction score of the current plan",
		}),
		skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roadrisk_plan_skipped_resources",
			Help: "Resources skipped as disconnected in the current plan",
		}),
	}

	collectors := []prometheus.Collector{
		s.cycles, s.cycleDuration, s.rejected, s.staleSegments,
		s.planSegments, s.riskReduction, s.skipped,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordCycle updates the cycle counters and gauges.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.WithLabelValues(ev.Outcome).Inc()
	s.cycleDuration.Observe(ev.Duration.Seconds())
	s.rejected.Add(float64(ev.Rejected))
	s.staleSegments.Set(float64(ev.StaleSegments))
	return nil
}

// RecordPlan updates the plan gauges.
func (s *PromSink) RecordPlan(ev coremetrics.PlanEvent) error {
	s.planSegments.Set(float64(ev.Segments))
	s.riskReduction.Set(ev.RiskReduction)
	s.skipped.Set(float64(ev.SkippedResources))
	return nil
}
