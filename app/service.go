// Package app wires the planning core and its infrastructure from the
// configuration.
package app

import (
	"context"
	"fmt"

	"github.com/rkiskaupas/roadrisk/config"
	"github.com/rkiskaupas/roadrisk/core/alloc"
	"github.com/rkiskaupas/roadrisk/core/fusion"
	"github.com/rkiskaupas/roadrisk/core/graph"
	coremetrics "github.com/rkiskaupas/roadrisk/core/metrics"
	"github.com/rkiskaupas/roadrisk/core/model"
	"github.com/rkiskaupas/roadrisk/core/registry"
	"github.com/rkiskaupas/roadrisk/core/scheduler"
	"github.com/rkiskaupas/roadrisk/infra/logger"
	"github.com/rkiskaupas/roadrisk/infra/metrics"
	"github.com/rkiskaupas/roadrisk/infra/mqtt"
	"github.com/rkiskaupas/roadrisk/infra/synthetic"
	"github.com/rkiskaupas/roadrisk/internal/eventbus"
)

// Service owns the scheduler and its connectors.
type Service struct {
	Scheduler *scheduler.Scheduler
	Bus       *eventbus.Bus[model.AllocationPlan]

	log         logger.Logger
	source      *mqtt.ObservationSource
	publisher   *mqtt.PlanPublisher
	promEnabled bool
	promPort    string
}

// New builds a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")

	topo, err := registry.LoadTopology(cfg.TopologyPath)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	log.Infof("topology loaded: %d nodes, %d segments", topo.NodeCount(), topo.SegmentCount())

	fu, err := fusion.New(cfg.Fusion, topo)
	if err != nil {
		return nil, fmt.Errorf("fusion: %w", err)
	}
	g, err := graph.New(cfg.Graph, topo)
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}
	engine, err := alloc.New(cfg.Alloc, logger.New("alloc"))
	if err != nil {
		return nil, fmt.Errorf("alloc: %w", err)
	}

	var dir scheduler.ResourceDirectory
	if cfg.ResourcesPath != "" {
		set, err := registry.LoadResources(cfg.ResourcesPath)
		if err != nil {
			return nil, fmt.Errorf("resources: %w", err)
		}
		set, err = registry.ResolveLocations(topo, set)
		if err != nil {
			return nil, fmt.Errorf("resources: %w", err)
		}
		dir = scheduler.StaticDirectory{Set: set}
	} else {
		dir = scheduler.StaticDirectory{}
	}

	// Without a broker the synthetic source carries observation input and
	// plans are consumed from the in-process bus.
	var (
		source    *mqtt.ObservationSource
		publisher *mqtt.PlanPublisher
		planSink  scheduler.PlanSink = scheduler.NopPlanSink{}
		sources   []scheduler.ObservationSource
	)
	if cfg.MQTT.Broker != "" {
		source, err = mqtt.NewObservationSource(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("observation source: %w", err)
		}
		publisher, err = mqtt.NewPlanPublisher(cfg.MQTT)
		if err != nil {
			source.Close()
			return nil, fmt.Errorf("plan publisher: %w", err)
		}
		sources = append(sources, source)
		planSink = publisher
	}
	if cfg.Synthetic.Enabled {
		syn, err := synthetic.New(cfg.Synthetic, topo)
		if err != nil {
			if source != nil {
				source.Close()
			}
			if publisher != nil {
				publisher.Close()
			}
			return nil, fmt.Errorf("synthetic source: %w", err)
		}
		sources = append(sources, syn)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no observation source configured: set mqtt.broker or enable the synthetic source")
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New[model.AllocationPlan]()
	sched, err := scheduler.New(cfg.Scheduler,
		sources, dir, planSink,
		fu, g, engine, logger.New("scheduler"), sink, bus)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	return &Service{
		Scheduler:   sched,
		Bus:         bus,
		log:         log,
		source:      source,
		publisher:   publisher,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

// Run starts the refresh loop and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	s.Scheduler.Run(ctx)
	return nil
}

// Close releases broker connections and the bus.
func (s *Service) Close() {
	if s.source != nil {
		s.source.Close()
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
	s.Bus.Close()
}
