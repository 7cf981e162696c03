package metrics

import (
	"errors"

	coremetrics "github.com/rkiskaupas/roadrisk/core/metrics"
)

// MultiSink fans events out to several sinks.
type MultiSink struct {
	sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a sink writing to all provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// RecordCycle records the event on every sink, joining errors.
func (m *MultiSink) RecordCycle(ev coremetrics.CycleEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordCycle(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordPlan records the event on every sink, joining errors.
func (m *MultiSink) RecordPlan(ev coremetrics.PlanEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordPlan(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
