package model

import (
	"fmt"
	"time"
)

// AvailabilityWindow represents the period a resource can be deployed.
type AvailabilityWindow struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Contains reports whether t falls inside the window.
func (w AvailabilityWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Resource is a clearing crew or vehicle. Supplied by the resource
// directory each cycle and read-only to the planning core. A resource is
// positioned either by a node identifier or by coordinates, which the
// loader snaps onto the nearest network node.
type Resource struct {
	ID       string             `json:"id" yaml:"id"`
	Capacity float64            `json:"capacity" yaml:"capacity"` // metres of segment clearable per cycle
	Location string             `json:"location,omitempty" yaml:"location,omitempty"`
	Lat      float64            `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lon      float64            `json:"lon,omitempty" yaml:"lon,omitempty"`
	Window   AvailabilityWindow `json:"window" yaml:"window"`
}

// Validate checks that the resource record is usable.
func (r Resource) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("resource id is required")
	}
	if r.Capacity <= 0 {
		return fmt.Errorf("resource %s: capacity must be positive", r.ID)
	}
	if r.Location == "" && r.Lat == 0 && r.Lon == 0 {
		return fmt.Errorf("resource %s: location or coordinates are required", r.ID)
	}
	return nil
}
