package model

import "fmt"

// RoadClass categorises a segment by its role in the network.
type RoadClass int

const (
	ClassLocal RoadClass = iota
	ClassCollector
	ClassArterial
)

// String returns a human-readable representation of the road class.
func (c RoadClass) String() string {
	switch c {
	case ClassArterial:
		return "arterial"
	case ClassCollector:
		return "collector"
	case ClassLocal:
		return "local"
	default:
		return "unknown"
	}
}

// roadTypeClasses maps road-type names found in topology sources onto the
// three-level class taxonomy. The Icelandic names correspond to the IS-50V
// road categories of the national road registry.
var roadTypeClasses = map[string]RoadClass{
	"arterial":  ClassArterial,
	"collector": ClassCollector,
	"local":     ClassLocal,

	"Stofnvegur":             ClassArterial,
	"Stofnvegur um hálendið": ClassArterial,
	"Tengivegur":             ClassCollector,
	"Landsvegur":             ClassCollector,
	"Héraðsvegur":            ClassLocal,
	"Almennur vegur":         ClassLocal,
	"Einkavegur":             ClassLocal,
	"Main Road":              ClassArterial,
	"Highland Main Road":     ClassArterial,
	"Link Road":              ClassCollector,
	"National Road":          ClassCollector,
	"County Road":            ClassLocal,
	"Public Road":            ClassLocal,
	"Private Road":           ClassLocal,
}

// ParseRoadClass resolves a road-type name to its class.
func ParseRoadClass(name string) (RoadClass, error) {
	c, ok := roadTypeClasses[name]
	if !ok {
		return ClassLocal, fmt.Errorf("unknown road type %q", name)
	}
	return c, nil
}

// Node is an intersection of the road network.
type Node struct {
	ID  string
	Lat float64
	Lon float64
}

// Segment is an undirected edge of the road network between two nodes.
// Segments are immutable after registration.
type Segment struct {
	ID       string
	From     string
	To       string
	Length   float64 // metres
	Class    RoadClass
	Priority float64 // base priority weight, >= 0
}

// Validate checks that the segment definition is sound.
func (s Segment) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("segment id is required")
	}
	if s.From == "" || s.To == "" {
		return fmt.Errorf("segment %s: both endpoints are required", s.ID)
	}
	if s.Length <= 0 {
		return fmt.Errorf("segment %s: length must be positive", s.ID)
	}
	if s.Priority < 0 {
		return fmt.Errorf("segment %s: priority weight must not be negative", s.ID)
	}
	return nil
}

// Other returns the endpoint opposite to the given node.
func (s Segment) Other(node string) string {
	if node == s.From {
		return s.To
	}
	return s.From
}
