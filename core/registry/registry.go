// Package registry owns the static topology of the road network. Nodes and
// segments are registered once at startup; the resulting Topology view is
// immutable and shared with the condition graph.
package registry

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rkiskaupas/roadrisk/core/model"
)

var (
	// ErrDuplicateSegment indicates a node or segment identifier was registered twice.
	ErrDuplicateSegment = errors.New("duplicate segment")
	// ErrInconsistentTopology indicates a re-registration with different attributes.
	ErrInconsistentTopology = errors.New("inconsistent topology")
	// ErrUnknownNode indicates a segment references a node that was never registered.
	ErrUnknownNode = errors.New("unknown node")
)

// Registry collects nodes and segments during initial load.
type Registry struct {
	nodes    map[string]model.Node
	segments map[string]model.Segment
	sealed   bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		nodes:    make(map[string]model.Node),
		segments: make(map[string]model.Segment),
	}
}

// RegisterNode adds an intersection. Registering the same identifier twice
// with identical attributes is a no-op; differing attributes fail.
func (r *Registry) RegisterNode(n model.Node) error {
	if r.sealed {
		return fmt.Errorf("%w: registry is sealed", ErrInconsistentTopology)
	}
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if prev, ok := r.nodes[n.ID]; ok {
		if prev != n {
			return fmt.Errorf("%w: node %s re-registered with different attributes", ErrInconsistentTopology, n.ID)
		}
		return fmt.Errorf("%w: node %s", ErrDuplicateSegment, n.ID)
	}
	r.nodes[n.ID] = n
	return nil
}

// RegisterSegment adds a road segment between two registered nodes.
func (r *Registry) RegisterSegment(s model.Segment) error {
	if r.sealed {
		return fmt.Errorf("%w: registry is sealed", ErrInconsistentTopology)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if prev, ok := r.segments[s.ID]; ok {
		if prev != s {
			return fmt.Errorf("%w: segment %s re-registered with different attributes", ErrInconsistentTopology, s.ID)
		}
		return fmt.Errorf("%w: segment %s", ErrDuplicateSegment, s.ID)
	}
	for _, id := range []string{s.From, s.To} {
		if _, ok := r.nodes[id]; !ok {
			return fmt.Errorf("%w: segment %s endpoint %s", ErrUnknownNode, s.ID, id)
		}
	}
	r.segments[s.ID] = s
	return nil
}

// Topology seals the registry and returns the immutable view.
func (r *Registry) Topology() *Topology {
	r.sealed = true
	t := &Topology{
		nodes:    make(map[string]model.Node, len(r.nodes)),
		segments: make(map[string]model.Segment, len(r.segments)),
	}
	for id, n := range r.nodes {
		t.nodes[id] = n
	}
	for id, s := range r.segments {
		t.segments[id] = s
	}
	return t
}

// Topology is an immutable node and segment set.
type Topology struct {
	nodes    map[string]model.Node
	segments map[string]model.Segment
}

// Node returns the node with the given identifier.
func (t *Topology) Node(id string) (model.Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Segment returns the segment with the given identifier.
func (t *Topology) Segment(id string) (model.Segment, bool) {
	s, ok := t.segments[id]
	return s, ok
}

// Nodes returns all nodes sorted by identifier.
func (t *Topology) Nodes() []model.Node {
	res := make([]model.Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		res = append(res, n)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Segments returns all segments sorted by identifier.
func (t *Topology) Segments() []model.Segment {
	res := make([]model.Segment, 0, len(t.segments))
	for _, s := range t.segments {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// NodeCount returns the number of registered nodes.
func (t *Topology) NodeCount() int { return len(t.nodes) }

// SegmentCount returns the number of registered segments.
func (t *Topology) SegmentCount() int { return len(t.segments) }

// FilterByClass returns a topology restricted to segments of the given
// classes. Nodes are kept so resource locations remain resolvable.
func (t *Topology) FilterByClass(classes ...model.RoadClass) *Topology {
	keep := make(map[model.RoadClass]bool, len(classes))
	for _, c := range classes {
		keep[c] = true
	}
	ft := &Topology{
		nodes:    t.nodes,
		segments: make(map[string]model.Segment),
	}
	for id, s := range t.segments {
		if keep[s.Class] {
			ft.segments[id] = s
		}
	}
	return ft
}

// NearestNode returns the node closest to the given coordinate. Used to
// snap external sensors (weather stations, cameras) onto the network.
func (t *Topology) NearestNode(lat, lon float64) (model.Node, bool) {
	var (
		best  model.Node
		bestD = math.Inf(1)
		found bool
	)
	for _, n := range t.nodes {
		dLat := n.Lat - lat
		dLon := n.Lon - lon
		d := dLat*dLat + dLon*dLon
		if d < bestD || (d == bestD && found && n.ID < best.ID) {
			best, bestD, found = n, d, true
		}
	}
	return best, found
}
