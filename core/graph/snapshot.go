package graph

import (
	"container/heap"

	"github.com/rkiskaupas/roadrisk/core/model"
	"github.com/rkiskaupas/roadrisk/core/registry"
)

// Snapshot is a frozen view of the condition graph taken at one version.
type Snapshot struct {
	topo    *registry.Topology
	k       float64
	states  map[string]model.FusedState
	version uint64
	adj     map[string][]model.Segment
}

// Version identifies the graph mutation count at snapshot time.
func (s *Snapshot) Version() uint64 { return s.version }

// Segment returns the segment with the given identifier.
func (s *Snapshot) Segment(id string) (model.Segment, bool) {
	return s.topo.Segment(id)
}

// Segments returns all segments sorted by identifier.
func (s *Snapshot) Segments() []model.Segment { return s.topo.Segments() }

// HasNode reports whether the node exists in the topology.
func (s *Snapshot) HasNode(id string) bool {
	_, ok := s.topo.Node(id)
	return ok
}

// State returns the fused state of a segment.
func (s *Snapshot) State(segmentID string) (model.FusedState, bool) {
	st, ok := s.states[segmentID]
	return st, ok
}

// EdgeWeight is the risk-weighted traversal cost of a segment.
func (s *Snapshot) EdgeWeight(seg model.Segment) float64 {
	risk := s.states[seg.ID].Risk
	return seg.Length * (1 + s.k*risk)
}

// ShortestPath returns the minimum risk-weighted cost between two nodes and
// the node sequence achieving it. ok is false when no path exists.
func (s *Snapshot) ShortestPath(from, to string) (cost float64, path []string, ok bool) {
	if !s.HasNode(from) || !s.HasNode(to) {
		return 0, nil, false
	}
	if from == to {
		return 0, []string{from}, true
	}

	dist := map[string]float64{from: 0}
	prev := make(map[string]string)
	pq := &nodeQueue{{node: from}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(nodeItem)
		if cur.node == to {
			break
		}
		if cur.dist > dist[cur.node] {
			continue
		}
		for _, seg := range s.adj[cur.node] {
			next := seg.Other(cur.node)
			alt := cur.dist + s.EdgeWeight(seg)
			if d, seen := dist[next]; !seen || alt < d {
				dist[next] = alt
				prev[next] = cur.node
				heap.Push(pq, nodeItem{node: next, dist: alt})
			}
		}
	}

	d, reached := dist[to]
	if !reached {
		return 0, nil, false
	}
	for at := to; at != ""; at = prev[at] {
		path = append([]string{at}, path...)
		if at == from {
			break
		}
	}
	return d, path, true
}

// Connected reports whether two nodes lie in the same component. Resources
// confined to a sub-region can only be assigned segments reachable from
// their position.
func (s *Snapshot) Connected(a, b string) bool {
	if !s.HasNode(a) || !s.HasNode(b) {
		return false
	}
	if a == b {
		return true
	}
	seen := map[string]bool{a: true}
	queue := []string{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, seg := range s.adj[cur] {
			next := seg.Other(cur)
			if next == b {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

type nodeItem struct {
	node string
	dist float64
}

type nodeQueue []nodeItem

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node < q[j].node
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)   { *q = append(*q, x.(nodeItem)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
