// Package depgraph builds the directed dependency graph over a MappingSpec
// and TransformRegistry, and answers the traversal queries impact analysis
// needs: transitive dependents, shortest paths, and bounded alternative
// paths between two nodes.
//
// Grounded on samgonzalezalberto's script-weaver TaskGraph
// (internal/dag/taskgraph.go): canonical node/edge ordering so two
// structurally-equal graphs produce byte-identical hashes regardless of
// input order, a length-prefixed SHA-256 accumulator for the graph hash,
// and topological-depth computation via Kahn's algorithm over canonical
// indices. Cycle handling differs: script-weaver rejects a cyclic graph
// outright, but spec.md requires impact analysis to keep working (with a
// validation_failed flag) when a spec contains a cycle, so NewGraph here
// records cycles instead of refusing to build.
package depgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/cheshbon/cheshbon/internal/kernel/kernelerrors"
)

// NodeKind classifies a graph node by the kind of spec/registry element it
// represents.
type NodeKind string

const (
	NodeSource     NodeKind = "source"
	NodeDerived    NodeKind = "derived"
	NodeConstraint NodeKind = "constraint"
	NodeTransform  NodeKind = "transform"
)

// Node is one element of the dependency graph.
type Node struct {
	ID   string
	Kind NodeKind
}

// Edge is a directed dependency edge: From is depended upon by To (data or
// control flows from From into To).
type Edge struct {
	From string
	To   string
}

type edgeIndex struct {
	from int
	to   int
}

// Graph is an immutable, canonically-ordered dependency graph. It is safe
// for concurrent read access.
type Graph struct {
	nodesByID map[string]int
	nodes     []Node // canonical order: sorted by ID

	edges []edgeIndex // sorted (from, to)

	outgoing [][]int // dependents, by canonical index, sorted ascending
	incoming [][]int // dependencies, by canonical index, sorted ascending
	depth    []int   // topological depth; -1 for nodes inside or downstream of a cycle

	cycles [][]string // cycle node-ID sequences discovered during construction

	hash string
}

// NewGraph builds and canonicalizes a Graph from nodes and edges. Duplicate
// node IDs and edges referencing unknown nodes are rejected outright;
// cycles are recorded (Graph.Cycles) rather than rejected, so a caller can
// still compute impact over the acyclic portion of a spec while flagging
// validation_failed for the rest.
func NewGraph(nodes []Node, edges []Edge) (*Graph, error) {
	nodesByID := make(map[string]int, len(nodes))
	canonical := make([]Node, len(nodes))
	copy(canonical, nodes)
	sort.Slice(canonical, func(i, j int) bool { return canonical[i].ID < canonical[j].ID })

	for i, n := range canonical {
		if n.ID == "" {
			return nil, fmt.Errorf("depgraph: node with empty id")
		}
		if _, dup := nodesByID[n.ID]; dup {
			return nil, fmt.Errorf("depgraph: duplicate node id %q", n.ID)
		}
		nodesByID[n.ID] = i
	}

	seen := make(map[edgeIndex]struct{}, len(edges))
	mapped := make([]edgeIndex, 0, len(edges))
	for _, e := range edges {
		fromIdx, okFrom := nodesByID[e.From]
		toIdx, okTo := nodesByID[e.To]
		if !okFrom {
			return nil, fmt.Errorf("depgraph: edge references unknown node (from): %q", e.From)
		}
		if !okTo {
			return nil, fmt.Errorf("depgraph: edge references unknown node (to): %q", e.To)
		}
		pair := edgeIndex{from: fromIdx, to: toIdx}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		mapped = append(mapped, pair)
	}
	sort.Slice(mapped, func(i, j int) bool {
		if mapped[i].from != mapped[j].from {
			return mapped[i].from < mapped[j].from
		}
		return mapped[i].to < mapped[j].to
	})

	outgoing := make([][]int, len(canonical))
	incoming := make([][]int, len(canonical))
	for _, e := range mapped {
		outgoing[e.from] = append(outgoing[e.from], e.to)
		incoming[e.to] = append(incoming[e.to], e.from)
	}
	for i := range outgoing {
		sort.Ints(outgoing[i])
		sort.Ints(incoming[i])
	}

	g := &Graph{
		nodesByID: nodesByID,
		nodes:     canonical,
		edges:     mapped,
		outgoing:  outgoing,
		incoming:  incoming,
	}

	g.cycles = g.findCycles()
	g.depth = g.computeDepth()
	g.hash = g.computeHash()
	return g, nil
}

// Hash returns the graph's stable content hash.
func (g *Graph) Hash() string { return g.hash }

// Node looks up a node by ID.
func (g *Graph) Node(id string) (Node, bool) {
	idx, ok := g.nodesByID[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[idx], true
}

// Nodes returns every node in canonical (sorted-by-ID) order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns every edge in canonical order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, Edge{From: g.nodes[e.from].ID, To: g.nodes[e.to].ID})
	}
	return out
}

// Cycles returns every cycle discovered during construction, as ordered
// node-ID sequences (first element repeated as the last to show closure).
func (g *Graph) Cycles() [][]string {
	out := make([][]string, len(g.cycles))
	copy(out, g.cycles)
	return out
}

// HasCycle reports whether the graph contains at least one cycle.
func (g *Graph) HasCycle() bool { return len(g.cycles) > 0 }

// Depth returns the node's topological depth (longest path from any root),
// or -1 if the node participates in or is downstream of a cycle.
func (g *Graph) Depth(id string) (int, bool) {
	idx, ok := g.nodesByID[id]
	if !ok {
		return 0, false
	}
	return g.depth[idx], true
}

// TransitiveDependents returns every node reachable from id by following
// outgoing edges, i.e. every node whose value directly or indirectly
// depends on id, in deterministic BFS-discovery order.
func (g *Graph) TransitiveDependents(id string) []string {
	start, ok := g.nodesByID[id]
	if !ok {
		return nil
	}
	visited := make([]bool, len(g.nodes))
	visited[start] = true
	queue := []int{start}
	var order []string
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.outgoing[u] {
			if visited[v] {
				continue
			}
			visited[v] = true
			order = append(order, g.nodes[v].ID)
			queue = append(queue, v)
		}
	}
	return order
}

// ShortestPath returns the shortest dependency path from `from` to `to`
// (inclusive of both endpoints), breaking ties between equal-length paths
// by preferring the lexicographically smallest sequence of node IDs. It
// returns (nil, false) if no path exists.
func (g *Graph) ShortestPath(from, to string) ([]string, bool) {
	fromIdx, ok1 := g.nodesByID[from]
	toIdx, ok2 := g.nodesByID[to]
	if !ok1 || !ok2 {
		return nil, false
	}
	if fromIdx == toIdx {
		return []string{g.nodes[fromIdx].ID}, true
	}

	dist := make([]int, len(g.nodes))
	for i := range dist {
		dist[i] = -1
	}
	dist[fromIdx] = 0
	queue := []int{fromIdx}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.outgoing[u] {
			if dist[v] != -1 {
				continue
			}
			dist[v] = dist[u] + 1
			queue = append(queue, v)
		}
	}
	if dist[toIdx] == -1 {
		return nil, false
	}

	// Reconstruct the lexicographically smallest shortest path by walking
	// forward from `from`, at each step choosing the outgoing neighbor on
	// the shortest-path frontier with the smallest ID, among those that
	// still reach `to` within the remaining distance budget.
	path := []string{g.nodes[fromIdx].ID}
	cur := fromIdx
	remaining := dist[toIdx]
	for cur != toIdx {
		var best = -1
		for _, v := range g.outgoing[cur] {
			if dist[v] != dist[cur]+1 {
				continue
			}
			if !g.canReach(v, toIdx, remaining-1) {
				continue
			}
			if best == -1 || g.nodes[v].ID < g.nodes[best].ID {
				best = v
			}
		}
		if best == -1 {
			return nil, false
		}
		path = append(path, g.nodes[best].ID)
		cur = best
		remaining--
	}
	return path, true
}

// canReach reports whether to is reachable from u within exactly budget
// hops via a shortest path (used by ShortestPath's greedy reconstruction).
func (g *Graph) canReach(u, to, budget int) bool {
	if budget < 0 {
		return false
	}
	if u == to {
		return budget == 0
	}
	dist := make([]int, len(g.nodes))
	for i := range dist {
		dist[i] = -1
	}
	dist[u] = 0
	queue := []int{u}
	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]
		if dist[x] > budget {
			continue
		}
		for _, v := range g.outgoing[x] {
			if dist[v] != -1 {
				continue
			}
			dist[v] = dist[x] + 1
			queue = append(queue, v)
		}
	}
	return dist[to] == budget
}

// MaxAlternativePaths and MaxAlternativePathLengthSlack bound
// AlternativePaths' search so a densely connected spec can't make impact
// reporting unbounded.
const (
	MaxAlternativePaths           = 10
	MaxAlternativePathLengthSlack = 10
)

// AlternativePaths enumerates up to MaxAlternativePaths distinct paths from
// from to to, each no longer than the shortest path's length plus
// MaxAlternativePathLengthSlack, in ascending-length then lexicographic
// order. The shortest path itself is included. Returns nil if no path
// exists.
func (g *Graph) AlternativePaths(from, to string) [][]string {
	shortest, ok := g.ShortestPath(from, to)
	if !ok {
		return nil
	}
	maxLen := len(shortest) + MaxAlternativePathLengthSlack

	fromIdx := g.nodesByID[from]
	toIdx := g.nodesByID[to]

	var results [][]string
	var walk func(cur int, path []int, visited map[int]bool)
	walk = func(cur int, path []int, visited map[int]bool) {
		if len(results) >= MaxAlternativePaths {
			return
		}
		if len(path) > maxLen {
			return
		}
		if cur == toIdx {
			ids := make([]string, len(path))
			for i, idx := range path {
				ids[i] = g.nodes[idx].ID
			}
			results = append(results, ids)
			return
		}
		neighbors := append([]int{}, g.outgoing[cur]...)
		sort.Ints(neighbors)
		for _, v := range neighbors {
			if visited[v] {
				continue
			}
			if len(results) >= MaxAlternativePaths {
				return
			}
			visited[v] = true
			walk(v, append(path, v), visited)
			delete(visited, v)
		}
	}
	walk(fromIdx, []int{fromIdx}, map[int]bool{fromIdx: true})

	sort.SliceStable(results, func(i, j int) bool {
		if len(results[i]) != len(results[j]) {
			return len(results[i]) < len(results[j])
		}
		for k := range results[i] {
			if results[i][k] != results[j][k] {
				return results[i][k] < results[j][k]
			}
		}
		return false
	})
	if len(results) > MaxAlternativePaths {
		results = results[:MaxAlternativePaths]
	}
	return results
}

func (g *Graph) computeDepth() []int {
	depth := make([]int, len(g.nodes))
	for i := range depth {
		depth[i] = -1
	}

	indeg := make([]int, len(g.nodes))
	for v := range g.incoming {
		indeg[v] = len(g.incoming[v])
	}

	queue := make([]int, 0, len(g.nodes))
	for i, d := range indeg {
		if d == 0 {
			queue = append(queue, i)
			depth[i] = 0
		}
	}
	sort.Ints(queue)

	remaining := append([]int{}, indeg...)
	processed := 0
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		processed++
		for _, v := range g.outgoing[u] {
			if cand := depth[u] + 1; cand > depth[v] {
				depth[v] = cand
			}
			remaining[v]--
			if remaining[v] == 0 {
				queue = append(queue, v)
				sort.Ints(queue)
			}
		}
	}
	// Any node with remaining[v] > 0 never reached indegree zero: it sits
	// inside or downstream of a cycle. Leave its depth at -1.
	if processed != len(g.nodes) {
		for i, r := range remaining {
			if r > 0 {
				depth[i] = -1
			}
		}
	}
	return depth
}

func (g *Graph) findCycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.nodes))
	var stack []int
	var cycles [][]string

	var visit func(u int)
	visit = func(u int) {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range g.outgoing[u] {
			switch color[v] {
			case white:
				visit(v)
			case gray:
				// Found a back edge: extract the cycle from stack.
				start := -1
				for i, x := range stack {
					if x == v {
						start = i
						break
					}
				}
				if start >= 0 {
					cycle := make([]string, 0, len(stack)-start+1)
					for _, x := range stack[start:] {
						cycle = append(cycle, g.nodes[x].ID)
					}
					cycle = append(cycle, g.nodes[v].ID)
					cycles = append(cycles, cycle)
				}
			case black:
				// already fully explored, no cycle through here
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
	}

	for i := range g.nodes {
		if color[i] == white {
			visit(i)
		}
	}
	return cycles
}

func (g *Graph) computeHash() string {
	h := sha256.New()
	writeField := func(data []byte) {
		n := uint64(len(data))
		var lenBytes [8]byte
		for i := 0; i < 8; i++ {
			lenBytes[7-i] = byte(n >> (8 * i))
		}
		h.Write(lenBytes[:])
		h.Write(data)
	}

	writeField([]byte(fmt.Sprintf("%d", len(g.nodes))))
	for _, n := range g.nodes {
		writeField([]byte(string(n.Kind) + ":" + n.ID))
	}
	writeField([]byte(fmt.Sprintf("%d", len(g.edges))))
	for _, e := range g.edges {
		writeField([]byte(fmt.Sprintf("%d->%d", e.from, e.to)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AsGraphError converts the graph's discovered cycles into a slice of
// kernelerrors.GraphError, one per cycle, for surfacing through the same
// typed-error taxonomy as the rest of the kernel.
func (g *Graph) AsGraphError() []*kernelerrors.GraphError {
	if len(g.cycles) == 0 {
		return nil
	}
	out := make([]*kernelerrors.GraphError, 0, len(g.cycles))
	for _, c := range g.cycles {
		out = append(out, kernelerrors.NewCycleDetected(c))
	}
	return out
}
