package depgraph

import (
	"reflect"
	"testing"
)

func diamond() (*Graph, error) {
	nodes := []Node{
		{ID: "s:A", Kind: NodeSource},
		{ID: "d:B", Kind: NodeDerived},
		{ID: "d:C", Kind: NodeDerived},
		{ID: "d:D", Kind: NodeDerived},
	}
	edges := []Edge{
		{From: "s:A", To: "d:B"},
		{From: "s:A", To: "d:C"},
		{From: "d:B", To: "d:D"},
		{From: "d:C", To: "d:D"},
	}
	return NewGraph(nodes, edges)
}

func TestNewGraph_CanonicalOrder(t *testing.T) {
	g, err := diamond()
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	want := []string{"d:B", "d:C", "d:D", "s:A"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
}

func TestNewGraph_DuplicateNodeRejected(t *testing.T) {
	nodes := []Node{{ID: "s:A", Kind: NodeSource}, {ID: "s:A", Kind: NodeSource}}
	if _, err := NewGraph(nodes, nil); err == nil {
		t.Fatal("expected error for duplicate node id")
	}
}

func TestNewGraph_EdgeToUnknownNodeRejected(t *testing.T) {
	nodes := []Node{{ID: "s:A", Kind: NodeSource}}
	edges := []Edge{{From: "s:A", To: "d:GHOST"}}
	if _, err := NewGraph(nodes, edges); err == nil {
		t.Fatal("expected error for edge to unknown node")
	}
}

func TestTransitiveDependents(t *testing.T) {
	g, err := diamond()
	if err != nil {
		t.Fatal(err)
	}
	got := g.TransitiveDependents("s:A")
	want := map[string]bool{"d:B": true, "d:C": true, "d:D": true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want keys %v", got, want)
	}
	for _, id := range got {
		if !want[id] {
			t.Fatalf("unexpected dependent %q", id)
		}
	}
}

func TestShortestPath(t *testing.T) {
	g, err := diamond()
	if err != nil {
		t.Fatal(err)
	}
	path, ok := g.ShortestPath("s:A", "d:D")
	if !ok {
		t.Fatal("expected a path")
	}
	if len(path) != 3 {
		t.Fatalf("expected length-3 path, got %v", path)
	}
	// Both s:A->d:B->d:D and s:A->d:C->d:D are length 3; lexicographic
	// tie-break prefers d:B over d:C.
	want := []string{"s:A", "d:B", "d:D"}
	if !reflect.DeepEqual(path, want) {
		t.Fatalf("got %v, want %v", path, want)
	}
}

func TestShortestPath_NoPath(t *testing.T) {
	g, err := diamond()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.ShortestPath("d:D", "s:A"); ok {
		t.Fatal("expected no path in the reverse direction")
	}
}

func TestAlternativePaths_IncludesShortest(t *testing.T) {
	g, err := diamond()
	if err != nil {
		t.Fatal(err)
	}
	paths := g.AlternativePaths("s:A", "d:D")
	if len(paths) != 2 {
		t.Fatalf("expected 2 alternative paths through the diamond, got %v", paths)
	}
	if !reflect.DeepEqual(paths[0], []string{"s:A", "d:B", "d:D"}) {
		t.Fatalf("unexpected first path: %v", paths[0])
	}
}

func TestHasCycle(t *testing.T) {
	nodes := []Node{
		{ID: "d:A", Kind: NodeDerived},
		{ID: "d:B", Kind: NodeDerived},
	}
	edges := []Edge{
		{From: "d:A", To: "d:B"},
		{From: "d:B", To: "d:A"},
	}
	g, err := NewGraph(nodes, edges)
	if err != nil {
		t.Fatal(err)
	}
	if !g.HasCycle() {
		t.Fatal("expected cycle to be detected")
	}
	if len(g.AsGraphError()) != 1 {
		t.Fatalf("expected one GraphError, got %v", g.AsGraphError())
	}
	dA, _ := g.Depth("d:A")
	dB, _ := g.Depth("d:B")
	if dA != -1 || dB != -1 {
		t.Fatalf("expected cyclic nodes to have depth -1, got %d, %d", dA, dB)
	}
}

func TestHash_Deterministic(t *testing.T) {
	g1, err := diamond()
	if err != nil {
		t.Fatal(err)
	}
	g2, err := diamond()
	if err != nil {
		t.Fatal(err)
	}
	if g1.Hash() != g2.Hash() {
		t.Fatalf("expected equal hashes, got %s vs %s", g1.Hash(), g2.Hash())
	}
}

func TestDepth(t *testing.T) {
	g, err := diamond()
	if err != nil {
		t.Fatal(err)
	}
	dA, _ := g.Depth("s:A")
	dD, _ := g.Depth("d:D")
	if dA != 0 {
		t.Fatalf("expected root depth 0, got %d", dA)
	}
	if dD != 2 {
		t.Fatalf("expected d:D depth 2, got %d", dD)
	}
}
