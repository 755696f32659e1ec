package depgraph

import (
	"testing"

	"github.com/cheshbon/cheshbon/internal/kernel/registrymodel"
	"github.com/cheshbon/cheshbon/internal/kernel/specmodel"
)

func TestBuildFromSpec(t *testing.T) {
	spec, err := specmodel.Parse([]byte(`{
		"schema_version": "0.7",
		"sources": [{"id": "s:A", "name": "A", "type": "number"}],
		"derived": [{"id": "d:B", "name": "B", "type": "string", "inputs": ["s:A"], "transform_ref": "t:ct_map"}],
		"constraints": [{"id": "c:C", "name": "C", "inputs": ["d:B"], "expression": "true"}]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	reg, err := registrymodel.Parse([]byte(`{"transforms": [
		{"id": "t:ct_map", "version": "1.0.0", "kind": "lookup", "signature": "x", "impl_fingerprint": {"algo":"sha256","source":"git","ref":"main","digest":"d"}}
	]}`))
	if err != nil {
		t.Fatal(err)
	}

	g, err := BuildFromSpec(spec, reg)
	if err != nil {
		t.Fatalf("BuildFromSpec: %v", err)
	}
	if len(g.Nodes()) != 4 {
		t.Fatalf("expected 4 nodes, got %v", g.Nodes())
	}
	dependents := g.TransitiveDependents("s:A")
	if len(dependents) != 2 {
		t.Fatalf("expected s:A to transitively reach d:B and c:C, got %v", dependents)
	}
	transformDependents := g.TransitiveDependents("t:ct_map")
	if len(transformDependents) != 2 {
		t.Fatalf("expected t:ct_map to transitively reach d:B and c:C, got %v", transformDependents)
	}
}

func TestBuildFromSpec_NoRegistrySkipsTransformNodes(t *testing.T) {
	spec, err := specmodel.Parse([]byte(`{
		"schema_version": "0.7",
		"sources": [{"id": "s:A", "name": "A", "type": "number"}],
		"derived": [{"id": "d:B", "name": "B", "type": "string", "inputs": ["s:A"], "transform_ref": "t:ct_map"}],
		"constraints": []
	}`))
	if err != nil {
		t.Fatal(err)
	}
	g, err := BuildFromSpec(spec, nil)
	if err != nil {
		t.Fatalf("BuildFromSpec: %v", err)
	}
	if len(g.Nodes()) != 2 {
		t.Fatalf("expected 2 nodes (no transform node without a registry), got %v", g.Nodes())
	}
}
