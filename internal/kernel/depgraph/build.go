package depgraph

import (
	"github.com/cheshbon/cheshbon/internal/kernel/registrymodel"
	"github.com/cheshbon/cheshbon/internal/kernel/specmodel"
)

// BuildFromSpec constructs a Graph from a MappingSpec's declared elements.
// reg is optional; when provided, transform nodes are included so a
// TRANSFORM_* change event's ElementID resolves to a graph node in its own
// right (useful for depth/path queries even though impact.Compute resolves
// transform changes through MappingSpec.TransformUsers rather than through
// the graph directly).
func BuildFromSpec(spec *specmodel.MappingSpec, reg *registrymodel.TransformRegistry) (*Graph, error) {
	var nodes []Node
	var edges []Edge

	for _, s := range spec.Sources {
		nodes = append(nodes, Node{ID: s.ID, Kind: NodeSource})
	}
	for _, d := range spec.Derived {
		nodes = append(nodes, Node{ID: d.ID, Kind: NodeDerived})
		for _, in := range d.Inputs {
			edges = append(edges, Edge{From: in, To: d.ID})
		}
	}
	for _, c := range spec.Constraints {
		nodes = append(nodes, Node{ID: c.ID, Kind: NodeConstraint})
		for _, in := range c.Inputs {
			edges = append(edges, Edge{From: in, To: c.ID})
		}
	}
	if reg != nil {
		for _, t := range reg.Transforms {
			nodes = append(nodes, Node{ID: t.ID, Kind: NodeTransform})
		}
		for _, d := range spec.Derived {
			if d.TransformRef != nil && *d.TransformRef != "" {
				edges = append(edges, Edge{From: *d.TransformRef, To: d.ID})
			}
		}
	}

	return NewGraph(nodes, edges)
}
