// Package impact computes which spec elements are affected by a set of
// ChangeEvents, by seeding directly-changed nodes and propagating outward
// through the dependency graph.
//
// Grounded on samgonzalezalberto's script-weaver TaskGraph traversal
// helpers (depgraph's direct ancestor), reused here one layer up: impact
// never walks the graph itself, it calls depgraph.Graph's
// TransitiveDependents/ShortestPath/AlternativePaths and layers a reason
// taxonomy and precedence rule on top of what the graph reports.
package impact

import (
	"sort"

	"github.com/cheshbon/cheshbon/internal/kernel/bindingengine"
	"github.com/cheshbon/cheshbon/internal/kernel/depgraph"
	"github.com/cheshbon/cheshbon/internal/kernel/diffengine"
)

// Reason enumerates every cause impact.Compute can attach to a node.
type Reason string

const (
	AmbiguousBinding         Reason = "AMBIGUOUS_BINDING"
	MissingTransformRef      Reason = "MISSING_TRANSFORM_REF"
	MissingBinding           Reason = "MISSING_BINDING"
	MissingInput             Reason = "MISSING_INPUT"
	DirectChangeMissingInput Reason = "DIRECT_CHANGE_MISSING_INPUT"
	DirectChange             Reason = "DIRECT_CHANGE"
	TransformImplChanged     Reason = "TRANSFORM_IMPL_CHANGED"
	TransitiveDependency     Reason = "TRANSITIVE_DEPENDENCY"
	Cycle                    Reason = "CYCLE"
)

// precedence ranks reasons from most to least specific, lowest number
// first. When a node carries more than one reason, the lowest-ranked one
// is its PrimaryReason; every reason it carries is still reported in
// AllReasons.
var precedence = map[Reason]int{
	AmbiguousBinding:         0,
	MissingTransformRef:      1,
	MissingBinding:           2,
	MissingInput:             3,
	DirectChangeMissingInput: 4,
	DirectChange:             5,
	TransformImplChanged:     6,
	TransitiveDependency:     7,
	Cycle:                    8,
}

// Result is the full impact computation output for one diff.
type Result struct {
	Impacted      []string
	Unaffected    []string
	PrimaryReason map[string]Reason
	AllReasons    map[string][]Reason
	Paths         map[string][]string // node id -> shortest path from its nearest seed
	AltPathCounts map[string]int      // node id -> count of paths from its nearest seed beyond the shortest one

	// ValidationFailed is true when the change introduced a structural
	// problem that blocks a trustworthy impact computation: a dependency
	// cycle, a surviving reference to a removed transform, or an ambiguous
	// binding.
	ValidationFailed bool
}

// seedRef pins a seed id to the graph it is resolvable in: gNew for every
// surviving element, gOld for an element that the change removed and
// which therefore has no node in gNew anymore.
type seedRef struct {
	g  *depgraph.Graph
	id string
}

// Compute seeds impacted nodes from events and binding resolutions and
// propagates through gNew (the v2-derived dependency graph), consulting
// gOld (the v1-derived graph) to resolve the former dependents of an
// element the change removed. transformUsers maps a transform id to the
// derived-variable ids that reference it in v2 (MappingSpec.TransformUsers
// of the v2 spec); it translates a TRANSFORM_* event, keyed by transform
// id rather than a spec element id, into impact on the derived variables
// that actually declare a dependency on that transform.
func Compute(events []diffengine.ChangeEvent, gOld, gNew *depgraph.Graph, resolutions []bindingengine.Resolution, transformUsers map[string][]string) Result {
	reasons := map[string]map[Reason]bool{}
	add := func(id string, r Reason) {
		if reasons[id] == nil {
			reasons[id] = map[Reason]bool{}
		}
		reasons[id][r] = true
	}

	existsInNew := func(id string) bool {
		_, ok := gNew.Node(id)
		return ok
	}

	var seeds []seedRef
	validationFailed := false

	for _, e := range events {
		switch e.Kind {
		case diffengine.DerivedInputsChanged, diffengine.DerivedTransformRefChanged,
			diffengine.DerivedTransformParamsChanged, diffengine.DerivedTypeChanged:
			if existsInNew(e.ElementID) {
				add(e.ElementID, DirectChange)
				seeds = append(seeds, seedRef{gNew, e.ElementID})
			}

		case diffengine.ConstraintInputsChanged, diffengine.ConstraintExpressionChanged:
			// A changed constraint has no declaration of its own to mark;
			// only what it feeds becomes suspect, and it becomes suspect
			// directly, at every hop, not merely at the first one.
			for _, dep := range gNew.TransitiveDependents(e.ElementID) {
				add(dep, TransitiveDependency)
			}

		case diffengine.SourceRemoved, diffengine.DerivedRemoved, diffengine.ConstraintRemoved:
			for _, dep := range gOld.TransitiveDependents(e.ElementID) {
				if existsInNew(dep) {
					add(dep, MissingInput)
				}
			}
			seeds = append(seeds, seedRef{gOld, e.ElementID})

		case diffengine.TransformImplChanged:
			for _, dep := range transformUsers[e.ElementID] {
				if existsInNew(dep) {
					add(dep, TransformImplChanged)
					seeds = append(seeds, seedRef{gNew, dep})
				}
			}

		case diffengine.TransformRemoved:
			for _, dep := range transformUsers[e.ElementID] {
				if existsInNew(dep) {
					add(dep, MissingTransformRef)
					seeds = append(seeds, seedRef{gNew, dep})
					validationFailed = true
				}
			}
		}
		// SourceAdded/DerivedAdded/ConstraintAdded/TransformAdded and every
		// *_RENAMED event carry no impact of their own: an added element has
		// no prior dependents to break, and a rename is metadata-only.
	}

	for _, res := range resolutions {
		switch res.Status {
		case bindingengine.MissingBinding:
			for _, dep := range gNew.TransitiveDependents(res.SourceID) {
				add(dep, MissingBinding)
			}
		case bindingengine.AmbiguousBinding:
			for _, dep := range gNew.TransitiveDependents(res.SourceID) {
				add(dep, AmbiguousBinding)
			}
			validationFailed = true
		}
	}

	// Propagate TRANSITIVE_DEPENDENCY outward from every seed: the origin
	// seeds (DIRECT_CHANGE, TRANSFORM_IMPL_CHANGED, MISSING_TRANSFORM_REF)
	// and removed elements (walked in gOld). The origin itself keeps its
	// specific reason; every dependent still present in v2 also carries
	// TRANSITIVE_DEPENDENCY, which only becomes its primary reason when no
	// higher-precedence reason applies to it.
	for _, s := range seeds {
		for _, dep := range s.g.TransitiveDependents(s.id) {
			if existsInNew(dep) {
				add(dep, TransitiveDependency)
			}
		}
	}

	for _, rs := range reasons {
		if rs[DirectChange] && rs[MissingInput] {
			rs[DirectChangeMissingInput] = true
		}
	}

	for _, cyc := range gNew.Cycles() {
		anyImpacted := false
		for _, id := range cyc {
			if len(reasons[id]) > 0 {
				anyImpacted = true
				break
			}
		}
		if anyImpacted {
			for _, id := range cyc {
				add(id, Cycle)
			}
		}
	}
	if gNew.HasCycle() {
		validationFailed = true
	}

	primary := map[string]Reason{}
	all := map[string][]Reason{}
	impacted := map[string]bool{}
	for id, rs := range reasons {
		if !existsInNew(id) {
			continue
		}
		list := make([]Reason, 0, len(rs))
		best := Reason("")
		bestRank := len(precedence) + 1
		for r := range rs {
			list = append(list, r)
			if precedence[r] < bestRank {
				bestRank = precedence[r]
				best = r
			}
		}
		sort.Slice(list, func(i, j int) bool { return precedence[list[i]] < precedence[list[j]] })
		all[id] = list
		primary[id] = best
		impacted[id] = true
	}

	paths := map[string][]string{}
	altCounts := map[string]int{}
	for id := range impacted {
		var best []string
		var bestSeed seedRef
		for _, s := range seeds {
			path, ok := s.g.ShortestPath(s.id, id)
			if !ok {
				continue
			}
			if best == nil || len(path) < len(best) {
				best = path
				bestSeed = s
			}
		}
		if best != nil {
			paths[id] = best
			// AlternativePaths includes the shortest path itself; alt_path_counts
			// reports the count of paths beyond that one.
			if n := len(bestSeed.g.AlternativePaths(bestSeed.id, id)) - 1; n > 0 {
				altCounts[id] = n
			}
		}
	}

	var impactedList, unaffectedList []string
	for _, n := range gNew.Nodes() {
		if n.Kind == depgraph.NodeTransform {
			continue // transform nodes are not spec elements
		}
		if impacted[n.ID] {
			impactedList = append(impactedList, n.ID)
		} else {
			unaffectedList = append(unaffectedList, n.ID)
		}
	}
	sort.Strings(impactedList)
	sort.Strings(unaffectedList)

	return Result{
		Impacted:         impactedList,
		Unaffected:       unaffectedList,
		PrimaryReason:    primary,
		AllReasons:       all,
		Paths:            paths,
		AltPathCounts:    altCounts,
		ValidationFailed: validationFailed,
	}
}
