// Package diffengine computes the closed set of ChangeEvents between two
// versions of a MappingSpec (and, optionally, their TransformRegistries).
//
// The ontology is deliberately closed: every event kind a caller can ever
// see is named here, not inferred from free-text diffing. Comparison is
// set-based over declared elements, so reordering a spec's sources/derived/
// constraints arrays never produces spurious events, matching the teacher
// SDK's general preference for structural over textual comparison, as seen
// in schemaprofile/compat.go's type-shape comparisons rather than string
// diffs. A rename (same ID, different display name) is tracked as its own
// metadata-only event rather than folded into a structural one, so
// downstream impact analysis never treats a cosmetic change as a cause.
package diffengine

import (
	"bytes"
	"sort"

	"github.com/cheshbon/cheshbon/internal/kernel/canonicaljson"
	"github.com/cheshbon/cheshbon/internal/kernel/registrymodel"
	"github.com/cheshbon/cheshbon/internal/kernel/specmodel"
)

// ChangeKind enumerates every event diffengine can emit.
type ChangeKind string

const (
	SourceAdded   ChangeKind = "SOURCE_ADDED"
	SourceRemoved ChangeKind = "SOURCE_REMOVED"
	SourceRenamed ChangeKind = "SOURCE_RENAMED"

	DerivedAdded                  ChangeKind = "DERIVED_ADDED"
	DerivedRemoved                ChangeKind = "DERIVED_REMOVED"
	DerivedRenamed                ChangeKind = "DERIVED_RENAMED"
	DerivedInputsChanged          ChangeKind = "DERIVED_INPUTS_CHANGED"
	DerivedTransformRefChanged    ChangeKind = "DERIVED_TRANSFORM_REF_CHANGED"
	DerivedTransformParamsChanged ChangeKind = "DERIVED_TRANSFORM_PARAMS_CHANGED"
	DerivedTypeChanged            ChangeKind = "DERIVED_TYPE_CHANGED"

	ConstraintAdded              ChangeKind = "CONSTRAINT_ADDED"
	ConstraintRemoved            ChangeKind = "CONSTRAINT_REMOVED"
	ConstraintRenamed            ChangeKind = "CONSTRAINT_RENAMED"
	ConstraintInputsChanged      ChangeKind = "CONSTRAINT_INPUTS_CHANGED"
	ConstraintExpressionChanged  ChangeKind = "CONSTRAINT_EXPRESSION_CHANGED"

	TransformAdded       ChangeKind = "TRANSFORM_ADDED"
	TransformRemoved     ChangeKind = "TRANSFORM_REMOVED"
	TransformImplChanged ChangeKind = "TRANSFORM_IMPL_CHANGED"
)

// kindPriority fixes the ordering used to break ties between events that
// share the same ElementID, lowest first: removed < added < changed-
// structural < changed-metadata (renames).
var kindPriority = map[ChangeKind]int{
	SourceRemoved: 0, SourceAdded: 1, SourceRenamed: 2,

	DerivedRemoved: 0, DerivedAdded: 1,
	DerivedInputsChanged: 2, DerivedTransformRefChanged: 3,
	DerivedTransformParamsChanged: 4, DerivedTypeChanged: 5,
	DerivedRenamed: 6,

	ConstraintRemoved: 0, ConstraintAdded: 1,
	ConstraintInputsChanged: 2, ConstraintExpressionChanged: 3,
	ConstraintRenamed: 4,

	TransformRemoved: 0, TransformAdded: 1, TransformImplChanged: 2,
}

// ChangeEvent is one detected difference between two spec/registry
// versions.
type ChangeEvent struct {
	Kind      ChangeKind `json:"kind"`
	ElementID string     `json:"element_id"`
	Detail    string     `json:"detail,omitempty"`
}

// Diff compares two MappingSpec versions and, when both registries are
// provided, their TransformRegistry versions, returning every ChangeEvent
// in deterministic (ElementID, kind priority) order.
func Diff(v1, v2 *specmodel.MappingSpec, reg1, reg2 *registrymodel.TransformRegistry) []ChangeEvent {
	var events []ChangeEvent

	events = append(events, diffSources(v1, v2)...)
	events = append(events, diffDerived(v1, v2)...)
	events = append(events, diffConstraints(v1, v2)...)
	if reg1 != nil && reg2 != nil {
		events = append(events, diffTransforms(reg1, reg2)...)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].ElementID != events[j].ElementID {
			return events[i].ElementID < events[j].ElementID
		}
		return kindPriority[events[i].Kind] < kindPriority[events[j].Kind]
	})
	return events
}

func diffSources(v1, v2 *specmodel.MappingSpec) []ChangeEvent {
	a, b := v1.SourceByID(), v2.SourceByID()
	var events []ChangeEvent
	for id, sa := range a {
		sb, ok := b[id]
		if !ok {
			events = append(events, ChangeEvent{Kind: SourceRemoved, ElementID: id})
			continue
		}
		if sa.Name != sb.Name {
			events = append(events, ChangeEvent{
				Kind: SourceRenamed, ElementID: id,
				Detail: sa.Name + " -> " + sb.Name,
			})
		}
	}
	for id := range b {
		if _, ok := a[id]; !ok {
			events = append(events, ChangeEvent{Kind: SourceAdded, ElementID: id})
		}
	}
	return events
}

func diffDerived(v1, v2 *specmodel.MappingSpec) []ChangeEvent {
	a, b := v1.DerivedByID(), v2.DerivedByID()
	var events []ChangeEvent
	for id, da := range a {
		db, ok := b[id]
		if !ok {
			events = append(events, ChangeEvent{Kind: DerivedRemoved, ElementID: id})
			continue
		}
		if da.Name != db.Name {
			events = append(events, ChangeEvent{
				Kind: DerivedRenamed, ElementID: id,
				Detail: da.Name + " -> " + db.Name,
			})
		}
		if !stringSetEqual(da.Inputs, db.Inputs) {
			events = append(events, ChangeEvent{Kind: DerivedInputsChanged, ElementID: id})
		}
		// DerivedTransformRefChanged and DerivedTransformParamsChanged are
		// orthogonal: both fire when both actually changed, and a ref
		// change does not suppress a genuine params change.
		if !stringPtrEqual(da.TransformRef, db.TransformRef) {
			events = append(events, ChangeEvent{Kind: DerivedTransformRefChanged, ElementID: id})
		}
		if !bytes.Equal(normalizedParams(da.Params), normalizedParams(db.Params)) {
			events = append(events, ChangeEvent{Kind: DerivedTransformParamsChanged, ElementID: id})
		}
		if da.Type != db.Type {
			events = append(events, ChangeEvent{Kind: DerivedTypeChanged, ElementID: id})
		}
	}
	for id := range b {
		if _, ok := a[id]; !ok {
			events = append(events, ChangeEvent{Kind: DerivedAdded, ElementID: id})
		}
	}
	return events
}

func diffConstraints(v1, v2 *specmodel.MappingSpec) []ChangeEvent {
	a, b := v1.ConstraintByID(), v2.ConstraintByID()
	var events []ChangeEvent
	for id, ca := range a {
		cb, ok := b[id]
		if !ok {
			events = append(events, ChangeEvent{Kind: ConstraintRemoved, ElementID: id})
			continue
		}
		if ca.Name != cb.Name {
			events = append(events, ChangeEvent{
				Kind: ConstraintRenamed, ElementID: id,
				Detail: ca.Name + " -> " + cb.Name,
			})
		}
		if !stringSetEqual(ca.Inputs, cb.Inputs) {
			events = append(events, ChangeEvent{Kind: ConstraintInputsChanged, ElementID: id})
		}
		if ca.Expression != cb.Expression {
			events = append(events, ChangeEvent{Kind: ConstraintExpressionChanged, ElementID: id})
		}
	}
	for id := range b {
		if _, ok := a[id]; !ok {
			events = append(events, ChangeEvent{Kind: ConstraintAdded, ElementID: id})
		}
	}
	return events
}

// diffTransforms only ever emits TransformImplChanged for a surviving
// entry when impl_fingerprint.digest differs; signature or ref churn alone
// must never emit it, and a renamed transform produces no event at all
// since TransformEntry carries no display name independent of its ID.
func diffTransforms(reg1, reg2 *registrymodel.TransformRegistry) []ChangeEvent {
	a, b := reg1.ByID(), reg2.ByID()
	var events []ChangeEvent
	for id, ta := range a {
		tb, ok := b[id]
		if !ok {
			events = append(events, ChangeEvent{Kind: TransformRemoved, ElementID: id})
			continue
		}
		if ta.ImplFingerprint.Digest != tb.ImplFingerprint.Digest {
			events = append(events, ChangeEvent{Kind: TransformImplChanged, ElementID: id})
		}
	}
	for id := range b {
		if _, ok := a[id]; !ok {
			events = append(events, ChangeEvent{Kind: TransformAdded, ElementID: id})
		}
	}
	return events
}

func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string{}, a...)
	sb := append([]string{}, b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// normalizedParams canonicalizes params JSON so key-order-only differences
// never produce a spurious DERIVED_TRANSFORM_PARAMS_CHANGED event.
// Malformed params (already rejected by specmodel.Validate, but diffengine
// must not panic on an unvalidated pair) fall back to raw byte comparison.
func normalizedParams(p []byte) []byte {
	if len(p) == 0 {
		return nil
	}
	decoded, err := canonicaljson.FromStdJSON(p)
	if err != nil {
		return p
	}
	canon, err := canonicaljson.Marshal(decoded)
	if err != nil {
		return p
	}
	return canon
}
