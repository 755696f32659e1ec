// Package kernelerrors collects the typed error taxonomy shared across the
// kernel packages (spec.md §7). Centralizing it here means specmodel,
// registrymodel, depgraph, bindingengine, and reportverify all report
// failures in a single, deterministic, multi-problem shape instead of each
// package growing its own ad hoc string-error convention — following the
// teacher SDK's ValidationError pattern (validate.go), generalized to more
// than one error family.
package kernelerrors

import (
	"fmt"
	"sort"
	"strings"
)

// SpecValidationErrorKind enumerates specmodel validation failures.
type SpecValidationErrorKind string

const (
	InvalidIdFormat    SpecValidationErrorKind = "InvalidIdFormat"
	DuplicateId        SpecValidationErrorKind = "DuplicateId"
	UnresolvedReference SpecValidationErrorKind = "UnresolvedReference"
	ParamsTooLarge     SpecValidationErrorKind = "ParamsTooLarge"
	ParamsNotCanonical SpecValidationErrorKind = "ParamsNotCanonical"
	AbsoluteImplRef    SpecValidationErrorKind = "AbsoluteImplRef"
)

// Problem is one finding within a SpecValidationError, carrying enough
// structure for callers to group/filter without re-parsing a message string.
type Problem struct {
	Kind    SpecValidationErrorKind
	Path    string
	Message string
}

// SpecValidationError is a deterministic, multi-problem validation error.
// Problems are always reported in a stable, sorted order (see Problems()).
type SpecValidationError struct {
	problems []Problem
}

// NewSpecValidationError builds a SpecValidationError from problems,
// sorting them deterministically by (Path, Kind).
func NewSpecValidationError(problems []Problem) *SpecValidationError {
	sorted := make([]Problem, len(problems))
	copy(sorted, problems)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Path != sorted[j].Path {
			return sorted[i].Path < sorted[j].Path
		}
		return sorted[i].Kind < sorted[j].Kind
	})
	return &SpecValidationError{problems: sorted}
}

// Problems returns the sorted problem list.
func (e *SpecValidationError) Problems() []Problem {
	return e.problems
}

func (e *SpecValidationError) Error() string {
	if e == nil || len(e.problems) == 0 {
		return "invalid mapping spec"
	}
	parts := make([]string, 0, len(e.problems))
	for _, p := range e.problems {
		if p.Path == "" {
			parts = append(parts, fmt.Sprintf("%s: %s", p.Kind, p.Message))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s: %s", p.Path, p.Kind, p.Message))
		}
	}
	return "invalid mapping spec: " + strings.Join(parts, "; ")
}

// HasKind reports whether any problem carries the given kind.
func (e *SpecValidationError) HasKind(k SpecValidationErrorKind) bool {
	for _, p := range e.problems {
		if p.Kind == k {
			return true
		}
	}
	return false
}

// RegistryValidationErrorKind enumerates registrymodel validation failures.
// It is an alias of SpecValidationErrorKind so registry kinds fit the
// shared Problem.Kind field.
type RegistryValidationErrorKind = SpecValidationErrorKind

const (
	DuplicateTransformId RegistryValidationErrorKind = "DuplicateTransformId"
	MissingTransformRef  RegistryValidationErrorKind = "MissingTransformRef"
)

// RegistryValidationError mirrors SpecValidationError for registry-shaped
// problems.
type RegistryValidationError struct {
	problems []Problem
}

func NewRegistryValidationError(problems []Problem) *RegistryValidationError {
	sorted := make([]Problem, len(problems))
	copy(sorted, problems)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Path != sorted[j].Path {
			return sorted[i].Path < sorted[j].Path
		}
		return sorted[i].Kind < sorted[j].Kind
	})
	return &RegistryValidationError{problems: sorted}
}

func (e *RegistryValidationError) Problems() []Problem { return e.problems }

func (e *RegistryValidationError) Error() string {
	if e == nil || len(e.problems) == 0 {
		return "invalid transform registry"
	}
	parts := make([]string, 0, len(e.problems))
	for _, p := range e.problems {
		parts = append(parts, fmt.Sprintf("%s: %s: %s", p.Path, p.Kind, p.Message))
	}
	return "invalid transform registry: " + strings.Join(parts, "; ")
}

// GraphError reports a structural problem found while building a
// DependencyGraph. Only CycleDetected is defined today; Cycle construction
// never aborts graph building (impact computation downgrades gracefully
// per spec.md §4.4), so this type is informational, not necessarily fatal.
type GraphError struct {
	Kind  string
	Nodes []string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(e.Nodes, " -> "))
}

// NewCycleDetected builds a GraphError describing a cycle's participating
// nodes, in the order discovered.
func NewCycleDetected(nodes []string) *GraphError {
	return &GraphError{Kind: "CycleDetected", Nodes: nodes}
}

// BindingErrorKind enumerates bindingengine failures that are surfaced as
// hard errors (as opposed to BindingStatus values, which are data).
type BindingErrorKind string

const (
	AmbiguousBinding BindingErrorKind = "AmbiguousBinding"
	InvalidBinding   BindingErrorKind = "InvalidBinding"
)

type BindingError struct {
	Kind   BindingErrorKind
	Source string
	Detail string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Source, e.Detail)
}

// VerifyErrorKind enumerates reportverify outcomes that indicate tampering
// or drift, beyond the plain OK outcome.
type VerifyErrorKind string

const (
	DigestMismatch   VerifyErrorKind = "DIGEST_MISMATCH"
	WitnessMismatch  VerifyErrorKind = "WITNESS_MISMATCH"
	InputsChanged    VerifyErrorKind = "INPUTS_CHANGED"
)

type VerifyError struct {
	Kind    VerifyErrorKind
	NodeID  string
	Field   string
	Detail  string
}

func (e *VerifyError) Error() string {
	if e.NodeID == "" && e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: node=%s field=%s: %s", e.Kind, e.NodeID, e.Field, e.Detail)
}
