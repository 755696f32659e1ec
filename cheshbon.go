// Package cheshbon is the public, execution-free API for computing the
// impact of a change between two versions of a mapping specification.
//
// The three entry points mirror the CLI's three subcommands: Diff and
// Impact drive `cheshbon diff`, Validate drives `cheshbon validate`, and
// VerifyReport drives `cheshbon verify report`. Every call here is pure:
// given the same bytes, it returns the same result, with no filesystem or
// network access performed by this package itself (callers own I/O).
package cheshbon

import (
	"fmt"

	"github.com/cheshbon/cheshbon/internal/kernel/bindingengine"
	"github.com/cheshbon/cheshbon/internal/kernel/depgraph"
	"github.com/cheshbon/cheshbon/internal/kernel/diffengine"
	"github.com/cheshbon/cheshbon/internal/kernel/impact"
	"github.com/cheshbon/cheshbon/internal/kernel/kernelerrors"
	"github.com/cheshbon/cheshbon/internal/kernel/registrymodel"
	"github.com/cheshbon/cheshbon/internal/kernel/report"
	"github.com/cheshbon/cheshbon/internal/kernel/reportverify"
	"github.com/cheshbon/cheshbon/internal/kernel/specmodel"
)

// Re-export the kernel's principal types at the facade so callers need a
// single import for the common path.
type (
	MappingSpec       = specmodel.MappingSpec
	TransformRegistry = registrymodel.TransformRegistry
	ChangeEvent       = diffengine.ChangeEvent
	ImpactResult      = impact.Result
	Report            = report.Report
	ReportMode        = report.Mode
	VerifyResult      = reportverify.Result
)

const (
	ModeCore       = report.ModeCore
	ModeFull       = report.ModeFull
	ModeAllDetails = report.ModeAllDetails
)

// ParseSpec decodes a MappingSpec from JSON bytes.
func ParseSpec(b []byte) (*MappingSpec, error) { return specmodel.Parse(b) }

// ParseRegistry decodes a TransformRegistry from JSON bytes.
func ParseRegistry(b []byte) (*TransformRegistry, error) { return registrymodel.Parse(b) }

// Validate checks a MappingSpec (and, if provided, its TransformRegistry)
// against spec.md's structural invariants, returning a *kernelerrors.
// SpecValidationError or *kernelerrors.RegistryValidationError on failure.
// Non-fatal size warnings (spec.ParamsWarnings) are returned alongside a
// nil error when the spec is otherwise valid.
func Validate(spec *MappingSpec, reg *TransformRegistry, opts ...specmodel.ValidateOption) ([]string, error) {
	if err := spec.Validate(opts...); err != nil {
		return nil, err
	}
	if reg != nil {
		var refs []string
		for _, d := range spec.Derived {
			if d.TransformRef != nil && *d.TransformRef != "" {
				refs = append(refs, *d.TransformRef)
			}
		}
		if err := reg.Validate(refs); err != nil {
			return nil, err
		}
	}
	return spec.ParamsWarnings(), nil
}

// Impact computes the full impact of the changes between v1 and v2 (and,
// if both registries are supplied, their transform catalogues), building
// the dependency graph from v2 so impacted/unaffected sets reflect the
// post-change shape of the spec.
func Impact(v1, v2 *MappingSpec, reg1, reg2 *TransformRegistry, bindings *bindingengine.Bindings) ([]ChangeEvent, ImpactResult, error) {
	events := diffengine.Diff(v1, v2, reg1, reg2)

	gOld, err := depgraph.BuildFromSpec(v1, reg1)
	if err != nil {
		return events, ImpactResult{}, fmt.Errorf("cheshbon: build v1 dependency graph: %w", err)
	}
	gNew, err := depgraph.BuildFromSpec(v2, reg2)
	if err != nil {
		return events, ImpactResult{}, fmt.Errorf("cheshbon: build v2 dependency graph: %w", err)
	}

	var resolutions []bindingengine.Resolution
	if bindings != nil {
		resolutions, err = bindings.Resolve()
		if err != nil {
			if _, ok := err.(*kernelerrors.BindingError); !ok {
				return events, ImpactResult{}, fmt.Errorf("cheshbon: resolve bindings: %w", err)
			}
		}
	}

	result := impact.Compute(events, gOld, gNew, resolutions, v2.TransformUsers())
	return events, result, nil
}

// Diff computes the impact report for the change between v1 and v2 at the
// given detail level. It is a convenience wrapper combining Impact and
// report.Build for callers that don't need the intermediate ImpactResult.
func Diff(v1, v2 *MappingSpec, reg1, reg2 *TransformRegistry, bindings *bindingengine.Bindings, mode ReportMode) (*Report, error) {
	events, result, err := Impact(v1, v2, reg1, reg2, bindings)
	if err != nil {
		return nil, err
	}
	return report.Build(mode, v1, v2, reg1, reg2, bindings, events, result)
}

// VerifyReport re-derives r's digests and witnesses from v1/v2 (and
// reg1/reg2/bindings, if the report was built with a registry comparison
// and/or a raw-schema binding resolution).
func VerifyReport(r *Report, v1, v2 *MappingSpec, reg1, reg2 *TransformRegistry, bindings *bindingengine.Bindings) VerifyResult {
	return reportverify.Verify(r, v1, v2, reg1, reg2, bindings)
}
