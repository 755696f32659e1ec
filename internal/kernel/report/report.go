// Package report assembles an impact computation into a hash-verifiable
// ImpactReport document.
//
// content_hash is computed over the canonical JSON encoding of the report
// with content_hash itself cleared, so a report digests its own payload
// without a bootstrapping problem. inputs_digest and the per-node
// witnesses let reportverify later confirm a report was produced from a
// specific spec/registry pair without re-running the full diff+impact
// pipeline — it only needs to recompute digests and compare.
package report

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cheshbon/cheshbon/internal/kernel/bindingengine"
	"github.com/cheshbon/cheshbon/internal/kernel/canonicaljson"
	"github.com/cheshbon/cheshbon/internal/kernel/diffengine"
	"github.com/cheshbon/cheshbon/internal/kernel/impact"
	"github.com/cheshbon/cheshbon/internal/kernel/registrymodel"
	"github.com/cheshbon/cheshbon/internal/kernel/specmodel"
)

// Mode selects how much detail Build includes in the assembled report.
type Mode string

const (
	// ModeCore includes only impacted/unaffected sets and validation_failed.
	ModeCore Mode = "core"
	// ModeFull adds reasons, paths, and alt_path_counts.
	ModeFull Mode = "full"
	// ModeAllDetails additionally includes per-node witnesses.
	ModeAllDetails Mode = "all_details"
)

// InputsDigest is a per-input breakdown of the canonical digests that
// produced a Report, so reportverify can point at exactly which input
// changed rather than only knowing "something about the inputs changed".
type InputsDigest struct {
	FromSpec   string `json:"from_spec"`
	ToSpec     string `json:"to_spec"`
	RegistryV1 string `json:"registry_v1,omitempty"`
	RegistryV2 string `json:"registry_v2,omitempty"`
	Bindings   string `json:"bindings,omitempty"`
	RawSchema  string `json:"raw_schema,omitempty"`
}

// Witness pins one impacted node's declaration to a digest, so
// reportverify can detect a spec/registry edit that changes a node's
// content without changing the diff's event list (e.g. a no-op
// re-expression that still differs byte-for-byte).
type Witness struct {
	NodeID string `json:"node_id"`
	Field  string `json:"field"`
	Digest string `json:"digest"`
}

// Report is the full ImpactReport document.
type Report struct {
	Mode Mode `json:"mode"`

	SpecDigestV1     string `json:"spec_digest_v1"`
	SpecDigestV2     string `json:"spec_digest_v2"`
	RegistryDigestV1 string `json:"registry_digest_v1,omitempty"`
	RegistryDigestV2 string `json:"registry_digest_v2,omitempty"`

	Events []diffengine.ChangeEvent `json:"events"`

	Impacted         []string                   `json:"impacted"`
	Unaffected       []string                   `json:"unaffected,omitempty"`
	Reasons          map[string]impact.Reason   `json:"reasons,omitempty"`
	AllReasons       map[string][]impact.Reason `json:"all_reasons,omitempty"`
	Paths            map[string][]string        `json:"paths,omitempty"`
	AltPathCounts    map[string]int             `json:"alt_path_counts,omitempty"`
	ValidationFailed bool                       `json:"validation_failed"`

	InputsDigest InputsDigest `json:"inputs_digest"`
	Witnesses    []Witness    `json:"witnesses,omitempty"`
	ContentHash  string       `json:"content_hash"`
}

// Build assembles a Report at the given detail level. reg1/reg2 may be nil
// if the diff did not include a registry comparison; bindings may be nil if
// the diff did not resolve sources against a raw schema.
func Build(mode Mode, v1, v2 *specmodel.MappingSpec, reg1, reg2 *registrymodel.TransformRegistry, bindings *bindingengine.Bindings, events []diffengine.ChangeEvent, result impact.Result) (*Report, error) {
	specDigestV1, err := v1.Digest()
	if err != nil {
		return nil, fmt.Errorf("report: spec v1 digest: %w", err)
	}
	specDigestV2, err := v2.Digest()
	if err != nil {
		return nil, fmt.Errorf("report: spec v2 digest: %w", err)
	}

	r := &Report{
		Mode:             mode,
		SpecDigestV1:     specDigestV1,
		SpecDigestV2:     specDigestV2,
		Events:           events,
		Impacted:         result.Impacted,
		Unaffected:       result.Unaffected,
		ValidationFailed: result.ValidationFailed,
	}

	if reg1 != nil {
		b, err := canonicaljson.Marshal(registryAsAny(reg1))
		if err != nil {
			return nil, fmt.Errorf("report: registry v1 digest: %w", err)
		}
		r.RegistryDigestV1 = canonicaljson.DigestHex(b)
	}
	if reg2 != nil {
		b, err := canonicaljson.Marshal(registryAsAny(reg2))
		if err != nil {
			return nil, fmt.Errorf("report: registry v2 digest: %w", err)
		}
		r.RegistryDigestV2 = canonicaljson.DigestHex(b)
	}

	if mode == ModeFull || mode == ModeAllDetails {
		r.Reasons = result.PrimaryReason
		r.Paths = result.Paths
		r.AltPathCounts = result.AltPathCounts
	}

	if mode == ModeAllDetails {
		r.AllReasons = result.AllReasons
		witnesses, err := buildWitnesses(v2, result.Impacted)
		if err != nil {
			return nil, err
		}
		r.Witnesses = witnesses
	}

	inputsDigest, err := computeInputsDigest(r, bindings)
	if err != nil {
		return nil, err
	}
	r.InputsDigest = inputsDigest

	contentHash, err := computeContentHash(r)
	if err != nil {
		return nil, err
	}
	r.ContentHash = contentHash

	return r, nil
}

func registryAsAny(reg *registrymodel.TransformRegistry) any {
	// reg already implements MarshalJSON via its wire struct; route through
	// canonicaljson.FromStdJSON so map ordering/number handling is uniform
	// with the rest of the kernel.
	b, err := json.Marshal(reg)
	if err != nil {
		return nil
	}
	decoded, err := canonicaljson.FromStdJSON(b)
	if err != nil {
		return nil
	}
	return decoded
}

func buildWitnesses(v2 *specmodel.MappingSpec, impacted []string) ([]Witness, error) {
	sources := v2.SourceByID()
	derived := v2.DerivedByID()
	constraints := v2.ConstraintByID()

	var witnesses []Witness
	for _, id := range impacted {
		var digest string
		var err error
		switch {
		case hasSource(sources, id):
			digest, err = digestOf(sources[id])
		case hasDerived(derived, id):
			digest, err = digestOf(derived[id])
		case hasConstraint(constraints, id):
			digest, err = digestOf(constraints[id])
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("report: witness for %s: %w", id, err)
		}
		witnesses = append(witnesses, Witness{NodeID: id, Field: "declaration", Digest: digest})
	}
	sort.Slice(witnesses, func(i, j int) bool { return witnesses[i].NodeID < witnesses[j].NodeID })
	return witnesses, nil
}

func hasSource(m map[string]specmodel.SourceColumn, id string) bool {
	_, ok := m[id]
	return ok
}
func hasDerived(m map[string]specmodel.DerivedVariable, id string) bool {
	_, ok := m[id]
	return ok
}
func hasConstraint(m map[string]specmodel.Constraint, id string) bool {
	_, ok := m[id]
	return ok
}

func digestOf(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	decoded, err := canonicaljson.FromStdJSON(b)
	if err != nil {
		return "", err
	}
	return canonicaljson.MarshalAndDigest(decoded)
}

// computeInputsDigest records one digest per input feeding this report, so
// reportverify can point at exactly which input changed (spec, registry,
// bindings, or raw schema) rather than only knowing some input changed.
func computeInputsDigest(r *Report, bindings *bindingengine.Bindings) (InputsDigest, error) {
	d := InputsDigest{
		FromSpec:   r.SpecDigestV1,
		ToSpec:     r.SpecDigestV2,
		RegistryV1: r.RegistryDigestV1,
		RegistryV2: r.RegistryDigestV2,
	}
	if bindings == nil {
		return d, nil
	}
	bindingsDigest, err := digestOf(bindings.Rules)
	if err != nil {
		return InputsDigest{}, fmt.Errorf("report: bindings digest: %w", err)
	}
	d.Bindings = bindingsDigest

	rawSchemaDigest, err := digestOf(bindings.Schema)
	if err != nil {
		return InputsDigest{}, fmt.Errorf("report: raw schema digest: %w", err)
	}
	d.RawSchema = rawSchemaDigest
	return d, nil
}

// computeContentHash canonicalizes the report with content_hash cleared and
// digests the result.
func computeContentHash(r *Report) (string, error) {
	clone := *r
	clone.ContentHash = ""
	b, err := json.Marshal(clone)
	if err != nil {
		return "", err
	}
	decoded, err := canonicaljson.FromStdJSON(b)
	if err != nil {
		return "", err
	}
	return canonicaljson.MarshalAndDigest(decoded)
}
