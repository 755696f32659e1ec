// Package specmodel is the typed in-memory model of a MappingSpec: sources,
// derived variables, constraints, and the validators that enforce spec.md
// §3's invariants.
//
// Grounded on the teacher SDK's Interface/Operation/Source types (types.go):
// lossless JSON handling (LosslessFields), functional-option Validate, and
// a parallel "wire" struct per typed value for marshaling. Unknown top-level
// fields on every typed value survive an unmarshal→marshal round trip so
// that an all-details report's inputs_digest is never silently computed
// over data unknown fields were dropped from.
package specmodel

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cheshbon/cheshbon/internal/kernel/canonicaljson"
	"github.com/cheshbon/cheshbon/internal/kernel/ident"
	"github.com/cheshbon/cheshbon/internal/kernel/kernelerrors"
)

// SchemaVersion constants for the supported MappingSpec schema_version tag,
// generalizing the teacher SDK's MinSupportedVersion/MaxTestedVersion
// pattern (version.go) from OpenBindings document versions to spec.md's
// schema_version field.
const (
	MinSupportedSchemaVersion = "0.7"
	MaxTestedSchemaVersion    = "0.7"
)

const (
	paramsWarnBytes = 10 * 1024
	paramsMaxBytes  = 50 * 1024
)

// LosslessFields preserves JSON fields this package does not model, the way
// the teacher SDK's LosslessFields does for OpenBindings documents.
type LosslessFields struct {
	Unknown map[string]json.RawMessage `json:"-"`
}

// SourceColumn is a leaf input: {id, name, type}.
type SourceColumn struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`

	LosslessFields
}

type sourceColumnWire struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func (s *SourceColumn) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var w sourceColumnWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = SourceColumn{ID: w.ID, Name: w.Name, Type: w.Type}
	s.Unknown = splitUnknown(raw, knownSourceColumnSet)
	return nil
}

func (s SourceColumn) MarshalJSON() ([]byte, error) {
	w := sourceColumnWire{ID: s.ID, Name: s.Name, Type: s.Type}
	return marshalWithUnknown(s.Unknown, w)
}

// DerivedVariable is a node whose value is defined by a transform over
// inputs. ParamsHash is computed at load time from canonical JSON of Params
// and is never part of the persisted spec document.
type DerivedVariable struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Inputs       []string        `json:"inputs"`
	TransformRef *string         `json:"transform_ref"`
	Params       json.RawMessage `json:"params,omitempty"`

	// ParamsHash is derived, not serialized; computed by UnmarshalJSON.
	ParamsHash string `json:"-"`

	LosslessFields
}

type derivedVariableWire struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Inputs       []string        `json:"inputs"`
	TransformRef *string         `json:"transform_ref"`
	Params       json.RawMessage `json:"params,omitempty"`
}

func (d *DerivedVariable) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var w derivedVariableWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*d = DerivedVariable{
		ID: w.ID, Name: w.Name, Type: w.Type,
		Inputs: w.Inputs, TransformRef: w.TransformRef, Params: w.Params,
	}
	d.Unknown = splitUnknown(raw, knownDerivedVariableSet)
	return d.computeParamsHash()
}

func (d *DerivedVariable) computeParamsHash() error {
	if len(d.Params) == 0 {
		d.ParamsHash = ""
		return nil
	}
	decoded, err := canonicaljson.FromStdJSON(d.Params)
	if err != nil {
		return fmt.Errorf("derived %s: params: %w", d.ID, err)
	}
	digest, err := canonicaljson.MarshalAndDigest(decoded)
	if err != nil {
		return fmt.Errorf("derived %s: params: %w", d.ID, err)
	}
	d.ParamsHash = digest
	return nil
}

func (d DerivedVariable) MarshalJSON() ([]byte, error) {
	w := derivedVariableWire{
		ID: d.ID, Name: d.Name, Type: d.Type,
		Inputs: d.Inputs, TransformRef: d.TransformRef, Params: d.Params,
	}
	return marshalWithUnknown(d.Unknown, w)
}

// Constraint is {id, name, inputs, expression}; expression is opaque.
type Constraint struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Inputs     []string `json:"inputs"`
	Expression string   `json:"expression"`

	LosslessFields
}

type constraintWire struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Inputs     []string `json:"inputs"`
	Expression string   `json:"expression"`
}

func (c *Constraint) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var w constraintWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*c = Constraint{ID: w.ID, Name: w.Name, Inputs: w.Inputs, Expression: w.Expression}
	c.Unknown = splitUnknown(raw, knownConstraintSet)
	return nil
}

func (c Constraint) MarshalJSON() ([]byte, error) {
	w := constraintWire{ID: c.ID, Name: c.Name, Inputs: c.Inputs, Expression: c.Expression}
	return marshalWithUnknown(c.Unknown, w)
}

// MappingSpec is a full versioned mapping specification.
type MappingSpec struct {
	SchemaVersion string            `json:"schema_version"`
	Sources       []SourceColumn    `json:"sources"`
	Derived       []DerivedVariable `json:"derived"`
	Constraints   []Constraint      `json:"constraints"`

	LosslessFields
}

type mappingSpecWire struct {
	SchemaVersion string            `json:"schema_version"`
	Sources       []SourceColumn    `json:"sources"`
	Derived       []DerivedVariable `json:"derived"`
	Constraints   []Constraint      `json:"constraints"`
}

func (m *MappingSpec) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var w mappingSpecWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = MappingSpec{
		SchemaVersion: w.SchemaVersion,
		Sources:       w.Sources,
		Derived:       w.Derived,
		Constraints:   w.Constraints,
	}
	m.Unknown = splitUnknown(raw, knownMappingSpecSet)
	return nil
}

func (m MappingSpec) MarshalJSON() ([]byte, error) {
	w := mappingSpecWire{
		SchemaVersion: m.SchemaVersion,
		Sources:       m.Sources,
		Derived:       m.Derived,
		Constraints:   m.Constraints,
	}
	return marshalWithUnknown(m.Unknown, w)
}

// Parse decodes a MappingSpec from canonical or plain JSON bytes.
func Parse(b []byte) (*MappingSpec, error) {
	var m MappingSpec
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("specmodel: decode: %w", err)
	}
	return &m, nil
}

// CanonicalJSON returns the canonical JSON encoding of the spec, suitable
// for hashing (inputs_digest) or byte-identity comparisons.
func (m MappingSpec) CanonicalJSON() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	decoded, err := canonicaljson.FromStdJSON(b)
	if err != nil {
		return nil, err
	}
	return canonicaljson.Marshal(decoded)
}

// Digest returns the hex SHA-256 digest of the spec's canonical JSON.
func (m MappingSpec) Digest() (string, error) {
	b, err := m.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return canonicaljson.DigestHex(b), nil
}

// SourceByID, DerivedByID, ConstraintByID index lookups used
// throughout diffengine/depgraph/impact.

func (m MappingSpec) SourceByID() map[string]SourceColumn {
	out := make(map[string]SourceColumn, len(m.Sources))
	for _, s := range m.Sources {
		out[s.ID] = s
	}
	return out
}

func (m MappingSpec) DerivedByID() map[string]DerivedVariable {
	out := make(map[string]DerivedVariable, len(m.Derived))
	for _, d := range m.Derived {
		out[d.ID] = d
	}
	return out
}

func (m MappingSpec) ConstraintByID() map[string]Constraint {
	out := make(map[string]Constraint, len(m.Constraints))
	for _, c := range m.Constraints {
		out[c.ID] = c
	}
	return out
}

// TransformUsers maps each referenced transform id to the derived-variable
// ids whose transform_ref points at it, so impact analysis can translate a
// TRANSFORM_* diff event (keyed by transform id) into the derived variables
// it affects.
func (m MappingSpec) TransformUsers() map[string][]string {
	out := map[string][]string{}
	for _, d := range m.Derived {
		if d.TransformRef == nil || *d.TransformRef == "" {
			continue
		}
		out[*d.TransformRef] = append(out[*d.TransformRef], d.ID)
	}
	return out
}

// AllIDs returns the set of every declared ID in the spec (sources, derived,
// constraints) — not transforms, which live in the registry.
func (m MappingSpec) AllIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(m.Sources)+len(m.Derived)+len(m.Constraints))
	for _, s := range m.Sources {
		out[s.ID] = struct{}{}
	}
	for _, d := range m.Derived {
		out[d.ID] = struct{}{}
	}
	for _, c := range m.Constraints {
		out[c.ID] = struct{}{}
	}
	return out
}

type validateOptions struct {
	rejectUnknownFields     bool
	requireSupportedVersion bool
}

// ValidateOption configures MappingSpec.Validate, mirroring the teacher
// SDK's ValidateOption functional options (validate.go).
type ValidateOption func(*validateOptions)

// WithRejectUnknownFields treats unknown top-level keys as errors.
func WithRejectUnknownFields() ValidateOption {
	return func(o *validateOptions) { o.rejectUnknownFields = true }
}

// WithRequireSupportedSchemaVersion requires schema_version to fall within
// [MinSupportedSchemaVersion, MaxTestedSchemaVersion].
func WithRequireSupportedSchemaVersion() ValidateOption {
	return func(o *validateOptions) { o.requireSupportedVersion = true }
}

// Validate enforces spec.md §3's invariants:
//
//	(a) every ID unique within its kind
//	(b) every input reference resolves to an existing id, else flagged
//	    UnresolvedReference
//	(c) derived-variable self-ancestry is a graph concern (depgraph), not
//	    checked here: specmodel validates shape, not reachability.
//
// It also enforces the load-time checks from spec.md §4.2: ID format,
// params size limits, and params canonicalization purity.
func (m MappingSpec) Validate(opts ...ValidateOption) error {
	o := validateOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var problems []kernelerrors.Problem

	seen := map[string]string{} // id -> kind, for duplicate detection
	checkID := func(id, kind, path string, wantKind ident.Kind) {
		parsed, err := ident.Parse(id)
		if err != nil {
			problems = append(problems, kernelerrors.Problem{
				Kind: kernelerrors.InvalidIdFormat, Path: path,
				Message: err.Error(),
			})
			return
		}
		if parsed.Kind != wantKind {
			problems = append(problems, kernelerrors.Problem{
				Kind: kernelerrors.InvalidIdFormat, Path: path,
				Message: fmt.Sprintf("expected kind %q, got %q", wantKind, parsed.Kind),
			})
		}
		if existingKind, dup := seen[id]; dup {
			problems = append(problems, kernelerrors.Problem{
				Kind: kernelerrors.DuplicateId, Path: path,
				Message: fmt.Sprintf("id %q already used by a %s", id, existingKind),
			})
		} else {
			seen[id] = kind
		}
	}

	for i, s := range m.Sources {
		checkID(s.ID, "source", fmt.Sprintf("sources[%d]", i), ident.KindSource)
	}
	for i, d := range m.Derived {
		checkID(d.ID, "derived", fmt.Sprintf("derived[%d]", i), ident.KindDerived)
	}
	for i, c := range m.Constraints {
		checkID(c.ID, "constraint", fmt.Sprintf("constraints[%d]", i), ident.KindConstraint)
	}

	allIDs := m.AllIDs()
	checkRefs := func(inputs []string, path string) {
		for _, ref := range inputs {
			if ref == "" {
				continue
			}
			parsed, err := ident.Parse(ref)
			if err != nil {
				problems = append(problems, kernelerrors.Problem{
					Kind: kernelerrors.InvalidIdFormat, Path: path,
					Message: fmt.Sprintf("input %q: %v", ref, err),
				})
				continue
			}
			if parsed.Kind == ident.KindTransform {
				// transform refs resolve against the registry, not the spec.
				continue
			}
			if _, ok := allIDs[ref]; !ok {
				problems = append(problems, kernelerrors.Problem{
					Kind: kernelerrors.UnresolvedReference, Path: path,
					Message: fmt.Sprintf("input %q does not resolve to a known source/derived/constraint id", ref),
				})
			}
		}
	}
	for i, d := range m.Derived {
		checkRefs(d.Inputs, fmt.Sprintf("derived[%d].inputs", i))
		if d.TransformRef != nil && *d.TransformRef != "" {
			if !ident.MustKind(*d.TransformRef, ident.KindTransform) {
				problems = append(problems, kernelerrors.Problem{
					Kind: kernelerrors.InvalidIdFormat, Path: fmt.Sprintf("derived[%d].transform_ref", i),
					Message: fmt.Sprintf("%q is not a valid transform id", *d.TransformRef),
				})
			}
		}
		if len(d.Params) > 0 {
			if len(d.Params) > paramsMaxBytes {
				problems = append(problems, kernelerrors.Problem{
					Kind: kernelerrors.ParamsTooLarge, Path: fmt.Sprintf("derived[%d].params", i),
					Message: fmt.Sprintf("params is %d bytes, hard limit is %d", len(d.Params), paramsMaxBytes),
				})
			}
			if err := checkParamsCanonical(d.Params); err != nil {
				problems = append(problems, kernelerrors.Problem{
					Kind: kernelerrors.ParamsNotCanonical, Path: fmt.Sprintf("derived[%d].params", i),
					Message: err.Error(),
				})
			}
		}
	}
	for i, c := range m.Constraints {
		checkRefs(c.Inputs, fmt.Sprintf("constraints[%d].inputs", i))
	}

	if o.requireSupportedVersion {
		if m.SchemaVersion != MinSupportedSchemaVersion && m.SchemaVersion != MaxTestedSchemaVersion {
			problems = append(problems, kernelerrors.Problem{
				Kind: kernelerrors.InvalidIdFormat, Path: "schema_version",
				Message: fmt.Sprintf("unsupported schema_version %q (supported %s-%s)", m.SchemaVersion, MinSupportedSchemaVersion, MaxTestedSchemaVersion),
			})
		}
	}

	if o.rejectUnknownFields {
		appendUnknownProblems(&problems, "", m.Unknown)
		for i, s := range m.Sources {
			appendUnknownProblems(&problems, fmt.Sprintf("sources[%d]", i), s.Unknown)
		}
		for i, d := range m.Derived {
			appendUnknownProblems(&problems, fmt.Sprintf("derived[%d]", i), d.Unknown)
		}
		for i, c := range m.Constraints {
			appendUnknownProblems(&problems, fmt.Sprintf("constraints[%d]", i), c.Unknown)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return kernelerrors.NewSpecValidationError(problems)
}

// ParamsWarnings returns non-fatal size warnings (above paramsWarnBytes but
// at or under the paramsMaxBytes hard limit) for every derived variable.
// spec.md §4.2 treats the 10KB threshold as a warning, not an error; callers
// surface these via validate()'s warnings list (spec.md §6).
func (m MappingSpec) ParamsWarnings() []string {
	var warnings []string
	for _, d := range m.Derived {
		if n := len(d.Params); n > paramsWarnBytes && n <= paramsMaxBytes {
			warnings = append(warnings, fmt.Sprintf("derived %s: params is %d bytes, above the %d byte warning threshold", d.ID, n, paramsWarnBytes))
		}
	}
	sort.Strings(warnings)
	return warnings
}

func checkParamsCanonical(params json.RawMessage) error {
	decoded, err := canonicaljson.FromStdJSON(params)
	if err != nil {
		return err
	}
	_, err = canonicaljson.Marshal(decoded)
	return err
}

func appendUnknownProblems(problems *[]kernelerrors.Problem, prefix string, unknown map[string]json.RawMessage) {
	if len(unknown) == 0 {
		return
	}
	keys := make([]string, 0, len(unknown))
	for k := range unknown {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	*problems = append(*problems, kernelerrors.Problem{
		Kind: kernelerrors.InvalidIdFormat, Path: prefix,
		Message: "unknown fields: " + strings.Join(keys, ", "),
	})
}
