// Package registrymodel is the typed in-memory model of a TransformRegistry:
// the append-only catalogue of transform implementations a MappingSpec's
// derived variables reference by id.
//
// Grounded on the teacher SDK's Transform/TransformOrRef types (types.go)
// for the lossless wire-struct pattern, generalized from OpenBindings'
// inline-expression transforms to Cheshbon's versioned, fingerprinted
// TransformEntry with an append-only history.
package registrymodel

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cheshbon/cheshbon/internal/kernel/ident"
	"github.com/cheshbon/cheshbon/internal/kernel/kernelerrors"
)

// ImplFingerprint identifies the concrete implementation behind a transform
// version: which algorithm computed Digest, where the source lives, and a
// ref (commit sha, artifact tag) pinning it.
type ImplFingerprint struct {
	Algo   string `json:"algo"`
	Source string `json:"source"`
	Ref    string `json:"ref"`
	Digest string `json:"digest"`

	LosslessFields
}

type implFingerprintWire struct {
	Algo   string `json:"algo"`
	Source string `json:"source"`
	Ref    string `json:"ref"`
	Digest string `json:"digest"`
}

func (f *ImplFingerprint) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var w implFingerprintWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*f = ImplFingerprint{Algo: w.Algo, Source: w.Source, Ref: w.Ref, Digest: w.Digest}
	f.Unknown = splitUnknown(raw, knownImplFingerprintSet)
	return nil
}

func (f ImplFingerprint) MarshalJSON() ([]byte, error) {
	w := implFingerprintWire{Algo: f.Algo, Source: f.Source, Ref: f.Ref, Digest: f.Digest}
	return marshalWithUnknown(f.Unknown, w)
}

// TransformEntry is one version of a named transform. History holds the
// entry's prior versions in ascending-version insertion order; appending a
// new version never rewrites an existing History element.
type TransformEntry struct {
	ID               string            `json:"id"`
	Version          string            `json:"version"`
	Kind             string            `json:"kind"`
	Signature        string            `json:"signature"`
	ParamsSchemaHash string            `json:"params_schema_hash,omitempty"`
	ImplFingerprint  ImplFingerprint   `json:"impl_fingerprint"`
	History          []TransformEntry  `json:"history,omitempty"`

	LosslessFields
}

type transformEntryWire struct {
	ID               string           `json:"id"`
	Version          string           `json:"version"`
	Kind             string           `json:"kind"`
	Signature        string           `json:"signature"`
	ParamsSchemaHash string           `json:"params_schema_hash,omitempty"`
	ImplFingerprint  ImplFingerprint  `json:"impl_fingerprint"`
	History          []TransformEntry `json:"history,omitempty"`
}

func (e *TransformEntry) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var w transformEntryWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*e = TransformEntry{
		ID: w.ID, Version: w.Version, Kind: w.Kind, Signature: w.Signature,
		ParamsSchemaHash: w.ParamsSchemaHash, ImplFingerprint: w.ImplFingerprint,
		History: w.History,
	}
	e.Unknown = splitUnknown(raw, knownTransformEntrySet)
	return nil
}

func (e TransformEntry) MarshalJSON() ([]byte, error) {
	w := transformEntryWire{
		ID: e.ID, Version: e.Version, Kind: e.Kind, Signature: e.Signature,
		ParamsSchemaHash: e.ParamsSchemaHash, ImplFingerprint: e.ImplFingerprint,
		History: e.History,
	}
	return marshalWithUnknown(e.Unknown, w)
}

// WithAppendedHistory returns a copy of e with prev appended to e.History,
// enforcing append-only semantics: callers must not mutate History in
// place, since that would silently rewrite a past version's record.
func (e TransformEntry) WithAppendedHistory(prev TransformEntry) TransformEntry {
	next := e
	next.History = append(append([]TransformEntry{}, e.History...), prev)
	return next
}

// TransformRegistry is the full catalogue of known transforms, keyed by id.
type TransformRegistry struct {
	Transforms []TransformEntry `json:"transforms"`

	LosslessFields
}

type transformRegistryWire struct {
	Transforms []TransformEntry `json:"transforms"`
}

func (r *TransformRegistry) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var w transformRegistryWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = TransformRegistry{Transforms: w.Transforms}
	r.Unknown = splitUnknown(raw, knownTransformRegistrySet)
	return nil
}

func (r TransformRegistry) MarshalJSON() ([]byte, error) {
	w := transformRegistryWire{Transforms: r.Transforms}
	return marshalWithUnknown(r.Unknown, w)
}

// Parse decodes a TransformRegistry from JSON bytes.
func Parse(b []byte) (*TransformRegistry, error) {
	var r TransformRegistry
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("registrymodel: decode: %w", err)
	}
	return &r, nil
}

// ByID indexes transforms by id. Duplicate ids keep the last entry
// encountered; callers that need to detect duplicates should call Validate.
func (r TransformRegistry) ByID() map[string]TransformEntry {
	out := make(map[string]TransformEntry, len(r.Transforms))
	for _, e := range r.Transforms {
		out[e.ID] = e
	}
	return out
}

// Validate enforces spec.md §3's registry invariants: every transform id is
// unique, well-formed, and every derived-variable transform_ref in
// specTransformRefs resolves against this registry.
func (r TransformRegistry) Validate(specTransformRefs []string) error {
	var problems []kernelerrors.Problem
	seen := map[string]struct{}{}

	for i, e := range r.Transforms {
		path := fmt.Sprintf("transforms[%d]", i)
		if !ident.MustKind(e.ID, ident.KindTransform) {
			problems = append(problems, kernelerrors.Problem{
				Kind: kernelerrors.InvalidIdFormat, Path: path,
				Message: fmt.Sprintf("%q is not a valid transform id", e.ID),
			})
			continue
		}
		if _, dup := seen[e.ID]; dup {
			problems = append(problems, kernelerrors.Problem{
				Kind: kernelerrors.DuplicateTransformId, Path: path,
				Message: fmt.Sprintf("transform id %q declared more than once", e.ID),
			})
		}
		seen[e.ID] = struct{}{}
	}

	for _, ref := range specTransformRefs {
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; !ok {
			problems = append(problems, kernelerrors.Problem{
				Kind: kernelerrors.MissingTransformRef, Path: ref,
				Message: fmt.Sprintf("transform_ref %q has no corresponding registry entry", ref),
			})
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return kernelerrors.NewRegistryValidationError(problems)
}

// SortedIDs returns every declared transform id in sorted order.
func (r TransformRegistry) SortedIDs() []string {
	ids := make([]string, 0, len(r.Transforms))
	for _, e := range r.Transforms {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	return ids
}
