// Package reportverify re-derives a report's digests and witnesses from
// the original spec/registry inputs and compares them against what a
// report document claims, catching tampering or drift without re-running
// the full diff+impact pipeline.
package reportverify

import (
	"encoding/json"

	"github.com/cheshbon/cheshbon/internal/kernel/bindingengine"
	"github.com/cheshbon/cheshbon/internal/kernel/canonicaljson"
	"github.com/cheshbon/cheshbon/internal/kernel/kernelerrors"
	"github.com/cheshbon/cheshbon/internal/kernel/registrymodel"
	"github.com/cheshbon/cheshbon/internal/kernel/report"
	"github.com/cheshbon/cheshbon/internal/kernel/specmodel"
)

// Outcome is the top-level result of a verification run.
type Outcome string

const (
	OK               Outcome = "OK"
	DigestMismatch   Outcome = "DIGEST_MISMATCH"
	WitnessMismatch  Outcome = "WITNESS_MISMATCH"
	InputsChanged    Outcome = "INPUTS_CHANGED"
)

// Result is the full verification output: Outcome plus every individual
// problem found, so a caller can report more than the first failure.
type Result struct {
	Outcome  Outcome
	Problems []*kernelerrors.VerifyError
}

// Verify recomputes r's content_hash and inputs_digest from the original
// reg1/reg2 (either may be nil if the report was produced without a
// registry comparison), v1/v2, and bindings (nil if the report was produced
// without a raw-schema binding resolution), and checks every witness's
// digest against v2's current declarations.
func Verify(r *report.Report, v1, v2 *specmodel.MappingSpec, reg1, reg2 *registrymodel.TransformRegistry, bindings *bindingengine.Bindings) Result {
	var problems []*kernelerrors.VerifyError

	specDigestV1, err1 := v1.Digest()
	specDigestV2, err2 := v2.Digest()
	if err1 != nil || err2 != nil {
		problems = append(problems, &kernelerrors.VerifyError{
			Kind: kernelerrors.InputsChanged, Detail: "failed to digest supplied spec inputs",
		})
		return Result{Outcome: InputsChanged, Problems: problems}
	}

	if specDigestV1 != r.SpecDigestV1 {
		problems = append(problems, &kernelerrors.VerifyError{
			Kind: kernelerrors.InputsChanged, Field: "spec_digest_v1",
			Detail: "supplied spec v1 does not match the digest recorded in the report",
		})
	}
	if specDigestV2 != r.SpecDigestV2 {
		problems = append(problems, &kernelerrors.VerifyError{
			Kind: kernelerrors.InputsChanged, Field: "spec_digest_v2",
			Detail: "supplied spec v2 does not match the digest recorded in the report",
		})
	}

	if reg1 != nil {
		if digest, err := digestRegistry(reg1); err == nil && digest != r.RegistryDigestV1 {
			problems = append(problems, &kernelerrors.VerifyError{
				Kind: kernelerrors.InputsChanged, Field: "registry_digest_v1",
				Detail: "supplied registry v1 does not match the digest recorded in the report",
			})
		}
	}
	if reg2 != nil {
		if digest, err := digestRegistry(reg2); err == nil && digest != r.RegistryDigestV2 {
			problems = append(problems, &kernelerrors.VerifyError{
				Kind: kernelerrors.InputsChanged, Field: "registry_digest_v2",
				Detail: "supplied registry v2 does not match the digest recorded in the report",
			})
		}
	}

	if len(problems) > 0 {
		return Result{Outcome: InputsChanged, Problems: problems}
	}

	wantInputsDigest, err := recomputeInputsDigest(r, bindings)
	if err != nil || wantInputsDigest != r.InputsDigest {
		problems = append(problems, &kernelerrors.VerifyError{
			Kind: kernelerrors.DigestMismatch, Field: "inputs_digest",
			Detail: "recomputed inputs_digest does not match the report",
		})
	}

	wantContentHash, err := recomputeContentHash(r)
	if err != nil || wantContentHash != r.ContentHash {
		problems = append(problems, &kernelerrors.VerifyError{
			Kind: kernelerrors.DigestMismatch, Field: "content_hash",
			Detail: "recomputed content_hash does not match the report",
		})
	}
	if len(problems) > 0 {
		return Result{Outcome: DigestMismatch, Problems: problems}
	}

	for _, w := range r.Witnesses {
		wantDigest, ok := witnessDigest(v2, w.NodeID)
		if !ok {
			problems = append(problems, &kernelerrors.VerifyError{
				Kind: kernelerrors.WitnessMismatch, NodeID: w.NodeID, Field: w.Field,
				Detail: "node no longer present in spec v2",
			})
			continue
		}
		if wantDigest != w.Digest {
			problems = append(problems, &kernelerrors.VerifyError{
				Kind: kernelerrors.WitnessMismatch, NodeID: w.NodeID, Field: w.Field,
				Detail: "declaration digest no longer matches the witness",
			})
		}
	}
	if len(problems) > 0 {
		return Result{Outcome: WitnessMismatch, Problems: problems}
	}

	return Result{Outcome: OK}
}

func digestRegistry(reg *registrymodel.TransformRegistry) (string, error) {
	b, err := json.Marshal(reg)
	if err != nil {
		return "", err
	}
	decoded, err := canonicaljson.FromStdJSON(b)
	if err != nil {
		return "", err
	}
	return canonicaljson.MarshalAndDigest(decoded)
}

func recomputeInputsDigest(r *report.Report, bindings *bindingengine.Bindings) (report.InputsDigest, error) {
	d := report.InputsDigest{
		FromSpec:   r.SpecDigestV1,
		ToSpec:     r.SpecDigestV2,
		RegistryV1: r.RegistryDigestV1,
		RegistryV2: r.RegistryDigestV2,
	}
	if bindings == nil {
		return d, nil
	}
	bindingsDigest, err := digestValue(bindings.Rules)
	if err != nil {
		return report.InputsDigest{}, err
	}
	d.Bindings = bindingsDigest

	rawSchemaDigest, err := digestValue(bindings.Schema)
	if err != nil {
		return report.InputsDigest{}, err
	}
	d.RawSchema = rawSchemaDigest
	return d, nil
}

func recomputeContentHash(r *report.Report) (string, error) {
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

func witnessDigest(v2 *specmodel.MappingSpec, nodeID string) (string, bool) {
	if s, ok := v2.SourceByID()[nodeID]; ok {
		d, err := digestValue(s)
		return d, err == nil
	}
	if d2, ok := v2.DerivedByID()[nodeID]; ok {
		d, err := digestValue(d2)
		return d, err == nil
	}
	if c, ok := v2.ConstraintByID()[nodeID]; ok {
		d, err := digestValue(c)
		return d, err == nil
	}
	return "", false
}

func digestValue(v any) (string, error) {
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
