package specmodel

import (
	"encoding/json"
	"testing"

	"github.com/cheshbon/cheshbon/internal/kernel/kernelerrors"
)

func validSpecJSON() []byte {
	return []byte(`{
		"schema_version": "0.7",
		"sources": [
			{"id": "s:AGE", "name": "Age", "type": "number"},
			{"id": "s:SEX", "name": "Sex", "type": "string"}
		],
		"derived": [
			{"id": "d:SEX_CDISC", "name": "Sex CDISC", "type": "string", "inputs": ["s:SEX"], "transform_ref": "t:ct_map", "params": {"map": {"M": "Male", "F": "Female"}}}
		],
		"constraints": [
			{"id": "c:AGE_RANGE", "name": "Age range", "inputs": ["s:AGE"], "expression": "s:AGE >= 0"}
		]
	}`)
}

func TestParse_RoundTrip(t *testing.T) {
	spec, err := Parse(validSpecJSON())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(spec.Sources) != 2 || len(spec.Derived) != 1 || len(spec.Constraints) != 1 {
		t.Fatalf("unexpected shape: %+v", spec)
	}
	if spec.Derived[0].ParamsHash == "" {
		t.Fatalf("expected ParamsHash to be computed")
	}

	b, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	reparsed, err := Parse(b)
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}
	if reparsed.Derived[0].ParamsHash != spec.Derived[0].ParamsHash {
		t.Fatalf("params hash changed across round trip")
	}
}

func TestValidate_Valid(t *testing.T) {
	spec, err := Parse(validSpecJSON())
	if err != nil {
		t.Fatal(err)
	}
	if err := spec.Validate(WithRequireSupportedSchemaVersion()); err != nil {
		t.Fatalf("expected valid spec, got %v", err)
	}
}

func TestValidate_DuplicateID(t *testing.T) {
	spec, err := Parse(validSpecJSON())
	if err != nil {
		t.Fatal(err)
	}
	spec.Sources = append(spec.Sources, SourceColumn{ID: "s:AGE", Name: "dup", Type: "number"})

	err = spec.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	sverr, ok := err.(*kernelerrors.SpecValidationError)
	if !ok {
		t.Fatalf("expected *SpecValidationError, got %T", err)
	}
	if !sverr.HasKind(kernelerrors.DuplicateId) {
		t.Fatalf("expected DuplicateId problem, got %v", sverr.Problems())
	}
}

func TestValidate_UnresolvedReference(t *testing.T) {
	spec, err := Parse(validSpecJSON())
	if err != nil {
		t.Fatal(err)
	}
	spec.Constraints[0].Inputs = []string{"s:DOES_NOT_EXIST"}

	err = spec.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	sverr := err.(*kernelerrors.SpecValidationError)
	if !sverr.HasKind(kernelerrors.UnresolvedReference) {
		t.Fatalf("expected UnresolvedReference problem, got %v", sverr.Problems())
	}
}

func TestValidate_InvalidIDFormat(t *testing.T) {
	spec, err := Parse(validSpecJSON())
	if err != nil {
		t.Fatal(err)
	}
	spec.Sources[0].ID = "AGE"

	err = spec.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	sverr := err.(*kernelerrors.SpecValidationError)
	if !sverr.HasKind(kernelerrors.InvalidIdFormat) {
		t.Fatalf("expected InvalidIdFormat problem, got %v", sverr.Problems())
	}
}

func TestValidate_ParamsTooLarge(t *testing.T) {
	spec, err := Parse(validSpecJSON())
	if err != nil {
		t.Fatal(err)
	}
	big := make(map[string]string, 2000)
	for i := 0; i < 2000; i++ {
		big[paddedKey(i)] = "0123456789012345678901234567890"
	}
	raw, err := json.Marshal(big)
	if err != nil {
		t.Fatal(err)
	}
	spec.Derived[0].Params = raw

	err = spec.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	sverr := err.(*kernelerrors.SpecValidationError)
	if !sverr.HasKind(kernelerrors.ParamsTooLarge) {
		t.Fatalf("expected ParamsTooLarge problem, got %v", sverr.Problems())
	}
}

func TestParamsWarnings_AboveThresholdBelowLimit(t *testing.T) {
	spec, err := Parse(validSpecJSON())
	if err != nil {
		t.Fatal(err)
	}
	mid := make(map[string]string, 400)
	for i := 0; i < 400; i++ {
		mid[paddedKey(i)] = "0123456789012345678901234567890"
	}
	raw, err := json.Marshal(mid)
	if err != nil {
		t.Fatal(err)
	}
	spec.Derived[0].Params = raw

	if err := spec.Validate(); err != nil {
		t.Fatalf("expected no hard error, got %v", err)
	}
	warnings := spec.ParamsWarnings()
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
}

func TestValidate_UnsupportedSchemaVersion(t *testing.T) {
	spec, err := Parse(validSpecJSON())
	if err != nil {
		t.Fatal(err)
	}
	spec.SchemaVersion = "9.9"

	err = spec.Validate(WithRequireSupportedSchemaVersion())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestValidate_UnknownFieldsStrictMode(t *testing.T) {
	spec, err := Parse(validSpecJSON())
	if err != nil {
		t.Fatal(err)
	}
	spec.Unknown = map[string]json.RawMessage{"mystery": json.RawMessage(`true`)}

	if err := spec.Validate(); err != nil {
		t.Fatalf("expected unknown fields to be ignored by default, got %v", err)
	}
	if err := spec.Validate(WithRejectUnknownFields()); err == nil {
		t.Fatal("expected error in strict mode")
	}
}

func TestDigest_Deterministic(t *testing.T) {
	a, err := Parse(validSpecJSON())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse(validSpecJSON())
	if err != nil {
		t.Fatal(err)
	}
	da, err := a.Digest()
	if err != nil {
		t.Fatal(err)
	}
	db, err := b.Digest()
	if err != nil {
		t.Fatal(err)
	}
	if da != db {
		t.Fatalf("expected equal digests, got %s vs %s", da, db)
	}
}

func paddedKey(i int) string {
	return "k" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26)) + string(rune('a'+(i/676)%26))
}
