package registrymodel

import (
	"testing"

	"github.com/cheshbon/cheshbon/internal/kernel/kernelerrors"
)

func validRegistryJSON() []byte {
	return []byte(`{
		"transforms": [
			{
				"id": "t:ct_map",
				"version": "1.0.0",
				"kind": "lookup",
				"signature": "map(str) -> str",
				"params_schema_hash": "abc123",
				"impl_fingerprint": {"algo": "sha256", "source": "git", "ref": "main", "digest": "deadbeef"}
			}
		]
	}`)
}

func TestParse_Valid(t *testing.T) {
	reg, err := Parse(validRegistryJSON())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(reg.Transforms) != 1 {
		t.Fatalf("unexpected shape: %+v", reg)
	}
}

func TestValidate_OK(t *testing.T) {
	reg, err := Parse(validRegistryJSON())
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Validate([]string{"t:ct_map"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_MissingTransformRef(t *testing.T) {
	reg, err := Parse(validRegistryJSON())
	if err != nil {
		t.Fatal(err)
	}
	err = reg.Validate([]string{"t:does_not_exist"})
	if err == nil {
		t.Fatal("expected error")
	}
	rverr, ok := err.(*kernelerrors.RegistryValidationError)
	if !ok {
		t.Fatalf("expected *RegistryValidationError, got %T", err)
	}
	found := false
	for _, p := range rverr.Problems() {
		if p.Kind == kernelerrors.MissingTransformRef {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected MissingTransformRef problem, got %v", rverr.Problems())
	}
}

func TestValidate_DuplicateTransformID(t *testing.T) {
	reg, err := Parse(validRegistryJSON())
	if err != nil {
		t.Fatal(err)
	}
	reg.Transforms = append(reg.Transforms, reg.Transforms[0])

	err = reg.Validate(nil)
	if err == nil {
		t.Fatal("expected error")
	}
	rverr := err.(*kernelerrors.RegistryValidationError)
	found := false
	for _, p := range rverr.Problems() {
		if p.Kind == kernelerrors.DuplicateTransformId {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected DuplicateTransformId problem, got %v", rverr.Problems())
	}
}

func TestWithAppendedHistory(t *testing.T) {
	reg, err := Parse(validRegistryJSON())
	if err != nil {
		t.Fatal(err)
	}
	v1 := reg.Transforms[0]
	v2 := v1
	v2.Version = "2.0.0"
	v2 = v2.WithAppendedHistory(v1)

	if len(v2.History) != 1 || v2.History[0].Version != "1.0.0" {
		t.Fatalf("expected history to contain v1, got %+v", v2.History)
	}
	if len(v1.History) != 0 {
		t.Fatalf("expected original entry's history to be untouched, got %+v", v1.History)
	}
}

func TestSortedIDs(t *testing.T) {
	reg, err := Parse([]byte(`{"transforms": [
		{"id": "t:zeta", "version": "1.0.0", "kind": "lookup", "signature": "x", "impl_fingerprint": {"algo":"sha256","source":"git","ref":"main","digest":"d"}},
		{"id": "t:alpha", "version": "1.0.0", "kind": "lookup", "signature": "x", "impl_fingerprint": {"algo":"sha256","source":"git","ref":"main","digest":"d"}}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	ids := reg.SortedIDs()
	if len(ids) != 2 || ids[0] != "t:alpha" || ids[1] != "t:zeta" {
		t.Fatalf("expected sorted ids, got %v", ids)
	}
}
