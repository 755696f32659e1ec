package bindingengine

import "testing"

func schema() RawSchema {
	return RawSchema{Columns: map[string]map[string]any{
		"AGE_YEARS": {"type": "integer"},
		"AGE_OLD":   {"type": "integer"},
		"SEX_RAW":   {"type": "string"},
	}}
}

func TestResolve_Bound(t *testing.T) {
	b := Bindings{
		Rules: []Rule{
			{SourceID: "s:SEX", ColumnName: "SEX_RAW", Priority: 1},
		},
		Schema: schema(),
	}
	results, err := b.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Status != Bound || results[0].Column != "SEX_RAW" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestResolve_MissingBinding(t *testing.T) {
	b := Bindings{
		Rules: []Rule{
			{SourceID: "s:WEIGHT", Pattern: "WEIGHT_*", Priority: 1},
		},
		Schema: schema(),
	}
	results, err := b.Resolve()
	if err != nil {
		t.Fatalf("unexpected hard error: %v", err)
	}
	if results[0].Status != MissingBinding {
		t.Fatalf("expected MissingBinding, got %+v", results[0])
	}
}

func TestResolve_AmbiguousBinding(t *testing.T) {
	b := Bindings{
		Rules: []Rule{
			{SourceID: "s:AGE", Pattern: "AGE_*", Priority: 1},
		},
		Schema: schema(),
	}
	results, err := b.Resolve()
	if err == nil {
		t.Fatal("expected ambiguous binding error")
	}
	if results[0].Status != AmbiguousBinding {
		t.Fatalf("expected AmbiguousBinding, got %+v", results[0])
	}
}

func TestResolve_ExactBeatsPatternAtEqualPriority(t *testing.T) {
	b := Bindings{
		Rules: []Rule{
			{SourceID: "s:AGE", Pattern: "AGE_*", Priority: 1},
			{SourceID: "s:AGE", ColumnName: "AGE_YEARS", Priority: 1},
		},
		Schema: schema(),
	}
	results, err := b.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Status != Bound || results[0].Column != "AGE_YEARS" {
		t.Fatalf("expected exact-match rule to win, got %+v", results[0])
	}
}

func TestResolve_HigherPriorityWins(t *testing.T) {
	b := Bindings{
		Rules: []Rule{
			{SourceID: "s:AGE", ColumnName: "AGE_YEARS", Priority: 1},
			{SourceID: "s:AGE", ColumnName: "AGE_OLD", Priority: 2},
		},
		Schema: schema(),
	}
	results, err := b.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Status != Bound || results[0].Column != "AGE_OLD" {
		t.Fatalf("expected higher-priority rule to win, got %+v", results[0])
	}
}

func TestResolve_BindingInvalid_NamedColumnAbsentFromSchema(t *testing.T) {
	b := Bindings{
		Rules: []Rule{
			{SourceID: "s:WEIGHT", ColumnName: "WEIGHT_KG", Priority: 1},
		},
		Schema: schema(),
	}
	results, err := b.Resolve()
	if err == nil {
		t.Fatal("expected binding-invalid error")
	}
	if results[0].Status != BindingInvalid {
		t.Fatalf("expected BindingInvalid, got %+v", results[0])
	}
}

func TestResolve_TypeDriftNeverAffectsStatus(t *testing.T) {
	// A raw column's declared type is allowed to drift against the spec's
	// declared source type without downgrading an otherwise-BOUND status:
	// type compatibility is out of scope for Resolve.
	b := Bindings{
		Rules: []Rule{
			{SourceID: "s:AGE", ColumnName: "SEX_RAW", Priority: 1},
		},
		Schema: schema(),
	}
	results, err := b.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Status != Bound || results[0].Column != "SEX_RAW" {
		t.Fatalf("expected Bound regardless of declared column type, got %+v", results[0])
	}
}

func TestCompileSchema_Valid(t *testing.T) {
	_, err := CompileSchema("age", map[string]any{"type": "integer", "minimum": 0})
	if err != nil {
		t.Fatalf("expected schema to compile, got %v", err)
	}
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema("bad", map[string]any{"type": "not-a-real-type"})
	if err == nil {
		t.Fatal("expected compile error for invalid type keyword")
	}
}
