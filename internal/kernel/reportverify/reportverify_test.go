package reportverify

import (
	"testing"

	"github.com/cheshbon/cheshbon/internal/kernel/depgraph"
	"github.com/cheshbon/cheshbon/internal/kernel/diffengine"
	"github.com/cheshbon/cheshbon/internal/kernel/impact"
	"github.com/cheshbon/cheshbon/internal/kernel/report"
	"github.com/cheshbon/cheshbon/internal/kernel/specmodel"
)

func buildSampleReport(t *testing.T, mode report.Mode) (*report.Report, *specmodel.MappingSpec, *specmodel.MappingSpec) {
	t.Helper()
	v1, err := specmodel.Parse([]byte(`{"schema_version":"0.7","sources":[{"id":"s:A","name":"A","type":"number"}],"derived":[{"id":"d:B","name":"B","type":"string","inputs":["s:A"],"transform_ref":null}],"constraints":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	v2, err := specmodel.Parse([]byte(`{"schema_version":"0.7","sources":[{"id":"s:A","name":"A","type":"number"}],"derived":[{"id":"d:B","name":"B","type":"number","inputs":["s:A"],"transform_ref":null}],"constraints":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	g, err := depgraph.NewGraph([]depgraph.Node{
		{ID: "s:A", Kind: depgraph.NodeSource},
		{ID: "d:B", Kind: depgraph.NodeDerived},
	}, []depgraph.Edge{{From: "s:A", To: "d:B"}})
	if err != nil {
		t.Fatal(err)
	}
	events := []diffengine.ChangeEvent{{Kind: diffengine.DerivedTypeChanged, ElementID: "d:B"}}
	result := impact.Compute(events, g, g, nil, nil)

	r, err := report.Build(mode, v1, v2, nil, nil, nil, events, result)
	if err != nil {
		t.Fatal(err)
	}
	return r, v1, v2
}

func TestVerify_OK(t *testing.T) {
	r, v1, v2 := buildSampleReport(t, report.ModeAllDetails)
	result := Verify(r, v1, v2, nil, nil, nil)
	if result.Outcome != OK {
		t.Fatalf("expected OK, got %v: %v", result.Outcome, result.Problems)
	}
}

func TestVerify_InputsChanged_DifferentSpecV2(t *testing.T) {
	r, v1, _ := buildSampleReport(t, report.ModeCore)
	tampered, err := specmodel.Parse([]byte(`{"schema_version":"0.7","sources":[{"id":"s:A","name":"A","type":"boolean"}],"derived":[{"id":"d:B","name":"B","type":"number","inputs":["s:A"],"transform_ref":null}],"constraints":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	result := Verify(r, v1, tampered, nil, nil, nil)
	if result.Outcome != InputsChanged {
		t.Fatalf("expected INPUTS_CHANGED, got %v", result.Outcome)
	}
}

func TestVerify_DigestMismatch_TamperedContentHash(t *testing.T) {
	r, v1, v2 := buildSampleReport(t, report.ModeCore)
	r.ContentHash = "0000000000000000000000000000000000000000000000000000000000000000"
	result := Verify(r, v1, v2, nil, nil, nil)
	if result.Outcome != DigestMismatch {
		t.Fatalf("expected DIGEST_MISMATCH, got %v", result.Outcome)
	}
}

func TestVerify_WitnessMismatch_TamperedDeclaration(t *testing.T) {
	r, v1, v2 := buildSampleReport(t, report.ModeAllDetails)
	// Tamper with a witness recorded in the report; the specs are left
	// unchanged, so the stored content_hash no longer covers the report.
	r.Witnesses[0].Digest = "0000000000000000000000000000000000000000000000000000000000000000"

	result := Verify(r, v1, v2, nil, nil, nil)
	if result.Outcome != DigestMismatch && result.Outcome != WitnessMismatch {
		t.Fatalf("expected DIGEST_MISMATCH or WITNESS_MISMATCH, got %v", result.Outcome)
	}
}
