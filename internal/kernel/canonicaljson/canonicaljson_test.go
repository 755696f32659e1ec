package canonicaljson

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestMarshal_DeterministicAcrossKeyOrder(t *testing.T) {
	inA := []byte(`{
  "b": 1,
  "a": {"y":2,"x":1},
  "arr": [{"b":2,"a":1}]
}`)
	inB := []byte(`{
  "arr": [{"a":1,"b":2}],
  "a": {"x":1,"y":2},
  "b": 1
}`)

	ca, err := Marshal(json.RawMessage(inA))
	if err != nil {
		t.Fatalf("canonical a: %v", err)
	}
	cb, err := Marshal(json.RawMessage(inB))
	if err != nil {
		t.Fatalf("canonical b: %v", err)
	}
	if !bytes.Equal(ca, cb) {
		t.Fatalf("expected identical canonical JSON\nA: %s\nB: %s", string(ca), string(cb))
	}
}

func TestMarshal_ControlCharShorthandEscapes(t *testing.T) {
	input := map[string]any{
		"bs":  "\b",
		"tab": "\t",
		"nl":  "\n",
		"ff":  "\f",
		"cr":  "\r",
		"nul": "\x00",
		"esc": "\x1b",
	}
	out, err := Marshal(input)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	shorthands := map[string]string{
		"bs":  `\b`,
		"tab": `\t`,
		"nl":  `\n`,
		"ff":  `\f`,
		"cr":  `\r`,
	}
	for key, shorthand := range shorthands {
		needle := []byte(`"` + key + `":"` + shorthand + `"`)
		if !bytes.Contains(out, needle) {
			t.Errorf("%s: expected shorthand %s in output, got %s", key, shorthand, out)
		}
	}

	if !bytes.Contains(out, []byte(`\u0000`)) {
		t.Errorf("nul: expected \\u0000 in output, got %s", out)
	}
	if !bytes.Contains(out, []byte(`\u001b`)) {
		t.Errorf("esc: expected \\u001b in output, got %s", out)
	}
}

func TestMarshal_IntegersNoLeadingZeros(t *testing.T) {
	out, err := Marshal(map[string]any{"n": json.Number("42"), "neg": json.Number("-7"), "zero": json.Number("0")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"n":42,"neg":-7,"zero":0}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestMarshal_RejectsFloats(t *testing.T) {
	_, err := Marshal(json.RawMessage(`{"n":1.5}`))
	if err == nil {
		t.Fatal("expected error for float value")
	}
	cerr, ok := err.(*CanonicalizationError)
	if !ok || cerr.Kind != FloatForbidden {
		t.Fatalf("expected FloatForbidden, got %v", err)
	}
}

func TestMarshal_RejectsExponentNumbers(t *testing.T) {
	_, err := Marshal(json.RawMessage(`{"n":1e-6}`))
	if err == nil {
		t.Fatal("expected error for exponent-form number")
	}
}

func TestMarshal_RejectsNonJSONType(t *testing.T) {
	ch := make(chan int)
	_, err := Marshal(map[string]any{"bad": ch})
	if err == nil {
		t.Fatal("expected error for non-JSON type")
	}
}

func TestMarshal_NFCNormalizesStrings(t *testing.T) {
	// "é" as NFD (e + combining acute) vs NFC (precomposed) must canonicalize identically.
	nfd := "é"
	nfc := "é"
	outA, err := Marshal(map[string]any{"s": nfd})
	if err != nil {
		t.Fatalf("marshal nfd: %v", err)
	}
	outB, err := Marshal(map[string]any{"s": nfc})
	if err != nil {
		t.Fatalf("marshal nfc: %v", err)
	}
	if !bytes.Equal(outA, outB) {
		t.Fatalf("expected NFC-normalized forms to match: %s vs %s", outA, outB)
	}
}

func TestMarshal_ObjectKeysSortedByCodePoint(t *testing.T) {
	out, err := Marshal(map[string]any{"b": json.Number("1"), "a": json.Number("2"), "A": json.Number("3")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"A":3,"a":2,"b":1}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestMarshal_PlainArrayPreservesOrder(t *testing.T) {
	out, err := Marshal(map[string]any{"arr": []any{json.Number("3"), json.Number("1"), json.Number("2")}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"arr":[3,1,2]}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestMarshal_SetArraySortsByTypeThenForm(t *testing.T) {
	a := Set{json.Number("3"), "z", nil, true, json.Number("1")}
	b := Set{true, json.Number("1"), json.Number("3"), nil, "z"}
	outA, err := Marshal(map[string]any{"s": a})
	if err != nil {
		t.Fatalf("marshal a: %v", err)
	}
	outB, err := Marshal(map[string]any{"s": b})
	if err != nil {
		t.Fatalf("marshal b: %v", err)
	}
	if !bytes.Equal(outA, outB) {
		t.Fatalf("expected permutation-invariant set encoding: %s vs %s", outA, outB)
	}
	want := `{"s":[null,true,1,3,"z"]}`
	if string(outA) != want {
		t.Fatalf("got %s, want %s", outA, want)
	}
}

func TestDigestHex_Deterministic(t *testing.T) {
	b, err := Marshal(map[string]any{"a": json.Number("1")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	d1 := DigestHex(b)
	d2 := DigestHex(b)
	if d1 != d2 {
		t.Fatalf("expected stable digest, got %s vs %s", d1, d2)
	}
	if len(d1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(d1))
	}
}

func TestMarshalAndDigest_EqualForSemanticallyEqualValues(t *testing.T) {
	d1, err := MarshalAndDigest(json.RawMessage(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("digest 1: %v", err)
	}
	d2, err := MarshalAndDigest(json.RawMessage(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatalf("digest 2: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("expected equal digests for semantically equal values, got %s vs %s", d1, d2)
	}
}
