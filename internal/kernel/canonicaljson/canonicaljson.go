// Package canonicaljson implements the byte-stable JSON encoding that every
// digest and witness in Cheshbon rests on.
//
// Rationale:
// - Impact analysis, report digests, and witnesses all depend on two equal
//   values producing bit-identical bytes, regardless of map iteration order,
//   input array order (for semantic sets), or which process/machine ran it.
// - Rather than inventing an ad hoc "stable key order" scheme, canonical
//   forms here are intentionally narrow: sorted object keys, NFC-normalized
//   strings, no floating point, and an explicit opt-in set-array mode for
//   values whose order carries no meaning.
//
// This package has no third-party dependencies save golang.org/x/text for
// Unicode normalization, which the standard library does not provide.
package canonicaljson

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"crypto/sha256"
)

// Set wraps a slice to mark it as a semantic set: its elements carry no
// ordering information, so Marshal sorts them by a two-level key instead of
// preserving input order. Callers decide which arrays in their data model
// are semantic sets; Marshal never guesses.
type Set []any

// ErrorKind enumerates the ways a value can fail to canonicalize.
type ErrorKind string

const (
	// FloatForbidden indicates a floating-point number was present. Callers
	// must encode decimals as strings; this package never loses precision
	// silently.
	FloatForbidden ErrorKind = "FloatForbidden"
	// NonJsonType indicates a Go value with no JSON-compatible representation
	// (e.g. a channel, a function, a time.Time, raw binary).
	NonJsonType ErrorKind = "NonJsonType"
	// InvalidUtf8 indicates a string is not valid UTF-8 and cannot be
	// normalized to NFC.
	InvalidUtf8 ErrorKind = "InvalidUtf8"
)

// CanonicalizationError reports why a value could not be canonicalized.
// There is no recovery path; the caller must fix the input.
type CanonicalizationError struct {
	Kind ErrorKind
	Path string
}

func (e *CanonicalizationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("canonicaljson: %s", e.Kind)
	}
	return fmt.Sprintf("canonicaljson: %s at %s", e.Kind, e.Path)
}

// Marshal returns a deterministic JSON encoding of v.
//
// Rules:
//   - Object keys are sorted recursively by Unicode code point.
//   - No whitespace outside separators ("," and ":").
//   - Strings are normalized to NFC and encoded as UTF-8.
//   - Integers are emitted as decimal without leading zeros; floats are
//     rejected outright.
//   - Plain []any arrays preserve input order; Set values are sorted by
//     (type_tag, canonical_form).
func Marshal(v any) ([]byte, error) {
	switch x := v.(type) {
	case json.RawMessage:
		decoded, err := FromStdJSON(x)
		if err != nil {
			return nil, err
		}
		v = decoded
	case []byte:
		decoded, err := FromStdJSON(x)
		if err != nil {
			return nil, err
		}
		v = decoded
	}

	var buf bytes.Buffer
	if err := encode(&buf, v, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Digest returns the SHA-256 digest of b. It does not canonicalize b; callers
// should pass the output of Marshal.
func Digest(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// DigestHex returns the lowercase hex-encoded SHA-256 digest of b.
func DigestHex(b []byte) string {
	d := Digest(b)
	return hex.EncodeToString(d[:])
}

// MarshalAndDigest is a convenience for the common case of canonicalizing
// and hashing in one step.
func MarshalAndDigest(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return DigestHex(b), nil
}

func encode(buf *bytes.Buffer, v any, path string) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case string:
		return encodeString(buf, x, path)
	case json.Number:
		return encodeNumber(buf, x, path)
	case int:
		return encodeNumber(buf, json.Number(fmt.Sprintf("%d", x)), path)
	case int32:
		return encodeNumber(buf, json.Number(fmt.Sprintf("%d", x)), path)
	case int64:
		return encodeNumber(buf, json.Number(fmt.Sprintf("%d", x)), path)
	case float32, float64:
		return &CanonicalizationError{Kind: FloatForbidden, Path: path}
	case Set:
		return encodeSet(buf, x, path)
	case []any:
		return encodeArray(buf, x, path)
	case map[string]any:
		return encodeObject(buf, x, path)
	default:
		return &CanonicalizationError{Kind: NonJsonType, Path: path}
	}
}

func encodeString(buf *bytes.Buffer, s string, path string) error {
	if !isValidUTF8(s) {
		return &CanonicalizationError{Kind: InvalidUtf8, Path: path}
	}
	if !norm.NFC.IsNormalString(s) {
		s = norm.NFC.String(s)
	}

	buf.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '"':
			buf.WriteString(`\"`)
		// These five control characters use shorthand escapes; all other
		// control characters below 0x20 use lowercase \u00XX.
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r <= 0x1F:
			var esc [6]byte
			esc[0], esc[1], esc[2], esc[3] = '\\', 'u', '0', '0'
			hex.Encode(esc[4:], []byte{byte(r)})
			buf.Write(esc[:])
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
	return nil
}

func isValidUTF8(s string) bool {
	return strings.ToValidUTF8(s, "�") == s
}

// encodeNumber requires the number to be an integer: no fractional part, no
// exponent. This mirrors spec.md's decision to reject floats outright and
// push decimals into caller-controlled string encodings.
func encodeNumber(buf *bytes.Buffer, n json.Number, path string) error {
	s := string(n)
	if s == "" {
		return &CanonicalizationError{Kind: NonJsonType, Path: path}
	}
	body := s
	if strings.HasPrefix(body, "-") {
		body = body[1:]
	}
	if body == "" {
		return &CanonicalizationError{Kind: NonJsonType, Path: path}
	}
	if strings.ContainsAny(body, ".eE") {
		return &CanonicalizationError{Kind: FloatForbidden, Path: path}
	}
	for _, r := range body {
		if r < '0' || r > '9' {
			return &CanonicalizationError{Kind: NonJsonType, Path: path}
		}
	}
	if len(body) > 1 && body[0] == '0' {
		return &CanonicalizationError{Kind: NonJsonType, Path: path}
	}
	if body == "0" && strings.HasPrefix(s, "-") {
		buf.WriteString("0")
		return nil
	}
	buf.WriteString(s)
	return nil
}

func encodeArray(buf *bytes.Buffer, arr []any, path string) error {
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeObject(buf *bytes.Buffer, obj map[string]any, path string) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessByCodePoint(keys[i], keys[j]) })

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, k, path+"."+k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encode(buf, obj[k], path+"."+k); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeSet canonicalizes a semantic-set array: elements are sorted by
// (type_tag, canonical_form) so that permutations of the same set produce
// identical bytes.
func encodeSet(buf *bytes.Buffer, arr Set, path string) error {
	type tagged struct {
		tag  int
		form string
	}
	forms := make([]tagged, len(arr))
	for i, item := range arr {
		var b bytes.Buffer
		if err := encode(&b, item, fmt.Sprintf("%s{%d}", path, i)); err != nil {
			return err
		}
		forms[i] = tagged{tag: typeTag(item), form: b.String()}
	}
	sort.Slice(forms, func(i, j int) bool {
		if forms[i].tag != forms[j].tag {
			return forms[i].tag < forms[j].tag
		}
		return lessByCodePoint(forms[i].form, forms[j].form)
	})

	buf.WriteByte('[')
	for i, f := range forms {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(f.form)
	}
	buf.WriteByte(']')
	return nil
}

// typeTag orders null < bool < number < string < array < object, per
// spec.md's set-array ordering rule.
func typeTag(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case json.Number, int, int32, int64:
		return 2
	case string:
		return 3
	case Set, []any:
		return 4
	case map[string]any:
		return 5
	default:
		return 6
	}
}

func lessByCodePoint(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	for i := 0; i < n; i++ {
		if ra[i] != rb[i] {
			return ra[i] < rb[i]
		}
	}
	return len(ra) < len(rb)
}

// ErrInvalidJSON is returned by FromStdJSON when decoding fails.
var ErrInvalidJSON = errors.New("canonicaljson: invalid JSON")

// FromStdJSON decodes standard-library JSON bytes into the any-tree Marshal
// expects, preserving integers as json.Number so Marshal can reject floats
// rather than silently losing precision. Plain []any arrays are NOT treated
// as semantic sets; callers that need set semantics must re-wrap the
// relevant slices as Set after decoding.
func FromStdJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}
	return v, nil
}
