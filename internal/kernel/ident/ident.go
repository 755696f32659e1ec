// Package ident parses and validates Cheshbon's typed identifiers.
//
// Generalizes the teacher SDK's formattoken package (`<name>@<version>`
// tokens): a single parser shared by every validator in specmodel and
// registrymodel, instead of ad hoc prefix checks scattered across files.
package ident

import (
	"errors"
	"fmt"
	"regexp"
)

// Kind is the typed prefix of a Cheshbon identifier.
type Kind string

const (
	KindSource     Kind = "s"
	KindDerived    Kind = "d"
	KindConstraint Kind = "c"
	KindTransform  Kind = "t"
)

// ID is a parsed, validated typed identifier, e.g. "d:SEX_CDISC".
type ID struct {
	Kind Kind
	Name string
}

func (id ID) String() string {
	if id.Kind == "" || id.Name == "" {
		return ""
	}
	return string(id.Kind) + ":" + id.Name
}

// nameRe matches the NAME portion of s:/d:/c:/t: identifiers: at least one
// character, letters/digits/underscore, must not start with a digit.
var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrInvalidFormat is wrapped by Parse errors.
var ErrInvalidFormat = errors.New("ident: invalid id format")

// Parse parses a typed identifier of the form "<kind>:<NAME>".
//
// Transform IDs ("t:") are case-sensitive per spec.md §3; all other kinds
// are matched case-sensitively too (identity is never inferred from display
// labels, and spec.md never asks for case folding on s:/d:/c: names either —
// only that lowercase-insensitivity, where it applies, is explicit). Parse
// performs no folding; callers that need case-insensitive comparison for a
// given kind must normalize explicitly.
func Parse(s string) (ID, error) {
	if len(s) < 3 || s[1] != ':' {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	kind := Kind(s[:1])
	switch kind {
	case KindSource, KindDerived, KindConstraint, KindTransform:
	default:
		return ID{}, fmt.Errorf("%w: unknown kind %q in %q", ErrInvalidFormat, kind, s)
	}
	name := s[2:]
	if !nameRe.MatchString(name) {
		return ID{}, fmt.Errorf("%w: invalid name %q in %q", ErrInvalidFormat, name, s)
	}
	return ID{Kind: kind, Name: name}, nil
}

// IsValid reports whether s is a syntactically valid typed identifier.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// MustKind reports whether s is syntactically valid and has the given kind.
func MustKind(s string, k Kind) bool {
	id, err := Parse(s)
	return err == nil && id.Kind == k
}

// New constructs a canonical identifier string from a kind and name without
// validating the name; use Parse to validate untrusted input.
func New(k Kind, name string) string {
	return string(k) + ":" + name
}
