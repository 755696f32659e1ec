// Package bindingengine resolves a MappingSpec's source columns against a
// raw input schema (the shape of the actual data a mapping will run
// against), producing a BindingStatus per source that downstream impact
// analysis and reporting can key off of.
//
// Grounded on the teacher SDK's schemaprofile.Normalizer (schemaprofile.go):
// a stateless-per-call resolver over map[string]any schema fragments, with
// directional compatibility checks rather than full JSON Schema validation.
// Where spec.md calls for a genuine meta-schema check on a raw column's
// declared type, bindingengine compiles it with
// github.com/santhosh-tekuri/jsonschema/v5 instead of hand-rolling the
// checks the teacher's Normalizer does for OpenBindings payload schemas —
// Cheshbon's raw schemas are arbitrary user-supplied JSON Schema documents,
// which is exactly what that library is for.
package bindingengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cheshbon/cheshbon/internal/kernel/kernelerrors"
)

// RawSchema describes the shape of the actual incoming data: one JSON
// Schema fragment per raw column name.
type RawSchema struct {
	Columns map[string]map[string]any `json:"columns"`
}

// BindingStatus is the outcome of resolving one spec source column against
// a RawSchema.
type BindingStatus string

const (
	Bound            BindingStatus = "BOUND"
	MissingBinding   BindingStatus = "MISSING_BINDING"
	AmbiguousBinding BindingStatus = "AMBIGUOUS_BINDING"
	BindingInvalid   BindingStatus = "BINDING_INVALID"
)

// Rule maps a spec source id to one or more raw column names, with a
// precedence used to break ties when more than one rule could bind the
// same source. Higher Priority wins; among equal priorities, an exact
// ColumnName match beats a Pattern match.
type Rule struct {
	SourceID   string `json:"source_id"`
	ColumnName string `json:"column_name,omitempty"` // exact raw column name; mutually exclusive with Pattern
	Pattern    string `json:"pattern,omitempty"`      // raw column name pattern: "*", or a single leading/trailing "*"; anything else matches exactly
	Priority   int    `json:"priority"`
}

// Bindings is an ordered set of Rules plus the RawSchema they bind against.
type Bindings struct {
	Rules  []Rule    `json:"rules"`
	Schema RawSchema `json:"schema"`
}

// Resolution is the resolved outcome for one source id.
type Resolution struct {
	SourceID string
	Status   BindingStatus
	Column   string // the raw column bound, if Status == Bound
	Detail   string
}

// Resolve computes a Resolution for every source id referenced by rules, in
// sorted-by-SourceID order, applying precedence rules to pick a single
// winner when multiple Rules target the same source. Raw column type
// compatibility is never checked here: a bound column's declared type is
// allowed to drift against the spec's declared source type without
// affecting its BindingStatus, since type compatibility has no rule this
// package is permitted to invent.
func (b Bindings) Resolve() ([]Resolution, error) {
	bySource := map[string][]Rule{}
	for _, r := range b.Rules {
		bySource[r.SourceID] = append(bySource[r.SourceID], r)
	}

	ids := make([]string, 0, len(bySource))
	for id := range bySource {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]Resolution, 0, len(ids))
	var bindingErrs []*kernelerrors.BindingError

	for _, id := range ids {
		candidates := matchingCandidates(bySource[id], b.Schema)
		res := Resolution{SourceID: id}

		switch {
		case len(candidates) == 0:
			if invalid := namedAbsentColumn(bySource[id], b.Schema); invalid != "" {
				res.Status = BindingInvalid
				res.Detail = fmt.Sprintf("%s names raw column %q, which does not appear in the schema", id, invalid)
				bindingErrs = append(bindingErrs, &kernelerrors.BindingError{
					Kind: kernelerrors.InvalidBinding, Source: id, Detail: res.Detail,
				})
			} else {
				res.Status = MissingBinding
				res.Detail = fmt.Sprintf("no raw column matched any rule for %s", id)
			}
		case len(candidates) == 1:
			res.Status = Bound
			res.Column = candidates[0]
		default:
			winners := highestPrecedence(bySource[id], candidates)
			if len(winners) == 1 {
				res.Status = Bound
				res.Column = winners[0]
			} else {
				res.Status = AmbiguousBinding
				sort.Strings(winners)
				res.Detail = fmt.Sprintf("%d columns tied for %s: %v", len(winners), id, winners)
				bindingErrs = append(bindingErrs, &kernelerrors.BindingError{
					Kind: kernelerrors.AmbiguousBinding, Source: id, Detail: res.Detail,
				})
			}
		}

		results = append(results, res)
	}

	if len(bindingErrs) > 0 {
		return results, bindingErrs[0]
	}
	return results, nil
}

// namedAbsentColumn returns the first exact ColumnName a rule names that is
// not a key in schema.Columns, or "" if every exact rule names a column the
// schema actually declares. Pattern rules never "name" a specific column,
// so they never trigger BINDING_INVALID on their own.
func namedAbsentColumn(rules []Rule, schema RawSchema) string {
	var names []string
	for _, r := range rules {
		if r.ColumnName == "" {
			continue
		}
		if _, ok := schema.Columns[r.ColumnName]; !ok {
			names = append(names, r.ColumnName)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[0]
}

func matchingCandidates(rules []Rule, schema RawSchema) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rules {
		for col := range schema.Columns {
			if ruleMatches(r, col) && !seen[col] {
				seen[col] = true
				out = append(out, col)
			}
		}
	}
	sort.Strings(out)
	return out
}

func ruleMatches(r Rule, column string) bool {
	if r.ColumnName != "" {
		return r.ColumnName == column
	}
	if r.Pattern != "" {
		ok, err := globMatch(r.Pattern, column)
		return err == nil && ok
	}
	return false
}

func highestPrecedence(rules []Rule, candidates []string) []string {
	best := -1
	for _, r := range rules {
		if r.Priority > best {
			best = r.Priority
		}
	}
	exactWins := map[string]bool{}
	for _, r := range rules {
		if r.Priority != best {
			continue
		}
		if r.ColumnName != "" {
			exactWins[r.ColumnName] = true
		}
	}
	if len(exactWins) > 0 {
		var out []string
		for col := range exactWins {
			for _, c := range candidates {
				if c == col {
					out = append(out, c)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	var top []string
	for _, c := range candidates {
		for _, r := range rules {
			if r.Priority == best && ruleMatches(r, c) {
				top = append(top, c)
				break
			}
		}
	}
	if len(top) > 0 {
		return top
	}
	return candidates
}

// globMatch implements simple "*"-wildcard matching without the platform
// path-separator semantics of path.Match, since raw column names are not
// filesystem paths.
func globMatch(pattern, s string) (bool, error) {
	return simpleGlob(pattern, s), nil
}

func simpleGlob(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	// Only a single leading/trailing "*" is supported; that covers every
	// realistic "prefix_*"/"*_suffix" raw-column convention without pulling
	// in a full glob engine for something this narrow.
	switch {
	case len(pattern) > 0 && pattern[0] == '*':
		suffix := pattern[1:]
		return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
	case len(pattern) > 0 && pattern[len(pattern)-1] == '*':
		prefix := pattern[:len(pattern)-1]
		return len(s) >= len(prefix) && s[:len(prefix)] == prefix
	default:
		return pattern == s
	}
}

// CompileSchema compiles a raw column's JSON Schema fragment with
// santhosh-tekuri/jsonschema/v5, surfacing a genuine meta-schema validation
// error (malformed $ref, unknown keyword combinations, etc.) for callers
// that want to validate a raw schema fragment on its own, independent of
// any binding resolution.
func CompileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	resourceName := "mem://" + name
	b, err := json.Marshal(schemaAsAny(schema))
	if err != nil {
		return nil, fmt.Errorf("bindingengine: encode %s: %w", name, err)
	}
	if err := c.AddResource(resourceName, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("bindingengine: add resource %s: %w", name, err)
	}
	compiled, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("bindingengine: compile %s: %w", name, err)
	}
	return compiled, nil
}

func schemaAsAny(schema map[string]any) any {
	return map[string]any(schema)
}
