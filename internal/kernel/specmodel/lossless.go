package specmodel

import "encoding/json"

var (
	knownSourceColumnSet    = knownSet("id", "name", "type")
	knownDerivedVariableSet = knownSet("id", "name", "type", "inputs", "transform_ref", "params")
	knownConstraintSet      = knownSet("id", "name", "inputs", "expression")
	knownMappingSpecSet     = knownSet("schema_version", "sources", "derived", "constraints")
)

// knownSet builds a lookup table for constant-time known-field checks,
// mirroring the teacher SDK's lossless.go helper of the same name.
func knownSet(keys ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

// splitUnknown returns every key of raw not present in known.
func splitUnknown(raw map[string]json.RawMessage, known map[string]struct{}) map[string]json.RawMessage {
	var unknown map[string]json.RawMessage
	for k, v := range raw {
		if _, ok := known[k]; ok {
			continue
		}
		if unknown == nil {
			unknown = map[string]json.RawMessage{}
		}
		unknown[k] = v
	}
	return unknown
}

// marshalWithUnknown merges unknown fields with the typed wire view, typed
// fields winning on key collision. Mirrors the teacher SDK's
// marshalLossless, minus the "x-" extensions split spec.md has no use for.
func marshalWithUnknown(unknown map[string]json.RawMessage, typed any) ([]byte, error) {
	out := map[string]json.RawMessage{}
	for k, v := range unknown {
		out[k] = v
	}
	knownBytes, err := json.Marshal(typed)
	if err != nil {
		return nil, err
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(knownBytes, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		out[k] = v
	}
	return json.Marshal(out)
}
