package registrymodel

import "encoding/json"

// LosslessFields preserves JSON fields this package does not model, mirroring
// specmodel's LosslessFields and the teacher SDK's original.
type LosslessFields struct {
	Unknown map[string]json.RawMessage `json:"-"`
}

var (
	knownImplFingerprintSet  = knownSet("algo", "source", "ref", "digest")
	knownTransformEntrySet   = knownSet("id", "version", "kind", "signature", "params_schema_hash", "impl_fingerprint", "history")
	knownTransformRegistrySet = knownSet("transforms")
)

func knownSet(keys ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

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
