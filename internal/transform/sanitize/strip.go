package sanitize

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StripEmpty returns a copy of value with every key whose value is nil or the
// empty string removed. Nested objects are cleaned recursively; arrays and
// scalars are returned untouched.
func StripEmpty(value interface{}) interface{} {
	m, ok := value.(map[string]interface{})
	if !ok {
		return value
	}

	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if isEmpty(v) {
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = StripEmpty(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// StripJSON marshals v, removes empty values and re-encodes the result.
// Numbers keep their original textual form.
func StripJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	out, err := json.Marshal(StripEmpty(generic))
	if err != nil {
		return nil, fmt.Errorf("marshal sanitized payload: %w", err)
	}
	return out, nil
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	default:
		return false
	}
}
