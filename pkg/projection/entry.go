package projection

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Pair is one key of an Entry. A nil Value marshals as JSON null.
type Pair struct {
	Key   string
	Value *string
}

// Entry is a projected result. Keys keep insertion order so the JSON
// object is stable across a run.
type Entry []Pair

// Get returns the value for key and whether the key is present.
func (e Entry) Get(key string) (*string, bool) {
	for _, p := range e {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Keys returns the entry keys in order.
func (e Entry) Keys() []string {
	keys := make([]string, len(e))
	for i, p := range e {
		keys[i] = p.Key
	}
	return keys
}

// MarshalJSON encodes the entry as a JSON object in key order.
func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range e {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Key)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", p.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(p.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal value of %q: %w", p.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
