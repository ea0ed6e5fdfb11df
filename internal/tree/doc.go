package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Normalize converts a Go value to its generic JSON form
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		out, err := DecodeDoc(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding raw value: %w", err)
		}
		return out, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	out, err := DecodeDoc(data)
	if err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}
	return out, nil
}

// DecodeDoc parses a stored document. Numbers stay json.Number so integers
// survive the round trip exactly.
func DecodeDoc(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// NumberOf reads a generic JSON number as a float64
func NumberOf(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// GetField walks field segments inside a generic document
func GetField(doc any, field []string) any {
	cur := doc
	for _, f := range field {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[f]
	}
	return cur
}

// SetField returns doc with value placed at field. A nil value deletes the
// field, and maps left empty collapse to nil.
func SetField(doc any, field []string, value any) any {
	if len(field) == 0 {
		return prune(value)
	}
	m, ok := doc.(map[string]any)
	if !ok {
		m = map[string]any{}
	} else {
		cp := make(map[string]any, len(m))
		for k, v := range m {
			cp[k] = v
		}
		m = cp
	}
	child := SetField(m[field[0]], field[1:], value)
	if child == nil {
		delete(m, field[0])
	} else {
		m[field[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func prune(v any) any {
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return nil
	}
	return v
}
