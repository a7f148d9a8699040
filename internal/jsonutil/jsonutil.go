// Package jsonutil provides JSON canonicalization and structural comparison
// for stored object payloads.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Canonicalize parses raw JSON and re-encodes it in a stable form suitable
// for storage. The payload must be a JSON object, or a JSON string whose
// contents parse as JSON (in which case the inner document is stored).
// Error text is phrased for API responses.
func Canonicalize(raw []byte) (string, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("Invalid JSON document")
	}

	switch doc := v.(type) {
	case map[string]interface{}:
		out, err := json.Marshal(doc)
		if err != nil {
			return "", err
		}
		return string(out), nil
	case string:
		var inner interface{}
		if err := json.Unmarshal([]byte(doc), &inner); err != nil {
			return "", fmt.Errorf("Invalid JSON string: %s", doc)
		}
		out, err := json.Marshal(inner)
		if err != nil {
			return "", err
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("Invalid JSON document")
	}
}

// Equal reports whether two JSON documents are structurally equal: objects
// are compared as unordered key/value sets, arrays in order, numbers by
// value. It is not byte equality of the serialized forms.
func Equal(a, b string) (bool, error) {
	var va, vb interface{}
	if err := json.Unmarshal([]byte(a), &va); err != nil {
		return false, fmt.Errorf("parsing stored document: %w", err)
	}
	if err := json.Unmarshal([]byte(b), &vb); err != nil {
		return false, fmt.Errorf("parsing incoming document: %w", err)
	}
	return reflect.DeepEqual(va, vb), nil
}

// DecodeList parses a JSON array column value into a string slice. NULL and
// empty values decode to an empty list.
func DecodeList(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parsing list column: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

// EncodeList serializes a string slice as a JSON array. A nil slice encodes
// as the empty array, never null.
func EncodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	out, _ := json.Marshal(items)
	return string(out)
}
