// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Sum types are stored externally tagged: a unit variant is a bare string ("Native"),
// a variant with a payload is a single-key object ({"Fixed": "rv64"}).

// MarshalVariant encodes a variant. A nil payload is encoded as a unit variant,
// use json.RawMessage("null") for a variant carrying an empty optional value.
func MarshalVariant(tag string, payload any) ([]byte, error) {
	if payload == nil {
		return json.Marshal(tag)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{tag: data})
}

// UnmarshalVariant splits an encoded variant into the tag and the raw payload.
// The payload is nil for unit variants.
func UnmarshalVariant(data []byte) (string, json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) != 0 && data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return "", nil, err
		}
		return tag, nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, fmt.Errorf("expected a variant name or a single-key object: %w", err)
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("expected a single-key object, got %v keys", len(obj))
	}
	for tag, payload := range obj {
		return tag, payload, nil
	}
	panic("unreachable")
}

// DecodeStrict decodes a JSON payload rejecting unknown fields.
// Custom UnmarshalJSON methods use it for nested payloads,
// the decoder options of LoadData do not propagate to them.
func DecodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// IsNull reports whether a raw payload is missing or JSON null.
func IsNull(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}
