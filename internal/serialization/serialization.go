// Package serialization encodes the payloads the host stores opaquely.
package serialization

import (
	"encoding/json"
	"fmt"
)

// PersistentGrantSerializer turns grant payloads into strings and back.
type PersistentGrantSerializer interface {
	Serialize(v any) (string, error)
	Deserialize(data string, v any) error
}

// JSONSerializer encodes payloads as JSON.
type JSONSerializer struct{}

// NewJSONSerializer returns the default serializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

func (JSONSerializer) Serialize(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serializing payload: %w", err)
	}

	return string(data), nil
}

func (JSONSerializer) Deserialize(data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("deserializing payload: %w", err)
	}

	return nil
}
