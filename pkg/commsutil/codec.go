package commsutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotObject is returned by DecodeArgs when the payload is valid JSON but not an object.
var ErrNotObject = errors.New("payload must be a JSON object")

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes a single JSON value into the given target.
// Trailing data after the value is rejected.
func DecodePayload(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

// DecodeArgs decodes an action argument mapping. Empty input yields an empty map;
// anything other than a JSON object (including null) is rejected.
func DecodeArgs(data []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]interface{}{}, nil
	}
	var raw interface{}
	if err := DecodePayload(data, &raw); err != nil {
		return nil, err
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}
