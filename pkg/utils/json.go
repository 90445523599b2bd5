package utils

import (
	jsoniter "github.com/json-iterator/go"
)

var Json = jsoniter.ConfigCompatibleWithStandardLibrary

// Normalize converts v into the generic JSON tree (maps, slices, float64,
// string, bool, nil) used to hold store values.
func Normalize(v any) (any, error) {
	b, err := Json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := Json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
