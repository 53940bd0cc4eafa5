// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package property

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FromJSON parses JSON into a Property tree. Objects become Map, arrays
// become Vector, integral numbers become Int64 (including ones that were
// unsigned in the source, which simply widen), non-integral numbers become
// Double, strings become String, booleans become Bool, and null becomes
// Empty. Children take their object key, or the empty string for array
// elements, as their name.
func FromJSON(name string, data []byte) (Property, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Property{}, fmt.Errorf("property: decoding JSON: %w", err)
	}
	return fromAny(name, v), nil
}

func fromAny(name string, v any) Property {
	switch val := v.(type) {
	case nil:
		return New(name)
	case bool:
		return NewBool(name, val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return NewInt64(name, i)
		}
		f, _ := val.Float64()
		return NewDouble(name, f)
	case string:
		return NewString(name, val)
	case []any:
		vec := make(PropertyVector, 0, len(val))
		for _, elem := range val {
			vec = append(vec, fromAny("", elem))
		}
		return NewVector(name, vec)
	case map[string]any:
		m := make(PropertyMap, len(val))
		for k, elem := range val {
			m[k] = fromAny(k, elem)
		}
		return NewMap(name, m)
	default:
		return New(name)
	}
}
