// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package property implements the tagged value that is the sole on-the-wire
// payload for erebusd's RPC transport: every request argument, reply, and
// error is a tree of Properties.
package property

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tag identifies which payload a Property carries.
type Tag int

const (
	Empty Tag = iota
	Bool
	Int32
	UInt32
	Int64
	UInt64
	Double
	String
	Binary
	Map
	Vector
)

func (t Tag) String() string {
	switch t {
	case Empty:
		return "Empty"
	case Bool:
		return "Bool"
	case Int32:
		return "Int32"
	case UInt32:
		return "UInt32"
	case Int64:
		return "Int64"
	case UInt64:
		return "UInt64"
	case Double:
		return "Double"
	case String:
		return "String"
	case Binary:
		return "Binary"
	case Map:
		return "Map"
	case Vector:
		return "Vector"
	default:
		return "Unknown"
	}
}

// Property is a tagged, named value. Only one of the payload fields is
// meaningful, selected by tag; accessors for any other tag return the zero
// value and ok=false.
type Property struct {
	name string
	tag  Tag

	boolVal   bool
	int32Val  int32
	uint32Val uint32
	int64Val  int64
	uint64Val uint64
	doubleVal float64
	stringVal string
	binaryVal []byte
	mapVal    PropertyMap
	vecVal    PropertyVector
}

// Name returns the Property's name (usually a slash-delimited path).
func (p Property) Name() string { return p.name }

// Tag returns the Property's payload tag.
func (p Property) Tag() Tag { return p.tag }

// IsEmpty reports whether the Property carries no payload.
func (p Property) IsEmpty() bool { return p.tag == Empty }

func New(name string) Property { return Property{name: name, tag: Empty} }

func NewBool(name string, v bool) Property   { return Property{name: name, tag: Bool, boolVal: v} }
func NewInt32(name string, v int32) Property { return Property{name: name, tag: Int32, int32Val: v} }
func NewUInt32(name string, v uint32) Property {
	return Property{name: name, tag: UInt32, uint32Val: v}
}
func NewInt64(name string, v int64) Property { return Property{name: name, tag: Int64, int64Val: v} }
func NewUInt64(name string, v uint64) Property {
	return Property{name: name, tag: UInt64, uint64Val: v}
}
func NewDouble(name string, v float64) Property {
	return Property{name: name, tag: Double, doubleVal: v}
}
func NewString(name string, v string) Property {
	return Property{name: name, tag: String, stringVal: v}
}
func NewBinary(name string, v []byte) Property {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Property{name: name, tag: Binary, binaryVal: cp}
}
func NewMap(name string, v PropertyMap) Property {
	return Property{name: name, tag: Map, mapVal: v}
}
func NewVector(name string, v PropertyVector) Property {
	return Property{name: name, tag: Vector, vecVal: v}
}

func (p Property) Bool() (bool, bool) {
	if p.tag != Bool {
		return false, false
	}
	return p.boolVal, true
}

func (p Property) Int32() (int32, bool) {
	if p.tag != Int32 {
		return 0, false
	}
	return p.int32Val, true
}

func (p Property) UInt32() (uint32, bool) {
	if p.tag != UInt32 {
		return 0, false
	}
	return p.uint32Val, true
}

func (p Property) Int64() (int64, bool) {
	if p.tag != Int64 {
		return 0, false
	}
	return p.int64Val, true
}

func (p Property) UInt64() (uint64, bool) {
	if p.tag != UInt64 {
		return 0, false
	}
	return p.uint64Val, true
}

func (p Property) Double() (float64, bool) {
	if p.tag != Double {
		return 0, false
	}
	return p.doubleVal, true
}

func (p Property) String() (string, bool) {
	if p.tag != String {
		return "", false
	}
	return p.stringVal, true
}

func (p Property) Binary() ([]byte, bool) {
	if p.tag != Binary {
		return nil, false
	}
	return p.binaryVal, true
}

func (p Property) Map() (PropertyMap, bool) {
	if p.tag != Map {
		return nil, false
	}
	return p.mapVal, true
}

func (p Property) Vector() (PropertyVector, bool) {
	if p.tag != Vector {
		return nil, false
	}
	return p.vecVal, true
}

// Equal reports deep, strictly-typed equality: tag, name, and payload must
// all match. Map/Vector children are compared recursively and in order.
func (p Property) Equal(other Property) bool {
	if p.tag != other.tag || p.name != other.name {
		return false
	}
	switch p.tag {
	case Empty:
		return true
	case Bool:
		return p.boolVal == other.boolVal
	case Int32:
		return p.int32Val == other.int32Val
	case UInt32:
		return p.uint32Val == other.uint32Val
	case Int64:
		return p.int64Val == other.int64Val
	case UInt64:
		return p.uint64Val == other.uint64Val
	case Double:
		return p.doubleVal == other.doubleVal
	case String:
		return p.stringVal == other.stringVal
	case Binary:
		if len(p.binaryVal) != len(other.binaryVal) {
			return false
		}
		for i := range p.binaryVal {
			if p.binaryVal[i] != other.binaryVal[i] {
				return false
			}
		}
		return true
	case Map:
		if len(p.mapVal) != len(other.mapVal) {
			return false
		}
		for k, v := range p.mapVal {
			ov, ok := other.mapVal[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	case Vector:
		if len(p.vecVal) != len(other.vecVal) {
			return false
		}
		for i := range p.vecVal {
			if !p.vecVal[i].Equal(other.vecVal[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Str renders a canonical debug form. Scalars render as decimal (bool as
// true/false), Binary as space-separated uppercase hex pairs, String
// verbatim, Map/Vector recursively with children in name order.
func (p Property) Str() string {
	switch p.tag {
	case Empty:
		return ""
	case Bool:
		return strconv.FormatBool(p.boolVal)
	case Int32:
		return strconv.FormatInt(int64(p.int32Val), 10)
	case UInt32:
		return strconv.FormatUint(uint64(p.uint32Val), 10)
	case Int64:
		return strconv.FormatInt(p.int64Val, 10)
	case UInt64:
		return strconv.FormatUint(p.uint64Val, 10)
	case Double:
		return strconv.FormatFloat(p.doubleVal, 'g', -1, 64)
	case String:
		return p.stringVal
	case Binary:
		parts := make([]string, len(p.binaryVal))
		for i, b := range p.binaryVal {
			parts[i] = fmt.Sprintf("%02X", b)
		}
		return strings.Join(parts, " ")
	case Map:
		names := make([]string, 0, len(p.mapVal))
		for k := range p.mapVal {
			names = append(names, k)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, n := range names {
			parts = append(parts, fmt.Sprintf("{ %q = %q }", n, p.mapVal[n].Str()))
		}
		return "[ " + strings.Join(parts, ", ") + " ]"
	case Vector:
		sorted := make(PropertyVector, len(p.vecVal))
		copy(sorted, p.vecVal)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
		parts := make([]string, 0, len(sorted))
		for _, child := range sorted {
			parts = append(parts, fmt.Sprintf("{ %q = %q }", child.name, child.Str()))
		}
		return "[ " + strings.Join(parts, ", ") + " ]"
	default:
		return ""
	}
}
