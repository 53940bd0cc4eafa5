// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package property

import "strings"

// Bag is an ordered vector of Properties: the shape used for RPC arguments,
// replies, and generation diffs.
type Bag []Property

// PropertyMap is a name-keyed ordered map. Go maps have no iteration order,
// so ordering for wire purposes is derived by sorting keys at emit time
// (see Property.Str); the map itself only needs to
// support membership and lookup by name.
type PropertyMap map[string]Property

// PropertyVector is an indexed sequence of child Properties.
type PropertyVector []Property

// Add appends a Property to the bag.
func (b *Bag) Add(p Property) {
	*b = append(*b, p)
}

// AddBool etc. are convenience wrappers around Add + the New* constructors.
func (b *Bag) AddBool(name string, v bool)        { b.Add(NewBool(name, v)) }
func (b *Bag) AddInt32(name string, v int32)      { b.Add(NewInt32(name, v)) }
func (b *Bag) AddUInt32(name string, v uint32)    { b.Add(NewUInt32(name, v)) }
func (b *Bag) AddInt64(name string, v int64)      { b.Add(NewInt64(name, v)) }
func (b *Bag) AddUInt64(name string, v uint64)    { b.Add(NewUInt64(name, v)) }
func (b *Bag) AddDouble(name string, v float64)   { b.Add(NewDouble(name, v)) }
func (b *Bag) AddString(name string, v string)    { b.Add(NewString(name, v)) }
func (b *Bag) AddBinary(name string, v []byte)    { b.Add(NewBinary(name, v)) }

// Find returns the first Property in the bag with the given name, or false
// if none matches.
func Find(b Bag, name string) (Property, bool) {
	for _, p := range b {
		if p.name == name {
			return p, true
		}
	}
	return Property{}, false
}

// SetAt replaces (or appends, resizing as needed) the Property at a fixed
// index. Used by collectors that maintain stable per-field indices (C4
// invariant I3: index 0 is Pid, 1 is Valid, 2 is Error).
func (b *Bag) SetAt(idx int, p Property) {
	if idx < len(*b) {
		(*b)[idx] = p
		return
	}
	for len(*b) < idx {
		*b = append(*b, Property{})
	}
	*b = append(*b, p)
}

// Visitor receives each Property in a bag along with its typed payload via
// one method per tag; it may return false to terminate the walk early.
// This is the mandated type-dispatched visitor (spec.md §4.1) rather than a
// per-caller runtime tag switch.
type Visitor interface {
	VisitEmpty(p Property) bool
	VisitBool(p Property, v bool) bool
	VisitInt32(p Property, v int32) bool
	VisitUInt32(p Property, v uint32) bool
	VisitInt64(p Property, v int64) bool
	VisitUInt64(p Property, v uint64) bool
	VisitDouble(p Property, v float64) bool
	VisitString(p Property, v string) bool
	VisitBinary(p Property, v []byte) bool
	VisitMap(p Property, v PropertyMap) bool
	VisitVector(p Property, v PropertyVector) bool
}

// Visit walks b in order, dispatching each Property to the matching Visitor
// method, stopping early if a method returns false. It returns true iff
// every Property was visited.
func Visit(b Bag, v Visitor) bool {
	for _, p := range b {
		if !dispatch(p, v) {
			return false
		}
	}
	return true
}

func dispatch(p Property, v Visitor) bool {
	switch p.tag {
	case Empty:
		return v.VisitEmpty(p)
	case Bool:
		return v.VisitBool(p, p.boolVal)
	case Int32:
		return v.VisitInt32(p, p.int32Val)
	case UInt32:
		return v.VisitUInt32(p, p.uint32Val)
	case Int64:
		return v.VisitInt64(p, p.int64Val)
	case UInt64:
		return v.VisitUInt64(p, p.uint64Val)
	case Double:
		return v.VisitDouble(p, p.doubleVal)
	case String:
		return v.VisitString(p, p.stringVal)
	case Binary:
		return v.VisitBinary(p, p.binaryVal)
	case Map:
		return v.VisitMap(p, p.mapVal)
	case Vector:
		return v.VisitVector(p, p.vecVal)
	default:
		return true
	}
}

// FindByPath descends through Maps and Vectors following a separator-
// delimited path ("a/b/c"). Vectors match a path component by child name,
// not by index. It returns (Property{}, false) on any mismatch, empty
// component, or wrong terminal tag (when expected != Empty).
func FindByPath(root Property, path string, sep byte, expected Tag) (Property, bool) {
	if path == "" {
		return Property{}, false
	}
	comps := strings.Split(path, string(sep))
	cur := root
	for i, comp := range comps {
		if comp == "" {
			return Property{}, false
		}
		var next Property
		var ok bool
		switch cur.tag {
		case Map:
			next, ok = cur.mapVal[comp]
		case Vector:
			for _, child := range cur.vecVal {
				if child.name == comp {
					next, ok = child, true
					break
				}
			}
		default:
			return Property{}, false
		}
		if !ok {
			return Property{}, false
		}
		cur = next
		if i == len(comps)-1 {
			if expected != Empty && cur.tag != expected {
				return Property{}, false
			}
			return cur, true
		}
	}
	return Property{}, false
}
