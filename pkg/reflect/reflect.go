// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package reflect implements the Reflectable record: a value type described
// by a fixed, explicit field-info table rather than Go's runtime
// reflection. It reproduces the source's compile-time-reflection mixin the
// way spec.md §9 prescribes for languages without zero-cost field
// reflection: "an explicit descriptor array plus generated accessor
// functions."
package reflect

import (
	"fmt"
	"hash/fnv"
	"math/bits"
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Semantic drives formatting only, never storage.
type Semantic int

const (
	Default Semantic = iota
	Pointer
	Flags
	AbsoluteTime
	Duration
	Percent
	Size
)

// FieldInfo describes one field of a Record: its dense small id, display
// name, and formatting semantic. Getter/Setter/Comparator close over the
// concrete Record and its field, so FieldInfo itself stays type-erased.
type FieldInfo struct {
	ID         int
	Name       string
	Semantic   Semantic
	Getter     func(rec any) any
	Setter     func(rec any, v any)
	Comparator func(a, b any) bool
}

// Descriptor is the compile-time-equivalent field table for a Record type.
// Built once per type (typically in an init() or package var) and shared by
// every instance.
type Descriptor struct {
	Fields []FieldInfo
}

// FieldCount returns the number of described fields; the validity mask has
// one bit per field, so this bounds it at 64.
func (d *Descriptor) FieldCount() int { return len(d.Fields) }

// Record is the mixin every reflectable type embeds. It owns the validity
// bitmask and cached hash; the Descriptor supplies field semantics.
type Record struct {
	desc      *Descriptor
	mask      uint64
	hash      uint64
	hashValid bool
}

// Init binds a Record to its Descriptor. Must be called once before use
// (normally from the embedding type's constructor).
func (r *Record) Init(desc *Descriptor) {
	r.desc = desc
}

// ValidMask returns the current validity bitmask.
func (r *Record) ValidMask() uint64 { return r.mask }

// Valid reports whether field id's bit is set.
func (r *Record) Valid(id int) bool {
	if id < 0 || id >= 64 {
		return false
	}
	return r.mask&(uint64(1)<<uint(id)) != 0
}

// SetValid sets field id's bit and invalidates the cached hash. Callers
// invoke this after writing a field's value through its own setter.
func (r *Record) SetValid(id int) {
	if id < 0 || id >= 64 {
		return
	}
	r.mask |= uint64(1) << uint(id)
	r.hashValid = false
}

// ClearValid clears field id's bit (used when a caller explicitly resets a
// Removed field after Update) and invalidates the cached hash.
func (r *Record) ClearValid(id int) {
	if id < 0 || id >= 64 {
		return
	}
	r.mask &^= uint64(1) << uint(id)
	r.hashValid = false
}

func (r *Record) field(id int) (FieldInfo, bool) {
	if r.desc == nil {
		return FieldInfo{}, false
	}
	for _, f := range r.desc.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldInfo{}, false
}

// Name returns the display name of field id.
func (r *Record) Name(id int) string {
	f, ok := r.field(id)
	if !ok {
		return ""
	}
	return f.Name
}

// Format renders field id's current value honoring its semantic hint. rec
// must be the concrete Record-embedding value (passed explicitly since Go
// has no implicit "self" available from the mixin).
func (r *Record) Format(rec any, id int) string {
	f, ok := r.field(id)
	if !ok || !r.Valid(id) {
		return ""
	}
	v := f.Getter(rec)
	return formatSemantic(f.Semantic, v)
}

func formatSemantic(sem Semantic, v any) string {
	switch sem {
	case Pointer:
		if u, ok := toUint64(v); ok {
			return fmt.Sprintf("0x%016x", u)
		}
	case Flags:
		if u, ok := toUint64(v); ok {
			return fmt.Sprintf("0x%x", u)
		}
	case AbsoluteTime:
		switch t := v.(type) {
		case time.Time:
			return t.Format("2006-01-02T15:04:05.000Z07:00")
		case *timestamppb.Timestamp:
			return t.AsTime().Format("2006-01-02T15:04:05.000Z07:00")
		}
	case Duration:
		switch d := v.(type) {
		case time.Duration:
			return formatHMS(d)
		case *durationpb.Duration:
			return formatHMS(d.AsDuration())
		}
	case Percent:
		if f, ok := toFloat64(v); ok {
			return fmt.Sprintf("%.1f%%", f)
		}
	case Size:
		if u, ok := toUint64(v); ok {
			return formatSize(u)
		}
	}
	return fmt.Sprintf("%v", v)
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case uint32:
		return uint64(x), true
	case int64:
		return uint64(x), true
	case int32:
		return uint64(x), true
	case int:
		return uint64(x), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	default:
		u, ok := toUint64(v)
		return float64(u), ok
	}
}

func formatHMS(d time.Duration) string {
	total := d
	h := total / time.Hour
	total -= h * time.Hour
	m := total / time.Minute
	total -= m * time.Minute
	s := total / time.Second
	total -= s * time.Second
	ms := total / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// formatSize renders bytes with decade switching at 10x each unit, matching
// the source's kB/MB/GB/... ladder.
func formatSize(b uint64) string {
	units := []string{"B", "kB", "MB", "GB", "TB", "PB"}
	v := float64(b)
	i := 0
	for v >= 10240 && i < len(units)-1 {
		v /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", b, units[0])
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}

// Hash returns the record's content hash over every valid field's current
// value, recomputing lazily after any Set invalidated it.
func (r *Record) Hash(rec any) uint64 {
	if r.hashValid {
		return r.hash
	}
	h := fnv.New64a()
	if r.desc != nil {
		for _, f := range r.desc.Fields {
			if !r.Valid(f.ID) {
				continue
			}
			fmt.Fprintf(h, "%d:%v;", f.ID, f.Getter(rec))
		}
	}
	r.hash = h.Sum64()
	r.hashValid = true
	return r.hash
}

// FieldDiff classifies one field's change between two records of the same
// type.
type FieldDiff int

const (
	Unchanged FieldDiff = iota
	Changed
	Added
	Removed
)

func (d FieldDiff) String() string {
	switch d {
	case Unchanged:
		return "Unchanged"
	case Changed:
		return "Changed"
	case Added:
		return "Added"
	case Removed:
		return "Removed"
	default:
		return "?"
	}
}

// Diff compares self (via selfRec) against other (via otherRec, same
// Descriptor), returning one FieldDiff per described field id present in
// either. A field is Unchanged if valid in both and the comparator reports
// equal, or invalid in both; Changed if valid in both and the comparator
// reports different; Added if valid only in other; Removed if valid only
// in self.
func (r *Record) Diff(selfRec any, other *Record, otherRec any) map[int]FieldDiff {
	out := make(map[int]FieldDiff)
	if r.desc == nil {
		return out
	}
	for _, f := range r.desc.Fields {
		sv := r.Valid(f.ID)
		ov := other.Valid(f.ID)
		switch {
		case sv && ov:
			if f.Comparator(f.Getter(selfRec), f.Getter(otherRec)) {
				out[f.ID] = Unchanged
			} else {
				out[f.ID] = Changed
			}
		case !sv && !ov:
			out[f.ID] = Unchanged
		case !sv && ov:
			out[f.ID] = Added
		case sv && !ov:
			out[f.ID] = Removed
		}
	}
	return out
}

// Update mutates selfRec toward otherRec per the diff between self and
// other: Added and Changed fields are copied into self (setting validity);
// Removed fields are left in place (the caller may ClearValid explicitly).
// It returns the diff it applied.
func (r *Record) Update(selfRec any, other *Record, otherRec any) map[int]FieldDiff {
	d := r.Diff(selfRec, other, otherRec)
	if r.desc == nil {
		return d
	}
	for _, f := range r.desc.Fields {
		switch d[f.ID] {
		case Added, Changed:
			f.Setter(selfRec, f.Getter(otherRec))
			r.SetValid(f.ID)
		}
	}
	r.hashValid = false
	return d
}

// PopCount returns the number of valid fields, useful for callers deciding
// whether a bag needs a full rebuild (mask changed) vs. an in-place update.
func (r *Record) PopCount() int { return bits.OnesCount64(r.mask) }
