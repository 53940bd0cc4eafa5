// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package property

import (
	"hash/crc32"
	"sync"
)

// ID is a stable 32-bit property id: the CRC-32 of its string form,
// computed once at registration time. Ids starting with "__" are reserved
// for envelope flags (__valid, __new, __deleted, __error, and per-request
// *_required field masks).
type ID uint32

// NewID computes the stable id for a property name.
func NewID(name string) ID {
	return ID(crc32.ChecksumIEEE([]byte(name)))
}

// Formatter renders a Property's value as a display string.
type Formatter func(Property) string

// EqualFunc compares two Properties for the domain's notion of equality;
// by default this is Property.Equal.
type EqualFunc func(a, b Property) bool

// Info describes one registered property: its wire id, display name, value
// tag, formatter, equality function, and a byte-size accessor used for
// resource accounting.
type Info struct {
	ID        ID
	Name      string
	Tag       Tag
	Format    Formatter
	Equal     EqualFunc
	ByteSize  func(Property) int
}

func defaultByteSize(p Property) int {
	switch p.tag {
	case Bool, Int32, UInt32:
		return 4
	case Int64, UInt64, Double:
		return 8
	case String:
		s, _ := p.String()
		return len(s)
	case Binary:
		b, _ := p.Binary()
		return len(b)
	default:
		return 0
	}
}

func defaultFormatter(p Property) string { return p.Str() }

// Registry is a process-wide, domain-scoped map from property id (and its
// string form) to Info. It is the sole source of truth for what a wire id
// means. Registration is idempotent per (domain, id); unregistration
// removes by lookup. The registry favors lookups over writes, hence the
// reader-writer lock.
type Registry struct {
	mu      sync.RWMutex
	byID    map[domainID]Info
	byName  map[domainName]ID
}

type domainID struct {
	domain string
	id     ID
}

type domainName struct {
	domain string
	name   string
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[domainID]Info),
		byName: make(map[domainName]ID),
	}
}

// Register adds (or idempotently re-adds) Info under domain. If Format,
// Equal, or ByteSize are nil, defaults are substituted.
func (r *Registry) Register(domain string, info Info) {
	if info.ID == 0 {
		info.ID = NewID(info.Name)
	}
	if info.Format == nil {
		info.Format = defaultFormatter
	}
	if info.Equal == nil {
		info.Equal = Property.Equal
	}
	if info.ByteSize == nil {
		info.ByteSize = defaultByteSize
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[domainID{domain, info.ID}] = info
	r.byName[domainName{domain, info.Name}] = info.ID
}

// Unregister removes the Info registered under domain for name, if any.
func (r *Registry) Unregister(domain, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byName[domainName{domain, name}]
	if !ok {
		return
	}
	delete(r.byName, domainName{domain, name})
	delete(r.byID, domainID{domain, id})
}

// Lookup finds Info by domain and numeric id.
func (r *Registry) Lookup(domain string, id ID) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byID[domainID{domain, id}]
	return info, ok
}

// LookupByName finds Info by domain and string name.
func (r *Registry) LookupByName(domain, name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[domainName{domain, name}]
	if !ok {
		return Info{}, false
	}
	return r.byID[domainID{domain, id}], true
}
