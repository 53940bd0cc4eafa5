// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package iconcache implements the icon/artifact cache (C9): a two-tier
// (in-memory bytes, on-disk pre-rendered files) cache over an external
// icon resolver reached through a bounded request/response queue, plus
// the comm/exe -> icon-name resolution layer (Manager) that sits above
// it. Grounded on original_source/src/erebus-desktop/iconcache.cxx (the
// two-tier cache and single-flight pending bookkeeping) and
// original_source/src/erebus-processmgr/iconmanager.cxx (the known-app
// fallback table and desktop-entry lookup).
package iconcache

import "time"

// key identifies one cached icon by name and pixel size, matching the
// erebus-desktop cache's (name, size) addressing.
type key struct {
	Name string
	Size uint32
}

// State is the resolution state of one cached icon, mirroring
// Er::Desktop::IconState.
type State int

const (
	StatePending State = iota
	StateFound
	StateNotPresent
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFound:
		return "found"
	case StateNotPresent:
		return "not-present"
	default:
		return "unknown"
	}
}

// Request is one outstanding external resolution request.
type Request struct {
	Name string
	Size uint32
}

// Response is what the external resolver eventually answers with: either
// a concrete on-disk path, or a miss.
type Response struct {
	Request Request
	Path    string
	Found   bool
}

// Resolver is the external icon-cache agent reached over an IPC queue
// pair, mirroring Er::Desktop::IIconCacheIpc: RequestIcon enqueues a
// resolution request, PullIcon blocks (up to its own internal timeout)
// for the next response.
type Resolver interface {
	RequestIcon(req Request) error
	PullIcon() (Response, bool, error)
}

// pendingExpiry is IconRequestExpired: how long a pending request is
// trusted before a fresh LookupByName is allowed to re-request it.
const pendingExpiry = 10 * time.Minute

// pullTimeout is erebus-desktop/iconcache.hxx's Timeout. Cache does not
// use it: how long one PullIcon call blocks before the response worker
// rechecks its stop signal is decided by the Resolver implementation.
const pullTimeout = 2 * time.Second

// maxQueueDepth bounds the outgoing request queue (spec.md §4.9).
const maxQueueDepth = 256
