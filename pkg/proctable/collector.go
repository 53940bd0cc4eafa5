// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package proctable

import (
	"time"

	"github.com/antimetal/erebusd/pkg/procfs"
	"github.com/antimetal/erebusd/pkg/property"
	"github.com/go-logr/logr"
)

// Collector owns a generation of the live process table: pid -> ProcessInfo,
// a firstRun flag, and the required mask seen on the previous tick. One
// Collector is created lazily per session on its first process-diff stream
// and lives for the session's lifetime (pkg/session).
type Collector struct {
	reader Reader
	log    logr.Logger

	table    map[int32]*ProcessInfo
	firstRun bool
	lastMask FieldMask
}

// NewCollector constructs a Collector reading from reader.
func NewCollector(reader Reader, log logr.Logger) *Collector {
	return &Collector{
		reader:   reader,
		log:      log.WithName("proctable"),
		table:    make(map[int32]*ProcessInfo),
		firstRun: true,
	}
}

// Update runs one tick: enumerates PIDs, updates/creates table entries
// under the required mask, and returns the generation diff. See spec.md
// §4.4 for the full algorithm this implements.
func (c *Collector) Update(required FieldMask) (Diff, error) {
	now := time.Now()
	pids, err := c.reader.EnumeratePIDs()
	if err != nil {
		return Diff{}, err
	}

	maskChanged := required != c.lastMask
	firstRun := c.firstRun

	var cumU, cumS float64
	seen := make(map[int32]bool, len(pids))

	for _, pid := range pids {
		info, existed := c.table[pid]
		if !existed {
			info = &ProcessInfo{Pid: pid, IsNew: true}
			c.table[pid] = info
		} else {
			info.IsNew = false
		}
		info.Timestamp = now
		seen[pid] = true

		var fields property.Bag
		var u, s float64
		if pid == procfs.KernelPid {
			fields = c.buildKernelFields(info, required)
		} else {
			fields, u, s = c.buildProcessFields(info, required)
		}
		cumU += u
		cumS += s

		if info.IsNew || maskChanged {
			// Full rewrite: no per-field diff is computed, matching the
			// source's behavior of only diffing when reusing an unchanged
			// mask against an existing entry.
			info.Bag = fields
			info.diff = nil
		} else {
			info.diff = diffInPlace(info.Bag, fields)
			info.Bag = fields
		}
	}

	var removed []RemovedEntry
	for pid := range c.table {
		if !seen[pid] {
			removed = append(removed, RemovedEntry{Pid: pid})
			delete(c.table, pid)
		}
	}

	var added []*ProcessInfo
	var modified []ModifiedEntry
	for pid := range seen {
		info := c.table[pid]
		switch {
		case info.IsNew:
			added = append(added, info)
		case len(info.diff) > 0:
			modified = append(modified, ModifiedEntry{Pid: pid, Diff: info.diff})
		}
	}

	c.firstRun = false
	c.lastMask = required

	return Diff{
		FirstRun:     firstRun,
		ProcessCount: len(seen),
		CumUTime:     cumU,
		CumSTime:     cumS,
		Added:        added,
		Modified:     modified,
		Removed:      removed,
	}, nil
}

// diffInPlace compares oldBag against newBag index-by-index (both built
// under the same mask and thus the same shape) and returns the subset of
// newBag entries whose value differs, excluding index 0 (Pid, which never
// changes for a live entry). It is the caller's responsibility to store
// newBag as the entry's new current bag; diffInPlace is a pure comparison.
func diffInPlace(oldBag, newBag property.Bag) property.Bag {
	if len(oldBag) != len(newBag) {
		// Shape mismatch despite an unchanged mask (e.g. a kernel-thread
		// reparent flipping whether Exe is present): fall back to treating
		// every field as changed rather than risk an out-of-bounds compare.
		return append(property.Bag{}, newBag...)
	}
	var diff property.Bag
	for i := 1; i < len(newBag); i++ {
		if !oldBag[i].Equal(newBag[i]) {
			diff = append(diff, newBag[i])
		}
	}
	return diff
}
