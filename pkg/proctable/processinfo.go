// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package proctable

import (
	"time"

	"github.com/antimetal/erebusd/pkg/property"
)

// ProcessInfo is a live table entry: identity (Pid/PPid), lifecycle
// (IsNew/Timestamp), and payload (current property bag plus cached fields
// used for %CPU derivation across ticks). Exclusively owned by the
// Collector that created it.
type ProcessInfo struct {
	Pid  int32
	PPid int32

	IsNew     bool
	Timestamp time.Time

	Bag  property.Bag // current full bag, fixed index layout (Pid, Valid, Error, ...)
	Comm string
	Exe  string

	CumUTime float64 // cumulative utime seconds, for %CPU derivation
	CumSTime float64 // cumulative stime seconds

	diff property.Bag // fields changed since the previous tick
}

// RemovedEntry is one PID dropped from the table in the tick it stopped
// appearing.
type RemovedEntry struct {
	Pid int32
}

// ModifiedEntry pairs a still-live PID with the properties that changed
// this tick. Pid is left out unless the bag's shape changed (see
// diffInPlace); the stream layer appends pid and __valid when it emits
// the entry.
type ModifiedEntry struct {
	Pid  int32
	Diff property.Bag
}

// Diff is the result of one Collector.Update tick.
type Diff struct {
	FirstRun     bool
	ProcessCount int
	CumUTime     float64
	CumSTime     float64

	Added    []*ProcessInfo
	Modified []ModifiedEntry
	Removed  []RemovedEntry
}
