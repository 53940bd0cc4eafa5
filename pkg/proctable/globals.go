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

// GlobalsCollector produces one property bag per tick describing
// host-wide CPU and memory state, per spec.md §4.5. pkg/session creates
// one per session and reuses it on every tick; the only state it keeps
// across ticks is its own construction time.
type GlobalsCollector struct {
	reader Reader
	start  time.Time // construction time; real_time is measured from it
}

// NewGlobalsCollector constructs a GlobalsCollector reading from reader.
func NewGlobalsCollector(reader Reader) *GlobalsCollector {
	return &GlobalsCollector{reader: reader, start: time.Now()}
}

// Collect builds the globals bag. processCount, when non-negative, is used
// directly (avoiding a second PID enumeration when the caller already
// paid for one, e.g. the process-diff stream supplying its own count);
// pass -1 to have Collect enumerate PIDs itself when ProcessCount is
// required.
func (g *GlobalsCollector) Collect(required GlobalsMask, processCount int) (property.Bag, error) {
	var bag property.Bag

	cpu, cpuErr := g.reader.ReadCPUStat()
	mem, memErr := g.reader.ReadMemInfo()

	if required.has(GlobalRealTime) {
		bag.Add(property.NewDouble(propRealTime, time.Since(g.start).Seconds()))
	}

	if cpuErr == nil && len(cpu) > 0 {
		agg := cpu[0] // the "cpu" aggregate line, always index 0 per procfs.ReadCPUStat
		cores := float64(len(cpu) - 1)
		if cores < 1 {
			cores = 1
		}

		userAll := agg.User + agg.Nice - agg.Guest - agg.GuestNice
		idleAll := agg.Idle + agg.IOWait
		systemAll := agg.System + agg.IRQ + agg.SoftIRQ
		virtAll := agg.Guest + agg.GuestNice
		totalAll := userAll + systemAll + agg.Steal + virtAll

		if required.has(GlobalIdleTime) {
			bag.Add(property.NewDouble(propIdleTime, idleAll/cores))
		}
		if required.has(GlobalUserTime) {
			bag.Add(property.NewDouble(propUserTime, userAll/cores))
		}
		if required.has(GlobalSystemTime) {
			bag.Add(property.NewDouble(propSystemTime, systemAll/cores))
		}
		if required.has(GlobalVirtualTime) {
			bag.Add(property.NewDouble(propVirtualTime, virtAll/cores))
		}
		if required.has(GlobalTotalTime) {
			bag.Add(property.NewDouble(propTotalTime, totalAll/cores))
		}
	}

	if memErr == nil {
		if required.has(GlobalTotalMem) {
			bag.Add(property.NewUInt64(propTotalMem, mem.MemTotal))
		}
		if required.has(GlobalUsedMem) {
			used := mem.MemTotal - mem.MemFree - mem.Buffers - mem.Cached
			bag.Add(property.NewUInt64(propUsedMem, used))
		}
		if required.has(GlobalBuffersMem) {
			bag.Add(property.NewUInt64(propBuffersMem, mem.Buffers))
		}
		if required.has(GlobalCachedMem) {
			bag.Add(property.NewUInt64(propCachedMem, mem.Cached))
		}
		if required.has(GlobalSharedMem) {
			bag.Add(property.NewUInt64(propSharedMem, mem.Shmem))
		}
		if required.has(GlobalAvailableMem) {
			bag.Add(property.NewUInt64(propAvailMem, mem.MemAvailable))
		}
		if required.has(GlobalTotalSwap) {
			bag.Add(property.NewUInt64(propTotalSwap, mem.SwapTotal))
		}
		if required.has(GlobalUsedSwap) {
			bag.Add(property.NewUInt64(propUsedSwap, mem.SwapTotal-mem.SwapFree))
		}
		if required.has(GlobalCachedSwap) {
			bag.Add(property.NewUInt64(propCachedSwap, mem.SwapCached))
		}
		if required.has(GlobalZSwapComp) {
			bag.Add(property.NewUInt64(propCompZSwap, mem.Zswap))
		}
		if required.has(GlobalZSwapOrig) {
			bag.Add(property.NewUInt64(propOrigZSwap, mem.Zswapped))
		}
	}

	if required.has(GlobalProcessCount) {
		count := processCount
		if count < 0 {
			pids, err := g.reader.EnumeratePIDs()
			if err != nil {
				return nil, err
			}
			count = len(pids)
		}
		bag.Add(property.NewInt64(propProcessCount, int64(count)))
	}

	// The synthetic demultiplexing flag is always set, regardless of mask.
	bag.Add(property.NewBool(propGlobal, true))

	return bag, nil
}
