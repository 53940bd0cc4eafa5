// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package proctable implements the process-list collector (C4) and the
// globals collector (C5): the generation-diff engine that turns successive
// procfs.ProcFS snapshots into property bags, and the per-tick host-wide
// metrics derivation.
package proctable

// FieldMask selects which per-process fields a caller wants reflected in
// the property bag. Pid, Valid, and Error are never gated by the mask —
// they are always present at fixed indices 0, 1, 2 (C4 invariant I3).
type FieldMask uint64

const (
	FieldPPid FieldMask = 1 << iota
	FieldPGrp
	FieldTPgid
	FieldSession
	FieldRUID
	FieldStartTime
	FieldTTY
	FieldState
	FieldComm
	FieldCmdLine
	FieldExe
	FieldUser
	FieldThreadCount
	FieldUTime
	FieldSTime
	FieldCPUUsage
)

// AllFields is the default mask applied when a caller's request omits
// __processprops_required: every bit set.
const AllFields FieldMask = ^FieldMask(0)

func (m FieldMask) has(f FieldMask) bool { return m&f != 0 }

// Property names, matching the known ids in spec.md §6 exactly (32-bit
// CRC-32 of these strings forms the wire id via property.NewID).
const (
	propPid       = "pid"
	propPPid      = "ppid"
	propPGrp      = "pgrp"
	propTPgid     = "tpgid"
	propSession   = "session"
	propTTY       = "tty"
	propRUID      = "ruid"
	propUser      = "user"
	propComm      = "comm"
	propCmdLine   = "cmdline"
	propExe       = "exe"
	propStartTime = "starttime"
	propState     = "state"
	propNThreads  = "nthreads"
	propSTime     = "stime"
	propUTime     = "utime"
	propCPUUsage  = "cpu_usage"
	propValid     = "__valid"
	propError     = "__error"
	propNew       = "__new"
	propDeleted   = "__deleted"
	propGlobal    = "__global"
)

// GlobalsMask selects which host-wide fields the globals collector (C5)
// reports.
type GlobalsMask uint64

const (
	GlobalRealTime GlobalsMask = 1 << iota
	GlobalIdleTime
	GlobalUserTime
	GlobalSystemTime
	GlobalVirtualTime
	GlobalTotalTime
	GlobalTotalMem
	GlobalUsedMem
	GlobalBuffersMem
	GlobalCachedMem
	GlobalSharedMem
	GlobalAvailableMem
	GlobalTotalSwap
	GlobalUsedSwap
	GlobalCachedSwap
	GlobalZSwapComp
	GlobalZSwapOrig
	GlobalProcessCount
)

// AllGlobals is the default mask: every bit set.
const AllGlobals GlobalsMask = ^GlobalsMask(0)

func (m GlobalsMask) has(f GlobalsMask) bool { return m&f != 0 }

const (
	propRealTime      = "real_time"
	propIdleTime      = "idle_time"
	propUserTime      = "user_time"
	propSystemTime    = "system_time"
	propVirtualTime   = "virtual_time"
	propTotalTime     = "total_time"
	propTotalMem      = "total_mem"
	propUsedMem       = "used_mem"
	propBuffersMem    = "buffers_mem"
	propCachedMem     = "cached_mem"
	propSharedMem     = "shared_mem"
	propAvailMem      = "avail_mem"
	propTotalSwap     = "total_swap"
	propUsedSwap      = "used_swap"
	propCachedSwap    = "cached_swap"
	propCompZSwap     = "comp_zswap"
	propOrigZSwap     = "orig_zswap"
	propProcessCount  = "process_count"
)
