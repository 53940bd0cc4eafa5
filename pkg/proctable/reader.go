// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package proctable

import (
	"time"

	"github.com/antimetal/erebusd/pkg/procfs"
)

// Reader is the process-source abstraction C4 depends on. pkg/procfs's
// ProcFS satisfies it on Linux; per spec.md §1 ("the collector/diff engine
// above it is OS-agnostic and must be implementable against any
// process-table source") any other OS's reader can too.
type Reader interface {
	EnumeratePIDs() ([]int32, error)
	ReadStat(pid int32) procfs.Stat
	Comm(pid int32) (string, error)
	Exe(pid int32) (string, error)
	CmdLine(pid int32) (string, error)
	RealUID(pid int32) (uint32, error)
	BootTime() (time.Time, error)
	ClockTicks() int64
	ReadCPUStat() ([]procfs.CPUStat, error)
	ReadMemInfo() (procfs.MemInfo, error)
}

var _ Reader = (*procfs.ProcFS)(nil)
