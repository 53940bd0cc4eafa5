// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package proctable_test

import (
	"fmt"
	"time"

	"github.com/antimetal/erebusd/pkg/procfs"
)

// fakeReader is an in-memory proctable.Reader for table-driven tests,
// standing in for a live /proc filesystem the way the teacher's
// collectors_test.go fixtures stand in for /proc/stat files.
type fakeReader struct {
	pids    []int32
	stats   map[int32]procfs.Stat
	comms   map[int32]string
	exes    map[int32]string
	cmdline map[int32]string
	ruids   map[int32]uint32
	boot    time.Time
	clk     int64
	cpu     []procfs.CPUStat
	mem     procfs.MemInfo
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		stats:   make(map[int32]procfs.Stat),
		comms:   make(map[int32]string),
		exes:    make(map[int32]string),
		cmdline: make(map[int32]string),
		ruids:   make(map[int32]uint32),
		boot:    time.Unix(1_700_000_000, 0),
		clk:     100,
	}
}

func (f *fakeReader) EnumeratePIDs() ([]int32, error) { return f.pids, nil }
func (f *fakeReader) ReadStat(pid int32) procfs.Stat {
	if s, ok := f.stats[pid]; ok {
		return s
	}
	return procfs.Stat{Pid: pid, Error: fmt.Sprintf("no stat for %d", pid)}
}
func (f *fakeReader) Comm(pid int32) (string, error) {
	if c, ok := f.comms[pid]; ok {
		return c, nil
	}
	return "", fmt.Errorf("no comm for %d", pid)
}
func (f *fakeReader) Exe(pid int32) (string, error) {
	if e, ok := f.exes[pid]; ok {
		return e, nil
	}
	return "", fmt.Errorf("no exe for %d", pid)
}
func (f *fakeReader) CmdLine(pid int32) (string, error) {
	if c, ok := f.cmdline[pid]; ok {
		return c, nil
	}
	return "", fmt.Errorf("no cmdline for %d", pid)
}
func (f *fakeReader) RealUID(pid int32) (uint32, error) {
	if u, ok := f.ruids[pid]; ok {
		return u, nil
	}
	return 0, fmt.Errorf("no ruid for %d", pid)
}
func (f *fakeReader) BootTime() (time.Time, error) { return f.boot, nil }
func (f *fakeReader) ClockTicks() int64            { return f.clk }
func (f *fakeReader) ReadCPUStat() ([]procfs.CPUStat, error) { return f.cpu, nil }
func (f *fakeReader) ReadMemInfo() (procfs.MemInfo, error)   { return f.mem, nil }
