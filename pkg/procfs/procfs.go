// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package procfs is the Linux-specific process-source reader: it
// enumerates PIDs and parses /proc/<pid>/{stat,comm,cmdline,exe,environ},
// /proc/stat, and /proc/meminfo. The collector above it (pkg/proctable) is
// OS-agnostic and depends only on the Reader interface.
package procfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// KThreadDPid is the pid of kthreadd, the kernel thread parent. It has a
// stat entry but no exe.
const KThreadDPid = 2

// KernelPid is the synthetic pid representing the kernel aggregate; it
// never has a /proc/<pid>/stat entry.
const KernelPid = 0

// ProcFS reads the process and system state exposed under one /proc
// mountpoint (normally "/proc", but overridable for containerized hosts
// via HOST_PROC, mirroring the teacher's CollectionConfig.HostProcPath).
type ProcFS struct {
	root   string
	clkTck int64

	bootOnce sync.Once
	bootTime time.Time
	bootErr  error
}

// New constructs a ProcFS rooted at procPath, which must be an absolute
// path.
func New(procPath string) (*ProcFS, error) {
	if !filepath.IsAbs(procPath) {
		return nil, fmt.Errorf("procfs: root must be an absolute path, got %q", procPath)
	}
	clk, err := readClockTicks(procPath)
	if err != nil {
		clk = 100 // USER_HZ fallback, matches procutils.go's default
	}
	return &ProcFS{root: procPath, clkTck: clk}, nil
}

// ClockTicks returns USER_HZ (clock ticks per second), used to convert
// ticks-since-boot fields into seconds.
func (p *ProcFS) ClockTicks() int64 { return p.clkTck }

func (p *ProcFS) path(parts ...string) string {
	return filepath.Join(append([]string{p.root}, parts...)...)
}

// EnumeratePIDs scans /proc for numeric directory entries.
func (p *ProcFS) EnumeratePIDs() ([]int32, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, fmt.Errorf("procfs: reading %s: %w", p.root, err)
	}
	pids := make([]int32, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.ParseInt(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		pids = append(pids, int32(n))
	}
	return pids, nil
}

// RealUID returns the real uid of pid's owning process, derived from the
// ownership of its /proc/<pid> directory (matching the source's
// stat64-on-the-directory approach rather than parsing /proc/<pid>/status).
func (p *ProcFS) RealUID(pid int32) (uint32, error) {
	info, err := os.Stat(p.path(strconv.Itoa(int(pid))))
	if err != nil {
		return 0, err
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("procfs: unsupported platform stat type for pid %d", pid)
	}
	return st.Uid, nil
}

// Comm reads /proc/<pid>/comm (trimmed of its trailing newline).
func (p *ProcFS) Comm(pid int32) (string, error) {
	data, err := os.ReadFile(p.path(strconv.Itoa(int(pid)), "comm"))
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// Exe resolves the /proc/<pid>/exe symlink. Kernel threads (ppid ==
// KThreadDPid) have no exe and the caller should not call this for them.
func (p *ProcFS) Exe(pid int32) (string, error) {
	link := p.path(strconv.Itoa(int(pid)), "exe")
	target, err := os.Readlink(link)
	if err != nil {
		return "", err
	}
	return target, nil
}

// CmdLine reads /proc/<pid>/cmdline, joining the null-separated argv with
// spaces and right-trimming the result.
func (p *ProcFS) CmdLine(pid int32) (string, error) {
	data, err := os.ReadFile(p.path(strconv.Itoa(int(pid)), "cmdline"))
	if err != nil {
		return "", err
	}
	parts := strings.Split(string(data), "\x00")
	joined := strings.Join(parts, " ")
	return strings.TrimRight(joined, " "), nil
}

// Environ reads /proc/<pid>/environ, splitting on NUL into a slice of
// "KEY=VALUE" strings.
func (p *ProcFS) Environ(pid int32) ([]string, error) {
	data, err := os.ReadFile(p.path(strconv.Itoa(int(pid)), "environ"))
	if err != nil {
		return nil, err
	}
	raw := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// BootTime reads /proc/stat's "btime" line once and memoizes it for the
// lifetime of the ProcFS, matching the teacher's sync.Once-cached
// GetBootTime in procutils.go.
func (p *ProcFS) BootTime() (time.Time, error) {
	p.bootOnce.Do(func() {
		p.bootTime, p.bootErr = readBootTime(p.path("stat"))
	})
	return p.bootTime, p.bootErr
}

func readBootTime(statPath string) (time.Time, error) {
	data, err := os.ReadFile(statPath)
	if err != nil {
		return time.Time{}, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "btime" {
			secs, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return time.Time{}, fmt.Errorf("procfs: parsing btime: %w", err)
			}
			return time.Unix(secs, 0), nil
		}
	}
	return time.Time{}, fmt.Errorf("procfs: no btime line in %s", statPath)
}

// readClockTicks mirrors procutils.go's readUserHZ: it consults
// /proc/self/auxv for AT_CLKTCK (17) before falling back to the POSIX
// default of 100.
func readClockTicks(procRoot string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(procRoot, "self", "auxv"))
	if err != nil {
		return 0, err
	}
	const atClkTck = 17
	const atNull = 0
	for off := 0; off+16 <= len(data); off += 16 {
		key := le64(data[off : off+8])
		val := le64(data[off+8 : off+16])
		if key == atNull {
			break
		}
		if key == atClkTck {
			return int64(val), nil
		}
	}
	return 0, fmt.Errorf("procfs: AT_CLKTCK not found in auxv")
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
