// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package procfs

import (
	"os"
	"strconv"
	"strings"
)

// Stat holds the raw fields parsed from /proc/<pid>/stat. Pid is always
// set, even on failure; every other field is meaningful only when Valid
// holds, and Error carries a one-line cause otherwise.
type Stat struct {
	Pid   int32
	Valid bool
	Error string

	Comm       string
	State      byte
	PPid       int32
	PGrp       int32
	Session    int32
	TTYNr      int32
	TPgid      int32
	Flags      uint32
	MinFlt     uint64
	CMinFlt    uint64
	MajFlt     uint64
	CMajFlt    uint64
	UTimeTicks uint64
	STimeTicks uint64
	CUTime     uint64
	CSTime     uint64
	Priority   int64
	Nice       int64
	NumThreads int64
	StartTicks uint64
	VSize      uint64
	RSS        int64
}

// ReadStat parses /proc/<pid>/stat. Per-field failures never abort the
// caller's tick: a malformed or unreadable stat file yields a Stat with
// Valid=false and Error populated, Pid still set.
func (p *ProcFS) ReadStat(pid int32) Stat {
	s := Stat{Pid: pid}
	data, err := os.ReadFile(p.path(strconv.Itoa(int(pid)), "stat"))
	if err != nil {
		s.Error = err.Error()
		return s
	}
	line := strings.TrimRight(string(data), "\n")

	// comm may itself contain spaces and closing parens (e.g. ":-) 1 2 3"),
	// so the boundary is found by scanning from the end of the line for the
	// LAST ')', exactly as the original parser does with strrchr, rather
	// than by naive whitespace splitting.
	open := strings.IndexByte(line, '(')
	closeIdx := strings.LastIndexByte(line, ')')
	if open < 0 || closeIdx < 0 || closeIdx <= open {
		s.Error = "procfs: malformed stat line: no comm delimiters"
		return s
	}
	s.Comm = line[open+1 : closeIdx]

	rest := strings.TrimSpace(line[closeIdx+1:])
	fields := strings.Fields(rest)
	// fields[0] is state; ppid is fields[1]; etc. (proc(5)'s 1-indexed
	// numbering calls pid, comm and state fields 1-3, so fields[i] here is
	// field i+3 there).
	if len(fields) < 1 {
		s.Error = "procfs: malformed stat line: too few fields after comm"
		return s
	}
	get := func(i int) (string, bool) {
		if i < 0 || i >= len(fields) {
			return "", false
		}
		return fields[i], true
	}
	s.State = stateChar(fields[0])

	s.PPid = parseInt32(fields, 1)
	s.PGrp = parseInt32(fields, 2)
	s.Session = parseInt32(fields, 3)
	s.TTYNr = parseInt32(fields, 4)
	s.TPgid = parseInt32(fields, 5)
	s.Flags = parseUint32(fields, 6)
	s.MinFlt = parseUint64(fields, 7)
	s.CMinFlt = parseUint64(fields, 8)
	s.MajFlt = parseUint64(fields, 9)
	s.CMajFlt = parseUint64(fields, 10)
	s.UTimeTicks = parseUint64(fields, 11)
	s.STimeTicks = parseUint64(fields, 12)
	s.CUTime = parseUint64(fields, 13)
	s.CSTime = parseUint64(fields, 14)
	s.Priority = parseInt64(fields, 15)
	s.Nice = parseInt64(fields, 16)
	s.NumThreads = parseInt64(fields, 17)
	s.StartTicks = parseUint64(fields, 19)
	s.VSize = parseUint64(fields, 20)
	s.RSS = parseInt64(fields, 21)

	if _, ok := get(19); !ok {
		s.Error = "procfs: malformed stat line: truncated before starttime"
		return s
	}

	s.Valid = true
	return s
}

func stateChar(s string) byte {
	if len(s) == 0 {
		return '?'
	}
	return s[0]
}

func parseInt32(fields []string, i int) int32 {
	if i >= len(fields) {
		return 0
	}
	v, _ := strconv.ParseInt(fields[i], 10, 32)
	return int32(v)
}

func parseUint32(fields []string, i int) uint32 {
	if i >= len(fields) {
		return 0
	}
	v, _ := strconv.ParseUint(fields[i], 10, 32)
	return uint32(v)
}

func parseInt64(fields []string, i int) int64 {
	if i >= len(fields) {
		return 0
	}
	v, _ := strconv.ParseInt(fields[i], 10, 64)
	return v
}

func parseUint64(fields []string, i int) uint64 {
	if i >= len(fields) {
		return 0
	}
	v, _ := strconv.ParseUint(fields[i], 10, 64)
	return v
}

// UTimeSeconds converts UTimeTicks to seconds using the ProcFS's clock
// rate.
func (p *ProcFS) UTimeSeconds(s Stat) float64 {
	return float64(s.UTimeTicks) / float64(p.clkTck)
}

// STimeSeconds converts STimeTicks to seconds using the ProcFS's clock
// rate.
func (p *ProcFS) STimeSeconds(s Stat) float64 {
	return float64(s.STimeTicks) / float64(p.clkTck)
}

// StartTimeAbs rebases a Stat's StartTicks (ticks since boot) onto an
// absolute wall-clock time: bootTime + ticks/clk_tck.
func (p *ProcFS) StartTimeAbs(s Stat) (float64, error) {
	boot, err := p.BootTime()
	if err != nil {
		return 0, err
	}
	return float64(boot.Unix()) + float64(s.StartTicks)/float64(p.clkTck), nil
}
