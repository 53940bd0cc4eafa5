// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package tracer

import (
	"strings"
	"sync"
	"time"
)

// assembler reconstructs the fragmented execve record stream into whole
// events and keeps the tracer's live pid -> identity view, per spec.md
// §4.8. It holds no I/O; Tracer drives it from decoded wire records so
// the state machine is exercised directly by tests without a real ring
// buffer.
type assembler struct {
	mu       sync.Mutex
	live     map[int32]*entry
	inFlight map[int32]*entry
}

func newAssembler() *assembler {
	return &assembler{
		live:     make(map[int32]*entry),
		inFlight: make(map[int32]*entry),
	}
}

// handle applies one decoded record and returns the event to emit
// downstream, if any.
func (a *assembler) handle(h wireHeader, data []byte) (any, error) {
	switch h.Type {
	case eventExecveEnter:
		e, err := decodeExecveEnter(data)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.inFlight[h.Pid] = &entry{
			Pid:       h.Pid,
			PPid:      e.PPid,
			UID:       e.UID,
			Sid:       e.Sid,
			StartTime: bootRelative(e.StartTime),
			Comm:      cstr(e.Comm[:]),
		}
		a.mu.Unlock()
		return nil, nil

	case eventExecveFilename:
		d, err := decodeData(data)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		if pending, ok := a.inFlight[h.Pid]; ok {
			pending.Filename = cstr(d.Data[:])
		}
		a.mu.Unlock()
		return nil, nil

	case eventExecveArg:
		d, err := decodeData(data)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		if pending, ok := a.inFlight[h.Pid]; ok {
			pending.Args = append(pending.Args, cstr(d.Data[:]))
		}
		a.mu.Unlock()
		return nil, nil

	case eventExecveRetval:
		r, err := decodeRetval(data)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		pending, ok := a.inFlight[h.Pid]
		delete(a.inFlight, h.Pid)
		if ok && r.Retval == 0 {
			a.live[h.Pid] = pending
		}
		a.mu.Unlock()
		if !ok || r.Retval != 0 {
			return nil, nil
		}
		return pending.toExecEvent(), nil

	case eventFork:
		f, err := decodeFork(data)
		if err != nil {
			return nil, err
		}
		child := &entry{
			Pid:  f.ChildPid,
			PPid: f.ParentPid,
			Comm: cstr(f.ChildComm[:]),
		}
		a.mu.Lock()
		a.live[f.ChildPid] = child
		a.mu.Unlock()
		return ForkEvent{
			ParentPid:  f.ParentPid,
			ParentComm: cstr(f.ParentComm[:]),
			ChildPid:   f.ChildPid,
			ChildComm:  cstr(f.ChildComm[:]),
		}, nil

	case eventExit:
		e, err := decodeExit(data)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		delete(a.live, h.Pid)
		delete(a.inFlight, h.Pid)
		a.mu.Unlock()
		return ExitEvent{Pid: h.Pid, Tid: e.Tid, ExitCode: e.ExitCode}, nil

	default:
		return nil, nil
	}
}

// snapshot returns the tracer's current live-pid view. Used for tests and
// diagnostics; the process-diff collector's own /proc scrape remains the
// source of truth for the core RPC surface.
func (a *assembler) snapshot() map[int32]entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[int32]entry, len(a.live))
	for pid, e := range a.live {
		out[pid] = *e
	}
	return out
}

// bootRelative is a placeholder conversion hook: the BPF side reports
// start_time as a raw bpf_ktime_get_ns() value, which callers with a
// boot-time reference (procfs.ProcFS.BootTime) can convert. This package
// attaches no such reference, so the returned time holds the raw
// monotonic nanosecond count.
func bootRelative(ns uint64) time.Time {
	return time.Unix(0, int64(ns))
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
