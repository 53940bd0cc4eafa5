// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package tracer

import "time"

// ExecEvent is emitted once an in-flight execve assembly finalizes with a
// zero retval: the process's new identity replaces whatever entry the
// tracer's live view held for that pid (spec.md §4.8).
type ExecEvent struct {
	Pid       int32
	PPid      int32
	UID       uint32
	Sid       uint32
	StartTime time.Time
	Comm      string
	Filename  string
	Args      []string
	Cmdline   string
}

// ForkEvent is emitted immediately on PROCESS_EVENT_FORK, before the
// child's exec'd identity (if any) arrives.
type ForkEvent struct {
	ParentPid  int32
	ParentComm string
	ChildPid   int32
	ChildComm  string
}

// ExitEvent is emitted on PROCESS_EVENT_EXIT; Tid distinguishes a thread
// exit from a whole-process exit when Tid != Pid.
type ExitEvent struct {
	Pid      int32
	Tid      int32
	ExitCode int32
}

// entry is the tracer's own live view of a pid: either a fork stub
// awaiting its exec, or a finalized execve identity.
type entry struct {
	Pid       int32
	PPid      int32
	UID       uint32
	Sid       uint32
	StartTime time.Time
	Comm      string
	Filename  string
	Args      []string
}

func (e *entry) toExecEvent() ExecEvent {
	return ExecEvent{
		Pid: e.Pid, PPid: e.PPid, UID: e.UID, Sid: e.Sid,
		StartTime: e.StartTime, Comm: e.Comm, Filename: e.Filename, Args: e.Args,
		Cmdline: joinArgs(e.Args),
	}
}
