// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package tracer implements the process-event tracer (C8): a goroutine
// that reads a BPF ring buffer and reconstructs
// fragmented execve records into whole process-lifecycle events.
// Grounded on original_source/src/erebus-procmon/process_spy.cxx (the
// poll-loop shape) and process.bpf.h (the wire record layout), adapted
// into the teacher's cilium/ebpf ring-buffer/link/rlimit wiring and
// pkg/ebpf/core.go's CO-RE loader.
package tracer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/antimetal/erebusd/pkg/ebpf"
	cilium "github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
	"github.com/go-logr/logr"
)

// PollTimeout is process_spy.cxx's PollTimeoutMs. The poll loop does not
// use it: each Read blocks until a record arrives, and Stop closes the
// reader to unblock a pending Read.
const PollTimeout = 200 * time.Millisecond

// Tracepoints attached by the tracer, matching process.bpf.h's event
// surface: fork, execve entry/exit, and task exit.
var tracepoints = []struct {
	group, name, prog string
}{
	{"sched", "sched_process_fork", "handle_fork"},
	{"syscalls", "sys_enter_execve", "handle_execve_enter"},
	{"syscalls", "sys_exit_execve", "handle_execve_exit"},
	{"sched", "sched_process_exit", "handle_exit"},
}

// Tracer owns the BPF program, its ring buffer, and the assembler that
// turns raw records into ExecEvent/ForkEvent/ExitEvent values.
type Tracer struct {
	log           logr.Logger
	bpfObjectPath string
	core          *ebpf.CoreManager

	mu      sync.Mutex
	objs    *cilium.Collection
	links   []link.Link
	reader  *ringbuf.Reader
	events  chan any
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool

	asm *assembler
}

// New constructs a Tracer for the compiled BPF object at bpfObjectPath.
func New(log logr.Logger, bpfObjectPath string) *Tracer {
	return &Tracer{
		log:           log.WithName("tracer"),
		bpfObjectPath: bpfObjectPath,
		asm:           newAssembler(),
		stop:          make(chan struct{}),
	}
}

// Snapshot returns the tracer's current live-pid view (fork stubs and
// finalized execve identities not yet exited).
func (t *Tracer) Snapshot() map[int32]entry {
	return t.asm.snapshot()
}

// Start loads and attaches the BPF program, opens its ring buffer, and
// begins the poll loop on a background goroutine. The returned channel
// carries ExecEvent, ForkEvent, and ExitEvent values until Stop or ctx is
// cancelled.
func (t *Tracer) Start(ctx context.Context) (<-chan any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil, errors.New("tracer: already running")
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("tracer: removing memlock: %w", err)
	}

	if t.core == nil {
		core, err := ebpf.NewCoreManager(t.log)
		if err != nil {
			return nil, fmt.Errorf("tracer: creating CO-RE manager: %w", err)
		}
		t.core = core
	}

	spec, err := t.core.LoadProgramSpec(t.bpfObjectPath)
	if err != nil {
		return nil, fmt.Errorf("tracer: loading program spec: %w", err)
	}

	coll, err := t.core.LoadProgramWithCORE(spec)
	if err != nil {
		return nil, fmt.Errorf("tracer: loading collection with CO-RE: %w", err)
	}
	t.objs = coll

	for _, tp := range tracepoints {
		prog, ok := coll.Programs[tp.prog]
		if !ok {
			t.cleanup()
			return nil, fmt.Errorf("tracer: program %q not found in object", tp.prog)
		}
		l, err := t.core.AttachTracepoint(prog, tp.group, tp.name)
		if err != nil {
			t.cleanup()
			return nil, fmt.Errorf("tracer: attaching %s:%s: %w", tp.group, tp.name, err)
		}
		t.links = append(t.links, l)
	}

	eventsMap, ok := coll.Maps["events"]
	if !ok {
		t.cleanup()
		return nil, errors.New("tracer: events map not found")
	}

	reader, err := ringbuf.NewReader(eventsMap)
	if err != nil {
		t.cleanup()
		return nil, fmt.Errorf("tracer: opening ring buffer: %w", err)
	}
	t.reader = reader

	t.events = make(chan any, 256)
	t.stop = make(chan struct{})

	t.wg.Add(1)
	go t.run(ctx)

	t.running = true
	return t.events, nil
}

// Stop signals the poll loop, waits for it to exit, and releases all BPF
// resources.
func (t *Tracer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}

	close(t.stop)
	if t.reader != nil {
		t.reader.Close() // unblocks a pending ring buffer read immediately
	}
	t.wg.Wait()

	t.cleanup()
	close(t.events)
	t.running = false
	return nil
}

func (t *Tracer) cleanup() {
	if t.reader != nil {
		t.reader.Close()
		t.reader = nil
	}
	if t.core != nil {
		t.core.DetachAll()
	}
	t.links = nil
	if t.objs != nil {
		t.objs.Close()
		t.objs = nil
	}
}

// run is the poll loop: process_spy.cxx's worker(), translated to Go.
// ring_buffer__poll's -EINTR/negative-error exit conditions become
// ringbuf.ErrClosed (clean Stop) and any other read error, which is
// terminal here — a caller that wants reattachment wraps Start in
// backoff.Retry (cmd/erebusd does this), since recovering mid-loop would
// mean rebuilding the whole collection, not just retrying a read.
func (t *Tracer) run(ctx context.Context) {
	defer t.wg.Done()
	t.log.V(1).Info("tracer poll loop started")

	for {
		select {
		case <-ctx.Done():
			t.log.V(1).Info("tracer poll loop stopping: context done")
			return
		case <-t.stop:
			t.log.V(1).Info("tracer poll loop stopping: stop requested")
			return
		default:
		}

		record, err := t.reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return
			}
			t.log.Error(err, "reading ring buffer record, poll loop exiting")
			return
		}

		t.handleRecord(ctx, record.RawSample)
	}
}

func (t *Tracer) handleRecord(ctx context.Context, data []byte) {
	h, err := decodeHeader(data)
	if err != nil {
		t.log.Error(err, "decoding record header")
		return
	}

	event, err := t.asm.handle(h, data)
	if err != nil {
		t.log.Error(err, "assembling event", "pid", h.Pid, "type", h.Type.String())
		return
	}
	if event == nil {
		return
	}

	select {
	case t.events <- event:
	case <-ctx.Done():
	case <-t.stop:
	default:
		t.log.V(1).Info("dropping event, channel full", "pid", h.Pid, "type", h.Type.String())
	}
}
