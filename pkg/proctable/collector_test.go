// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package proctable_test

import (
	"testing"

	"github.com/antimetal/erebusd/pkg/procfs"
	"github.com/antimetal/erebusd/pkg/proctable"
	"github.com/antimetal/erebusd/pkg/property"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statFor(pid, ppid int32, comm string) procfs.Stat {
	return procfs.Stat{
		Pid: pid, Valid: true, PPid: ppid, PGrp: pid, Session: pid,
		TPgid: -1, Comm: comm, State: 'R', UTimeTicks: 100, STimeTicks: 50,
		NumThreads: 1, StartTicks: 10,
	}
}

func TestFirstTickAllEntriesAdded(t *testing.T) {
	r := newFakeReader()
	r.pids = []int32{1, 2}
	r.stats[1] = statFor(1, 0, "init")
	r.stats[2] = statFor(2, 0, "kthreadd")

	c := proctable.NewCollector(r, logr.Discard())
	diff, err := c.Update(proctable.AllFields)
	require.NoError(t, err)

	assert.True(t, diff.FirstRun)
	assert.Len(t, diff.Added, 2)
	assert.Empty(t, diff.Modified)
	assert.Empty(t, diff.Removed)
}

func TestSecondTickUnchangedProcessYieldsNoModification(t *testing.T) {
	r := newFakeReader()
	r.pids = []int32{1}
	r.stats[1] = statFor(1, 0, "init")

	c := proctable.NewCollector(r, logr.Discard())
	_, err := c.Update(proctable.AllFields)
	require.NoError(t, err)

	diff, err := c.Update(proctable.AllFields)
	require.NoError(t, err)
	assert.False(t, diff.FirstRun)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Modified, "nothing changed between ticks, so no modified entries should be emitted")
	assert.Empty(t, diff.Removed)
}

func TestModifiedEntryContainsOnlyChangedFields(t *testing.T) {
	r := newFakeReader()
	r.pids = []int32{1}
	r.stats[1] = statFor(1, 0, "init")

	c := proctable.NewCollector(r, logr.Discard())
	_, err := c.Update(proctable.AllFields)
	require.NoError(t, err)

	r.stats[1] = statFor(1, 0, "init")
	r.stats[1].UTimeTicks = 200 // advance utime only

	diff, err := c.Update(proctable.AllFields)
	require.NoError(t, err)
	require.Len(t, diff.Modified, 1)
	assert.Equal(t, int32(1), diff.Modified[0].Pid)
	for _, p := range diff.Modified[0].Diff {
		assert.NotEqual(t, "comm", p.Name(), "comm did not change and must not appear in the diff bag")
	}
}

func TestModifiedFieldStabilizesIsNotReemittedNextTick(t *testing.T) {
	r := newFakeReader()
	r.pids = []int32{1}
	r.stats[1] = statFor(1, 0, "init")

	c := proctable.NewCollector(r, logr.Discard())
	_, err := c.Update(proctable.AllFields)
	require.NoError(t, err)

	r.stats[1] = statFor(1, 0, "init")
	r.stats[1].UTimeTicks = 200 // tick 2: utime advances

	diff, err := c.Update(proctable.AllFields)
	require.NoError(t, err)
	require.Len(t, diff.Modified, 1, "utime changed between tick 1 and tick 2")

	// tick 3: utime holds steady at its tick-2 value. If the collector's
	// diff baseline were never advanced past tick 1, utime would still
	// look changed relative to the stale snapshot and be re-emitted.
	diff, err = c.Update(proctable.AllFields)
	require.NoError(t, err)
	assert.Empty(t, diff.Modified, "utime held constant since tick 2, so tick 3 must report no modification")
}

func TestRemovedEntryWhenPidDisappears(t *testing.T) {
	r := newFakeReader()
	r.pids = []int32{1, 2}
	r.stats[1] = statFor(1, 0, "a")
	r.stats[2] = statFor(2, 0, "b")

	c := proctable.NewCollector(r, logr.Discard())
	_, err := c.Update(proctable.AllFields)
	require.NoError(t, err)

	r.pids = []int32{1}
	diff, err := c.Update(proctable.AllFields)
	require.NoError(t, err)
	require.Len(t, diff.Removed, 1)
	assert.Equal(t, int32(2), diff.Removed[0].Pid)
}

func TestRequiredMaskRestrictsFieldsToExactlyRequested(t *testing.T) {
	r := newFakeReader()
	r.pids = []int32{1}
	r.stats[1] = statFor(1, 0, "myproc")
	r.comms[1] = "myproc"

	c := proctable.NewCollector(r, logr.Discard())
	diff, err := c.Update(proctable.FieldComm)
	require.NoError(t, err)
	require.Len(t, diff.Added, 1)

	names := map[string]bool{}
	for _, p := range diff.Added[0].Bag {
		names[p.Name()] = true
	}
	assert.True(t, names["pid"])
	assert.True(t, names["__valid"])
	assert.True(t, names["__error"])
	assert.True(t, names["comm"])
	assert.False(t, names["ppid"], "ppid was not requested and must not appear")
	assert.False(t, names["utime"], "utime was not requested and must not appear")
}

func TestCumulativeCPUSumsUTimeAndSTimeOnceEach(t *testing.T) {
	r := newFakeReader()
	r.pids = []int32{1}
	r.stats[1] = statFor(1, 0, "p")
	r.stats[1].UTimeTicks = 300 // 3s at 100 ticks/sec
	r.stats[1].STimeTicks = 200 // 2s

	c := proctable.NewCollector(r, logr.Discard())
	diff, err := c.Update(proctable.AllFields)
	require.NoError(t, err)

	assert.Equal(t, 3.0, diff.CumUTime)
	assert.Equal(t, 2.0, diff.CumSTime, "stime must be summed, not utime added twice")
}

func TestKernelPidGetsMinimalFields(t *testing.T) {
	r := newFakeReader()
	r.pids = []int32{0}

	c := proctable.NewCollector(r, logr.Discard())
	diff, err := c.Update(proctable.AllFields)
	require.NoError(t, err)
	require.Len(t, diff.Added, 1)

	bag := diff.Added[0].Bag
	assert.Equal(t, "pid", bag[0].Name())
	assert.Equal(t, "__valid", bag[1].Name())
	assert.Equal(t, "__error", bag[2].Name())
	valid, _ := bag[1].Bool()
	assert.True(t, valid)
}

func TestInvalidStatLeavesEntryUsableWithValidFalse(t *testing.T) {
	r := newFakeReader()
	r.pids = []int32{7}
	// no stat registered for pid 7 -> ReadStat returns Valid=false, Error set

	c := proctable.NewCollector(r, logr.Discard())
	diff, err := c.Update(proctable.AllFields)
	require.NoError(t, err)
	require.Len(t, diff.Added, 1)

	bag := diff.Added[0].Bag
	valid, _ := bag[1].Bool()
	assert.False(t, valid)
	errStr, _ := bag[2].String()
	assert.NotEmpty(t, errStr)
}

func TestGlobalsCollectorSetsGlobalFlag(t *testing.T) {
	r := newFakeReader()
	r.cpu = []procfs.CPUStat{{CPUIndex: -1, User: 100, System: 50, Idle: 800}}
	r.mem = procfs.MemInfo{MemTotal: 1000, MemFree: 200, Buffers: 10, Cached: 20}

	g := proctable.NewGlobalsCollector(r)
	bag, err := g.Collect(proctable.AllGlobals, -1)
	require.NoError(t, err)

	flag, ok := property.Find(bag, "__global")
	require.True(t, ok)
	v, _ := flag.Bool()
	assert.True(t, v)
}

func TestGlobalsCollectorUsesSuppliedProcessCount(t *testing.T) {
	r := newFakeReader()
	r.pids = []int32{1, 2, 3}

	g := proctable.NewGlobalsCollector(r)
	bag, err := g.Collect(proctable.GlobalProcessCount, 42)
	require.NoError(t, err)

	p, ok := property.Find(bag, "process_count")
	require.True(t, ok)
	v, _ := p.Int64()
	assert.Equal(t, int64(42), v, "a supplied process count must be used instead of re-enumerating PIDs")
}
