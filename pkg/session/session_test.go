// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package session_test

import (
	"testing"
	"time"

	"github.com/antimetal/erebusd/pkg/procfs"
	"github.com/antimetal/erebusd/pkg/proctable"
	"github.com/antimetal/erebusd/pkg/property"
	"github.com/antimetal/erebusd/pkg/session"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct{ pids []int32 }

func (f *fakeReader) EnumeratePIDs() ([]int32, error) { return f.pids, nil }
func (f *fakeReader) ReadStat(pid int32) procfs.Stat {
	return procfs.Stat{Pid: pid, Valid: true, PPid: 0, TPgid: -1, Comm: "p", State: 'R'}
}
func (f *fakeReader) Comm(pid int32) (string, error)    { return "p", nil }
func (f *fakeReader) Exe(pid int32) (string, error)     { return "/bin/p", nil }
func (f *fakeReader) CmdLine(pid int32) (string, error) { return "p", nil }
func (f *fakeReader) RealUID(pid int32) (uint32, error) { return 0, nil }
func (f *fakeReader) BootTime() (time.Time, error)      { return time.Unix(1700000000, 0), nil }
func (f *fakeReader) ClockTicks() int64                 { return 100 }
func (f *fakeReader) ReadCPUStat() ([]procfs.CPUStat, error) {
	return []procfs.CPUStat{{CPUIndex: -1, User: 10, Idle: 90}}, nil
}
func (f *fakeReader) ReadMemInfo() (procfs.MemInfo, error) {
	return procfs.MemInfo{MemTotal: 1000, MemFree: 500}, nil
}

func TestAllocateSessionIDsMonotonic(t *testing.T) {
	m := session.NewManager(logr.Discard())
	id1 := m.AllocateSession()
	id2 := m.AllocateSession()
	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)
}

func TestGetSessionNotFound(t *testing.T) {
	m := session.NewManager(logr.Discard())
	_, err := m.GetSession(999)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestFirstNextReturnsGlobalsThenAddedThenEmpty(t *testing.T) {
	m := session.NewManager(logr.Discard())
	id := m.AllocateSession()
	reader := &fakeReader{pids: []int32{1, 2}}

	streamID, err := m.BeginProcessDiffStream(id, reader, logr.Discard(), proctable.AllFields, proctable.AllGlobals)
	require.NoError(t, err)

	bag, err := m.Next(id, streamID)
	require.NoError(t, err)
	g, found := property.Find(bag, "__global")
	require.True(t, found)
	v, _ := g.Bool()
	assert.True(t, v)

	var gotAdded, gotDeleted int
	for i := 0; i < 10; i++ {
		b, err := m.Next(id, streamID)
		require.NoError(t, err)
		if len(b) == 0 {
			break
		}
		if _, ok := property.Find(b, "__new"); ok {
			gotAdded++
		}
		if _, ok := property.Find(b, "__deleted"); ok {
			gotDeleted++
		}
	}
	assert.Equal(t, 2, gotAdded)
	assert.Equal(t, 0, gotDeleted, "no deletions should appear on the first tick")
}

func TestEndStreamRemovesStream(t *testing.T) {
	m := session.NewManager(logr.Discard())
	id := m.AllocateSession()
	reader := &fakeReader{pids: []int32{1}}
	streamID, err := m.BeginProcessDiffStream(id, reader, logr.Discard(), proctable.AllFields, proctable.AllGlobals)
	require.NoError(t, err)

	require.NoError(t, m.EndStream(id, streamID))
	_, err = m.Next(id, streamID)
	assert.ErrorIs(t, err, session.ErrStreamNotFound)
}

func TestBeginStreamUnknownSessionFails(t *testing.T) {
	m := session.NewManager(logr.Discard())
	reader := &fakeReader{pids: []int32{1}}
	_, err := m.BeginProcessDiffStream(42, reader, logr.Discard(), proctable.AllFields, proctable.AllGlobals)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
