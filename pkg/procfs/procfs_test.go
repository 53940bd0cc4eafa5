// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package procfs_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/antimetal/erebusd/pkg/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProc(t *testing.T, root string, pid int, statLine string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(statLine+"\n"), 0644))
}

func TestNewRejectsRelativePath(t *testing.T) {
	_, err := procfs.New("proc")
	assert.Error(t, err)
}

func TestReadStatCommWithSpacesAndParens(t *testing.T) {
	tmp := t.TempDir()
	// comm is ":-) 1 2 3" -- contains a closing paren's literal text and
	// spaces, which would confuse a naive whitespace-splitting parser.
	writeProc(t, tmp, 42, "42 (:-) 1 2 3) S 7 7 7 0 -1 4194304 10 0 0 0 100 200 0 0 20 0 4 0 123456 1000 100 18446744073709551615 1 1 0 0 0 0 0 0 0 0 0 0 17 1 0 0 0 0 0")

	pfs, err := procfs.New(tmp)
	require.NoError(t, err)

	s := pfs.ReadStat(42)
	require.True(t, s.Valid, "error: %s", s.Error)
	assert.Equal(t, ":-) 1 2 3", s.Comm)
	assert.Equal(t, byte('S'), s.State)
	assert.Equal(t, int32(7), s.PPid)
}

func TestReadStatMissingFileYieldsInvalidNotError(t *testing.T) {
	tmp := t.TempDir()
	pfs, err := procfs.New(tmp)
	require.NoError(t, err)

	s := pfs.ReadStat(999)
	assert.False(t, s.Valid)
	assert.NotEmpty(t, s.Error)
	assert.Equal(t, int32(999), s.Pid, "pid must be set even on failure")
}

func TestReadStatTicksAndTimes(t *testing.T) {
	tmp := t.TempDir()
	writeProc(t, tmp, 1, "1 (init) S 0 1 1 0 -1 4194560 10 0 0 0 150 50 0 0 20 0 1 0 0 1000 100 18446744073709551615 1 1 0 0 0 0 0 0 0 0 0 0 17 0 0 0 0 0 0")
	pfs, err := procfs.New(tmp)
	require.NoError(t, err)
	s := pfs.ReadStat(1)
	require.True(t, s.Valid)
	assert.Equal(t, uint64(150), s.UTimeTicks)
	assert.Equal(t, uint64(50), s.STimeTicks)
}

func TestReadCPUStatOlderKernelMissingOptionalFields(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "stat"), []byte("cpu  100 10 50 800 5 1 2\n"), 0644))
	pfs, err := procfs.New(tmp)
	require.NoError(t, err)
	stats, err := pfs.ReadCPUStat()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, float64(0), stats[0].Steal)
	assert.Equal(t, float64(0), stats[0].Guest)
}

func TestReadMemInfoUnits(t *testing.T) {
	tmp := t.TempDir()
	content := "MemTotal:       16384000 kB\nMemFree:         1000000 kB\nSwapTotal:             0 kB\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "meminfo"), []byte(content), 0644))
	pfs, err := procfs.New(tmp)
	require.NoError(t, err)
	mi, err := pfs.ReadMemInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(16384000*1024), mi.MemTotal)
}

func TestEnumeratePIDsIgnoresNonNumericEntries(t *testing.T) {
	tmp := t.TempDir()
	writeProc(t, tmp, 1, "1 (init) S 0 0 0 0 -1 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0")
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "self"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "version"), []byte("x"), 0644))

	pfs, err := procfs.New(tmp)
	require.NoError(t, err)
	pids, err := pfs.EnumeratePIDs()
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, pids)
}
