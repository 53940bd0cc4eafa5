// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/antimetal/erebusd/internal/procservice"
	"github.com/antimetal/erebusd/pkg/dispatch"
	"github.com/antimetal/erebusd/pkg/plugin"
	"github.com/antimetal/erebusd/pkg/procfs"
	"github.com/antimetal/erebusd/pkg/property"
	"github.com/antimetal/erebusd/pkg/session"
)

// writeProc builds a minimal fixture /proc entry, following
// pkg/procfs/procfs_test.go's helper of the same name.
func writeProc(t *testing.T, root string, pid int, statLine string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(statLine+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte("init\x00"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status"), []byte("Uid:\t0\t0\t0\t0\n"), 0644))
	require.NoError(t, os.Symlink("/sbin/init", filepath.Join(dir, "exe")))
}

// wireDaemon assembles the same procfs -> session -> registry -> dispatcher
// -> procservice chain main() wires, minus the HTTP/tracer/icon-cache
// scaffolding, so the dispatch.Dispatcher this package constructs has a
// genuine caller under test instead of sitting unexercised.
func wireDaemon(t *testing.T, procRoot string) (*dispatch.Dispatcher, *session.Manager, *plugin.Manager) {
	t.Helper()

	reader, err := procfs.New(procRoot)
	require.NoError(t, err)

	log := logr.Discard()
	sessions := session.NewManager(log)
	registry := dispatch.NewRegistry(log)
	dispatcher := dispatch.NewDispatcher(registry, log)

	plugins, err := plugin.NewManager(plugin.ManagerOptions{Registry: registry, Log: log})
	require.NoError(t, err)

	_, err = plugins.Load("procservice", procservice.Plugin(sessions, reader, "us-east-1", "123456789012"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = plugins.UnloadAll() })
	return dispatcher, sessions, plugins
}

func TestDaemonWiringAnswersGlobalProps(t *testing.T) {
	tmp := t.TempDir()
	writeProc(t, tmp, 1, "1 (init) S 0 1 1 0 -1 4194560 10 0 0 0 150 50 0 0 20 0 1 0 0 1000 100 18446744073709551615 1 1 0 0 0 0 0 0 0 0 0 0 17 0 0 0 0 0 0")
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "stat"), []byte("cpu  100 10 50 800 5 1 2\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "meminfo"),
		[]byte("MemTotal:       16384000 kB\nMemFree:         1000000 kB\nSwapTotal:             0 kB\n"), 0644))

	dispatcher, sessions, _ := wireDaemon(t, tmp)
	id := sessions.AllocateSession()

	reply := dispatcher.Unary(context.Background(), procservice.GlobalProps, nil, id)
	require.Nil(t, reply.Exception, "unexpected exception: %+v", reply.Exception)

	region, ok := property.Find(reply.Props, "host_region")
	require.True(t, ok, "global_props reply missing host_region")
	v, _ := region.String()
	assert.Equal(t, "us-east-1", v)
}

func TestDaemonWiringAnswersProcessProps(t *testing.T) {
	tmp := t.TempDir()
	writeProc(t, tmp, 1, "1 (init) S 0 1 1 0 -1 4194560 10 0 0 0 150 50 0 0 20 0 1 0 0 1000 100 18446744073709551615 1 1 0 0 0 0 0 0 0 0 0 0 17 0 0 0 0 0 0")
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "stat"), []byte("cpu  100 10 50 800 5 1 2\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "meminfo"), []byte("MemTotal:       1000 kB\n"), 0644))

	dispatcher, sessions, _ := wireDaemon(t, tmp)
	id := sessions.AllocateSession()

	var args property.Bag
	args.AddUInt64("pid", 1)

	reply := dispatcher.Unary(context.Background(), procservice.ProcessProps, args, id)
	require.Nil(t, reply.Exception, "unexpected exception: %+v", reply.Exception)
	assert.NotEmpty(t, reply.Props)
}

func TestDaemonWiringUnknownRequestIsUnavailable(t *testing.T) {
	tmp := t.TempDir()
	dispatcher, sessions, _ := wireDaemon(t, tmp)
	id := sessions.AllocateSession()

	reply := dispatcher.Unary(context.Background(), "no_such_request", nil, id)
	assert.Equal(t, codes.Unavailable, reply.Code)
}
