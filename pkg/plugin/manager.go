// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package plugin

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/antimetal/erebusd/pkg/dispatch"
)

// Manager tracks which plugins are currently loaded and owns the
// dispatcher registry they register their services against, the
// in-process stand-in for erebus-server's PluginMgr (which loads
// boost::dll shared libraries; this process builds its components in,
// so Manager's job is load ordering and lifecycle, not dynamic linking).
type Manager struct {
	registry *dispatch.Registry
	log      logr.Logger
	config   map[string]map[string]string

	mu     sync.Mutex
	loaded map[string]Plugin
}

// ManagerOptions configures a Manager, following pkg/performance's
// Options-struct construction style.
type ManagerOptions struct {
	Registry *dispatch.Registry
	Log      logr.Logger
	// Config maps a plugin name to its own settings section.
	Config map[string]map[string]string
}

// NewManager constructs a Manager. Registry and Log are required.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("plugin: registry is required")
	}
	if opts.Log.GetSink() == nil {
		return nil, fmt.Errorf("plugin: logger is required")
	}
	return &Manager{
		registry: opts.Registry,
		log:      opts.Log.WithName("plugin-manager"),
		config:   opts.Config,
		loaded:   make(map[string]Plugin),
	}, nil
}

// Load constructs and registers the plugin named name via factory. It
// returns ErrAlreadyLoaded if a plugin of that name is already loaded,
// generalizing processmgrplugin.cxx's per-process g_instances guard to
// a per-name guard across however many plugins a process hosts.
func (m *Manager) Load(name string, factory Factory) (Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.loaded[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyLoaded, name)
	}

	p, err := factory(Params{
		Registry: m.registry,
		Log:      m.log.WithName(name),
		Config:   m.config[name],
	})
	if err != nil {
		return nil, fmt.Errorf("plugin: loading %q: %w", name, err)
	}

	m.loaded[name] = p
	m.log.Info("loaded plugin", "name", name, "info", p.Info())
	return p, nil
}

// Unload closes and forgets the plugin named name. It is a no-op if
// name isn't currently loaded.
func (m *Manager) Unload(name string) error {
	m.mu.Lock()
	p, exists := m.loaded[name]
	if exists {
		delete(m.loaded, name)
	}
	m.mu.Unlock()

	if !exists {
		return nil
	}

	m.log.Info("unloading plugin", "name", name)
	return p.Close()
}

// UnloadAll closes every currently loaded plugin, continuing past
// individual errors and returning the first one encountered, the way a
// shutdown path should never abandon cleanup early.
func (m *Manager) UnloadAll() error {
	m.mu.Lock()
	names := make([]string, 0, len(m.loaded))
	for name := range m.loaded {
		names = append(names, name)
	}
	m.mu.Unlock()

	var firstErr error
	for _, name := range names {
		if err := m.Unload(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Loaded reports whether name is currently loaded.
func (m *Manager) Loaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.loaded[name]
	return exists
}
