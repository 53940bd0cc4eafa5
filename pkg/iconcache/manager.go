// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package iconcache

import (
	"fmt"
	"regexp"

	ristretto "github.com/dgraph-io/ristretto/v2"
	"github.com/go-logr/logr"
)

// DefaultExeIcon is the icon name used when no desktop entry and no
// known-app pattern matches a process, mirroring iconmanager.cxx's
// DefaultExeIcon.
const DefaultExeIcon = "application-x-executable"

// DesktopEntry is the subset of a .desktop file Manager needs.
type DesktopEntry struct {
	Icon string
}

// DesktopEntryResolver looks up the desktop entry registered for an
// executable path, mirroring Er::Desktop::DesktopEntries::lookup.
type DesktopEntryResolver interface {
	Lookup(exe string) (DesktopEntry, bool)
}

// knownApp maps a process name pattern to a generic icon, the fallback
// iconmanager.cxx uses for well-known interpreters and shells that don't
// carry their own desktop entry.
type knownApp struct {
	pattern *regexp.Regexp
	icon    string
}

var knownApps = []knownApp{
	{regexp.MustCompile(`^(ba|da|z|tc|c|k)?sh$`), "utilities-terminal"},
	{regexp.MustCompile(`^(python|python2|python3)(\.\d+)?$`), "text-x-python"},
	{regexp.MustCompile(`^(node|nodejs)$`), "application-javascript"},
	{regexp.MustCompile(`^java$`), "application-x-java"},
}

func defaultIconName(comm string) string {
	for _, app := range knownApps {
		if app.pattern.MatchString(comm) {
			return app.icon
		}
	}
	return DefaultExeIcon
}

// Manager resolves a process's icon from its comm/exe, falling through
// desktop-entry lookup and the known-app table before delegating the
// actual bytes to Cache. Grounded on
// original_source/src/erebus-processmgr/iconmanager.cxx.
type Manager struct {
	cache   *Cache
	desktop DesktopEntryResolver
	log     logr.Logger

	exeCache *ristretto.Cache[string, []byte]
}

// NewManager constructs a Manager over cache, resolving desktop entries
// through desktop.
func NewManager(log logr.Logger, cache *Cache, desktop DesktopEntryResolver) (*Manager, error) {
	exeCache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10_000,
		MaxCost:     8 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("iconcache: creating exe cache: %w", err)
	}
	return &Manager{
		cache:    cache,
		desktop:  desktop,
		log:      log.WithName("iconmanager"),
		exeCache: exeCache,
	}, nil
}

// Lookup resolves the icon for a process identified by its comm and exe
// path at the given pixel size. A nil, nil result means resolution is
// still pending; callers should retry on the next poll.
func (m *Manager) Lookup(comm, exe string, size uint32) ([]byte, error) {
	exeKey := fmt.Sprintf("%s:%d", exe, size)
	if data, ok := m.exeCache.Get(exeKey); ok {
		return data, nil
	}

	iconName := ""
	if m.desktop != nil {
		if entry, ok := m.desktop.Lookup(exe); ok && entry.Icon != "" {
			iconName = entry.Icon
		}
	}
	if iconName != "" {
		state, data, err := m.cache.LookupByName(iconName, size)
		if err != nil {
			return nil, err
		}
		if state == StateFound {
			m.exeCache.Set(exeKey, data, int64(len(data)))
			m.exeCache.Wait()
			return data, nil
		}
		if state == StatePending {
			return nil, nil
		}
	}

	return m.defaultIcon(comm, size)
}

func (m *Manager) defaultIcon(comm string, size uint32) ([]byte, error) {
	name := defaultIconName(comm)
	state, data, err := m.cache.LookupByName(name, size)
	if err != nil {
		return nil, err
	}
	if state != StateFound {
		return nil, nil
	}
	return data, nil
}

// Close releases the manager's own exe-keyed cache.
func (m *Manager) Close() {
	m.exeCache.Close()
}
