// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package plugin is the facade a process-manager component builds
// against: a scoped logger, scoped config, and access to the dispatcher
// registry, without depending on cmd/erebusd directly. Grounded on
// original_source/src/erebus-processmgr/processmgrplugin.cxx (the
// IPlugin shape: Info/dispose, single-instance enforcement,
// register/unregister against the request-name registry) and the
// teacher's pkg/performance/manager.go (Options-struct construction,
// logger.WithName scoping).
package plugin

import "fmt"

// Info describes a loaded plugin, mirroring Er::Server::IPlugin::Info.
type Info struct {
	Name        string
	Description string
	Version     string
}

// Plugin is one loadable component: process listing, tracing, icon
// resolution, etc. Close releases whatever its Factory registered and any
// background work the plugin started.
type Plugin interface {
	Info() Info
	Close() error
}

// Factory constructs a Plugin from its Params. Manager.Load does not
// call it for a name that is already loaded, the per-name form of
// processmgrplugin.cxx's g_instances guard.
type Factory func(Params) (Plugin, error)

// ErrAlreadyLoaded is returned by Manager.Load when a plugin of the same
// name is already loaded.
var ErrAlreadyLoaded = fmt.Errorf("plugin: only one instance may be loaded at a time")
