// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package plugin

import (
	"github.com/go-logr/logr"

	"github.com/antimetal/erebusd/pkg/dispatch"
)

// Params is what a plugin Factory is handed at construction time,
// mirroring Er::Server::PluginParams (container + log) widened with a
// scoped config section the way cmd/erebusd resolves it.
type Params struct {
	// Registry is the dispatcher's request-name table; a plugin
	// registers its services against it in its Factory and unregisters
	// them in Close.
	Registry *dispatch.Registry

	// Log is pre-scoped with the plugin's name (logr's WithName), the
	// same way pkg/performance.NewManager scopes its own logger before
	// handing work off to collectors.
	Log logr.Logger

	// Config holds the plugin's own settings, sliced out of the
	// process's overall configuration by name before being passed down;
	// a plugin never sees another plugin's settings.
	Config map[string]string
}
