// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package procservice

import (
	"github.com/antimetal/erebusd/pkg/dispatch"
	"github.com/antimetal/erebusd/pkg/plugin"
	"github.com/antimetal/erebusd/pkg/proctable"
	"github.com/antimetal/erebusd/pkg/session"
)

// requestNames is every name Service answers, registered and released as
// one unit by Load/Close, mirroring processmgrplugin.cxx's
// registerService/unregisterService pairing over the whole set.
var requestNames = []string{ProcessList, ProcessProps, ProcessPropsExt, GlobalProps, KillProcess}

type loaded struct {
	registry *dispatch.Registry
}

func (loaded) Info() plugin.Info {
	return plugin.Info{
		Name:        "procservice",
		Description: "process table, global stats, and kill(2) request handlers",
		Version:     "1.0.0",
	}
}

func (l loaded) Close() error {
	for _, name := range requestNames {
		l.registry.Unregister(name)
	}
	return nil
}

// Plugin adapts a Service, bound to sessions and reader with host
// identity already resolved, to pkg/plugin's Factory shape.
func Plugin(sessions *session.Manager, reader proctable.Reader, hostRegion, hostAccountID string) plugin.Factory {
	return func(p plugin.Params) (plugin.Plugin, error) {
		svc := New(p.Log, sessions, reader).WithHostIdentity(hostRegion, hostAccountID)

		registered := make([]string, 0, len(requestNames))
		for _, name := range requestNames {
			if err := p.Registry.Register(name, svc); err != nil {
				for _, done := range registered {
					p.Registry.Unregister(done)
				}
				return nil, err
			}
			registered = append(registered, name)
		}
		return loaded{registry: p.Registry}, nil
	}
}
