// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package dispatch

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
)

// ErrAlreadyRegistered is returned by Register when a request name already
// has a handler, mirroring registerService's ErThrow("... is already
// registered").
var ErrAlreadyRegistered = stderrors.New("dispatch: service already registered")

// Registry is the request-name -> Service table, guarded by a
// reader-writer lock so lookups (the hot path, once per RPC) never block
// each other.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
	log      logr.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log logr.Logger) *Registry {
	return &Registry{
		services: make(map[string]Service),
		log:      log.WithName("dispatch"),
	}
}

// Register binds a Service under requestName. It fails if the name is
// already bound; a plugin must Unregister its own services before process
// exit or reload, never overwrite another's.
func (r *Registry) Register(requestName string, svc Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[requestName]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, requestName)
	}
	r.services[requestName] = svc
	r.log.Info("registered service", "request", requestName)
	return nil
}

// Unregister removes requestName's handler, if any.
func (r *Registry) Unregister(requestName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[requestName]; exists {
		delete(r.services, requestName)
		r.log.Info("unregistered service", "request", requestName)
	}
}

func (r *Registry) find(requestName string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[requestName]
	return svc, ok
}
