// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package main

import (
	"time"

	"github.com/antimetal/erebusd/pkg/iconcache"
)

// noResolver stands in for the external icon-cache agent
// (Er::Desktop::IIconCacheIpc's out-of-process implementation), which is
// explicitly out of scope (spec.md §1 lists icon/desktop-entry discovery
// as an external collaborator, not a component this daemon implements).
// It still drives the real request/response round trip Cache expects,
// just always settling to a miss, so LookupByName resolves to
// StateNotPresent instead of leaving callers retrying every poll.
type noResolver struct {
	pending chan iconcache.Request
}

func newNoResolver() *noResolver {
	return &noResolver{pending: make(chan iconcache.Request, 256)}
}

func (r *noResolver) RequestIcon(req iconcache.Request) error {
	r.pending <- req
	return nil
}

func (r *noResolver) PullIcon() (iconcache.Response, bool, error) {
	select {
	case req := <-r.pending:
		return iconcache.Response{Request: req, Found: false}, true, nil
	case <-time.After(2 * time.Second):
		return iconcache.Response{}, false, nil
	}
}
