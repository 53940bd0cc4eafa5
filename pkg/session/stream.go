// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package session

import (
	"time"

	"github.com/antimetal/erebusd/pkg/property"
)

// Type distinguishes the stream variants a session may hold. Only
// process-diff is implemented by the core (spec.md §4.6); user-list and
// icon-list are named so the type space matches spec.md §3's "Variants:
// process-diff, user-list, icon-list" without this package reaching into
// C9's or an identity service's concerns.
type Type int

const (
	TypeProcessDiff Type = iota
	TypeUserList
	TypeIconList
)

// state is the per-variant cursor; each variant's state knows how to
// produce its next property bag and when it has nothing left to emit.
type state interface {
	Next() (property.Bag, error)
}

// Stream is one server-driven, finite sequence of property bags, unique
// within its owning session.
type Stream struct {
	ID      uint64
	Type    Type
	touched time.Time
	state   state
}

func (s *Stream) next() (property.Bag, error) {
	return s.state.Next()
}

func newStream(id uint64, kind Type, st state) *Stream {
	return &Stream{ID: id, Type: kind, touched: time.Now(), state: st}
}
