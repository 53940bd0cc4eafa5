// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package session

import (
	"github.com/antimetal/erebusd/pkg/proctable"
	"github.com/antimetal/erebusd/pkg/property"
	"github.com/go-logr/logr"
)

// stage is the process-diff stream's cursor position. Stages traverse in
// a fixed order: Globals -> Removed -> Modified -> Added.
type stage int

const (
	stageGlobals stage = iota
	stageRemoved
	stageModified
	stageAdded
	stageDone
)

// processDiffState is the process-diff stream's per-call cursor. It is
// constructed once per beginStream call from that tick's Diff and globals
// bag, and consumed exactly once, start to finish, by successive next()
// calls.
type processDiffState struct {
	firstRun bool

	globals property.Bag
	removed []proctable.RemovedEntry
	modified []proctable.ModifiedEntry
	added    []*proctable.ProcessInfo

	st  stage
	idx int
}

// Next implements state. It emits exactly one property bag per call, or an
// empty bag to signal end-of-stream (spec.md §4.6).
func (p *processDiffState) Next() (property.Bag, error) {
	for {
		switch p.st {
		case stageGlobals:
			p.st = stageRemoved
			if p.globals != nil {
				g := p.globals
				p.globals = nil
				return g, nil
			}
			// fall through to Removed if globals were already emitted
			continue

		case stageRemoved:
			if p.firstRun || p.idx >= len(p.removed) {
				p.st = stageModified
				p.idx = 0
				continue
			}
			entry := p.removed[p.idx]
			p.idx++
			var bag property.Bag
			bag.AddUInt64(propPid, uint64(entry.Pid))
			bag.AddBool(propDeleted, true)
			return bag, nil

		case stageModified:
			if p.firstRun || p.idx >= len(p.modified) {
				p.st = stageAdded
				p.idx = 0
				continue
			}
			entry := p.modified[p.idx]
			p.idx++
			bag := append(property.Bag{}, entry.Diff...)
			bag.AddUInt64(propPid, uint64(entry.Pid))
			bag.AddBool(propValidFlag, true)
			return bag, nil

		case stageAdded:
			if p.idx >= len(p.added) {
				p.st = stageDone
				return property.Bag{}, nil
			}
			entry := p.added[p.idx]
			p.idx++
			bag := append(property.Bag{}, entry.Bag...)
			bag.AddBool(propNewFlag, true)
			return bag, nil

		case stageDone:
			return property.Bag{}, nil
		}
	}
}

const (
	propPid       = "pid"
	propDeleted   = "__deleted"
	propValidFlag = "__valid"
	propNewFlag   = "__new"
)

// BeginProcessDiffStream runs one collector tick for sessionID's
// (lazily-created) ProcessListCollector and allocates a new process-diff
// stream over the resulting generation diff, returning its stream id.
// The globals bag is computed in the same call, reusing the tick's
// process count rather than re-enumerating PIDs, mirroring
// processlistservice.cxx's beginProcessDiffStream.
func (m *Manager) BeginProcessDiffStream(
	sessionID uint64,
	reader proctable.Reader,
	log logr.Logger,
	processRequired proctable.FieldMask,
	globalsRequired proctable.GlobalsMask,
) (uint64, error) {
	s, err := m.GetSession(sessionID)
	if err != nil {
		return 0, err
	}

	collector, globals := s.collectorFor(reader, log)

	diff, err := collector.Update(processRequired)
	if err != nil {
		return 0, err
	}

	globalsBag, err := globals.Collect(globalsRequired, diff.ProcessCount)
	if err != nil {
		return 0, err
	}

	st := &processDiffState{
		firstRun: diff.FirstRun,
		globals:  globalsBag,
		removed:  diff.Removed,
		modified: diff.Modified,
		added:    diff.Added,
	}

	s.mu.Lock()
	s.nextUp++
	id := s.nextUp
	s.streams[id] = newStream(id, TypeProcessDiff, st)
	s.mu.Unlock()

	return id, nil
}
