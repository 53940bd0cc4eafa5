// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package session implements the server-side session/stream kernel (C6):
// a reader-writer-locked session table, a per-session mutex-protected
// stream table, monotonic id allocation, and edge-triggered stale
// reaping. Grounded on
// original_source/src/erebus-processmgr/processlistservice.cxx.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/antimetal/erebusd/pkg/proctable"
	"github.com/antimetal/erebusd/pkg/property"
	"github.com/go-logr/logr"
)

// Default reap timeouts, per spec.md §4.6.
const (
	DefaultSessionTimeout = time.Hour
	DefaultStreamTimeout  = 60 * time.Second
)

var (
	ErrSessionNotFound = errors.New("session: session not found")
	ErrStreamNotFound  = errors.New("session: stream not found")
)

// Session is a client-scoped container: a monotonic id, a last-touched
// timestamp, a lazily-created process-list collector, and the set of
// streams currently open on it.
type Session struct {
	ID uint64

	mu        sync.Mutex
	touched   time.Time
	collector *proctable.Collector
	globals   *proctable.GlobalsCollector
	streams   map[uint64]*Stream
	nextUp    uint64
}

func newSession(id uint64) *Session {
	return &Session{
		ID:      id,
		touched: time.Now(),
		streams: make(map[uint64]*Stream),
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.touched = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.touched)
}

// collectorFor lazily creates the session's ProcessListCollector and
// GlobalsCollector on first use, matching spec.md §3's Session lifecycle
// note ("owned ProcessListCollector, created lazily on first
// process-diff stream").
func (s *Session) collectorFor(reader proctable.Reader, log logr.Logger) (*proctable.Collector, *proctable.GlobalsCollector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collector == nil {
		s.collector = proctable.NewCollector(reader, log)
		s.globals = proctable.NewGlobalsCollector(reader)
	}
	return s.collector, s.globals
}

// Manager holds the ordered session table, guarded by a reader-writer
// lock, plus the monotonic session-id counter. Stale sweep is invoked only
// from DeleteSession and EndStream, never on a timer — a caller MAY wire
// Sweep to a ticker for additional hardening (spec.md §9, cmd/erebusd
// does this).
type Manager struct {
	mu             sync.RWMutex
	sessions       map[uint64]*Session
	nextSession    uint64
	sessionTimeout time.Duration
	streamTimeout  time.Duration
	log            logr.Logger
}

// NewManager constructs a Manager with the spec's default timeouts.
func NewManager(log logr.Logger) *Manager {
	return &Manager{
		sessions:       make(map[uint64]*Session),
		sessionTimeout: DefaultSessionTimeout,
		streamTimeout:  DefaultStreamTimeout,
		log:            log.WithName("session"),
	}
}

// AllocateSession bumps the monotonic counter, inserts a new Session, and
// returns its id.
func (m *Manager) AllocateSession() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSession++
	id := m.nextSession
	m.sessions[id] = newSession(id)
	return id
}

// GetSession looks up a session under the read lock and touches it.
func (m *Manager) GetSession(id uint64) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// DeleteSession removes a session and then runs the stale-session sweep.
func (m *Manager) DeleteSession(id uint64) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	m.dropStaleSessions()
}

func (m *Manager) dropStaleSessions() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.idleFor(now) > m.sessionTimeout {
			m.log.Info("reaping stale session", "sessionId", id)
			delete(m.sessions, id)
		}
	}
}

// Sweep is the optional hardening hook spec.md §9 anticipates: a caller
// (cmd/erebusd wires a 5-minute ticker to it) may invoke it to bound
// table growth from a client that never calls DeleteSession/EndStream.
func (m *Manager) Sweep() {
	m.dropStaleSessions()
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()
	for _, s := range sessions {
		m.dropStaleStreams(s)
	}
}

func (m *Manager) dropStaleStreams(s *Session) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.streams {
		if now.Sub(st.touched) > m.streamTimeout {
			m.log.Info("reaping stale stream", "sessionId", s.ID, "streamId", id)
			delete(s.streams, id)
		}
	}
}

// EndStream erases a stream from its session and runs the stale-stream
// sweep.
func (m *Manager) EndStream(sessionID, streamID uint64) error {
	s, err := m.GetSession(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.streams, streamID)
	s.mu.Unlock()
	m.dropStaleStreams(s)
	return nil
}

// Next looks up a stream under the session's mutex, touches it, releases
// the lock, and then runs the (potentially long) generation step.
func (m *Manager) Next(sessionID, streamID uint64) (property.Bag, error) {
	s, err := m.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	st, ok := s.streams[streamID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrStreamNotFound
	}
	st.touched = time.Now()
	s.mu.Unlock()

	return st.next()
}
