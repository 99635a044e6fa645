// Package session manages independent, concurrently runnable game process
// instances compiled from a shared declarative description — the multi-
// instance training model described for the simulation kernel, made
// concrete.
package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/griddy-sim/griddy/gdy"
	"github.com/griddy-sim/griddy/kernel/process"
)

var (
	// ErrSessionNotFound is returned by Get/Delete for an unknown session id.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionAlreadyExists is returned by Create when an explicit id
	// collides with a live session.
	ErrSessionAlreadyExists = errors.New("session: already exists")
)

// Session pairs one running GameProcess with its bookkeeping metadata.
type Session struct {
	ID              string
	DescriptionName string
	Process         *process.GameProcess
	CreatedAt       time.Time
	LastAccessedAt  time.Time
}

// Manager owns the set of live sessions. It is safe for concurrent use:
// multiple goroutines may create, fetch and delete distinct sessions
// simultaneously.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	descriptions *gdy.Manager
	persistence  SessionPersistence
}

// NewManager returns a manager with no persistence backing: sessions live
// only in memory.
func NewManager(descriptions *gdy.Manager) *Manager {
	return &Manager{sessions: make(map[string]*Session), descriptions: descriptions}
}

// NewManagerWithPersistence returns a manager that also restores sessions
// from the given persistence backend and saves each session to it when the
// session is created; later state changes are not written back.
func NewManagerWithPersistence(descriptions *gdy.Manager, persistence SessionPersistence) *Manager {
	return &Manager{sessions: make(map[string]*Session), descriptions: descriptions, persistence: persistence}
}

func newSessionID() (string, error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 4)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// Create compiles descriptionName's first level into a fresh GameProcess
// and registers a new session for it. If id is empty, a 4-character random
// id is generated; collisions are retried.
func (m *Manager) Create(id, descriptionName string, playerIDs []uint32) (*Session, error) {
	compiled, err := m.descriptions.Load(descriptionName)
	if err != nil {
		return nil, err
	}
	if len(compiled.Levels) == 0 {
		return nil, fmt.Errorf("session: description %q has no levels", descriptionName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		for i := 0; i < 10; i++ {
			candidate, err := newSessionID()
			if err != nil {
				return nil, err
			}
			if _, exists := m.sessions[candidate]; !exists {
				id = candidate
				break
			}
		}
		if id == "" {
			return nil, fmt.Errorf("session: could not generate a unique id")
		}
	} else if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionAlreadyExists, id)
	}

	proc := process.New(descriptionName, compiled.Factory, compiled.Table, compiled.Termination,
		process.WithGlobals(compiled.GlobalNames...))
	for _, pid := range playerIDs {
		if err := proc.AddPlayer(pid); err != nil {
			return nil, err
		}
	}
	if err := proc.Init(compiled.Levels[0]); err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{ID: id, DescriptionName: descriptionName, Process: proc, CreatedAt: now, LastAccessedAt: now}
	m.sessions[id] = sess
	if m.persistence != nil {
		_ = m.persistence.Save(sess)
	}
	return sess, nil
}

// Get returns a live session by id, touching its last-accessed timestamp.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.mu.Lock()
	sess.LastAccessedAt = time.Now()
	m.mu.Unlock()
	return sess, nil
}

// Delete removes a session. If persistence is configured, its backing
// record is removed too.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	if m.persistence != nil {
		_ = m.persistence.Delete(id)
	}
	return nil
}

// List returns every live session id.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// LoadPersisted restores every session found in the configured persistence
// backend into memory. Intended to be called once at startup. It is a no-op
// if no persistence backend is configured.
func (m *Manager) LoadPersisted() error {
	if m.persistence == nil {
		return nil
	}
	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("session: listing persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		sess, err := m.persistence.Load(id)
		if err != nil {
			return fmt.Errorf("session: restoring %s: %w", id, err)
		}
		m.sessions[id] = sess
	}
	return nil
}

// DeleteFromMemory removes a session from the in-memory map without
// touching its persisted record, for reconciling memory against a
// filesystem state that changed out from under the process.
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

// CleanupIdleSince deletes every session whose last access time is before
// cutoff, returning how many were removed. Intended to be run on a ticker.
func (m *Manager) CleanupIdleSince(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, sess := range m.sessions {
		if sess.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, id)
			if m.persistence != nil {
				_ = m.persistence.Delete(id)
			}
			removed++
		}
	}
	return removed
}
