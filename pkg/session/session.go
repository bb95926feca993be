// Package session keeps per-client state across requests. The middleware
// resolves the session cookie through a Store and publishes the session id
// in the request environment, where the CSRF protection derives its token
// from it.
package session

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for session stores.
var (
	// ErrNotFound is returned when a token does not resolve to a live session.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidSession is returned when a session cannot be saved.
	ErrInvalidSession = errors.New("invalid session")
)

// Session is the state kept for one client.
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	// New is true until the session has been saved once.
	New bool

	mu     sync.RWMutex
	values map[string]string
	dirty  bool
}

// New creates an unsaved session with a random id.
func New() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
		New:       true,
		values:    make(map[string]string),
	}
}

// Restore rebuilds a session loaded from a store.
func Restore(id string, values map[string]string, created, updated time.Time) *Session {
	if values == nil {
		values = make(map[string]string)
	}
	return &Session{
		ID:        id,
		CreatedAt: created,
		UpdatedAt: updated,
		values:    values,
	}
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value and marks the session as modified.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.dirty = true
}

// Delete removes key from the session.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// Values returns a copy of all session values.
func (s *Session) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Len returns the number of stored values.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Modified reports whether values changed since the session was loaded.
func (s *Session) Modified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// MarkSaved clears the modified and new flags and stamps UpdatedAt.
// Stores call it after persisting the session.
func (s *Session) MarkSaved(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
	s.New = false
	s.UpdatedAt = at
}

// Store persists sessions.
//
// Load resolves the token carried by the session cookie. Save persists the
// session and returns the token the cookie must carry from now on. For
// server-side stores the token is the session id; stateless stores return
// an encoded form of the whole session.
type Store interface {
	Name() string
	Load(ctx context.Context, token string) (*Session, error)
	Save(ctx context.Context, s *Session) (string, error)
	Delete(ctx context.Context, token string) error
	HealthCheck(ctx context.Context) error
	Close() error
}
