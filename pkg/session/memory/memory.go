// Package memory provides an in-memory session.Store for tests and single
// process deployments. Sessions are lost when the process restarts. Optional
// LRU eviction bounds memory usage and an optional TTL expires idle sessions.
package memory

import (
	"container/list"
	"context"
	"maps"
	"sync"
	"time"

	"github.com/rhuss/gantry/pkg/session"
)

type entry struct {
	id        string
	values    map[string]string
	createdAt time.Time
	updatedAt time.Time
	lruElem   *list.Element
}

// Store is an in-memory session store with optional LRU eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	maxSize int        // 0 = unlimited
	ttl     time.Duration
	now     func() time.Time
}

var _ session.Store = (*Store)(nil)

// New creates a memory store. A maxSize of 0 grows without limit; a ttl of
// 0 never expires sessions.
func New(maxSize int, ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Name implements session.Store.
func (s *Store) Name() string { return "memory" }

// Load returns the session stored under id and marks it recently used.
func (s *Store) Load(ctx context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	if s.expired(e) {
		s.remove(e)
		return nil, session.ErrNotFound
	}

	s.lruList.MoveToFront(e.lruElem)
	return session.Restore(e.id, maps.Clone(e.values), e.createdAt, e.updatedAt), nil
}

// Save stores the session, evicting the least recently used entry when the
// store is full. The returned token is the session id.
func (s *Store) Save(ctx context.Context, sess *session.Session) (string, error) {
	if sess == nil || sess.ID == "" {
		return "", session.ErrInvalidSession
	}

	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[sess.ID]; ok {
		e.values = sess.Values()
		e.updatedAt = now
		s.lruList.MoveToFront(e.lruElem)
	} else {
		if s.maxSize > 0 && len(s.entries) >= s.maxSize {
			s.evictOldest()
		}
		s.entries[sess.ID] = &entry{
			id:        sess.ID,
			values:    sess.Values(),
			createdAt: sess.CreatedAt,
			updatedAt: now,
			lruElem:   s.lruList.PushFront(sess.ID),
		}
	}

	sess.MarkSaved(now)
	return sess.ID, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		s.remove(e)
	}
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// HealthCheck always succeeds.
func (s *Store) HealthCheck(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) expired(e *entry) bool {
	return s.ttl > 0 && s.now().Sub(e.updatedAt) > s.ttl
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	s.remove(s.entries[back.Value.(string)])
}

// Must be called with s.mu held.
func (s *Store) remove(e *entry) {
	s.lruList.Remove(e.lruElem)
	delete(s.entries, e.id)
}
