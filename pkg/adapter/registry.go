package adapter

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	// ErrRegistryFrozen is returned by Register after Freeze.
	ErrRegistryFrozen = errors.New("adapter registry is frozen")

	// ErrDuplicateAdapter is returned when an identifier is registered twice.
	ErrDuplicateAdapter = errors.New("adapter already registered")

	// ErrUnknownAdapter is returned by Lookup for unregistered identifiers.
	ErrUnknownAdapter = errors.New("unknown adapter")
)

// Registry maps adapter identifiers to factories. It is written during
// boot and read-only after Freeze; lookups on a frozen registry take no
// lock.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	frozen    atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds every id to factory. Several ids may alias one backend.
// Either all ids are registered or none.
func (r *Registry) Register(factory Factory, ids ...string) error {
	if factory == nil {
		return fmt.Errorf("registering %v: nil factory", ids)
	}
	if len(ids) == 0 {
		return fmt.Errorf("registering adapter: no identifiers")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return ErrRegistryFrozen
	}
	for _, id := range ids {
		if _, ok := r.factories[id]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateAdapter, id)
		}
	}
	for _, id := range ids {
		r.factories[id] = factory
	}
	return nil
}

// MustRegister is Register that panics on error. Used for built-in
// backends where a failure is a programming error.
func (r *Registry) MustRegister(factory Factory, ids ...string) {
	if err := r.Register(factory, ids...); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool { return r.frozen.Load() }

// Lookup instantiates the adapter registered under id.
func (r *Registry) Lookup(id string) (Adapter, error) {
	var (
		factory Factory
		ok      bool
	)
	if r.frozen.Load() {
		factory, ok = r.factories[id]
	} else {
		r.mu.Lock()
		factory, ok = r.factories[id]
		r.mu.Unlock()
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownAdapter, id, r.IDs())
	}
	return factory(), nil
}

// IDs returns every registered identifier, sorted.
func (r *Registry) IDs() []string {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aliases groups identifiers by the canonical backend name.
func (r *Registry) Aliases() map[string][]string {
	out := make(map[string][]string)
	for _, id := range r.IDs() {
		a, err := r.Lookup(id)
		if err != nil {
			continue
		}
		out[a.Name()] = append(out[a.Name()], id)
	}
	return out
}
