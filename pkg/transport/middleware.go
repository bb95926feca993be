package transport

import "fmt"

// Middleware wraps a Handler to add cross-cutting behavior.
// Middleware is applied in order: the first middleware in the chain is
// the outermost wrapper (executes first on the way in, last on the way out).
type Middleware func(Handler) Handler

// Chain composes multiple middleware into a single middleware.
// Middleware are applied in order: Chain(a, b, c) produces a(b(c(handler))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

type builderEntry struct {
	name string
	mw   Middleware
}

// Builder collects named middleware factories at boot and folds them into
// one composed Handler. The registration order is the request order.
type Builder struct {
	entries []builderEntry
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Use appends a named middleware factory. Nil factories are ignored so
// optional middleware can be registered unconditionally.
func (b *Builder) Use(name string, mw Middleware) *Builder {
	if mw == nil {
		return b
	}
	b.entries = append(b.entries, builderEntry{name: name, mw: mw})
	return b
}

// Names returns the registered middleware names, outermost first.
func (b *Builder) Names() []string {
	names := make([]string, len(b.entries))
	for i, e := range b.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of registered middleware.
func (b *Builder) Len() int { return len(b.entries) }

// Build folds the registered middleware around terminal. The Builder can
// be reused; every call produces an independent chain.
func (b *Builder) Build(terminal Handler) (Handler, error) {
	if terminal == nil {
		return nil, fmt.Errorf("building chain: terminal handler is nil")
	}
	h := terminal
	for i := len(b.entries) - 1; i >= 0; i-- {
		e := b.entries[i]
		h = e.mw(h)
		if h == nil {
			return nil, fmt.Errorf("building chain: middleware %q returned a nil handler", e.name)
		}
	}
	return h, nil
}

// String renders the chain structure, e.g. "a -> b -> <terminal>".
func (b *Builder) String() string {
	s := ""
	for _, e := range b.entries {
		s += e.name + " -> "
	}
	return s + "<terminal>"
}
