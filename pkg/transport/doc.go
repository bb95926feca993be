// Package transport defines the handler interfaces and middleware chain for
// the gantry request pipeline.
//
// A request enters the pipeline as an Env, a mutable per-request record of
// the request metadata (method, path, headers, body stream). The Env is
// pushed through an ordered chain of middleware until it reaches the
// terminal handler (usually the dispatcher), which produces a Response. The
// Response then unwinds back through the same middleware, each of which may
// post-process it, to the adapter that serializes it to the wire.
//
// # Handler Interfaces
//
//   - Handler maps an Env to a Response. It is the only required contract.
//   - Deferrer is optional. It answers whether a request should bypass
//     normal dispatch (adapters use it to move long-running requests off
//     their main worker pool).
//
// # Middleware
//
// Middleware is a factory that wraps an inner Handler. Chains are built
// once at boot with a Builder, which folds the registered factories so the
// first one registered is the outermost wrapper. The composed chain is
// immutable and safe to share across concurrent requests.
//
// Struct middleware embeds Base to get the default behaviour: delegate
// Handle unchanged, and answer IsDeferred from an optional path pattern
// before asking the inner handler.
//
// # Errors
//
// Intermediate middleware propagate errors unchanged. Application is the
// single boundary that converts any error (or panic) into a 500 response
// carrying the error message and a stack trace.
//
// # Bodies
//
// Response bodies come in three shapes: Buffered, Chunked and Producer.
// All three implement Body, so writers only deal with one chunk-emission
// contract, and each is closed exactly once after it has been written.
package transport
