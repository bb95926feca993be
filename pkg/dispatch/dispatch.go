// Package dispatch provides the terminal handler of the pipeline: it
// resolves the request path and method to a registered action.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/mux"

	"github.com/rhuss/gantry/pkg/debug"
	"github.com/rhuss/gantry/pkg/transport"
)

// Action handles a routed request. Route parameters are available
// through env.RouteParams().
type Action = transport.HandlerFunc

// Dispatcher is the terminal transport.Handler. Routes are matched with
// a gorilla/mux route table; a path match with the wrong method answers
// 405, no match answers 404.
type Dispatcher struct {
	mu      sync.RWMutex
	router  *mux.Router
	actions map[*mux.Route]Action
	names   []string
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		router:  mux.NewRouter(),
		actions: make(map[*mux.Route]Action),
	}
}

// Route registers action for method and pattern. Patterns use mux
// syntax: "/users/{id}" or "/files/{path:.*}". An empty method matches
// every method; a GET route also answers HEAD.
func (d *Dispatcher) Route(method, pattern string, action Action) error {
	if action == nil {
		return fmt.Errorf("route %s %s: nil action", method, pattern)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	route := d.router.NewRoute().Path(pattern)
	switch method {
	case "":
	case http.MethodGet:
		route = route.Methods(http.MethodGet, http.MethodHead)
	default:
		route = route.Methods(method)
	}
	if err := route.GetError(); err != nil {
		return fmt.Errorf("route %s %s: %w", method, pattern, err)
	}
	d.actions[route] = action
	d.names = append(d.names, method+" "+pattern)
	return nil
}

// Get registers a GET action.
func (d *Dispatcher) Get(pattern string, action Action) error {
	return d.Route(http.MethodGet, pattern, action)
}

// Post registers a POST action.
func (d *Dispatcher) Post(pattern string, action Action) error {
	return d.Route(http.MethodPost, pattern, action)
}

// Routes lists the registered routes in registration order.
func (d *Dispatcher) Routes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.names...)
}

// Handle implements transport.Handler. Unmatched requests yield an
// HTTPError for the boundary to render.
func (d *Dispatcher) Handle(ctx context.Context, env transport.Env) (*transport.Response, error) {
	req := &http.Request{
		Method: env.Method(),
		URL:    &url.URL{Path: env.Path(), RawQuery: env.QueryString()},
		Host:   env.String("HTTP_HOST"),
		Header: http.Header{},
	}

	d.mu.RLock()
	var match mux.RouteMatch
	matched := d.router.Match(req, &match)
	action := d.actions[match.Route]
	d.mu.RUnlock()

	switch {
	case matched && action != nil:
		debug.Log("dispatch", "route matched", "method", req.Method, "path", req.URL.Path)
		if len(match.Vars) > 0 {
			env[transport.KeyRouteParams] = match.Vars
		}
		return action(ctx, env)
	case errors.Is(match.MatchErr, mux.ErrMethodMismatch):
		debug.Log("dispatch", "method not allowed", "method", req.Method, "path", req.URL.Path)
		return nil, transport.NewHTTPError(http.StatusMethodNotAllowed, "")
	default:
		debug.Log("dispatch", "no route", "method", req.Method, "path", req.URL.Path)
		return nil, transport.NewHTTPError(http.StatusNotFound, "")
	}
}

// Echo responds with the request path. It is the smallest useful action
// and serves smoke tests.
func Echo(ctx context.Context, env transport.Env) (*transport.Response, error) {
	return transport.TextResponse(http.StatusOK, env.Path()), nil
}
