// Package middleware contains the request pipeline's built-in layers.
//
// Each constructor returns a transport.Middleware. Layers that need the
// default deferral behaviour embed transport.Base, so IsDeferred keeps
// reaching the inner handlers. Register them on a transport.Builder in
// request order: the first registered layer sees the request first.
package middleware
