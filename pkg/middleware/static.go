package middleware

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/rhuss/gantry/pkg/debug"
	"github.com/rhuss/gantry/pkg/observability"
	"github.com/rhuss/gantry/pkg/transport"
)

// CachedPageSuffix is appended to the request path to find a cached page.
const CachedPageSuffix = ".html"

// faviconPattern matches requests answered with a bare 404 when no icon
// exists on disk.
var faviconPattern = regexp.MustCompile(`^/favicon\.ico$`)

// static serves files below root ahead of the dispatcher.
type static struct {
	transport.Base
	root string
}

// Static returns middleware serving files from root:
//
//  1. root+path when it is a readable regular file (GET and HEAD)
//  2. the cached page: "index.html" for "/", otherwise path+".html"
//     (GET and HEAD)
//  3. a fixed empty 404 for /favicon.ico, whatever the method
//  4. otherwise the request is delegated
//
// The filesystem is checked on every request.
func Static(root string) transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return &static{Base: transport.Base{Next: next}, root: root}
	}
}

func (s *static) Handle(ctx context.Context, env transport.Env) (*transport.Response, error) {
	reqPath := env.Path()

	if method := env.Method(); method == http.MethodGet || method == http.MethodHead {
		if resp := s.serveFile(reqPath); resp != nil {
			observability.StaticServedTotal.WithLabelValues("file").Inc()
			return resp, nil
		}

		cached := transport.NormalizePath(reqPath)
		if cached == "" {
			cached = "/index"
		}
		if resp := s.serveFile(cached + CachedPageSuffix); resp != nil {
			observability.StaticServedTotal.WithLabelValues("cached_page").Inc()
			return resp, nil
		}
	}

	if faviconPattern.MatchString(reqPath) {
		observability.StaticServedTotal.WithLabelValues("favicon").Inc()
		return transport.NewResponse(http.StatusNotFound, nil), nil
	}

	return s.Next.Handle(ctx, env)
}

// serveFile returns a response for the file at urlPath below root, or nil
// when it is missing, a directory or unreadable.
func (s *static) serveFile(urlPath string) *transport.Response {
	name := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+urlPath)))

	info, err := os.Stat(name)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	f, err := os.Open(name)
	if err != nil {
		debug.Log("static", "file not readable", "path", name, "error", err)
		return nil
	}
	debug.Log("static", "serving file", "path", name, "size", info.Size())

	resp := transport.NewResponse(http.StatusOK, transport.ReaderBody(f, info.Size()))
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	resp.Header.Set("Content-Type", ctype)
	resp.Header.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	resp.Header.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	return resp
}
