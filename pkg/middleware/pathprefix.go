package middleware

import (
	"context"
	"strings"

	"github.com/rhuss/gantry/pkg/debug"
	"github.com/rhuss/gantry/pkg/transport"
)

// pathPrefix strips a mount prefix before the inner layers see the path.
type pathPrefix struct {
	transport.Base
	prefix string
}

// PathPrefix returns middleware that removes prefix from the start of the
// request path. An empty remainder becomes "/". Paths that do not start
// with prefix are left alone. The stripped prefix is appended to
// SCRIPT_NAME, and a request is stripped at most once.
func PathPrefix(prefix string) transport.Middleware {
	prefix = strings.TrimSuffix(prefix, "/")
	return func(next transport.Handler) transport.Handler {
		if prefix == "" {
			return next
		}
		return &pathPrefix{Base: transport.Base{Next: next}, prefix: prefix}
	}
}

func (p *pathPrefix) Handle(ctx context.Context, env transport.Env) (*transport.Response, error) {
	script := env.String(transport.KeyScriptName)
	if !strings.HasSuffix(script, p.prefix) {
		if path, ok := StripPrefix(env.Path(), p.prefix); ok {
			debug.Log("chain", "stripped path prefix", "prefix", p.prefix, "path", path)
			env.SetPath(path)
			env[transport.KeyScriptName] = script + p.prefix
		}
	}
	return p.Next.Handle(ctx, env)
}

// StripPrefix removes prefix from path. It reports false, returning path
// unchanged, when path does not start with prefix.
func StripPrefix(path, prefix string) (string, bool) {
	if prefix == "" || !strings.HasPrefix(path, prefix) {
		return path, false
	}
	rest := path[len(prefix):]
	if rest == "" {
		rest = "/"
	}
	return rest, true
}
