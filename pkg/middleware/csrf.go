package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"regexp"

	"github.com/rhuss/gantry/pkg/debug"
	"github.com/rhuss/gantry/pkg/observability"
	"github.com/rhuss/gantry/pkg/transport"
)

// TokenField is the form field carrying the CSRF token.
const TokenField = "csrf_authentication_token"

// ForbiddenBody is the fixed body of a rejected POST.
const ForbiddenBody = `<html><head><title>403 Forbidden</title></head>` +
	`<body><h1>Forbidden</h1><p>Request forgery protection: the authentication token is missing or invalid.</p></body></html>`

// postFormPattern matches an opening form tag whose method is POST.
var postFormPattern = regexp.MustCompile(`(?i)<form\b[^>]*\bmethod\s*=\s*(?:"post"|'post'|post\b)[^>]*>`)

// htmlTypes are the response media types that get tokens injected.
var htmlTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
}

type csrf struct {
	transport.Base
	secret []byte
}

// CSRF returns middleware protecting POST requests with a token derived
// from secret and the session id.
//
// GET responses with an HTML content type get a hidden token field after
// every POST form tag. POST requests whose token field does not match are
// answered with 403 and ForbiddenBody before reaching the inner layers:
// the action behind a forged POST never runs, so its side effects can not
// happen even though the response would be replaced anyway.
//
// The token is deterministic per session: it carries no per-request nonce.
func CSRF(secret string, logger *slog.Logger) transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return &csrf{
			Base:   transport.Base{Next: next, Logger: logger},
			secret: []byte(secret),
		}
	}
}

// Token returns the CSRF token for sessionID.
func Token(secret, sessionID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *csrf) Handle(ctx context.Context, env transport.Env) (*transport.Response, error) {
	token := Token(string(c.secret), env.SessionID())

	switch env.Method() {
	case http.MethodPost:
		if !c.verify(env, token) {
			observability.CSRFRejectionsTotal.Inc()
			if c.Logger != nil {
				c.Logger.Warn("csrf token rejected",
					slog.String("path", env.Path()),
					slog.String("request_id", env.RequestID()),
				)
			}
			return transport.HTMLResponse(http.StatusForbidden, ForbiddenBody), nil
		}
		return c.Next.Handle(ctx, env)

	case http.MethodGet:
		resp, err := c.Next.Handle(ctx, env)
		if err != nil || resp == nil || !isHTML(resp.Header.Get("Content-Type")) {
			return resp, err
		}
		body, err := transport.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("buffering html body for token injection: %w", err)
		}
		injected, n := InjectToken(body, token)
		debug.Log("csrf", "injected token", "path", env.Path(), "forms", n)
		resp.Body = transport.BytesBody(injected)
		resp.Header.Del("Content-Length")
		return resp, nil
	}

	return c.Next.Handle(ctx, env)
}

func (c *csrf) verify(env transport.Env, want string) bool {
	form, err := env.Form()
	if err != nil {
		debug.Log("csrf", "form not parseable", "error", err)
		return false
	}
	got := form.Get(TokenField)
	if got == "" {
		return false
	}
	return hmac.Equal([]byte(got), []byte(want))
}

// InjectToken inserts a hidden token input directly after every opening
// POST form tag in html and returns the new document with the number of
// forms changed.
func InjectToken(html []byte, token string) ([]byte, int) {
	field := []byte(fmt.Sprintf(`<input type="hidden" name="%s" value="%s"/>`, TokenField, token))
	count := 0
	out := postFormPattern.ReplaceAllFunc(html, func(tag []byte) []byte {
		count++
		res := make([]byte, 0, len(tag)+len(field))
		res = append(res, tag...)
		return append(res, field...)
	})
	return out, count
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return htmlTypes[mt]
}
