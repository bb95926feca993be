package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhuss/gantry/pkg/debug"
	"github.com/rhuss/gantry/pkg/observability"
	"github.com/rhuss/gantry/pkg/transport"
)

// DefaultCookieName is the cookie carrying the session token.
const DefaultCookieName = "_session_id"

// Config controls the session cookie.
type Config struct {
	CookieName string
	Path       string
	Domain     string

	// MaxAge is the cookie lifetime. Zero gives a browser-session cookie.
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if c.SameSite == 0 {
		c.SameSite = http.SameSiteLaxMode
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// FromEnv returns the session attached to the request, if any.
func FromEnv(env transport.Env) *Session {
	s, _ := env[transport.KeySession].(*Session)
	return s
}

// Middleware returns middleware that attaches a session to every request.
// The session is loaded from the cookie token or created fresh, exposed
// under the session keys of the Env, and saved after the inner handler
// succeeds. A Set-Cookie header is added whenever the token changes.
func Middleware(store Store, cfg Config) transport.Middleware {
	cfg.defaults()
	return func(next transport.Handler) transport.Handler {
		return transport.Wrap(next, func(ctx context.Context, env transport.Env) (*transport.Response, error) {
			token := cookieValue(env.Header("Cookie"), cfg.CookieName)

			sess, err := load(ctx, store, token)
			if err != nil {
				return nil, err
			}
			if sess.New {
				cfg.Logger.Debug("session created", "store", store.Name(), "session_id", sess.ID)
			} else {
				debug.Log("session", "session resumed", "store", store.Name(), "session_id", sess.ID)
			}

			env[transport.KeySessionID] = sess.ID
			env[transport.KeySession] = sess

			resp, err := next.Handle(ctx, env)
			if err != nil || resp == nil {
				return resp, err
			}

			created := sess.New
			saved, err := store.Save(ctx, sess)
			if err != nil {
				if resp.Body != nil {
					resp.Body.Close()
				}
				return nil, fmt.Errorf("saving session: %w", err)
			}
			if created {
				observability.SessionsCreatedTotal.WithLabelValues(store.Name()).Inc()
			}

			if saved != token {
				if resp.Header == nil {
					resp.Header = transport.NewHeader()
				}
				resp.Header.Add("Set-Cookie", cfg.cookie(saved).String())
			}
			return resp, nil
		})
	}
}

func load(ctx context.Context, store Store, token string) (*Session, error) {
	if token == "" {
		return New(), nil
	}
	sess, err := store.Load(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

func (c Config) cookie(value string) *http.Cookie {
	ck := &http.Cookie{
		Name:     c.CookieName,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: c.SameSite,
	}
	if c.MaxAge > 0 {
		ck.MaxAge = int(c.MaxAge.Seconds())
		ck.Expires = time.Now().Add(c.MaxAge).UTC()
	}
	return ck
}

// cookieValue extracts the named cookie from a Cookie request header.
func cookieValue(header, name string) string {
	if header == "" {
		return ""
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		// ParseCookie rejects the whole header on one bad pair.
		for _, c := range (&http.Request{Header: http.Header{"Cookie": {header}}}).Cookies() {
			if c.Name == name {
				return c.Value
			}
		}
		return ""
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
