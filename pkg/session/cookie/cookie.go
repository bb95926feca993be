// Package cookie provides a stateless session.Store. The whole session
// travels in the cookie as an HS256-signed JWT, so the server keeps no
// state and a client cannot forge or alter its session.
package cookie

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/gantry/pkg/session"
)

// ErrSecretRequired is returned by New when no signing secret is given.
var ErrSecretRequired = errors.New("cookie session store requires a secret")

const issuer = "gantry"

// claims is the JWT payload of a session cookie.
type claims struct {
	jwtlib.RegisteredClaims
	Created int64             `json:"ctd"`
	Values  map[string]string `json:"val,omitempty"`
}

// Store signs and verifies session cookies.
type Store struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ session.Store = (*Store)(nil)

// New creates a cookie store signing with secret. A positive ttl sets the
// token expiry; zero issues tokens without one.
func New(secret []byte, ttl time.Duration) (*Store, error) {
	if len(secret) == 0 {
		return nil, ErrSecretRequired
	}
	return &Store{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Name implements session.Store.
func (s *Store) Name() string { return "cookie" }

// Load verifies the token and rebuilds the session from its claims. Any
// token that fails verification is reported as session.ErrNotFound.
func (s *Store) Load(ctx context.Context, token string) (*session.Session, error) {
	var c claims
	parsed, err := jwtlib.ParseWithClaims(token, &c, func(t *jwtlib.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		slog.Debug("session cookie rejected", "error", err)
		return nil, session.ErrNotFound
	}
	if c.ID == "" {
		return nil, session.ErrNotFound
	}

	var updated time.Time
	if c.IssuedAt != nil {
		updated = c.IssuedAt.Time.UTC()
	}
	return session.Restore(c.ID, c.Values, time.Unix(c.Created, 0).UTC(), updated), nil
}

// Save signs the session into a fresh token.
func (s *Store) Save(ctx context.Context, sess *session.Session) (string, error) {
	if sess == nil || sess.ID == "" {
		return "", session.ErrInvalidSession
	}

	now := s.now().UTC()
	c := claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:       sess.ID,
			Issuer:   issuer,
			IssuedAt: jwtlib.NewNumericDate(now),
		},
		Created: sess.CreatedAt.Unix(),
		Values:  sess.Values(),
	}
	if s.ttl > 0 {
		c.ExpiresAt = jwtlib.NewNumericDate(now.Add(s.ttl))
	}

	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing session: %w", err)
	}

	sess.MarkSaved(now)
	return token, nil
}

// Delete is a no-op: the client holds the only copy.
func (s *Store) Delete(ctx context.Context, token string) error { return nil }

// HealthCheck always succeeds.
func (s *Store) HealthCheck(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
