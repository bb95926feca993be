// Package postgres provides a PostgreSQL implementation of session.Store.
// It uses pgx/v5 for connection pooling and a JSONB column for the
// session values.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/gantry/pkg/session"
)

// Store is a PostgreSQL-backed session store.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

var _ session.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, ttl: cfg.TTL}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Name implements session.Store.
func (s *Store) Name() string { return "postgres" }

// Load fetches a session by id. Sessions older than the TTL are treated as
// missing.
func (s *Store) Load(ctx context.Context, id string) (*session.Session, error) {
	var (
		data             []byte
		created, updated time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT data, created_at, updated_at FROM sessions WHERE id = $1`,
		id,
	).Scan(&data, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if s.ttl > 0 && time.Since(updated) > s.ttl {
		return nil, session.ErrNotFound
	}

	values := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("decoding session %s: %w", id, err)
		}
	}

	return session.Restore(id, values, created.UTC(), updated.UTC()), nil
}

// Save upserts the session row. The returned token is the session id.
func (s *Store) Save(ctx context.Context, sess *session.Session) (string, error) {
	if sess == nil || sess.ID == "" {
		return "", session.ErrInvalidSession
	}

	data, err := json.Marshal(sess.Values())
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		sess.ID, data, sess.CreatedAt, now,
	)
	if err != nil {
		return "", fmt.Errorf("saving session: %w", err)
	}

	sess.MarkSaved(now)
	return sess.ID, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions last saved before the cutoff and returns
// how many were removed.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
