package audit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "linechat").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("audit: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("audit: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "linechat",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("audit: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// EnsureSchema creates the schema and the session_events table if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	events := pgIdent(s.schema, "session_events")

	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{s.schema}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + events + ` (
		   id         TEXT PRIMARY KEY,
		   kind       TEXT NOT NULL CHECK (kind IN ('join', 'leave')),
		   session_id TEXT NOT NULL,
		   name       TEXT NOT NULL,
		   remote     TEXT NOT NULL DEFAULT '',
		   at         TIMESTAMPTZ NOT NULL
		 )`,
		`CREATE INDEX IF NOT EXISTS session_events_at_idx ON ` + events + ` (at DESC, id DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("audit: ensure schema: %w", err)
		}
	}
	return nil
}

// Append inserts ev; a duplicate id is ignored.
func (s *PostgresStore) Append(ctx context.Context, ev Event) error {
	if s == nil || s.pool == nil {
		return errors.New("audit: nil store")
	}
	if ev.ID == "" || ev.SessionID == "" {
		return errors.New("audit: invalid event")
	}

	events := pgIdent(s.schema, "session_events")
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+events+` (id, kind, session_id, name, remote, at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, string(ev.Kind), ev.SessionID, ev.Name, ev.Remote, ev.At,
	); err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("audit: nil store")
	}
	limit = clampLimit(limit)

	events := pgIdent(s.schema, "session_events")
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, session_id, name, remote, at
		   FROM `+events+`
		  ORDER BY at DESC, id DESC
		  LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0, limit)
	for rows.Next() {
		var (
			ev   Event
			kind string
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.SessionID, &ev.Name, &ev.Remote, &ev.At); err != nil {
			return nil, err
		}
		ev.Kind = Kind(kind)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}
