package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autobrr/autobrr-sub001/model"
)

// PgSchema creates the sessions table. Migrate applies it.
const PgSchema = `
CREATE TABLE IF NOT EXISTS form_sessions (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	screen     TEXT NOT NULL,
	version    INTEGER NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS form_sessions_expires_at_idx ON form_sessions (expires_at);
`

// PgSessionStore is a PostgreSQL-backed SessionStore using pgx/v5. The
// session body is stored as JSON; the columns beside it serve lookups and
// locking.
type PgSessionStore struct {
	pool *pgxpool.Pool
}

// NewPgSessionStore creates a PostgreSQL session store.
func NewPgSessionStore(pool *pgxpool.Pool) *PgSessionStore {
	return &PgSessionStore{pool: pool}
}

// Migrate creates the table if needed.
func (s *PgSessionStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, PgSchema); err != nil {
		return fmt.Errorf("migrate form_sessions: %w", err)
	}
	return nil
}

// Create inserts a new session.
func (s *PgSessionStore) Create(ctx context.Context, sess model.FormSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO form_sessions (id, owner, screen, version, data, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, sess.Owner, sess.Screen, sess.Version, data,
		sess.CreatedAt, sess.UpdatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get retrieves a session scoped to owner.
func (s *PgSessionStore) Get(ctx context.Context, owner, id string) (model.FormSession, error) {
	var (
		data    []byte
		version int
	)
	err := s.pool.QueryRow(ctx, `
		SELECT data, version FROM form_sessions
		WHERE id = $1 AND owner = $2`,
		id, owner,
	).Scan(&data, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.FormSession{}, model.NewSessionNotFoundError(id)
	}
	if err != nil {
		return model.FormSession{}, fmt.Errorf("query session: %w", err)
	}
	return decodeSession(data, version)
}

// Update persists a session with optimistic locking.
func (s *PgSessionStore) Update(ctx context.Context, sess model.FormSession) error {
	next := sess
	next.Version++
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE form_sessions SET
			data = $1,
			version = $2,
			updated_at = $3,
			expires_at = $4
		WHERE id = $5 AND owner = $6 AND version = $7`,
		data, next.Version, sess.UpdatedAt, sess.ExpiresAt,
		sess.ID, sess.Owner, sess.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM form_sessions WHERE id = $1 AND owner = $2)`,
		sess.ID, sess.Owner,
	).Scan(&exists); err != nil {
		return fmt.Errorf("query session: %w", err)
	}
	if !exists {
		return model.NewSessionNotFoundError(sess.ID)
	}
	return model.NewConflictError(
		fmt.Sprintf("session %q version conflict (expected %d)", sess.ID, sess.Version),
	)
}

// Delete removes a session.
func (s *PgSessionStore) Delete(ctx context.Context, owner, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM form_sessions WHERE id = $1 AND owner = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewSessionNotFoundError(id)
	}
	return nil
}

// FindExpired returns sessions past their expiration time.
func (s *PgSessionStore) FindExpired(ctx context.Context, cutoff time.Time) ([]model.FormSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data, version FROM form_sessions
		WHERE expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.FormSession
	for rows.Next() {
		var (
			data    []byte
			version int
		)
		if err := rows.Scan(&data, &version); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess, err := decodeSession(data, version)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// HealthCheck pings the pool.
func (s *PgSessionStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func decodeSession(data []byte, version int) (model.FormSession, error) {
	var sess model.FormSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return model.FormSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	sess.InitialValues = model.NewValues(sess.InitialValues)
	sess.CurrentValues = model.NewValues(sess.CurrentValues)
	sess.Version = version
	return sess, nil
}
