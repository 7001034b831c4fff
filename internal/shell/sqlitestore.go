package shell

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/autobrr/autobrr-sub001/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS form_sessions (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	screen     TEXT NOT NULL,
	version    INTEGER NOT NULL,
	data       BLOB NOT NULL,
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS form_sessions_expires_at_idx ON form_sessions (expires_at);
`

// SQLiteSessionStore persists sessions in a single SQLite table, for
// single-binary deployments that want sessions to survive a restart.
// Expiry is stored as unix nanoseconds.
type SQLiteSessionStore struct {
	db *sql.DB
}

// OpenSQLiteSessionStore opens (or creates) the database at dsn, e.g.
// "file:sessions.db" or ":memory:", and applies the schema.
func OpenSQLiteSessionStore(dsn string) (*SQLiteSessionStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: an in-memory database is per connection, and SQLite
	// serialises writers anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create form_sessions table: %w", err)
	}
	return &SQLiteSessionStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteSessionStore) Close() error { return s.db.Close() }

// Create inserts a new session.
func (s *SQLiteSessionStore) Create(ctx context.Context, sess model.FormSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO form_sessions (id, owner, screen, version, data, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Owner, sess.Screen, sess.Version, data, unixNano(sess.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get retrieves a session scoped to owner.
func (s *SQLiteSessionStore) Get(ctx context.Context, owner, id string) (model.FormSession, error) {
	var (
		data    []byte
		version int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, version FROM form_sessions WHERE id = ? AND owner = ?`, id, owner,
	).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FormSession{}, model.NewSessionNotFoundError(id)
	}
	if err != nil {
		return model.FormSession{}, fmt.Errorf("query session: %w", err)
	}
	return decodeSession(data, version)
}

// Update persists a session with optimistic locking.
func (s *SQLiteSessionStore) Update(ctx context.Context, sess model.FormSession) error {
	next := sess
	next.Version++
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE form_sessions SET data = ?, version = ?, expires_at = ? WHERE id = ? AND owner = ? AND version = ?`,
		data, next.Version, unixNano(sess.ExpiresAt), sess.ID, sess.Owner, sess.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM form_sessions WHERE id = ? AND owner = ?`, sess.ID, sess.Owner,
	).Scan(&count); err != nil {
		return fmt.Errorf("query session: %w", err)
	}
	if count == 0 {
		return model.NewSessionNotFoundError(sess.ID)
	}
	return model.NewConflictError(
		fmt.Sprintf("session %q version conflict (expected %d)", sess.ID, sess.Version),
	)
}

// Delete removes a session.
func (s *SQLiteSessionStore) Delete(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM form_sessions WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NewSessionNotFoundError(id)
	}
	return nil
}

// FindExpired returns sessions past their expiration time.
func (s *SQLiteSessionStore) FindExpired(ctx context.Context, cutoff time.Time) ([]model.FormSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data, version FROM form_sessions
		 WHERE expires_at IS NOT NULL AND expires_at < ?
		 ORDER BY expires_at ASC`,
		cutoff.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

// HealthCheck pings the database.
func (s *SQLiteSessionStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func unixNano(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
