package shell

import (
	"context"
	"time"

	"github.com/autobrr/autobrr-sub001/model"
)

// SessionStore persists form sessions.
type SessionStore interface {
	// Create persists a new session.
	Create(ctx context.Context, s model.FormSession) error

	// Get retrieves a session by ID, scoped to its owner. Returns
	// SESSION_NOT_FOUND if it doesn't exist or belongs to someone else.
	Get(ctx context.Context, owner, id string) (model.FormSession, error)

	// Update persists a session with optimistic locking. s.Version must
	// match the stored version; the stored version is then incremented.
	// Returns CONFLICT on a version mismatch and SESSION_NOT_FOUND when the
	// session is gone.
	Update(ctx context.Context, s model.FormSession) error

	// Delete removes a session. Returns SESSION_NOT_FOUND if absent.
	Delete(ctx context.Context, owner, id string) error

	// FindExpired returns sessions whose expires_at is before cutoff.
	FindExpired(ctx context.Context, cutoff time.Time) ([]model.FormSession, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}
