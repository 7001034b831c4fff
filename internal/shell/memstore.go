package shell

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/autobrr/autobrr-sub001/model"
)

// MemorySessionStore keeps sessions in process. Sessions are deep-copied in
// and out so callers never share value trees with the store.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]model.FormSession
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]model.FormSession)}
}

// Create persists a new session.
func (s *MemorySessionStore) Create(_ context.Context, sess model.FormSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("session %q already exists", sess.ID))
	}
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// Get retrieves a session scoped to owner.
func (s *MemorySessionStore) Get(_ context.Context, owner, id string) (model.FormSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[id]
	if !exists || sess.Owner != owner {
		return model.FormSession{}, model.NewSessionNotFoundError(id)
	}
	return copySession(sess), nil
}

// Update persists a session with optimistic locking.
func (s *MemorySessionStore) Update(_ context.Context, sess model.FormSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.sessions[sess.ID]
	if !exists || existing.Owner != sess.Owner {
		return model.NewSessionNotFoundError(sess.ID)
	}
	if existing.Version != sess.Version {
		return model.NewConflictError(
			fmt.Sprintf("session %q version conflict (expected %d, got %d)", sess.ID, sess.Version, existing.Version),
		)
	}

	sess.Version++
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// Delete removes a session.
func (s *MemorySessionStore) Delete(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists || sess.Owner != owner {
		return model.NewSessionNotFoundError(id)
	}
	delete(s.sessions, id)
	return nil
}

// FindExpired returns sessions past their expiration, oldest first.
func (s *MemorySessionStore) FindExpired(_ context.Context, cutoff time.Time) ([]model.FormSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.FormSession
	for _, sess := range s.sessions {
		if sess.ExpiresAt == nil || !sess.ExpiresAt.Before(cutoff) {
			continue
		}
		result = append(result, copySession(sess))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(*result[j].ExpiresAt)
	})
	return result, nil
}

// HealthCheck always succeeds.
func (s *MemorySessionStore) HealthCheck(context.Context) error { return nil }

// Len returns the number of sessions. For testing.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func copySession(s model.FormSession) model.FormSession {
	s.InitialValues = s.InitialValues.Clone()
	s.CurrentValues = s.CurrentValues.Clone()
	s.FieldErrors = append([]model.FieldError(nil), s.FieldErrors...)
	if s.ExpiresAt != nil {
		exp := *s.ExpiresAt
		s.ExpiresAt = &exp
	}
	return s
}
