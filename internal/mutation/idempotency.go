package mutation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autobrr/autobrr-sub001/model"
)

// IdempotencyStore deduplicates repeated submits carrying the same
// idempotency key. Keys have the form "idem:{resource}:{key}".
type IdempotencyStore interface {
	// Check looks up a previous result. If the key exists with a different
	// input hash it returns a CONFLICT error.
	Check(ctx context.Context, key, inputHash string) (result *StoredResult, found bool, err error)

	// Store saves a successful result under key for ttl.
	Store(ctx context.Context, key, inputHash string, result StoredResult, ttl time.Duration) error
}

// StoredResult is the replayable part of a successful mutation.
type StoredResult struct {
	EntityID string       `json:"entity_id,omitempty"`
	Values   model.Values `json:"values,omitempty"`
	Message  string       `json:"message"`
}

type idempotencyEntry struct {
	InputHash string       `json:"input_hash"`
	Result    StoredResult `json:"result"`
}

// FormatIdempotencyKey builds the store key for a resource.
func FormatIdempotencyKey(resource, key string) string {
	return fmt.Sprintf("idem:%s:%s", resource, key)
}

// hashInput hashes the kind, target and payload of a request.
func hashInput(kind Kind, entityID string, values model.Values) string {
	data, _ := json.Marshal(struct {
		Kind   Kind         `json:"kind"`
		ID     string       `json:"id"`
		Values model.Values `json:"values"`
	}{kind, entityID, values})
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func conflict(key string) error {
	return model.NewConflictError(fmt.Sprintf("idempotency key %q already used with different input", key))
}

// --- MemoryIdempotencyStore ---

// MemoryIdempotencyStore keeps entries in process.
type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	now     func() time.Time
}

type memEntry struct {
	data      idempotencyEntry
	expiresAt time.Time
}

// NewMemoryIdempotencyStore creates an in-memory store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]*memEntry),
		now:     time.Now,
	}
}

// Check looks up a live entry.
func (s *MemoryIdempotencyStore) Check(_ context.Context, key, inputHash string) (*StoredResult, bool, error) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	if entry.data.InputHash != inputHash {
		return nil, true, conflict(key)
	}
	result := entry.data.Result
	return &result, true, nil
}

// Store saves an entry with TTL.
func (s *MemoryIdempotencyStore) Store(_ context.Context, key, inputHash string, result StoredResult, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memEntry{
		data:      idempotencyEntry{InputHash: inputHash, Result: result},
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// HealthCheck always succeeds.
func (s *MemoryIdempotencyStore) HealthCheck(context.Context) error { return nil }

// --- RedisIdempotencyStore ---

// RedisIdempotencyStore shares entries between replicas.
type RedisIdempotencyStore struct {
	client redis.Cmdable
}

// NewRedisIdempotencyStore creates a redis-backed store.
func NewRedisIdempotencyStore(client redis.Cmdable) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

// Check looks up an entry in redis.
func (s *RedisIdempotencyStore) Check(ctx context.Context, key, inputHash string) (*StoredResult, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var entry idempotencyEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshal idempotency entry %q: %w", key, err)
	}
	if entry.InputHash != inputHash {
		return nil, true, conflict(key)
	}
	return &entry.Result, true, nil
}

// Store saves an entry in redis with TTL.
func (s *RedisIdempotencyStore) Store(ctx context.Context, key, inputHash string, result StoredResult, ttl time.Duration) error {
	data, err := json.Marshal(idempotencyEntry{InputHash: inputHash, Result: result})
	if err != nil {
		return fmt.Errorf("marshal idempotency entry: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// HealthCheck pings redis.
func (s *RedisIdempotencyStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
