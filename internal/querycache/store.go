package querycache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists encoded query results.
type Store interface {
	// Get returns the stored bytes for key, or found=false.
	Get(ctx context.Context, key Key) (data []byte, found bool, err error)
	// Set stores data for key with a TTL.
	Set(ctx context.Context, key Key, data []byte, ttl time.Duration) error
	// Invalidate drops every entry whose key has prefix and reports how many
	// were dropped. Invalidating an absent prefix is not an error.
	Invalidate(ctx context.Context, prefix Key) (int, error)
	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}

// --- MemoryStore ---

// MemoryStore is an in-process Store bounded by entry count.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*memEntry
	maxEntries int
	now        func() time.Time
}

type memEntry struct {
	key       Key
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates a memory store. maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*memEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns a live entry.
func (s *MemoryStore) Get(_ context.Context, key Key) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.entries, key.String())
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set stores an entry, evicting the entries closest to expiry when full.
func (s *MemoryStore) Set(_ context.Context, key Key, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.entries[key.String()] = &memEntry{key: append(Key(nil), key...), data: data, expiresAt: expiresAt}
	s.evict()
	return nil
}

// evict must be called with the lock held.
func (s *MemoryStore) evict() {
	if s.maxEntries <= 0 || len(s.entries) <= s.maxEntries {
		return
	}
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return s.entries[keys[i]].expiresAt.Before(s.entries[keys[j]].expiresAt)
	})
	for _, k := range keys[:len(keys)-s.maxEntries] {
		delete(s.entries, k)
	}
}

// Invalidate drops entries under prefix.
func (s *MemoryStore) Invalidate(_ context.Context, prefix Key) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if e.key.HasPrefix(prefix) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(context.Context) error { return nil }

// Len returns the number of entries, including expired ones. For testing.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// --- RedisStore ---

// RedisStore shares the cache between BFF replicas.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a redis-backed Store. prefix namespaces every key.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) redisKey(k Key) string {
	return s.prefix + k.String()
}

// Get returns a stored entry.
func (s *RedisStore) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", s.redisKey(key), err)
	}
	return data, true, nil
}

// Set stores an entry with TTL.
func (s *RedisStore) Set(ctx context.Context, key Key, data []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.redisKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", s.redisKey(key), err)
	}
	return nil
}

// Invalidate scans for keys under prefix and deletes them.
func (s *RedisStore) Invalidate(ctx context.Context, prefix Key) (int, error) {
	pattern := escapeGlob(s.redisKey(prefix)) + "*"
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan %q: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(n), nil
}

// HealthCheck pings redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
