package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/autobrr/autobrr-sub001/internal/observability"
)

func TestKeys(t *testing.T) {
	if got := ListKey("feeds").String(); got != "feeds/list/" {
		t.Errorf("ListKey = %q", got)
	}
	if got := DetailKey("feeds", "3").String(); got != "feeds/detail/3/" {
		t.Errorf("DetailKey = %q", got)
	}
	if !DetailKey("feeds", "3").HasPrefix(All("feeds")) {
		t.Error("All should prefix DetailKey")
	}
	if DetailKey("feeds", "3").HasPrefix(ListKey("feeds")) {
		t.Error("ListKey must not prefix DetailKey")
	}
	if !ListKey("actions", "9").HasPrefix(ListKey("actions")) {
		t.Error("ListKey should prefix scoped list keys")
	}
	if DetailKey("feeds", "31").HasPrefix(DetailKey("feeds", "3")) {
		t.Error("detail 3 must not prefix detail 31")
	}
	if ListKey("feeds").Scope() != "list" || All("feeds").Scope() != "all" {
		t.Error("Scope mismatch")
	}
}

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return map[string]Store{
		"memory": NewMemoryStore(0),
		"redis":  NewRedisStore(client, "test:cache:"),
	}
}

func TestStore_invalidateListKeepsDetail(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = store.Set(ctx, ListKey("download_clients"), []byte(`[1]`), time.Minute)
			_ = store.Set(ctx, DetailKey("download_clients", "1"), []byte(`{}`), time.Minute)
			_ = store.Set(ctx, ListKey("feeds"), []byte(`[]`), time.Minute)

			n, err := store.Invalidate(ctx, ListKey("download_clients"))
			if err != nil {
				t.Fatalf("Invalidate() error = %v", err)
			}
			if n != 1 {
				t.Errorf("invalidated = %d, want 1", n)
			}
			if _, found, _ := store.Get(ctx, ListKey("download_clients")); found {
				t.Error("list entry should be gone")
			}
			if _, found, _ := store.Get(ctx, DetailKey("download_clients", "1")); !found {
				t.Error("detail entry must survive list invalidation")
			}
			if _, found, _ := store.Get(ctx, ListKey("feeds")); !found {
				t.Error("other resources must survive")
			}

			// Idempotent.
			if n, err := store.Invalidate(ctx, ListKey("download_clients")); err != nil || n != 0 {
				t.Errorf("second Invalidate() = %d, %v", n, err)
			}
			if err := store.HealthCheck(ctx); err != nil {
				t.Errorf("HealthCheck() = %v", err)
			}
		})
	}
}

func TestRedisStore_globCharactersInKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "c:")
	ctx := context.Background()

	_ = store.Set(ctx, DetailKey("filters", "a*"), []byte(`1`), time.Minute)
	_ = store.Set(ctx, DetailKey("filters", "ab"), []byte(`2`), time.Minute)

	n, err := store.Invalidate(ctx, DetailKey("filters", "a*"))
	if err != nil || n != 1 {
		t.Fatalf("Invalidate() = %d, %v, want 1", n, err)
	}
	if _, found, _ := store.Get(ctx, DetailKey("filters", "ab")); !found {
		t.Error("glob characters must match literally")
	}
}

func TestMemoryStore_ttlAndEviction(t *testing.T) {
	store := NewMemoryStore(2)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Set(ctx, DetailKey("feeds", "1"), []byte(`1`), time.Second)
	_ = store.Set(ctx, DetailKey("feeds", "2"), []byte(`2`), time.Minute)
	_ = store.Set(ctx, DetailKey("feeds", "3"), []byte(`3`), time.Hour)

	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}
	if _, found, _ := store.Get(ctx, DetailKey("feeds", "1")); found {
		t.Error("entry closest to expiry should be evicted")
	}

	now = now.Add(2 * time.Minute)
	if _, found, _ := store.Get(ctx, DetailKey("feeds", "2")); found {
		t.Error("expired entry should not be returned")
	}
}

func newTestCache(t *testing.T) (*Cache, *observability.Metrics) {
	t.Helper()
	m := observability.InitMetrics(prometheus.NewRegistry())
	return New(NewMemoryStore(0), time.Minute, nil, m), m
}

func TestFetch_missThenHit(t *testing.T) {
	c, m := newTestCache(t)
	ctx := context.Background()
	var loads int

	load := func(context.Context) ([]string, error) {
		loads++
		return []string{"qb"}, nil
	}
	for i := 0; i < 3; i++ {
		v, err := Fetch(ctx, c, ListKey("download_clients"), load)
		if err != nil || len(v) != 1 || v[0] != "qb" {
			t.Fatalf("Fetch() = %v, %v", v, err)
		}
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}
	if v := testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("download_clients")); v != 2 {
		t.Errorf("hits = %v, want 2", v)
	}
}

func TestFetch_loadErrorNotCached(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("Unauthorized")

	_, err := Fetch(ctx, c, ListKey("feeds"), func(context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want load error", err)
	}
	v, err := Fetch(ctx, c, ListKey("feeds"), func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("Fetch() after error = %v, %v", v, err)
	}
}

func TestFetch_concurrentLoadsShared(t *testing.T) {
	c, _ := newTestCache(t)
	var loads atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Fetch(context.Background(), c, ListKey("indexers"), func(context.Context) (int, error) {
				loads.Add(1)
				<-release
				return 1, nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := loads.Load(); n < 1 || n > 2 {
		t.Errorf("loads = %d, want shared load", n)
	}
}

// After a successful mutation, reading the list again reflects the new
// server state even though the old list was cached.
func TestInvalidate_readAfterWriteConverges(t *testing.T) {
	c, m := newTestCache(t)
	ctx := context.Background()
	server := []string{"a"}
	load := func(context.Context) ([]string, error) { return append([]string(nil), server...), nil }

	before, _ := Fetch(ctx, c, ListKey("notifications"), load)
	server = append(server, "b")

	if err := c.Invalidate(ctx, ListKey("notifications"), DetailKey("notifications", "2")); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	after, _ := Fetch(ctx, c, ListKey("notifications"), load)

	if len(before) != 1 || len(after) != 2 {
		t.Errorf("before = %v, after = %v", before, after)
	}
	if v := testutil.ToFloat64(m.CacheInvalidationsTotal.WithLabelValues("notifications", "detail")); v != 1 {
		t.Errorf("detail invalidations = %v, want 1", v)
	}
}

func TestFetch_loadRacingInvalidationIsNotStored(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := Fetch(ctx, c, ListKey("lists"), func(ctx context.Context) (int, error) {
		// A mutation lands while the stale list is in flight.
		_ = c.Invalidate(ctx, ListKey("lists"))
		return 1, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Store().Get(ctx, ListKey("lists")); found {
		t.Error("stale load must not be written after invalidation")
	}
}
