package mutation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/autobrr/autobrr-sub001/internal/apiclient"
	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/internal/notify"
	"github.com/autobrr/autobrr-sub001/internal/observability"
	"github.com/autobrr/autobrr-sub001/internal/querycache"
	"github.com/autobrr/autobrr-sub001/model"
)

// fakeBackend is an in-memory collection behind a Binding.
type fakeBackend struct {
	mu      sync.Mutex
	items   map[string]model.Values
	nextID  int
	calls   map[Kind]int
	failure error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{items: map[string]model.Values{}, nextID: 1, calls: map[Kind]int{}}
}

func (f *fakeBackend) binding() Binding {
	return Binding{
		Resource:   "download_clients",
		EntityName: "Download client",
		Create: func(_ context.Context, v model.Values) (model.Values, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.calls[KindCreate]++
			if f.failure != nil {
				return nil, f.failure
			}
			out := v.Clone()
			out.Set("id", f.nextID)
			f.items[apiclient.EntityID(out)] = out
			f.nextID++
			return out, nil
		},
		Update: func(_ context.Context, id string, v model.Values) (model.Values, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.calls[KindUpdate]++
			if f.failure != nil {
				return nil, f.failure
			}
			f.items[id] = v.Clone()
			return nil, nil
		},
		Delete: func(_ context.Context, id string) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.calls[KindDelete]++
			if f.failure != nil {
				return f.failure
			}
			delete(f.items, id)
			return nil
		},
		Test: func(context.Context, model.Values) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.calls[KindTest]++
			return f.failure
		},
	}
}

func (f *fakeBackend) list(context.Context) ([]model.Values, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Values, 0, len(f.items))
	for _, v := range f.items {
		out = append(out, v.Clone())
	}
	return out, nil
}

type harness struct {
	exec    *Executor
	cache   *querycache.Cache
	toasts  *notify.Center
	metrics *observability.Metrics
	backend *fakeBackend
	seen    []Outcome
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{backend: newFakeBackend()}
	h.metrics = observability.InitMetrics(prometheus.NewRegistry())
	h.cache = querycache.New(querycache.NewMemoryStore(0), time.Minute, nil, h.metrics)
	h.toasts = notify.NewCenter(config.ToastConfig{Capacity: 10}, nil)
	opts = append(opts,
		WithMetrics(h.metrics),
		WithObserver(ObserverFunc(func(_ context.Context, o Outcome) { h.seen = append(h.seen, o) })),
	)
	h.exec = NewExecutor(h.cache, h.toasts, opts...)
	return h
}

func TestExecutor_createConvergesListAndToasts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.backend.binding()

	before, _ := querycache.Fetch(ctx, h.cache, querycache.ListKey(b.Resource), h.backend.list)
	out, err := h.exec.Run(ctx, b, Request{Kind: KindCreate, Values: model.Values{"name": "qb", "host": "localhost"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	after, _ := querycache.Fetch(ctx, h.cache, querycache.ListKey(b.Resource), h.backend.list)

	if len(after) != len(before)+1 {
		t.Errorf("list = %d entries, want %d", len(after), len(before)+1)
	}
	if out.EntityID != "1" || out.Message != "Download client was created successfully" {
		t.Errorf("outcome = %+v", out)
	}
	toasts := h.toasts.Since(0)
	if len(toasts) != 1 || toasts[0].Kind != notify.KindSuccess || toasts[0].Message != out.Message {
		t.Errorf("toasts = %+v", toasts)
	}
	if len(h.seen) != 2 || h.seen[0].Status != StatusPending || h.seen[1].Status != StatusSuccess {
		t.Errorf("observed = %+v", h.seen)
	}
	if v := testutil.ToFloat64(h.metrics.MutationsTotal.WithLabelValues("download_clients", "create", "success")); v != 1 {
		t.Errorf("mutations = %v", v)
	}
}

func TestExecutor_invalidatesExactlyListAndDetail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	store := h.cache.Store()

	_ = store.Set(ctx, querycache.ListKey("download_clients"), []byte(`[]`), time.Minute)
	_ = store.Set(ctx, querycache.DetailKey("download_clients", "7"), []byte(`{}`), time.Minute)
	_ = store.Set(ctx, querycache.DetailKey("download_clients", "8"), []byte(`{}`), time.Minute)
	_ = store.Set(ctx, querycache.ListKey("feeds"), []byte(`[]`), time.Minute)

	if _, err := h.exec.Run(ctx, h.backend.binding(), Request{Kind: KindUpdate, EntityID: "7", Values: model.Values{"name": "x"}}); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		key  querycache.Key
		want bool
	}{
		{querycache.ListKey("download_clients"), false},
		{querycache.DetailKey("download_clients", "7"), false},
		{querycache.DetailKey("download_clients", "8"), true},
		{querycache.ListKey("feeds"), true},
	} {
		if _, found, _ := store.Get(ctx, tc.key); found != tc.want {
			t.Errorf("%s present = %v, want %v", tc.key, found, tc.want)
		}
	}
}

func TestExecutor_invalidatesEmbeddingResource(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	store := h.cache.Store()

	_ = store.Set(ctx, querycache.ListKey("filters"), []byte(`[]`), time.Minute)
	_ = store.Set(ctx, querycache.DetailKey("filters", "3"), []byte(`{}`), time.Minute)
	_ = store.Set(ctx, querycache.DetailKey("filters", "4"), []byte(`{}`), time.Minute)

	b := h.backend.binding()
	var gotValues model.Values
	b.Invalidates = func(out Outcome, values model.Values) []querycache.Key {
		gotValues = values
		return []querycache.Key{
			querycache.ListKey("filters"),
			querycache.DetailKey("filters", values.String("filter")),
		}
	}
	if _, err := h.exec.Run(ctx, b, Request{Kind: KindCreate, Values: model.Values{"name": "grab", "filter": "3"}}); err != nil {
		t.Fatal(err)
	}

	if gotValues.String("name") != "grab" {
		t.Errorf("Invalidates got values %v", gotValues)
	}
	for _, tc := range []struct {
		key  querycache.Key
		want bool
	}{
		{querycache.ListKey("filters"), false},
		{querycache.DetailKey("filters", "3"), false},
		{querycache.DetailKey("filters", "4"), true},
	} {
		if _, found, _ := store.Get(ctx, tc.key); found != tc.want {
			t.Errorf("%s present = %v, want %v", tc.key, found, tc.want)
		}
	}

	h.backend.failure = &apiclient.Error{StatusCode: 500, Message: "boom"}
	gotValues = nil
	_ = store.Set(ctx, querycache.ListKey("filters"), []byte(`[]`), time.Minute)
	_, _ = h.exec.Run(ctx, b, Request{Kind: KindCreate, Values: model.Values{"name": "grab", "filter": "3"}})
	if gotValues != nil {
		t.Error("Invalidates called for a failed mutation")
	}
}

func TestExecutor_failurePreservesCacheAndToastsError(t *testing.T) {
	h := newHarness(t)
	h.backend.failure = &apiclient.Error{StatusCode: 500, Message: "connection refused"}
	ctx := context.Background()
	_ = h.cache.Store().Set(ctx, querycache.ListKey("download_clients"), []byte(`[]`), time.Minute)

	out, err := h.exec.Run(ctx, h.backend.binding(), Request{Kind: KindDelete, EntityID: "3"})
	if !model.HasCode(err, model.ErrMutationFailed) {
		t.Fatalf("error = %v, want MUTATION_FAILED", err)
	}
	if out.Message != "Download client could not be deleted: connection refused" {
		t.Errorf("message = %q", out.Message)
	}
	if _, found, _ := h.cache.Store().Get(ctx, querycache.ListKey("download_clients")); !found {
		t.Error("failed mutation must not invalidate")
	}
	if toasts := h.toasts.Since(0); len(toasts) != 1 || toasts[0].Kind != notify.KindError {
		t.Errorf("toasts = %+v", toasts)
	}
}

func TestExecutor_testNeverInvalidates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.cache.Store().Set(ctx, querycache.ListKey("download_clients"), []byte(`[]`), time.Minute)

	if _, err := h.exec.Run(ctx, h.backend.binding(), Request{Kind: KindTest, Values: model.Values{}}); err != nil {
		t.Fatal(err)
	}
	h.backend.failure = &apiclient.Error{StatusCode: 400, Message: "invalid webhook"}
	if _, err := h.exec.Run(ctx, h.backend.binding(), Request{Kind: KindTest, Values: model.Values{}}); err == nil {
		t.Fatal("expected test failure")
	}

	if _, found, _ := h.cache.Store().Get(ctx, querycache.ListKey("download_clients")); !found {
		t.Error("test must not invalidate")
	}
	if toasts := h.toasts.Since(0); len(toasts) != 0 {
		t.Errorf("toasts = %+v, want none without a test message", toasts)
	}
	if v := testutil.ToFloat64(h.metrics.TestRunsTotal.WithLabelValues("download_clients", "error")); v != 1 {
		t.Errorf("failed tests = %v", v)
	}
}

func TestExecutor_testSuccessMessage(t *testing.T) {
	h := newHarness(t)
	b := h.backend.binding()
	b.SuccessMessages = map[Kind]string{KindTest: "Test notification sent"}

	out, err := h.exec.Run(context.Background(), b, Request{Kind: KindTest})
	if err != nil || out.Message != "Test notification sent" {
		t.Fatalf("Run() = %+v, %v", out, err)
	}
	if toasts := h.toasts.Since(0); len(toasts) != 1 {
		t.Errorf("toasts = %d, want 1", len(toasts))
	}
}

func TestExecutor_unboundOperation(t *testing.T) {
	h := newHarness(t)
	b := h.backend.binding()
	b.Test = nil

	_, err := h.exec.Run(context.Background(), b, Request{Kind: KindTest})
	if !model.HasCode(err, model.ErrBadRequest) {
		t.Errorf("error = %v, want BAD_REQUEST", err)
	}
}

func TestExecutor_idempotentCreate(t *testing.T) {
	h := newHarness(t, WithIdempotencyStore(NewMemoryIdempotencyStore(), time.Hour))
	ctx := context.Background()
	req := Request{Kind: KindCreate, Values: model.Values{"name": "qb"}, IdempotencyKey: "abc"}

	first, err := h.exec.Run(ctx, h.backend.binding(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.exec.Run(ctx, h.backend.binding(), req)
	if err != nil {
		t.Fatal(err)
	}

	if h.backend.calls[KindCreate] != 1 {
		t.Errorf("create calls = %d, want 1", h.backend.calls[KindCreate])
	}
	if !second.Replayed || second.EntityID != first.EntityID {
		t.Errorf("second = %+v", second)
	}

	req.Values = model.Values{"name": "other"}
	if _, err := h.exec.Run(ctx, h.backend.binding(), req); !model.HasCode(err, model.ErrConflict) {
		t.Errorf("reused key error = %v, want CONFLICT", err)
	}
}

func TestTestLimiter(t *testing.T) {
	l := NewTestLimiter(config.RateLimitConfig{TestsPerMinute: 1, Burst: 2})
	if !l.Allow("s1") || !l.Allow("s1") {
		t.Fatal("burst should be allowed")
	}
	if l.Allow("s1") {
		t.Error("third test within a minute should be limited")
	}
	if !l.Allow("s2") {
		t.Error("sessions are limited independently")
	}
	l.Forget("s1")
	if !l.Allow("s1") {
		t.Error("forgotten session starts fresh")
	}

	var nilLimiter *TestLimiter
	if !nilLimiter.Allow("x") {
		t.Error("nil limiter allows everything")
	}
	unlimited := NewTestLimiter(config.RateLimitConfig{})
	for i := 0; i < 100; i++ {
		if !unlimited.Allow("s") {
			t.Fatal("zero rate should not limit")
		}
	}
}
