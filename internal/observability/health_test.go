package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeChecker struct {
	err   error
	delay time.Duration
}

func (f fakeChecker) HealthCheck(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func catalogOf(n int) func() int { return func() int { return n } }

func TestHandleHealth(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	Version, Commit = "v1.60.0", "4f1e2d3"
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	rec := httptest.NewRecorder()
	HandleHealth().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ui/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got != (HealthResponse{Status: "ok", Version: "v1.60.0", Commit: "4f1e2d3"}) {
		t.Errorf("body = %+v", got)
	}
}

func TestHandleReady(t *testing.T) {
	down := fakeChecker{err: errors.New("dial tcp 127.0.0.1:7474: connection refused")}

	tests := []struct {
		name       string
		checks     ReadinessChecks
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "catalog only",
			checks:     ReadinessChecks{ScreensRegistered: catalogOf(7)},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"screens": "ok"},
		},
		{
			name:       "empty catalog",
			checks:     ReadinessChecks{ScreensRegistered: catalogOf(0)},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"screens": "error"},
		},
		{
			name:       "no catalog func",
			checks:     ReadinessChecks{},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"screens": "error"},
		},
		{
			name: "all dependencies up",
			checks: ReadinessChecks{
				ScreensRegistered: catalogOf(7),
				Backend:           fakeChecker{},
				SessionStore:      fakeChecker{},
				QueryCache:        fakeChecker{},
				IdempotencyStore:  fakeChecker{},
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{
				"screens": "ok", "backend": "ok", "session_store": "ok",
				"query_cache": "ok", "idempotency_store": "ok",
			},
		},
		{
			name: "autobrr down",
			checks: ReadinessChecks{
				ScreensRegistered: catalogOf(7),
				Backend:           down,
				QueryCache:        fakeChecker{},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"screens": "ok", "backend": "error", "query_cache": "ok"},
		},
		{
			name: "stores down",
			checks: ReadinessChecks{
				ScreensRegistered: catalogOf(7),
				SessionStore:      down,
				IdempotencyStore:  down,
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"screens": "ok", "session_store": "error", "idempotency_store": "error"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleReady(tt.checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ui/ready", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var got ReadinessResponse
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			wantOverall := "ready"
			if tt.wantStatus != http.StatusOK {
				wantOverall = "not_ready"
			}
			if got.Status != wantOverall {
				t.Errorf("status field = %q, want %q", got.Status, wantOverall)
			}
			if len(got.Checks) != len(tt.wantChecks) {
				t.Errorf("checks = %v, want %v", got.Checks, tt.wantChecks)
			}
			for name, want := range tt.wantChecks {
				res := got.Checks[name]
				if res.Status != want {
					t.Errorf("%s = %q, want %q", name, res.Status, want)
				}
				if want == "error" && res.Error == "" {
					t.Errorf("%s failed without an error message", name)
				}
			}
		})
	}
}

func TestHandleReady_SlowCheckTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the check timeout")
	}
	rec := httptest.NewRecorder()
	start := time.Now()
	HandleReady(ReadinessChecks{
		ScreensRegistered: catalogOf(1),
		Backend:           fakeChecker{delay: time.Minute},
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ui/ready", nil))

	if elapsed := time.Since(start); elapsed > checkTimeout+time.Second {
		t.Errorf("readiness took %s", elapsed)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
