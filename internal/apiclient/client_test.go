package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/internal/observability"
	"github.com/autobrr/autobrr-sub001/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.BackendConfig{
		BaseURL:  srv.URL,
		APIToken: "secret-token",
		Timeout:  2 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:    3,
			BackoffInitial: time.Millisecond,
			BackoffMax:     5 * time.Millisecond,
		},
		CircuitBreaker: config.CircuitBreakerConfig{FailureThreshold: 10},
	}
	c, err := New(cfg, nil, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, srv
}

func TestClient_sendsTokenAndDecodes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/download_clients" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("X-API-Token"); got != "secret-token" {
			t.Errorf("X-API-Token = %q", got)
		}
		w.Write([]byte(`[{"id":1,"name":"qb"}]`))
	})

	var out []model.Values
	err := c.Do(context.Background(), Request{Resource: DownloadClients, Method: http.MethodGet, Path: "api/download_clients"}, &out)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if len(out) != 1 || out[0].String("name") != "qb" {
		t.Errorf("out = %v", out)
	}
}

func TestClient_errorMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusUnauthorized, "token expired", "Unauthorized"},
		{http.StatusNotFound, "no such route", "Not found"},
		{http.StatusBadRequest, "could not connect to client\n", "could not connect to client"},
		{http.StatusConflict, "", "Conflict"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "api/feeds", Body: map[string]any{}}, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Error() != tt.want {
				t.Errorf("error = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestClient_noContent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	out := model.Values{"untouched": true}
	if err := c.Do(context.Background(), Request{Method: http.MethodDelete, Path: "api/feeds/1"}, &out); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !out.Bool("untouched") {
		t.Error("204 should leave out untouched")
	}
}

func TestClient_retriesReadsOnly(t *testing.T) {
	var gets, posts atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if gets.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`[]`))
			return
		}
		posts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "database locked")
	})

	if err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "api/feeds"}, &[]model.Values{}); err != nil {
		t.Fatalf("GET error = %v, want success after retries", err)
	}
	if gets.Load() != 3 {
		t.Errorf("GET attempts = %d, want 3", gets.Load())
	}

	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "api/feeds", Body: map[string]any{"name": "x"}}, nil)
	if err == nil || err.Error() != "database locked" {
		t.Errorf("POST error = %v, want body text", err)
	}
	if posts.Load() != 1 {
		t.Errorf("POST attempts = %d, want exactly 1", posts.Load())
	}
}

func TestClient_breakerOpensAndReportsUnavailable(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.InitMetrics(reg)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c, err := New(config.BackendConfig{
		BaseURL:        srv.URL,
		CircuitBreaker: config.CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Hour},
	}, nil, WithMetrics(m))
	if err != nil {
		t.Fatal(err)
	}

	req := Request{Resource: Feeds, Method: http.MethodPost, Path: "api/feeds/test"}
	_ = c.Do(context.Background(), req, nil)
	_ = c.Do(context.Background(), req, nil)

	err = c.Do(context.Background(), req, nil)
	if !model.HasCode(err, model.ErrBackendUnavailable) {
		t.Fatalf("error = %v, want BACKEND_UNAVAILABLE", err)
	}
	if v := testutil.ToFloat64(m.BackendCircuitBreakerState); v != 2 {
		t.Errorf("breaker gauge = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.BackendRequestsTotal.WithLabelValues(Feeds, "POST", "503")); v != 2 {
		t.Errorf("backend requests = %v, want 2", v)
	}
}

func TestClient_connectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(config.BackendConfig{BaseURL: url}, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = c.Do(context.Background(), Request{Method: http.MethodPost, Path: "api/irc"}, nil)
	if !model.HasCode(err, model.ErrBackendUnavailable) {
		t.Errorf("error = %v, want BACKEND_UNAVAILABLE", err)
	}
}

func TestClient_propagatesCorrelationID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Correlation-Id"); got != "corr-1" {
			t.Errorf("X-Correlation-Id = %q, want corr-1", got)
		}
		w.WriteHeader(http.StatusOK)
	})
	ctx := model.WithRequestContext(context.Background(), &model.RequestContext{Username: "admin", CorrelationID: "corr-1\r\n"})
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "api/healthz/liveness"}, nil); err != nil {
		t.Fatal(err)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/healthz/liveness" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, "OK")
	})
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestBackoff(t *testing.T) {
	cfg := config.RetryConfig{BackoffInitial: 10 * time.Millisecond, BackoffMultiplier: 2, BackoffMax: 25 * time.Millisecond}
	if got := backoff(cfg, 1); got != 10*time.Millisecond {
		t.Errorf("backoff(1) = %v", got)
	}
	if got := backoff(cfg, 2); got != 20*time.Millisecond {
		t.Errorf("backoff(2) = %v", got)
	}
	if got := backoff(cfg, 5); got != 25*time.Millisecond {
		t.Errorf("backoff(5) = %v, want capped", got)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(&Error{StatusCode: 404, Message: "Not found"}) {
		t.Error("IsNotFound should match 404")
	}
	if IsNotFound(&Error{StatusCode: 401}) || !IsUnauthorized(&Error{StatusCode: 401}) {
		t.Error("401 classification wrong")
	}
	if IsNotFound(nil) {
		t.Error("nil is not a not-found error")
	}
}
