// Package integration provides a reusable test harness for end-to-end
// integration testing of the autobrr settings BFF. It starts a full HTTP
// server against a mock autobrr API, with in-memory or miniredis-backed
// stores and a test JWT issuer.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/autobrr/autobrr-sub001/internal/apiclient"
	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/internal/notify"
	"github.com/autobrr/autobrr-sub001/internal/observability"
	"github.com/autobrr/autobrr-sub001/internal/openapi"
	"github.com/autobrr/autobrr-sub001/internal/querycache"
	"github.com/autobrr/autobrr-sub001/internal/screens"
	"github.com/autobrr/autobrr-sub001/internal/shell"
	"github.com/autobrr/autobrr-sub001/internal/transport"
)

// TestHarness encapsulates a fully wired BFF instance with a mock autobrr
// API for integration testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer
	mock   *MockBackend

	// Internal components exposed for advanced test scenarios.
	Client   *apiclient.Client
	Cache    *querycache.Cache
	Engine   *shell.Engine
	Executor *mutation.Executor
	Toasts   *notify.Center
	Metrics  *observability.Metrics
	Redis    *miniredis.Miniredis

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	breaker        *config.CircuitBreakerConfig
	retry          *config.RetryConfig
	handlerTimeout time.Duration
	idempotency    bool
	redis          bool
	indicator      *config.TestIndicatorConfig
	rateLimit      *config.RateLimitConfig
	metrics        bool
}

// WithCircuitBreaker overrides the backend circuit breaker settings.
func WithCircuitBreaker(cb config.CircuitBreakerConfig) HarnessOption {
	return func(c *harnessConfig) { c.breaker = &cb }
}

// WithRetry overrides the read retry settings. The harness default is a
// single attempt.
func WithRetry(r config.RetryConfig) HarnessOption {
	return func(c *harnessConfig) { c.retry = &r }
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) { c.handlerTimeout = d }
}

// WithIdempotency enables submit idempotency keys.
func WithIdempotency() HarnessOption {
	return func(c *harnessConfig) { c.idempotency = true }
}

// WithRedis backs the query cache and the idempotency store with miniredis.
func WithRedis() HarnessOption {
	return func(c *harnessConfig) { c.redis = true }
}

// WithTestIndicator overrides the test button timings.
func WithTestIndicator(ind config.TestIndicatorConfig) HarnessOption {
	return func(c *harnessConfig) { c.indicator = &ind }
}

// WithRateLimit overrides the per-session test rate limit.
func WithRateLimit(rl config.RateLimitConfig) HarnessOption {
	return func(c *harnessConfig) { c.rateLimit = &rl }
}

// WithMetrics serves Prometheus metrics from a private registry.
func WithMetrics() HarnessOption {
	return func(c *harnessConfig) { c.metrics = true }
}

// NewTestHarness creates and starts a full BFF test instance. The server is
// automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{handlerTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(hc)
	}

	h := &TestHarness{
		t:      t,
		issuer: newTokenIssuer(),
		mock:   newMockBackend(t),
	}

	// Step 1: Build config.
	cfg := config.Defaults()
	cfg.Server.HandlerTimeout = hc.handlerTimeout
	cfg.Server.CORS = config.CORSConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Correlation-Id", "X-Idempotency-Key"},
		MaxAge:         86400,
	}
	cfg.Identity.Secret = testSecret
	cfg.Identity.Issuer = testIssuer
	cfg.Backend.BaseURL = h.mock.URL()
	cfg.Backend.APIToken = "integration-token"
	cfg.Backend.Timeout = 5 * time.Second
	cfg.Backend.Retry = config.RetryConfig{MaxAttempts: 1}
	if hc.retry != nil {
		cfg.Backend.Retry = *hc.retry
	}
	if hc.breaker != nil {
		cfg.Backend.CircuitBreaker = *hc.breaker
	}
	if hc.indicator != nil {
		cfg.TestIndicator = *hc.indicator
	}
	if hc.rateLimit != nil {
		cfg.RateLimit = *hc.rateLimit
	}
	cfg.Observability.Metrics.Enabled = hc.metrics
	h.cfg = cfg

	var metrics *observability.Metrics
	if hc.metrics {
		metrics = observability.InitMetrics(prometheus.NewRegistry())
	}
	h.Metrics = metrics

	// Step 2: Backend client.
	client, err := apiclient.New(cfg.Backend, nil, apiclient.WithMetrics(metrics))
	if err != nil {
		t.Fatalf("backend client: %v", err)
	}
	h.Client = client

	// Step 3: Stores.
	var (
		cacheStore querycache.Store = querycache.NewMemoryStore(0)
		idemStore  mutation.IdempotencyStore
	)
	if hc.redis {
		h.Redis = miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: h.Redis.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		cacheStore = querycache.NewRedisStore(rdb, "autobrr-bff-test:")
		if hc.idempotency {
			idemStore = mutation.NewRedisIdempotencyStore(rdb)
		}
	} else if hc.idempotency {
		idemStore = mutation.NewMemoryIdempotencyStore()
	}
	h.Cache = querycache.New(cacheStore, time.Minute, nil, metrics)

	// Step 4: Mutations, screens and the engine.
	h.Toasts = notify.NewCenter(cfg.Toasts, metrics)
	execOpts := []mutation.Option{mutation.WithMetrics(metrics)}
	if idemStore != nil {
		execOpts = append(execOpts, mutation.WithIdempotencyStore(idemStore, time.Hour))
	}
	h.Executor = mutation.NewExecutor(h.Cache, h.Toasts, execOpts...)

	screenDeps := screens.Deps{API: apiclient.NewAPI(client), Cache: h.Cache}
	catalog := screens.Catalog(screenDeps)
	h.Engine = shell.NewEngine(catalog, shell.NewMemorySessionStore(), h.Executor,
		shell.WithTestLimiter(mutation.NewTestLimiter(cfg.RateLimit)),
		shell.WithIndicator(cfg.TestIndicator),
		shell.WithTestTimeout(cfg.Backend.Timeout),
		shell.WithMetrics(metrics),
	)

	index, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatalf("load OpenAPI document: %v", err)
	}

	readiness := observability.ReadinessChecks{
		ScreensRegistered: catalog.Len,
		Backend:           client,
		QueryCache:        h.Cache,
	}

	// Step 5: Router with the full middleware chain.
	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Engine:       h.Engine,
		Navigator:    shell.NewNavigator(catalog, false, nil),
		Screens:      screenDeps,
		Executor:     h.Executor,
		Toasts:       h.Toasts,
		OpenAPI:      index,
		Metrics:      metrics,
		Readiness:    readiness,
		Authenticate: transport.JWTAuthenticator(cfg.Identity),
	})

	// Step 6: Start test server.
	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// Autobrr returns the mock autobrr API.
func (h *TestHarness) Autobrr() *MockBackend {
	return h.mock
}

// GenerateToken creates a valid JWT token with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	return h.Do(http.MethodGet, path, nil, token, nil)
}

// GETWithHeaders performs an authenticated GET request with additional headers.
func (h *TestHarness) GETWithHeaders(path, token string, headers map[string]string) *http.Response {
	return h.Do(http.MethodGet, path, nil, token, headers)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	return h.Do(http.MethodPost, path, body, token, nil)
}

// POSTWithHeaders performs an authenticated POST request with additional headers.
func (h *TestHarness) POSTWithHeaders(path string, body any, token string, headers map[string]string) *http.Response {
	return h.Do(http.MethodPost, path, body, token, headers)
}

// PATCH performs an authenticated PATCH request with a JSON body.
func (h *TestHarness) PATCH(path string, body any, token string) *http.Response {
	return h.Do(http.MethodPatch, path, body, token, nil)
}

// Do performs a request against the BFF. A nil body sends none.
func (h *TestHarness) Do(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.server.Client().Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// DialToasts opens the toast websocket. since, when non-negative, replays
// buffered toasts newer than it.
func (h *TestHarness) DialToasts(token string, since int) *websocket.Conn {
	h.t.Helper()

	u := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ui/toasts/stream"
	if since >= 0 {
		u += fmt.Sprintf("?since=%d", since)
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		h.t.Fatalf("dial toast stream: %v (status %d)", err, status)
	}
	h.t.Cleanup(func() { conn.Close() })
	return conn
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	body := h.ReadBody(resp)
	if err := json.Unmarshal(body, target); err != nil {
		h.t.Fatalf("parse JSON response: %v\nbody: %s", err, string(body))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return body
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	h.AssertStatus(t, resp, expected)
	if target != nil {
		h.ParseJSON(resp, target)
	}
}

// --- Session helpers ---

// OpenSession opens a form session and returns its shell view.
func (h *TestHarness) OpenSession(t *testing.T, screen string, body map[string]any, token string) map[string]any {
	t.Helper()
	var view map[string]any
	h.AssertJSON(t, h.POST("/ui/screens/"+screen+"/sessions", body, token), http.StatusCreated, &view)
	if view["session_id"] == "" {
		t.Fatal("session_id missing from shell view")
	}
	return view
}

// SessionPath returns the path of a session, optionally with a suffix.
func SessionPath(view map[string]any, suffix string) string {
	id, _ := view["session_id"].(string)
	if suffix == "" {
		return "/ui/sessions/" + id
	}
	return "/ui/sessions/" + id + "/" + suffix
}

// --- Fixtures ---

// NotificationFixture returns a notification as autobrr serves it.
func NotificationFixture(id int, name, typ string) map[string]any {
	return map[string]any{
		"id":      id,
		"name":    name,
		"type":    typ,
		"enabled": true,
		"events":  []string{"PUSH_APPROVED"},
		"webhook": "https://discord.com/api/webhooks/1",
	}
}

// FeedFixture returns a torznab feed as autobrr serves it.
func FeedFixture(id int, name string) map[string]any {
	return map[string]any{
		"id":           id,
		"name":         name,
		"type":         "TORZNAB",
		"enabled":      true,
		"url":          "https://jackett.example.com/api/v2.0/indexers/tl/results/torznab",
		"interval":     30,
		"timeout":      60,
		"indexer":      "tl",
		"indexer_id":   id,
		"api_key":      "secret",
		"max_age":      0,
		"categories":   []int{},
		"capabilities": []string{},
	}
}

// ErrorCode extracts error.code from a decoded error envelope.
func ErrorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
