// Package apiclient talks to the autobrr REST API on behalf of the BFF.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/internal/observability"
	"github.com/autobrr/autobrr-sub001/model"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// Error is a non-2xx answer from autobrr. Message follows the web client:
// "Unauthorized" for 401, "Not found" for 404, otherwise the body text.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string { return e.Message }

// IsNotFound reports whether err is a 404 from autobrr.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 from autobrr.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Request describes a single call against the API.
type Request struct {
	// Resource labels metrics and spans, e.g. "download_clients".
	Resource string
	Method   string
	// Path is relative to the base URL, e.g. "api/feeds/3".
	Path  string
	Query url.Values
	Body  any
}

// Client executes requests with an API token, a circuit breaker, and
// retries for reads. Mutations are sent exactly once.
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	breaker *Breaker
	retry   config.RetryConfig
	metrics *observability.Metrics
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records backend metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a Client for the configured autobrr instance.
func New(cfg config.BackendConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		base:  base,
		token: cfg.APIToken,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxConnsPerHost:     10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retry:  cfg.Retry,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = NewBreaker(cfg.CircuitBreaker, func(s BreakerState) {
		c.logger.Warn("autobrr circuit breaker state changed", zap.String("state", s.String()))
		if c.metrics != nil {
			c.metrics.SetBackendCircuitBreakerState(s.GaugeValue())
		}
	})
	return c, nil
}

// Breaker exposes the circuit breaker for diagnostics.
func (c *Client) Breaker() *Breaker { return c.breaker }

// HealthCheck probes autobrr's liveness endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Do(ctx, Request{Resource: "healthz", Method: http.MethodGet, Path: "api/healthz/liveness"}, nil)
}

// Do executes req and decodes a JSON answer into out when out is non-nil.
// 204 and empty bodies leave out untouched.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	ctx, span := observability.StartSpan(ctx, "apiclient.request",
		observability.AttrResource.String(req.Resource),
	)

	var body []byte
	if req.Body != nil {
		var err error
		body, err = json.Marshal(req.Body)
		if err != nil {
			observability.EndSpanWithError(span, err)
			return fmt.Errorf("apiclient: marshal body: %w", err)
		}
	}

	attempts := 1
	if req.Method == http.MethodGet && c.retry.MaxAttempts > 1 {
		attempts = c.retry.MaxAttempts
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.RecordBackendRetry()
			}
			select {
			case <-ctx.Done():
				observability.EndSpanWithError(span, ctx.Err())
				return model.NewBackendTimeoutError()
			case <-time.After(backoff(c.retry, attempt)):
			}
			c.logger.Debug("retrying autobrr request",
				zap.String("path", req.Path),
				zap.Int("attempt", attempt+1),
			)
		}

		var retryable bool
		retryable, err = c.once(ctx, req, body, out)
		if err == nil || !retryable {
			break
		}
	}
	observability.EndSpanWithError(span, err)
	return err
}

// once performs a single attempt and reports whether a failure may be retried.
func (c *Client) once(ctx context.Context, req Request, body []byte, out any) (bool, error) {
	if err := c.breaker.Allow(); err != nil {
		return false, model.NewBackendUnavailableError()
	}

	u := c.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(req.Path, "/")})
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), reader)
	if err != nil {
		return false, fmt.Errorf("apiclient: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("X-API-Token", c.token)
	}
	if rctx := model.RequestContextFrom(ctx); rctx != nil && rctx.CorrelationID != "" {
		httpReq.Header.Set("X-Correlation-Id", sanitizeHeader(rctx.CorrelationID))
	}
	observability.InjectTraceHeaders(ctx, httpReq.Header)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.breaker.Failure()
		c.record(req, 0, start)
		if ctx.Err() != nil {
			return false, model.NewBackendTimeoutError()
		}
		if isConnectionError(err) {
			return true, model.NewBackendUnavailableError()
		}
		return true, fmt.Errorf("apiclient: %s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.record(req, resp.StatusCode, start)
	if err != nil {
		c.breaker.Failure()
		return true, fmt.Errorf("apiclient: read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		c.breaker.Failure()
	} else {
		c.breaker.Success()
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode >= 500, errorFromResponse(resp.StatusCode, data)
	}

	if resp.StatusCode == http.StatusNoContent || out == nil || len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("apiclient: decode %s: %w", req.Path, err)
	}
	return false, nil
}

func (c *Client) record(req Request, status int, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordBackendRequest(req.Resource, req.Method, status, time.Since(start))
	}
}

func errorFromResponse(status int, body []byte) *Error {
	switch status {
	case http.StatusUnauthorized:
		return &Error{StatusCode: status, Message: "Unauthorized"}
	case http.StatusNotFound:
		return &Error{StatusCode: status, Message: "Not found"}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{StatusCode: status, Message: msg}
}

func backoff(cfg config.RetryConfig, attempt int) time.Duration {
	initial := cfg.BackoffInitial
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	mult := cfg.BackoffMultiplier
	if mult <= 0 {
		mult = 2
	}
	limit := cfg.BackoffMax
	if limit <= 0 {
		limit = 2 * time.Second
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * mult)
		if delay >= limit {
			return limit
		}
	}
	return delay
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// sanitizeHeader strips CR and LF to prevent header injection.
func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
