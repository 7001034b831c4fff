package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Set with -ldflags "-X".
var (
	Version = "dev"
	Commit  = "unknown"
)

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// ReadinessResponse is the readiness body: "ready" only when every check is ok.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult reports one dependency.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthChecker is implemented by the autobrr client and the stores.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ReadinessChecks lists what /ui/ready probes. A nil checker is skipped;
// the screen catalog is always checked.
type ReadinessChecks struct {
	ScreensRegistered func() int

	Backend          HealthChecker
	SessionStore     HealthChecker
	QueryCache       HealthChecker
	IdempotencyStore HealthChecker
}

const checkTimeout = 2 * time.Second

var errNoScreens = errors.New("no screens registered")

type checkFunc func(context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func (c ReadinessChecks) named() map[string]HealthChecker {
	out := map[string]HealthChecker{
		"screens": checkFunc(func(context.Context) error {
			if c.ScreensRegistered == nil || c.ScreensRegistered() == 0 {
				return errNoScreens
			}
			return nil
		}),
	}
	for name, hc := range map[string]HealthChecker{
		"backend":           c.Backend,
		"session_store":     c.SessionStore,
		"query_cache":       c.QueryCache,
		"idempotency_store": c.IdempotencyStore,
	} {
		if hc != nil {
			out[name] = hc
		}
	}
	return out
}

// HandleHealth answers liveness with the build version.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeHealthJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version, Commit: Commit})
	}
}

// HandleReady runs every configured check concurrently, each bounded by
// checkTimeout, and answers 503 when any of them fails.
func HandleReady(checks ReadinessChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		named := checks.named()
		names := make([]string, 0, len(named))
		results := make([]CheckResult, len(named))

		var g errgroup.Group
		for name, hc := range named {
			i := len(names)
			names = append(names, name)
			g.Go(func() error {
				results[i] = probe(r.Context(), hc)
				return nil
			})
		}
		_ = g.Wait()

		resp := ReadinessResponse{Status: "ready", Checks: make(map[string]CheckResult, len(names))}
		status := http.StatusOK
		for i, name := range names {
			resp.Checks[name] = results[i]
			if results[i].Status != "ok" {
				resp.Status = "not_ready"
				status = http.StatusServiceUnavailable
			}
		}
		writeHealthJSON(w, status, resp)
	}
}

func probe(parent context.Context, hc HealthChecker) CheckResult {
	ctx, cancel := context.WithTimeout(parent, checkTimeout)
	defer cancel()

	start := time.Now()
	err := hc.HealthCheck(ctx)
	res := CheckResult{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = "error"
		res.Error = err.Error()
	}
	return res
}

func writeHealthJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
