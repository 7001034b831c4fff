package integration

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservability_MetricsFollowTheFormLifecycle(t *testing.T) {
	h := NewTestHarness(t, WithMetrics())
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("GET", "/api/lists").RespondWith(http.StatusOK, []any{})
	h.Autobrr().On("POST", "/api/lists").RespondWith(http.StatusCreated, map[string]any{"id": 3, "name": "anime"})

	h.AssertStatus(t, h.GET("/ui/screens/lists/items", token), http.StatusOK)
	h.AssertStatus(t, h.GET("/ui/screens/lists/items", token), http.StatusOK)

	view := h.OpenSession(t, "lists", map[string]any{"mode": "CREATE"}, token)
	h.AssertStatus(t, h.PATCH(SessionPath(view, "values"), map[string]any{"name": "anime"}, token), http.StatusOK)
	h.AssertStatus(t, h.POST(SessionPath(view, "submit"), nil, token), http.StatusOK)

	m := h.Metrics
	if got := testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("lists")); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("lists")); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MutationsTotal.WithLabelValues("lists", "create", "success")); got != 1 {
		t.Errorf("successful creates = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BackendRequestsTotal.WithLabelValues("lists", "POST", "201")); got != 1 {
		t.Errorf("backend POST requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ToastsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("success toasts = %v, want 1", got)
	}
}

func TestObservability_HealthAndOpenAPIArePublic(t *testing.T) {
	h := NewTestHarness(t)

	var health map[string]any
	h.AssertJSON(t, h.GET("/ui/health", ""), http.StatusOK, &health)
	if health["status"] != "ok" {
		t.Errorf("health = %v", health)
	}

	var doc map[string]any
	h.AssertJSON(t, h.GET("/ui/openapi.json", ""), http.StatusOK, &doc)
	paths, _ := doc["paths"].(map[string]any)
	if _, ok := paths["/ui/sessions/{sessionId}/submit"]; !ok {
		t.Error("openapi document is missing the submit operation")
	}
}
