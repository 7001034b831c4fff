package integration

import (
	"bytes"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/internal/notify"
)

// ==========================================================================
// Create
// ==========================================================================

func TestForm_CreateNotification(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("POST", "/api/notification").
		RespondWith(http.StatusCreated, NotificationFixture(7, "ops", "DISCORD"))

	view := h.OpenSession(t, "notifications", map[string]any{"mode": "CREATE"}, token)
	if view["mode"] != "CREATE" || view["state"] != "OPEN" {
		t.Fatalf("opened view = %s", FormatJSON(view))
	}
	if view["discriminant"] != "DISCORD" {
		t.Errorf("discriminant = %v, want DISCORD default", view["discriminant"])
	}

	var patched map[string]any
	h.AssertJSON(t, h.PATCH(SessionPath(view, "values"), map[string]any{
		"name":    "ops",
		"webhook": "https://discord.com/api/webhooks/1",
		"events":  []string{"PUSH_APPROVED"},
	}, token), http.StatusOK, &patched)
	if patched["dirty"] != true {
		t.Error("dirty = false after editing")
	}

	var result map[string]any
	h.AssertJSON(t, h.POST(SessionPath(view, "submit"), nil, token), http.StatusOK, &result)
	if result["status"] != "closed" {
		t.Errorf("submit status = %v, want closed", result["status"])
	}

	req := h.Autobrr().LastRequest("POST", "/api/notification")
	if req == nil {
		t.Fatal("POST /api/notification not called")
	}
	if req.Body["name"] != "ops" || req.Body["type"] != "DISCORD" {
		t.Errorf("create payload = %s", FormatJSON(req.Body))
	}
	if req.Headers.Get("X-API-Token") != "integration-token" {
		t.Errorf("X-API-Token = %q", req.Headers.Get("X-API-Token"))
	}

	// The session closed with the submit.
	h.AssertStatus(t, h.GET(SessionPath(view, ""), token), http.StatusNotFound)
}

func TestForm_InvalidSubmitNeverReachesAutobrr(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(AdminClaims())

	view := h.OpenSession(t, "notifications", map[string]any{"mode": "CREATE"}, token)

	var body map[string]any
	h.AssertJSON(t, h.POST(SessionPath(view, "submit"), nil, token), http.StatusUnprocessableEntity, &body)
	if ErrorCode(body) != "VALIDATION_ERROR" {
		t.Errorf("error code = %q, want VALIDATION_ERROR", ErrorCode(body))
	}
	h.Autobrr().AssertNotCalled(t, "POST", "/api/notification")

	var current map[string]any
	h.AssertJSON(t, h.GET(SessionPath(view, ""), token), http.StatusOK, &current)
	errs, _ := current["errors"].([]any)
	if len(errs) == 0 {
		t.Error("session shows no field errors after a rejected submit")
	}
}

func TestForm_ChangingTypeResetsNotificationSettings(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(AdminClaims())

	view := h.OpenSession(t, "notifications", map[string]any{"mode": "CREATE"}, token)
	h.AssertStatus(t, h.PATCH(SessionPath(view, "values"), map[string]any{
		"name":    "ops",
		"webhook": "https://discord.com/api/webhooks/1",
	}, token), http.StatusOK)

	var changed map[string]any
	h.AssertJSON(t, h.POST(SessionPath(view, "discriminant"), map[string]any{"value": "TELEGRAM"}, token), http.StatusOK, &changed)
	if changed["discriminant"] != "TELEGRAM" {
		t.Fatalf("discriminant = %v, want TELEGRAM", changed["discriminant"])
	}
	values, _ := changed["values"].(map[string]any)
	if _, ok := values["webhook"]; ok {
		t.Errorf("webhook survived a notification type change: %s", FormatJSON(values))
	}
}

// ==========================================================================
// Update
// ==========================================================================

func TestForm_UpdateNotificationInvalidatesList(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("GET", "/api/notification").
		RespondWith(http.StatusOK, []any{NotificationFixture(4, "ops", "DISCORD")})
	h.Autobrr().On("PUT", "/api/notification/4").
		RespondWith(http.StatusOK, NotificationFixture(4, "alerts", "DISCORD"))

	view := h.OpenSession(t, "notifications", map[string]any{"mode": "UPDATE", "id": "4"}, token)
	values, _ := view["values"].(map[string]any)
	if values["name"] != "ops" {
		t.Fatalf("loaded values = %s", FormatJSON(values))
	}

	// The table reads the list the form was loaded from.
	h.AssertStatus(t, h.GET("/ui/screens/notifications/items", token), http.StatusOK)
	h.Autobrr().AssertCalled(t, "GET", "/api/notification", 1)

	h.AssertStatus(t, h.PATCH(SessionPath(view, "values"), map[string]any{"name": "alerts"}, token), http.StatusOK)
	h.AssertStatus(t, h.POST(SessionPath(view, "submit"), nil, token), http.StatusOK)

	req := h.Autobrr().LastRequest("PUT", "/api/notification/4")
	if req == nil || req.Body["name"] != "alerts" {
		t.Fatalf("update payload = %+v", req)
	}

	h.AssertStatus(t, h.GET("/ui/screens/notifications/items", token), http.StatusOK)
	h.Autobrr().AssertCalled(t, "GET", "/api/notification", 2)

	var toasts map[string]any
	h.AssertJSON(t, h.GET("/ui/toasts?since=0", token), http.StatusOK, &toasts)
	list, _ := toasts["data"].([]any)
	if len(list) != 1 {
		t.Fatalf("toasts = %s", FormatJSON(toasts))
	}
	toast, _ := list[0].(map[string]any)
	if toast["message"] != "Notification was updated successfully" {
		t.Errorf("toast message = %v", toast["message"])
	}
}

func TestForm_UpdateUnknownEntity(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("GET", "/api/notification").RespondWith(http.StatusOK, []any{})

	var body map[string]any
	h.AssertJSON(t, h.POST("/ui/screens/notifications/sessions",
		map[string]any{"mode": "UPDATE", "id": "99"}, token), http.StatusBadGateway, &body)
	if ErrorCode(body) != "FETCH_FAILED" {
		t.Errorf("error code = %q, want FETCH_FAILED", ErrorCode(body))
	}
}

// ==========================================================================
// Delete
// ==========================================================================

func TestForm_DeleteNeedsConfirmation(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("GET", "/api/notification").
		RespondWith(http.StatusOK, []any{NotificationFixture(4, "ops", "DISCORD")})
	h.Autobrr().On("DELETE", "/api/notification/4").RespondWith(http.StatusNoContent, nil)

	view := h.OpenSession(t, "notifications", map[string]any{"mode": "UPDATE", "id": "4"}, token)

	var body map[string]any
	h.AssertJSON(t, h.POST(SessionPath(view, "delete:confirm"), nil, token), http.StatusConflict, &body)
	if ErrorCode(body) != "INVALID_TRANSITION" {
		t.Errorf("error code = %q, want INVALID_TRANSITION", ErrorCode(body))
	}
	h.Autobrr().AssertNotCalled(t, "DELETE", "/api/notification/4")

	var requested map[string]any
	h.AssertJSON(t, h.POST(SessionPath(view, "delete:request"), nil, token), http.StatusOK, &requested)
	if requested["deletion"] != "REQUESTED" {
		t.Errorf("deletion = %v, want REQUESTED", requested["deletion"])
	}
	if requested["confirmation"] == nil {
		t.Error("confirmation dialog missing after delete request")
	}

	var result map[string]any
	h.AssertJSON(t, h.POST(SessionPath(view, "delete:confirm"), nil, token), http.StatusOK, &result)
	if result["status"] != "closed" {
		t.Errorf("status = %v, want closed", result["status"])
	}
	h.Autobrr().AssertCalled(t, "DELETE", "/api/notification/4", 1)
}

func TestForm_DeleteFailureReportsReason(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("GET", "/api/notification").
		RespondWith(http.StatusOK, []any{NotificationFixture(4, "ops", "DISCORD")})
	h.Autobrr().On("DELETE", "/api/notification/4").
		RespondWithText(http.StatusBadRequest, "notification is in use")

	view := h.OpenSession(t, "notifications", map[string]any{"mode": "UPDATE", "id": "4"}, token)
	h.AssertStatus(t, h.POST(SessionPath(view, "delete:request"), nil, token), http.StatusOK)

	var body map[string]any
	h.AssertJSON(t, h.POST(SessionPath(view, "delete:confirm"), nil, token), http.StatusBadGateway, &body)
	if ErrorCode(body) != "MUTATION_FAILED" {
		t.Errorf("error code = %q, want MUTATION_FAILED", ErrorCode(body))
	}
	e, _ := body["error"].(map[string]any)
	if e["message"] != "Notification could not be deleted: notification is in use" {
		t.Errorf("message = %v", e["message"])
	}

	var toasts map[string]any
	h.AssertJSON(t, h.GET("/ui/toasts?since=0", token), http.StatusOK, &toasts)
	list, _ := toasts["data"].([]any)
	if len(list) != 1 {
		t.Fatalf("toasts = %s", FormatJSON(toasts))
	}
	if toast, _ := list[0].(map[string]any); toast["kind"] != "error" {
		t.Errorf("toast kind = %v, want error", toast["kind"])
	}
}

func TestForm_CreateSessionCannotDelete(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(AdminClaims())

	view := h.OpenSession(t, "feeds", map[string]any{"mode": "CREATE"}, token)
	h.AssertStatus(t, h.POST(SessionPath(view, "delete:request"), nil, token), http.StatusConflict)
}

// ==========================================================================
// Test action
// ==========================================================================

func TestForm_TestNotificationSuccess(t *testing.T) {
	h := NewTestHarness(t, WithTestIndicator(config.TestIndicatorConfig{
		SuccessHold: time.Minute,
		FailureHold: time.Minute,
	}))
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("POST", "/api/notification/test").RespondWith(http.StatusOK, nil)

	view := h.OpenSession(t, "notifications", map[string]any{"mode": "CREATE"}, token)
	h.AssertStatus(t, h.PATCH(SessionPath(view, "values"), map[string]any{
		"name":    "ops",
		"webhook": "https://discord.com/api/webhooks/1",
	}, token), http.StatusOK)

	var tested map[string]any
	h.AssertJSON(t, h.POST(SessionPath(view, "test"), nil, token), http.StatusOK, &tested)
	indicator, _ := tested["test"].(map[string]any)
	if indicator["state"] != "success" || indicator["label"] != "OK!" {
		t.Errorf("indicator = %s", FormatJSON(indicator))
	}

	req := h.Autobrr().LastRequest("POST", "/api/notification/test")
	if req == nil || req.Body["webhook"] != "https://discord.com/api/webhooks/1" {
		t.Fatalf("test payload = %+v", req)
	}

	// Testing leaves the session open and the toast says the message went out.
	h.AssertStatus(t, h.GET(SessionPath(view, ""), token), http.StatusOK)
	toasts := h.Toasts.Since(0)
	if len(toasts) != 1 || toasts[0].Message != "Test notification sent" {
		t.Errorf("toasts = %+v", toasts)
	}
}

func TestForm_TestFailureShowsIndicatorOnly(t *testing.T) {
	h := NewTestHarness(t, WithTestIndicator(config.TestIndicatorConfig{
		SuccessHold: time.Minute,
		FailureHold: time.Minute,
	}))
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("POST", "/api/download_clients/test").
		RespondWithText(http.StatusBadRequest, "connection refused")

	view := h.OpenSession(t, "download_clients", map[string]any{"mode": "CREATE"}, token)

	var tested map[string]any
	h.AssertJSON(t, h.POST(SessionPath(view, "test"), nil, token), http.StatusOK, &tested)
	indicator, _ := tested["test"].(map[string]any)
	if indicator["state"] != "failure" {
		t.Errorf("indicator = %s", FormatJSON(indicator))
	}
	if indicator["message"] != "Test failed: connection refused" {
		t.Errorf("indicator message = %v", indicator["message"])
	}
	if toasts := h.Toasts.Since(0); len(toasts) != 0 {
		t.Errorf("failed test raised toasts: %+v", toasts)
	}
}

func TestForm_TestIsRateLimited(t *testing.T) {
	h := NewTestHarness(t, WithRateLimit(config.RateLimitConfig{TestsPerMinute: 1, Burst: 1}))
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("POST", "/api/notification/test").RespondWith(http.StatusOK, nil)

	view := h.OpenSession(t, "notifications", map[string]any{"mode": "CREATE"}, token)
	h.AssertStatus(t, h.POST(SessionPath(view, "test"), nil, token), http.StatusOK)

	var body map[string]any
	h.AssertJSON(t, h.POST(SessionPath(view, "test"), nil, token), http.StatusTooManyRequests, &body)
	if ErrorCode(body) != "RATE_LIMITED" {
		t.Errorf("error code = %q, want RATE_LIMITED", ErrorCode(body))
	}
	h.Autobrr().AssertCalled(t, "POST", "/api/notification/test", 1)
}

// ==========================================================================
// Submit concurrency and idempotency
// ==========================================================================

func TestForm_SecondSubmitIsIgnored(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("POST", "/api/lists").
		RespondWithDelay(400*time.Millisecond, http.StatusCreated, map[string]any{"id": 3, "name": "anime"})

	view := h.OpenSession(t, "lists", map[string]any{"mode": "CREATE"}, token)
	h.AssertStatus(t, h.PATCH(SessionPath(view, "values"), map[string]any{"name": "anime"}, token), http.StatusOK)

	var (
		wg          sync.WaitGroup
		firstStatus int
		firstErr    error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		req, err := http.NewRequest(http.MethodPost, h.BaseURL()+SessionPath(view, "submit"), bytes.NewReader(nil))
		if err != nil {
			firstErr = err
			return
		}
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			firstErr = err
			return
		}
		resp.Body.Close()
		firstStatus = resp.StatusCode
	}()

	time.Sleep(100 * time.Millisecond)

	var second map[string]any
	h.AssertJSON(t, h.POST(SessionPath(view, "submit"), nil, token), http.StatusConflict, &second)
	if second["status"] != "ignored" {
		t.Errorf("second submit status = %v, want ignored", second["status"])
	}

	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first submit: %v", firstErr)
	}
	if firstStatus != http.StatusOK {
		t.Errorf("first submit status = %d, want 200", firstStatus)
	}
	h.Autobrr().AssertCalled(t, "POST", "/api/lists", 1)
}

func TestForm_IdempotentSubmitReplays(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts []HarnessOption
	}{
		{name: "memory", opts: []HarnessOption{WithIdempotency()}},
		{name: "redis", opts: []HarnessOption{WithIdempotency(), WithRedis()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := NewTestHarness(t, tc.opts...)
			token := h.GenerateToken(AdminClaims())

			h.Autobrr().On("POST", "/api/lists").
				RespondWith(http.StatusCreated, map[string]any{"id": 3, "name": "anime"})

			headers := map[string]string{"X-Idempotency-Key": "create-anime-1"}
			for range 2 {
				view := h.OpenSession(t, "lists", map[string]any{"mode": "CREATE"}, token)
				h.AssertStatus(t, h.PATCH(SessionPath(view, "values"), map[string]any{"name": "anime"}, token), http.StatusOK)

				var result map[string]any
				h.AssertJSON(t, h.POSTWithHeaders(SessionPath(view, "submit"), nil, token, headers), http.StatusOK, &result)
				if result["status"] != "closed" {
					t.Errorf("status = %v, want closed", result["status"])
				}
			}
			h.Autobrr().AssertCalled(t, "POST", "/api/lists", 1)
		})
	}
}

func TestForm_LateSuccessAfterCancelInvalidates(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("GET", "/api/lists").RespondWith(http.StatusOK, []any{})
	h.Autobrr().On("POST", "/api/lists").
		RespondWithDelay(300*time.Millisecond, http.StatusCreated, map[string]any{"id": 3, "name": "anime"})

	h.AssertStatus(t, h.GET("/ui/screens/lists/items", token), http.StatusOK)

	view := h.OpenSession(t, "lists", map[string]any{"mode": "CREATE"}, token)
	h.AssertStatus(t, h.PATCH(SessionPath(view, "values"), map[string]any{"name": "anime"}, token), http.StatusOK)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req, err := http.NewRequest(http.MethodPost, h.BaseURL()+SessionPath(view, "submit"), nil)
		if err != nil {
			return
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
		}
	}()

	time.Sleep(100 * time.Millisecond)
	h.AssertStatus(t, h.POST(SessionPath(view, "cancel"), nil, token), http.StatusNoContent)
	<-done

	h.AssertStatus(t, h.GET("/ui/screens/lists/items", token), http.StatusOK)
	h.Autobrr().AssertCalled(t, "GET", "/api/lists", 2)
}

// ==========================================================================
// Tables and row operations
// ==========================================================================

func TestItems_RedisCacheServesRepeatedReads(t *testing.T) {
	h := NewTestHarness(t, WithRedis())
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("GET", "/api/feeds").
		RespondWith(http.StatusOK, []any{FeedFixture(1, "tl"), FeedFixture(2, "btn")})

	for range 3 {
		var body map[string]any
		h.AssertJSON(t, h.GET("/ui/screens/feeds/items", token), http.StatusOK, &body)
		data, _ := body["data"].(map[string]any)
		if data["total_count"] != float64(2) {
			t.Fatalf("items = %s", FormatJSON(body))
		}
	}
	h.Autobrr().AssertCalled(t, "GET", "/api/feeds", 1)
	if len(h.Redis.Keys()) == 0 {
		t.Error("no keys written to redis")
	}
}

func TestItems_RowOperations(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("GET", "/api/irc/network/5/restart").RespondWith(http.StatusOK, nil)
	h.Autobrr().On("GET", "/api/filters/9/duplicate").RespondWith(http.StatusOK, map[string]any{"id": 10, "name": "copy"})
	h.Autobrr().On("PATCH", "/api/actions/11/toggleEnabled").RespondWith(http.StatusNoContent, nil)

	var body map[string]any
	h.AssertJSON(t, h.POST("/ui/screens/irc_networks/items/5/restart", map[string]any{"name": "IPT"}, token), http.StatusOK, &body)
	if body["message"] != "IPT was successfully restarted" {
		t.Errorf("restart message = %v", body["message"])
	}

	h.AssertStatus(t, h.POST("/ui/screens/filters/items/9/duplicate", nil, token), http.StatusOK)
	h.AssertStatus(t, h.POST("/ui/screens/actions/items/11/toggle", map[string]any{"name": "grab", "enabled": false}, token), http.StatusOK)

	h.Autobrr().AssertCalled(t, "GET", "/api/irc/network/5/restart", 1)
	h.Autobrr().AssertCalled(t, "GET", "/api/filters/9/duplicate", 1)
	h.Autobrr().AssertCalled(t, "PATCH", "/api/actions/11/toggleEnabled", 1)
}

// ==========================================================================
// Toast stream
// ==========================================================================

func TestToasts_StreamReplaysAndPushes(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(AdminClaims())

	h.Autobrr().On("POST", "/api/lists/refresh").RespondWith(http.StatusOK, nil)
	h.AssertStatus(t, h.POST("/ui/screens/lists/refresh", nil, token), http.StatusOK)

	conn := h.DialToasts(token, 0)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var replayed notify.Toast
	if err := conn.ReadJSON(&replayed); err != nil {
		t.Fatalf("read replayed toast: %v", err)
	}
	if replayed.Message != "All lists are refreshing" || replayed.Kind != notify.KindSuccess {
		t.Errorf("replayed toast = %+v", replayed)
	}

	// Toasts raised after the replay arrive as they happen.
	h.Toasts.Notify(notify.KindError, "Feed could not be updated: boom")
	var pushed notify.Toast
	if err := conn.ReadJSON(&pushed); err != nil {
		t.Fatalf("read pushed toast: %v", err)
	}
	if pushed.Seq <= replayed.Seq {
		t.Errorf("pushed seq %d not after replayed seq %d", pushed.Seq, replayed.Seq)
	}
	if pushed.Message != "Feed could not be updated: boom" {
		t.Errorf("pushed toast = %+v", pushed)
	}
}

func TestToasts_StreamRequiresAuth(t *testing.T) {
	h := NewTestHarness(t)

	resp := h.GET("/ui/toasts/stream", "")
	h.AssertStatus(t, resp, http.StatusUnauthorized)
}
