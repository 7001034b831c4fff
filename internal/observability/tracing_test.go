package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/autobrr/autobrr-sub001/internal/config"
)

func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exp
}

func onlySpan(t *testing.T, exp *tracetest.InMemoryExporter) tracetest.SpanStub {
	t.Helper()
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	return spans[0]
}

func attrs(s tracetest.SpanStub) map[string]string {
	out := make(map[string]string, len(s.Attributes))
	for _, kv := range s.Attributes {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestInitTracing(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.TracingConfig
		wantErr string
	}{
		{name: "disabled", cfg: config.TracingConfig{Exporter: "zipkin"}},
		{name: "stdout", cfg: config.TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 1}},
		{name: "unknown exporter", cfg: config.TracingConfig{Enabled: true, Exporter: "zipkin"}, wantErr: `unknown exporter "zipkin"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := InitTracing(context.Background(), tt.cfg, "autobrr-bff", "dev")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want it to mention %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("InitTracing: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Errorf("shutdown: %v", err)
			}
		})
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 0, want: "TraceIDRatioBased{0.1}"},
		{rate: -3, want: "TraceIDRatioBased{0.1}"},
		{rate: 0.25, want: "TraceIDRatioBased{0.25}"},
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 7, want: "AlwaysOnSampler"},
	}
	for _, tt := range tests {
		desc := newSampler(config.TracingConfig{SamplingRate: tt.rate}).Description()
		if !strings.Contains(desc, tt.want) {
			t.Errorf("rate %v: sampler = %s, want root %s", tt.rate, desc, tt.want)
		}
	}
}

func TestStartSpan_MutationAttributes(t *testing.T) {
	exp := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "mutation.update",
		AttrResource.String("notifications"),
		AttrEntityID.String("4"),
	)
	if trace.SpanFromContext(ctx) != span {
		t.Error("returned context does not carry the span")
	}
	EndSpanWithError(span, nil)

	s := onlySpan(t, exp)
	got := attrs(s)
	if got["bff.resource"] != "notifications" || got["bff.entity_id"] != "4" {
		t.Errorf("attributes = %v", got)
	}
	if s.Status.Code == codes.Error {
		t.Error("span without error has error status")
	}
}

func TestEndSpanWithError(t *testing.T) {
	exp := recordSpans(t)

	_, span := StartSpan(context.Background(), "apiclient.request")
	EndSpanWithError(span, errors.New("autobrr: 500 database is locked"))

	s := onlySpan(t, exp)
	if s.Status.Code != codes.Error || s.Status.Description != "autobrr: 500 database is locked" {
		t.Errorf("status = %+v", s.Status)
	}
	if len(s.Events) == 0 {
		t.Error("error was not recorded as an event")
	}
}

func TestTraceIDFromContext(t *testing.T) {
	if id := TraceIDFromContext(context.Background()); id != "" {
		t.Errorf("trace id without span = %q", id)
	}

	recordSpans(t)
	ctx, span := StartSpan(context.Background(), "shell.open")
	defer span.End()
	if got, want := TraceIDFromContext(ctx), span.SpanContext().TraceID().String(); got != want {
		t.Errorf("trace id = %q, want %q", got, want)
	}
}

func TestInjectTraceHeaders(t *testing.T) {
	recordSpans(t)
	ctx, span := StartSpan(context.Background(), "apiclient.request")
	defer span.End()

	h := http.Header{}
	InjectTraceHeaders(ctx, h)
	if !strings.Contains(h.Get("Traceparent"), span.SpanContext().TraceID().String()) {
		t.Errorf("traceparent = %q", h.Get("Traceparent"))
	}
}

func TestTracingMiddleware_NamesSpanAfterRoute(t *testing.T) {
	exp := recordSpans(t)

	r := chi.NewRouter()
	r.Use(TracingMiddleware)
	r.Post("/ui/sessions/{sessionId}/submit", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/ui/sessions/7f3a/submit", nil))

	s := onlySpan(t, exp)
	if s.Name != "POST /ui/sessions/{sessionId}/submit" {
		t.Errorf("span name = %q", s.Name)
	}
	if s.SpanKind != trace.SpanKindServer {
		t.Errorf("span kind = %v", s.SpanKind)
	}
	got := attrs(s)
	if got["bff.session_id"] != "7f3a" {
		t.Errorf("session attribute = %q", got["bff.session_id"])
	}
	if got["http.response.status_code"] != "202" {
		t.Errorf("status attribute = %q", got["http.response.status_code"])
	}
}

func TestTracingMiddleware_UnroutedKeepsPath(t *testing.T) {
	exp := recordSpans(t)

	h := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ui/screens/feeds/items", nil))

	s := onlySpan(t, exp)
	if s.Name != "GET /ui/screens/feeds/items" {
		t.Errorf("span name = %q", s.Name)
	}
	if s.Status.Code != codes.Error {
		t.Errorf("502 span status = %v, want Error", s.Status.Code)
	}
}

func TestTracingMiddleware_ContinuesInboundTrace(t *testing.T) {
	exp := recordSpans(t)

	const (
		traceID = "0af7651916cd43dd8448eb211c80319c"
		parent  = "b7ad6b7169203331"
	)
	req := httptest.NewRequest(http.MethodGet, "/ui/navigation", nil)
	req.Header.Set("Traceparent", "00-"+traceID+"-"+parent+"-01")
	rec := httptest.NewRecorder()

	TracingMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, req)

	s := onlySpan(t, exp)
	if s.SpanContext.TraceID().String() != traceID || s.Parent.SpanID().String() != parent {
		t.Errorf("span %s/%s does not continue %s/%s",
			s.SpanContext.TraceID(), s.Parent.SpanID(), traceID, parent)
	}
	if !strings.Contains(rec.Header().Get("Traceparent"), traceID) {
		t.Errorf("response traceparent = %q", rec.Header().Get("Traceparent"))
	}
}
