package model

import "context"

// Anonymous owns the sessions opened while authentication is disabled.
const Anonymous = "anonymous"

// RequestContext identifies the caller of an authenticated request. Form
// sessions are owned by Username; the IDs tie log lines and toasts to the
// request that produced them.
type RequestContext struct {
	Username      string
	Claims        map[string]any
	CorrelationID string
	TraceID       string
	Locale        string
}

type requestContextKey struct{}

// WithRequestContext returns a copy of ctx carrying rc.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the RequestContext of ctx, or nil.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}

// UsernameFrom returns the session owner for ctx, Anonymous when the request
// carried no identity.
func UsernameFrom(ctx context.Context) string {
	if rc := RequestContextFrom(ctx); rc != nil && rc.Username != "" {
		return rc.Username
	}
	return Anonymous
}
