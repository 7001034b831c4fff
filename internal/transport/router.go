package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/internal/notify"
	"github.com/autobrr/autobrr-sub001/internal/observability"
	"github.com/autobrr/autobrr-sub001/internal/openapi"
	"github.com/autobrr/autobrr-sub001/internal/screens"
	"github.com/autobrr/autobrr-sub001/internal/shell"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config    *config.Config
	Engine    *shell.Engine
	Navigator *shell.Navigator
	Screens   screens.Deps
	Executor  *mutation.Executor
	Toasts    *notify.Center
	OpenAPI   *openapi.Index
	Metrics   *observability.Metrics
	Readiness observability.ReadinessChecks
	Logger    *zap.Logger

	Authenticate func(http.Handler) http.Handler
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	// Public routes.
	r.Get("/ui/health", observability.HandleHealth())
	r.Get("/ui/ready", observability.HandleReady(deps.Readiness))
	if deps.Config.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, observability.Handler())
	}
	if deps.OpenAPI != nil {
		r.Get("/ui/openapi.json", deps.OpenAPI.Handler())
	}

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	// The toast stream hijacks the connection, so it stays clear of the
	// response writer wrappers and the handler timeout.
	if deps.Toasts != nil {
		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Use(BuildRequestContext)
			r.Get("/ui/toasts/stream", notify.StreamHandler(deps.Toasts, OriginAllowed(deps.Config.Server.CORS), logger))
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(observability.TracingMiddleware)
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}
		r.Use(auth)
		r.Use(BuildRequestContext)
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))

		r.Get("/ui/navigation", handleNavigation(deps))

		r.Get("/ui/screens/{screen}/items", handleListItems(deps))
		r.Post("/ui/screens/{screen}/items/{id}/{operation}", handleItemOperation(deps))
		r.Post("/ui/screens/{screen}/sessions", handleOpenSession(deps))
		r.Post("/ui/screens/{screen}/{operation}", handleScreenOperation(deps))

		r.Get("/ui/sessions/{sessionId}", handleGetSession(deps))
		r.Patch("/ui/sessions/{sessionId}/values", handleSetValues(deps))
		r.Post("/ui/sessions/{sessionId}/discriminant", handleChangeDiscriminant(deps))
		r.Post("/ui/sessions/{sessionId}/reset", handleResetSession(deps))
		r.Post("/ui/sessions/{sessionId}/submit", handleSubmit(deps))
		r.Post("/ui/sessions/{sessionId}/cancel", handleCancelSession(deps))
		r.Post("/ui/sessions/{sessionId}/delete:request", handleRequestDelete(deps))
		r.Post("/ui/sessions/{sessionId}/delete:cancel", handleCancelDelete(deps))
		r.Post("/ui/sessions/{sessionId}/delete:confirm", handleConfirmDelete(deps))
		r.Post("/ui/sessions/{sessionId}/test", handleTest(deps))

		if deps.Toasts != nil {
			r.Get("/ui/toasts", handleListToasts(deps))
		}
		r.Get("/ui/indexers/schema", handleIndexerSchema(deps))
		r.Get("/ui/indexers/options", handleIndexerOptions(deps))
	})

	return r
}
