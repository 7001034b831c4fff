// Package transport contains the HTTP router, middleware chain, and all
// request handlers for the BFF API.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/autobrr/autobrr-sub001/internal/apiclient"
	"github.com/autobrr/autobrr-sub001/internal/observability"
	"github.com/autobrr/autobrr-sub001/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:         http.StatusBadRequest,
	model.ErrUnauthorized:       http.StatusUnauthorized,
	model.ErrNotFound:           http.StatusNotFound,
	model.ErrSessionNotFound:    http.StatusNotFound,
	model.ErrScreenNotFound:     http.StatusNotFound,
	model.ErrConflict:           http.StatusConflict,
	model.ErrInvalidTransition:  http.StatusConflict,
	model.ErrSubmitInProgress:   http.StatusConflict,
	model.ErrValidationError:    http.StatusUnprocessableEntity,
	model.ErrRateLimited:        http.StatusTooManyRequests,
	model.ErrInternalError:      http.StatusInternalServerError,
	model.ErrMutationFailed:     http.StatusBadGateway,
	model.ErrFetchFailed:        http.StatusBadGateway,
	model.ErrBackendUnavailable: http.StatusServiceUnavailable,
	model.ErrBackendTimeout:     http.StatusGatewayTimeout,
}

type errorResponse struct {
	Error *model.ErrorEnvelope `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes err as an ErrorEnvelope with the matching status code.
// Errors from the autobrr client are translated; anything else is a 500.
// The envelope carries the trace id of ctx when one is recording.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	ee := envelopeFor(err)
	if ee.TraceID == "" {
		if id := observability.TraceIDFromContext(ctx); id != "" {
			cp := *ee
			cp.TraceID = id
			ee = &cp
		}
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}

func envelopeFor(err error) *model.ErrorEnvelope {
	var ee *model.ErrorEnvelope
	if errors.As(err, &ee) {
		return ee
	}
	var apiErr *apiclient.Error
	switch {
	case errors.Is(err, apiclient.ErrBreakerOpen):
		return model.NewBackendUnavailableError()
	case errors.Is(err, context.DeadlineExceeded):
		return model.NewBackendTimeoutError()
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusNotFound {
			return model.NewNotFoundError(apiErr.Message)
		}
		return model.NewFetchFailedError(apiErr.Message)
	}
	return model.NewInternalError()
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(context.Background(), w, model.NewNotFoundError(msg))
}

// WriteValidationError writes a 422 error response with field-level details.
func WriteValidationError(w http.ResponseWriter, details []model.FieldError) {
	WriteError(context.Background(), w, model.NewValidationError(details))
}
