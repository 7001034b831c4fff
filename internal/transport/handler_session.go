package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/autobrr-sub001/internal/openapi"
	"github.com/autobrr/autobrr-sub001/internal/shell"
	"github.com/autobrr/autobrr-sub001/model"
)

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON body, checks it against the operation's schema and
// decodes it into dst. An empty body decodes as an empty object.
func decodeBody(r *http.Request, idx *openapi.Index, operationID string, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return model.NewBadRequestError("Could not read request body")
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return model.NewBadRequestError("Request body is not valid JSON")
	}
	if idx != nil {
		if errs := idx.ValidateRequest(operationID, generic); len(errs) > 0 {
			details := make([]model.FieldError, 0, len(errs))
			for _, e := range errs {
				details = append(details, model.FieldError{Field: e.Field, Code: model.FieldInvalid, Message: e.Message})
			}
			return model.NewValidationError(details)
		}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return model.NewBadRequestError("Request body does not match the expected shape")
	}
	return nil
}

func handleOpenSession(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req shell.OpenRequest
		if err := decodeBody(r, deps.OpenAPI, "openSession", &req); err != nil {
			WriteError(r.Context(), w, err)
			return
		}
		req.Screen = chi.URLParam(r, "screen")

		view, err := deps.Engine.Open(r.Context(), req)
		if err != nil {
			WriteError(r.Context(), w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, view)
	}
}

func handleGetSession(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := deps.Engine.Get(r.Context(), chi.URLParam(r, "sessionId"))
		writeShell(w, r, view, err)
	}
}

func handleSetValues(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patch := map[string]any{}
		if err := decodeBody(r, deps.OpenAPI, "setValues", &patch); err != nil {
			WriteError(r.Context(), w, err)
			return
		}
		view, err := deps.Engine.SetValues(r.Context(), chi.URLParam(r, "sessionId"), patch)
		writeShell(w, r, view, err)
	}
}

func handleChangeDiscriminant(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Value string `json:"value"`
		}
		if err := decodeBody(r, deps.OpenAPI, "changeDiscriminant", &body); err != nil {
			WriteError(r.Context(), w, err)
			return
		}
		view, err := deps.Engine.ChangeDiscriminant(r.Context(), chi.URLParam(r, "sessionId"), body.Value)
		writeShell(w, r, view, err)
	}
}

func handleResetSession(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := deps.Engine.Reset(r.Context(), chi.URLParam(r, "sessionId"))
		writeShell(w, r, view, err)
	}
}

// handleSubmit answers a concurrent second submit with 409 and an "ignored"
// status rather than an error envelope; the first submit is unaffected.
func handleSubmit(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := deps.Engine.Submit(r.Context(), chi.URLParam(r, "sessionId"), shell.SubmitOptions{
			IdempotencyKey: r.Header.Get("X-Idempotency-Key"),
		})
		writeSubmit(w, r, resp, err)
	}
}

func handleCancelSession(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Engine.Cancel(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
			WriteError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRequestDelete(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := deps.Engine.RequestDelete(r.Context(), chi.URLParam(r, "sessionId"))
		writeShell(w, r, view, err)
	}
}

func handleCancelDelete(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := deps.Engine.CancelDelete(r.Context(), chi.URLParam(r, "sessionId"))
		writeShell(w, r, view, err)
	}
}

func handleConfirmDelete(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := deps.Engine.ConfirmDelete(r.Context(), chi.URLParam(r, "sessionId"))
		writeSubmit(w, r, resp, err)
	}
}

func handleTest(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := deps.Engine.Test(r.Context(), chi.URLParam(r, "sessionId"))
		writeShell(w, r, view, err)
	}
}

func writeShell(w http.ResponseWriter, r *http.Request, view model.ShellDescriptor, err error) {
	if err != nil {
		WriteError(r.Context(), w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

func writeSubmit(w http.ResponseWriter, r *http.Request, resp model.SubmitResponse, err error) {
	var ee *model.ErrorEnvelope
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, resp)
	case errors.As(err, &ee) && ee.Code == model.ErrSubmitInProgress:
		WriteJSON(w, http.StatusConflict, model.SubmitResponse{Status: model.SubmitIgnored, Message: ee.Message})
	default:
		WriteError(r.Context(), w, err)
	}
}
