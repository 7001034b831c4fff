package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/autobrr-sub001/internal/screens"
	"github.com/autobrr/autobrr-sub001/model"
)

func handleNavigation(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, deps.Navigator.Tree(r.Context()))
	}
}

// handleListItems serves a screen's table. Child screens need parent_id.
func handleListItems(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "screen")
		screen, ok := deps.Engine.Catalog().Get(id)
		if !ok {
			WriteError(r.Context(), w, model.NewScreenNotFoundError(id))
			return
		}
		if screen.List == nil {
			WriteError(r.Context(), w, model.NewNotFoundError(id+" has no table"))
			return
		}
		parentID := r.URL.Query().Get("parent_id")
		if screen.Parent != "" && parentID == "" {
			WriteError(r.Context(), w, model.NewBadRequestError("parent_id is required for "+id))
			return
		}

		items, err := screen.List(r.Context(), parentID)
		if err != nil {
			WriteError(r.Context(), w, err)
			return
		}
		if items == nil {
			items = []model.Values{}
		}
		WriteJSON(w, http.StatusOK, model.ItemsResponse{
			Data: model.ItemsPayload{Items: items, TotalCount: len(items)},
			Meta: map[string]any{"screen": id},
		})
	}
}

func handleItemOperation(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req screens.OperationRequest
		if err := decodeBody(r, deps.OpenAPI, "runItemOperation", &req); err != nil {
			WriteError(r.Context(), w, err)
			return
		}
		req.Screen = chi.URLParam(r, "screen")
		req.EntityID = chi.URLParam(r, "id")
		req.Operation = chi.URLParam(r, "operation")
		runOperation(deps, w, r, req)
	}
}

func handleScreenOperation(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runOperation(deps, w, r, screens.OperationRequest{
			Screen:    chi.URLParam(r, "screen"),
			Operation: chi.URLParam(r, "operation"),
		})
	}
}

func runOperation(deps Dependencies, w http.ResponseWriter, r *http.Request, req screens.OperationRequest) {
	out, err := screens.RunOperation(r.Context(), deps.Screens, deps.Executor, req)
	if err != nil {
		WriteError(r.Context(), w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": out.Message})
}

func handleIndexerSchema(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defs, err := screens.IndexerSchema(r.Context(), deps.Screens)
		if err != nil {
			WriteError(r.Context(), w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": defs})
	}
}

func handleIndexerOptions(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := screens.IndexerOptions(r.Context(), deps.Screens)
		if err != nil {
			WriteError(r.Context(), w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": opts})
	}
}
