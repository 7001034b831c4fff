package transport

import (
	"net/http"
	"strconv"

	"github.com/autobrr/autobrr-sub001/model"
)

// handleListToasts returns live toasts newer than the "since" sequence
// number, for clients polling instead of holding the stream open.
func handleListToasts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var since uint64
		if raw := r.URL.Query().Get("since"); raw != "" {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				WriteError(r.Context(), w, model.NewBadRequestError("since must be a non-negative integer"))
				return
			}
			since = v
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": deps.Toasts.Since(since)})
	}
}
