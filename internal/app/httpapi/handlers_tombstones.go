package httpapi

import (
	"net/http"

	"github.com/taskwarden/taskwarden/internal/httputil"
)

func (h *handlers) listTombstones(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	items, err := h.app.Storage.Tombstones.ListTombstones(r.Context(), userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, items)
}
