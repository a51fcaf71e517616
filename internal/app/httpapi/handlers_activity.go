package httpapi

import (
	"net/http"

	"github.com/taskwarden/taskwarden/internal/httputil"
)

func (h *handlers) listActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	offset, limit := httputil.PaginationParams(r, 50, 200)
	items, total, err := h.app.Storage.Activity.List(r.Context(), userID, offset, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeList(w, r, items, offset, limit, total)
}
