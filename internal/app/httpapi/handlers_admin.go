package httpapi

import (
	"net/http"

	"github.com/taskwarden/taskwarden/internal/httputil"
)

// resetJob manually returns a dead-lettered job to pending so the worker
// picks it back up on its next poll. No separate admin role is modeled;
// any authenticated caller can reach it, same as the rest of the API.
func (h *handlers) resetJob(w http.ResponseWriter, r *http.Request) {
	if _, ok := httputil.RequireUserID(w, r); !ok {
		return
	}
	j, err := h.app.Storage.Jobs.Reset(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, j)
}
