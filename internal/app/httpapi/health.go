package httpapi

import (
	"net/http"

	"github.com/taskwarden/taskwarden/internal/app/metrics"
)

func metricsHandler() http.Handler {
	return metrics.Handler()
}

// healthLive reports process liveness only; it never touches the database
// so a degraded dependency doesn't cause the orchestrator to kill a
// process that could otherwise recover.
func (h *handlers) healthLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"live"}`))
}

// healthReady additionally checks the database connection, the dependency
// most likely to make the process unable to serve real traffic.
func (h *handlers) healthReady(w http.ResponseWriter, r *http.Request) {
	if h.app.DB != nil {
		if err := h.app.DB.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

func (h *handlers) systemDescriptors(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, h.app.Manager.Descriptors())
}
