package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskwarden/taskwarden/internal/httputil"
)

func writeData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	httputil.WriteData(w, status, data)
}

func writeList(w http.ResponseWriter, r *http.Request, data interface{}, offset, limit, total int) {
	httputil.WriteList(w, data, offset, limit, total)
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err)
}

func pathVar(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}
