package httpapi

import (
	"bytes"
	"io"
	"net/http"

	"github.com/taskwarden/taskwarden/internal/app/services/idempotency"
	"github.com/taskwarden/taskwarden/internal/errors"
	"github.com/taskwarden/taskwarden/internal/httputil"
	"github.com/taskwarden/taskwarden/internal/reqctx"
)

// idempotencyMethods is the set of methods an Idempotency-Key header is
// honored on; GET and DELETE are naturally idempotent and never consult
// the store even if a client sends the header.
var idempotencyMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// wrapWithIdempotency replays a previously recorded response when a
// request carries an Idempotency-Key seen before with an identical body,
// and records the response of a first-seen key so later replays have
// something to return.
func wrapWithIdempotency(next http.Handler, svc *idempotency.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" || !idempotencyMethods[r.Method] {
			next.ServeHTTP(w, r)
			return
		}

		userID := reqctx.UserID(r.Context())
		body, err := io.ReadAll(r.Body)
		if err != nil {
			httputil.WriteError(w, r, errors.ValidationError("body", "unable to read request body"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		bodyHash := idempotency.HashBody(body)

		outcome, err := svc.Check(r.Context(), userID, key, r.URL.Path, bodyHash)
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		if outcome.Replay {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(outcome.ResponseStatus)
			_, _ = w.Write(outcome.ResponseBody)
			return
		}

		rec := &capturingRecorder{ResponseWriter: w, status: http.StatusOK, body: &bytes.Buffer{}}
		next.ServeHTTP(rec, r)

		if rec.status < 500 {
			_ = svc.Save(r.Context(), userID, key, r.URL.Path, bodyHash, rec.status, rec.body.Bytes())
		}
	})
}

type capturingRecorder struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func (r *capturingRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *capturingRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
