package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwarden/taskwarden/internal/app/services/idempotency"
	"github.com/taskwarden/taskwarden/internal/app/storage/memory"
	"github.com/taskwarden/taskwarden/internal/reqctx"
)

func TestWrapWithIdempotencyReplaysIdenticalRequest(t *testing.T) {
	st := memory.New()
	svc := idempotency.New(st.Idempotency, time.Hour)

	var calls int32
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"call":` + strconv.Itoa(int(n)) + `}}`))
	})

	handler := wrapWithIdempotency(inner, svc)

	newRequest := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader([]byte(`{"title":"x"}`)))
		r.Header.Set("Idempotency-Key", "fixed-key-1")
		return r.WithContext(reqctx.WithUserID(r.Context(), "user-1"))
	}

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newRequest())
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, `{"data":{"call":1}}`, first.Body.String())

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newRequest())
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String(), "replay should return the first response verbatim")

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "the handler must not run twice for a replayed key")
}

func TestWrapWithIdempotencyScopesKeyPerUser(t *testing.T) {
	st := memory.New()
	svc := idempotency.New(st.Idempotency, time.Hour)

	var calls int32
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	})
	handler := wrapWithIdempotency(inner, svc)

	for _, userID := range []string{"user-1", "user-2"} {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader([]byte(`{"title":"x"}`)))
		r.Header.Set("Idempotency-Key", "shared-key")
		r = r.WithContext(reqctx.WithUserID(r.Context(), userID))
		handler.ServeHTTP(httptest.NewRecorder(), r)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "the same key for two different users must not collide")
}

func TestWrapWithIdempotencySkipsGET(t *testing.T) {
	st := memory.New()
	svc := idempotency.New(st.Idempotency, time.Hour)

	var calls int32
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	})
	handler := wrapWithIdempotency(inner, svc)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
		r.Header.Set("Idempotency-Key", "ignored-on-get")
		handler.ServeHTTP(httptest.NewRecorder(), r)
	}

	require.Equal(t, int32(2), atomic.LoadInt32(&calls), "GET requests should never be deduplicated")
}
