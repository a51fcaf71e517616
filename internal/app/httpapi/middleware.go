package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/taskwarden/taskwarden/internal/errors"
	"github.com/taskwarden/taskwarden/internal/httputil"
	"github.com/taskwarden/taskwarden/internal/platform/cache"
	"github.com/taskwarden/taskwarden/internal/reqctx"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

// wrapWithRequestID assigns (or propagates, for X-Request-ID-carrying
// clients) a request id and stores it on the context and response header
// before anything else runs, so every later middleware and handler can log
// against it.
func wrapWithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := reqctx.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// wrapWithSecurityHeaders sets the small fixed set of headers every
// response carries regardless of route.
func wrapWithSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// wrapWithLogging emits one structured line per request once it completes,
// carrying the request id, route, status, and duration.
func wrapWithLogging(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		log.WithFields(map[string]interface{}{
			"request_id": reqctx.RequestID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// wrapWithCORS allows cross-origin requests from the configured origins and
// short-circuits preflight requests before auth ever sees them.
func wrapWithCORS(next http.Handler, origins []string) http.Handler {
	allowAll := len(origins) == 0
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if _, ok := set[origin]; ok {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter enforces a fixed per-minute budget per (bucket, identity)
// pair. With a Cache configured it uses Redis fixed-window counters so the
// budget is shared across replicas; otherwise it falls back to an
// in-process golang.org/x/time/rate limiter per identity, which only
// bounds a single instance but keeps local dev and single-replica
// deployments working without Redis.
type rateLimiter struct {
	cache       cache.Cache
	perMinute   int
	bucket      string
	mu          sync.Mutex
	local       map[string]*rate.Limiter
}

func newRateLimiter(c cache.Cache, perMinute int, bucket string) *rateLimiter {
	return &rateLimiter{cache: c, perMinute: perMinute, bucket: bucket, local: make(map[string]*rate.Limiter)}
}

func (rl *rateLimiter) allow(ctx context.Context, identity string) (bool, int) {
	if rl.perMinute <= 0 {
		return true, 0
	}
	if rl.cache != nil {
		key := "ratelimit:" + rl.bucket + ":" + identity
		n, err := rl.cache.Increment(ctx, key, 1, time.Minute)
		if err == nil {
			return int(n) <= rl.perMinute, 60
		}
		// fall through to the local limiter if redis is unreachable, rather
		// than failing every request closed.
	}
	return rl.localAllow(identity), 60
}

func (rl *rateLimiter) localAllow(identity string) bool {
	rl.mu.Lock()
	lim, ok := rl.local[identity]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(rl.perMinute)/60.0), rl.perMinute)
		rl.local[identity] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

// wrapWithRateLimit applies generalLimiter to every request and, for paths
// under /ai/, additionally applies aiLimiter. The identity is the
// authenticated user id, falling back to the remote address for
// unauthenticated requests (auth endpoints).
func wrapWithRateLimit(next http.Handler, enabled bool, general, ai *rateLimiter) http.Handler {
	if !enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := reqctx.UserID(r.Context())
		if identity == "" {
			identity = r.RemoteAddr
		}

		if ok, retryAfter := general.allow(r.Context(), identity); !ok {
			httputil.WriteError(w, r, errors.RateLimitExceeded(retryAfter))
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/v1/ai/") {
			if ok, retryAfter := ai.allow(r.Context(), identity); !ok {
				httputil.WriteError(w, r, errors.RateLimitExceeded(retryAfter))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
