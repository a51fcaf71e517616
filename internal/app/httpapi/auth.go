package httpapi

import (
	"net/http"
	"strings"

	"github.com/taskwarden/taskwarden/internal/app/auth"
	"github.com/taskwarden/taskwarden/internal/errors"
	"github.com/taskwarden/taskwarden/internal/httputil"
	"github.com/taskwarden/taskwarden/internal/reqctx"
)

// publicPaths lists routes reachable without a bearer token. Everything
// else requires a valid access token.
var publicPaths = map[string]bool{
	"/api/v1/auth/google/callback":      true,
	"/api/v1/auth/refresh":              true,
	"/health/live":                      true,
	"/health/ready":                     true,
	"/api/v1/.well-known/jwks.json":     true,
	"/api/v1/webhooks/checkout":         true,
	"/metrics":                          true,
}

// wrapWithAuth validates the bearer access token on every request to a
// non-public path and stores the caller's user id and tier on the request
// context. An expired token reports errors.CodeTokenExpired so a client
// knows to try a refresh rather than re-authenticating from scratch.
func wrapWithAuth(next http.Handler, tokens *auth.TokenManager, public map[string]bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if public[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			unauthorised(w, r, errors.Unauthorized("missing bearer token"))
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			if err == auth.ErrTokenExpired {
				unauthorised(w, r, errors.TokenExpired())
				return
			}
			unauthorised(w, r, errors.Unauthorized("invalid access token"))
			return
		}

		ctx := reqctx.WithUserID(r.Context(), claims.UserID)
		ctx = reqctx.WithUserTier(ctx, claims.Tier)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorised(w http.ResponseWriter, r *http.Request, svcErr *errors.ServiceError) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httputil.WriteError(w, r, svcErr)
}
