// Package httpapi exposes the taskwarden domain services over HTTP. It owns
// routing, middleware, and request/response translation only; every rule
// lives in the internal/app/services packages it calls into.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/taskwarden/taskwarden/internal/app"
	core "github.com/taskwarden/taskwarden/internal/app/core/service"
	"github.com/taskwarden/taskwarden/internal/app/metrics"
	"github.com/taskwarden/taskwarden/internal/app/system"
)

// Service wraps an *http.Server built from an app.Application. It
// implements system.Service so it can be registered and shut down
// alongside the job engine.
type Service struct {
	app    *app.Application
	server *http.Server
}

// NewService builds the router, wraps it in the middleware chain, and
// returns a Service ready for Start.
func NewService(a *app.Application) *Service {
	router := mux.NewRouter()
	registerRoutes(router, a)

	general := newRateLimiter(a.Cache, a.Config.RateLimitGeneralPerMin, "general")
	aiLimiter := newRateLimiter(a.Cache, a.Config.RateLimitAIPerMin, "ai")

	// Auth must run before rate limiting and idempotency so both can key off
	// the authenticated user id rather than falling back to the remote
	// address (rate limit) or an empty identity (idempotency) for every
	// request.
	var handler http.Handler = router
	handler = wrapWithIdempotency(handler, a.Idempotency)
	handler = wrapWithRateLimit(handler, a.Config.RateLimitEnabled, general, aiLimiter)
	handler = wrapWithAuth(handler, a.Tokens, publicPaths)
	handler = metrics.InstrumentHandler(handler)
	handler = wrapWithLogging(handler, a.Log)
	handler = wrapWithCORS(handler, a.Config.CORSOrigins)
	handler = wrapWithSecurityHeaders(handler)
	handler = wrapWithRequestID(handler)

	return &Service{
		app: a,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", a.Config.APIPort),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

func (s *Service) Name() string { return "httpapi" }

func (s *Service) Start(ctx context.Context) error {
	s.app.Log.WithField("addr", s.server.Addr).Info("http api listening")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.app.Log.WithField("error", err.Error()).Error("http api server exited")
		}
	}()
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Service) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         "httpapi",
		Domain:       "transport",
		Layer:        core.LayerIngress,
		Capabilities: []string{"rest", "auth", "idempotency", "rate-limit"},
	}
}

var _ system.Service = (*Service)(nil)
