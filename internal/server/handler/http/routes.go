package http

import (
	"net/http"
	"time"

	"github.com/atinyakov/easyvault/internal/metrics"
	"github.com/atinyakov/easyvault/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterOptions tunes the middleware chain.
type RouterOptions struct {
	// TrustProxyHeaders takes the caller address from X-Forwarded-For.
	TrustProxyHeaders bool
	// Limiter throttles vault routes per caller address. Nil disables it.
	Limiter *middleware.Limiter
}

// NewRouter constructs the HTTP handler that serves the vault API.
//
// Routes:
//
//	GET  /api/v2/vault/{key}          → vaultHandler.GetVault
//	POST /api/v2/vault/{key}          → vaultHandler.UpdateVault (JSON only)
//	GET  /api/v2/vault/secrets/{id}   → vaultHandler.GetEntry
//	GET  /api/v2/health               → healthHandler.Check
//	GET  /metrics                     → Prometheus exposition
//
// Middleware chain (applied in order):
//  1. Recoverer                  - turns panics into 500
//  2. WithRequestLogging(logger) - logs route pattern and status
//  3. CallerInfo(trustProxy)     - resolves caller address and agent
//  4. RateLimit(limiter)         - vault routes only
func NewRouter(
	vaultHandler *VaultHandler,
	healthHandler *HealthHandler,
	logger *zap.Logger,
	opts RouterOptions,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.CallerInfo(opts.TrustProxyHeaders))

	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)

		r.Route("/vault", func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(30 * time.Second))
			if opts.Limiter != nil {
				r.Use(middleware.RateLimit(opts.Limiter))
			}

			r.Get("/secrets/{id}", vaultHandler.GetEntry)
			r.Get("/{key}", vaultHandler.GetVault)
			r.With(chiMiddleware.AllowContentType("application/json")).
				Post("/{key}", vaultHandler.UpdateVault)
		})
	})

	r.Handle("/metrics", metrics.Handler())

	return r
}
