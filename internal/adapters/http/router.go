// Package http provides the inbound HTTP adapter including routing and server lifecycle.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aurora-nexus/portward/internal/adapters/http/handlers"
)

// NewRouter creates an HTTP handler with all control API routes registered.
// Middleware is applied globally in the order given.
func NewRouter(
	serviceHandler *handlers.ServiceHandler,
	portHandler *handlers.PortHandler,
	healthHandler *handlers.HealthHandler,
	middlewares ...func(http.Handler) http.Handler,
) http.Handler {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	// Health endpoints (outside /api/v1 prefix).
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	// API v1 routes.
	r.Route("/api/v1", func(r chi.Router) {
		// Service registration and lifecycle. The fixed start-order route
		// must be declared before the {name} wildcard routes.
		r.Get("/services", serviceHandler.List)
		r.Post("/services", serviceHandler.Register)
		r.Get("/services/start-order", serviceHandler.StartOrder)
		r.Delete("/services/{name}", serviceHandler.Deregister)
		r.Get("/services/{name}/health", serviceHandler.Health)
		r.Post("/services/{name}/confirm-port", serviceHandler.ConfirmPort)
		r.Post("/services/{name}/release-port", serviceHandler.ReleasePort)

		// Port ledger read-model.
		r.Get("/ports", portHandler.Ledger)
		r.Get("/ports/available", portHandler.Available)
	})

	return r
}
