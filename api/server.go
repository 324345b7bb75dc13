/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/materials/*     Catalog and per-material stock operations
  /api/availability    Batch availability check
  /api/work-orders/*   Reserve / release / consume lifecycle
  /api/analytics/*     Read-only reporting
  /api/movements/*     Ledger export

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Material routes
		r.Route("/materials", func(r chi.Router) {
			r.Get("/", h.ListMaterials)
			r.Post("/", h.UpsertMaterial)
			r.Get("/{id}", h.GetMaterial)
			r.Delete("/{id}", h.DiscontinueMaterial)
			r.Get("/{id}/movements", h.GetMaterialMovements)
			r.Post("/{id}/receive", h.ReceiveStock)
			r.Post("/{id}/adjust", h.AdjustStock)
		})

		// Availability check
		r.Post("/availability", h.CheckAvailability)

		// Work-order lifecycle routes
		r.Route("/work-orders/{id}", func(r chi.Router) {
			r.Post("/reserve", h.Reserve)
			r.Post("/release", h.Release)
			r.Post("/consume", h.Consume)
			r.Get("/reservations", h.ListReservations)
		})

		// Analytics routes
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/low-stock", h.LowStock)
			r.Get("/materials/{id}/summary", h.MovementSummary)
			r.Get("/trend", h.MovementTrend)
		})

		// Ledger export
		r.Get("/movements/export", h.ExportMovements)
	})

	return r
}
