/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. CORS:       Cross-origin requests for the platform frontend

ROUTE GROUPS:
  /api/users/*           Selection and credit queries per user
  /api/options/*         Combination rule administration, due scan
  /api/admin/*           Manual reconciliation trigger
  /api/reconciliation/*  Run history

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

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/users/{userID}/instances/{instanceID}", func(r chi.Router) {
			r.Get("/selection", h.GetSelection)
			r.Post("/selection/toggle", h.ToggleSelection)
			r.Delete("/selection", h.ResetSelection)
			r.Get("/credits", h.GetCredits)
		})

		r.Route("/options", func(r chi.Router) {
			r.Get("/due", h.ListDueOptions)
			r.Get("/{optionID}/combinations", h.GetCombinations)
			r.Put("/{optionID}/combinations", h.SetCombinations)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/reconcile", h.TriggerReconcile)
		})

		r.Route("/reconciliation", func(r chi.Router) {
			r.Get("/runs", h.ListRuns)
		})
	})

	return r
}
