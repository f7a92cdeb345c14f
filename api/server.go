/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the form frontend

SECURITY NOTE:
  No authentication middleware. Authorization is handled upstream of this
  service; all endpoints here are public.

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
		r.Route("/trips", func(r chi.Router) {
			r.Get("/", h.ListTrips)
			r.Post("/", h.CreateTrip)
			r.Get("/{id}", h.GetTrip)
			r.Delete("/{id}", h.DeleteTrip)
			r.Get("/{id}/legs", h.GetLegs)
			r.Put("/{id}/legs", h.ReplaceLegs)
			r.Get("/{id}/meals", h.GetMeals)
			r.Put("/{id}/meals", h.ReplaceMeals)
			r.Get("/{id}/allowance", h.GetAllowance)
		})

		r.Route("/allowance", func(r chi.Router) {
			r.Post("/preview", h.PreviewAllowance)
		})

		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.ListRates)
			r.Get("/{code}", h.GetRate)
			r.Put("/{code}", h.UpsertRate)
		})
	})

	return r
}
