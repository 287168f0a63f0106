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
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/companies/*   Client companies, summaries, schemes
  /api/cases/*       Cases, payments, assignment, touchpoints
  /api/schemes/*     Scheme authoring and commission previews
  /api/admin/*       Bulk aging trigger

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
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Company routes
		r.Route("/companies", func(r chi.Router) {
			r.Get("/", h.ListCompanies)
			r.Post("/", h.SaveCompany)
			r.Get("/{id}", h.GetCompany)
			r.Get("/{id}/summary", h.GetCompanySummary)
			r.Get("/{id}/schemes", h.ListCompanySchemes)
		})

		// Case routes
		r.Route("/cases", func(r chi.Router) {
			r.Get("/", h.ListCases)
			r.Post("/", h.CreateCase)
			r.Get("/{number}", h.GetCase)
			r.Put("/{number}", h.UpdateCase)
			r.Delete("/{number}", h.PurgeCase)
			r.Post("/{number}/assign", h.AssignCase)
			r.Post("/{number}/status", h.SetStatus)
			r.Post("/{number}/touchpoints", h.SetTouchpoint)
			r.Post("/{number}/archive", h.ArchiveCase)
			r.Post("/{number}/restore", h.RestoreCase)
			r.Get("/{number}/methods", h.ListMethods)

			// Payment routes
			r.Get("/{number}/payments", h.ListPayments)
			r.Post("/{number}/payments", h.CreatePayment)
			r.Put("/{number}/payments/{id}", h.EditPayment)
			r.Delete("/{number}/payments/{id}", h.DeletePayment)
		})

		// Scheme routes
		r.Route("/schemes", func(r chi.Router) {
			r.Post("/", h.CreateScheme)
			r.Delete("/{id}", h.DeleteScheme)
			r.Post("/preview", h.PreviewCommission)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/aging", h.TriggerAging)
			r.Post("/seed", h.SeedDemo)
		})
	})

	return r
}
