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
  /api/projects/*     Project catalog + compliance reports
  /api/units/*        Units + expected schedules
  /api/clients/*      Client records
  /api/sales/*        Sale lifecycle, payments, commissions
  /api/payments/*     Commission recalculation
  /api/commissions/*  Commission payment
  /api/recipients/*   Per-recipient commission reports
  /api/rates          Commission rate reference data
  /api/phases         Phase-ladder reference data

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
		// Project routes
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Get("/{id}", h.GetProject)
			r.Get("/{id}/units", h.ListUnits)
			r.Get("/{id}/compliance", h.ComplianceReport)
		})

		// Unit routes
		r.Route("/units", func(r chi.Router) {
			r.Post("/", h.CreateUnit)
			r.Get("/{id}", h.GetUnit)
			r.Get("/{id}/expected", h.ExpectedSchedule)
			r.Put("/{id}/expected", h.SetExpectedSchedule)
		})

		// Client routes
		r.Route("/clients", func(r chi.Router) {
			r.Post("/", h.CreateClient)
			r.Get("/{id}", h.GetClient)
		})

		// Sale lifecycle routes
		r.Route("/sales", func(r chi.Router) {
			r.Post("/", h.CreateSale)
			r.Get("/{id}", h.GetSale)
			r.Post("/{id}/cancel", h.CancelSale)
			r.Post("/{id}/complete", h.CompleteSale)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Get("/{id}/payments", h.ListPayments)
			r.Get("/{id}/commissions", h.ListSaleCommissions)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/{id}/recalculate", h.RecalculateCommissions)
		})

		// Commission routes
		r.Route("/commissions", func(r chi.Router) {
			r.Post("/{id}/pay", h.MarkCommissionPaid)
		})

		// Recipient report routes
		r.Route("/recipients", func(r chi.Router) {
			r.Get("/{id}/commissions", h.RecipientReport)
		})

		// Reference data routes
		r.Get("/rates", h.ListRates)
		r.Put("/rates", h.SaveRate)
		r.Get("/phases", h.ListPhases)
		r.Put("/phases", h.SavePhases)
	})

	return r
}
