/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for operator dashboards

ROUTE GROUPS:
  /api/charges         Charge creation
  /api/payments/*      Payment recording, allocation, reversal
  /api/fines/*         Fine issue and dispute resolution
  /api/quotes          Pricing
  /api/plans/*         Installment plans
  /api/customers/*     Per-customer ledger and next-payment views
  /api/admin/*         Manual sweep trigger

SECURITY NOTE:
  No authentication middleware currently. Tenancy comes from the
  X-Tenant-ID header; an API gateway is expected to authenticate and set
  it in production.

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/charges", h.CreateCharge)
		r.Post("/quotes", h.Quote)

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.RecordPayment)
			r.Post("/{id}/allocate", h.Allocate)
			r.Post("/{id}/approve", h.ApprovePayment)
			r.Post("/{id}/reverse", h.Reverse)
		})

		r.Route("/fines", func(r chi.Router) {
			r.Post("/", h.IssueFine)
			r.Post("/bulk-waive", h.BulkWaive)
			r.Post("/{id}/appeal", h.ResolveAppeal)
			r.Post("/{id}/waive", h.WaiveFine)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Post("/", h.CreatePlan)
			r.Get("/{id}", h.GetPlan)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/{id}/ledger", h.GetLedger)
			r.Get("/{id}/next-payment", h.NextPayment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweep", h.TriggerSweep)
		})
	})

	return r
}
