/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/students/*    Student directory, fees, payments, ledger, settlement
  /api/beds/*        Bed registry
  /api/ledger/*      Entry reversal
  /api/scenarios/*   Demo scenarios

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
		// Student routes
		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.CreateStudent)
			r.Get("/{id}", h.GetStudent)
			r.Get("/{id}/fees", h.GetMonthlyFee)
			r.Post("/{id}/fees", h.AddFeeComponent)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/ledger", h.GetLedger)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Get("/{id}/settlement/preview", h.PreviewSettlement)
			r.Post("/{id}/settlement", h.ProcessSettlement)
			r.Post("/{id}/bed-switch", h.SwitchBed)
		})

		// Bed routes
		r.Route("/beds", func(r chi.Router) {
			r.Post("/", h.CreateBed)
			r.Get("/{id}", h.GetBed)
		})

		// Ledger routes
		r.Route("/ledger", func(r chi.Router) {
			r.Post("/{id}/reverse", h.ReverseEntry)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
