/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the kiosk frontend

SESSION NOTE:
  Authorization lives in the ledger service, not in middleware: the
  engine has a single operator session (kiosk model), so there is
  nothing per-request to authenticate here.

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
		// Session routes
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/login", h.Login)
			r.Post("/login-qr", h.LoginQR)
			r.Post("/logout", h.Logout)
		})

		// Student routes
		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.CreateStudent)
			r.Post("/lookup", h.LookupStudent)
			r.Get("/{id}", h.GetStudent)
			r.Delete("/{id}", h.DeleteStudent)
			r.Get("/{id}/pass", h.GetStudentPass)
			r.Get("/{id}/transactions", h.GetStudentTransactions)
		})

		// Stall routes
		r.Route("/stalls", func(r chi.Router) {
			r.Get("/", h.ListStalls)
			r.Post("/", h.CreateStall)
			r.Get("/{id}", h.GetStall)
			r.Delete("/{id}", h.DeleteStall)
			r.Put("/{id}/menu", h.SetMenu)
			r.Get("/{id}/pass", h.GetStallPass)
		})

		// Money routes
		r.Post("/recharge", h.Recharge)
		r.Post("/purchase", h.Purchase)
		r.Get("/transactions", h.ListTransactions)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetState)
		})
	})

	return r
}
