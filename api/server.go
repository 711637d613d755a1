/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Auth:       Bearer-token owner scoping (all /api routes)

ROUTE GROUPS:
  /api/accounts/*      Accounts, tag balances, history
  /api/transactions/*  Create/edit transactions, allocations
  /api/debts/*         Lending/borrowing subledger
  /api/suggest/*       Tag-name suggestion
  /healthz             Liveness probe (unauthenticated)

SEE ALSO:
  - handlers.go: handler implementations
  - auth.go: bearer-token middleware
  - cmd/server/main.go: server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Authenticator, allowedOrigins []string) *chi.Mux {
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

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware)

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}/tags", h.GetTagBalances)
			r.Get("/{id}/transactions", h.GetTransactionHistory)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.CreateTransaction)
			r.Put("/{id}", h.EditTransaction)
			r.Get("/{id}/allocations", h.GetAllocations)
		})

		// Debt routes
		r.Route("/debts", func(r chi.Router) {
			r.Get("/", h.ListDebts)
			r.Post("/", h.CreateDebt)
			r.Get("/{id}", h.GetDebt)
			r.Put("/{id}", h.EditDebt)
			r.Delete("/{id}", h.DeleteDebt)
			r.Post("/{id}/payments", h.RecordDebtPayment)
			r.Post("/{id}/settle", h.MarkDebtPaid)
		})

		// Suggestion routes
		r.Route("/suggest", func(r chi.Router) {
			r.Post("/tag", h.SuggestTag)
		})
	})

	return r
}
