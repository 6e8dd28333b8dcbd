package handlers

import (
	"github.com/avvvet/blackjack-services/internal/auth"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r chi.Router) {
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/tables", h.ListTablesHandler)
			r.Post("/tables", h.CreateTableHandler)
			r.Get("/tables/{id}", h.TableHandler)
			r.Get("/tables/{id}/rounds", h.RoundsHandler)
			r.Get("/players/me/balance", h.BalanceHandler)
			r.Get("/players/me/transactions", h.TransactionsHandler)
		})
	})
}

// InitAuth sets the token verifier from JWT_SECRET_KEY.
func (h *Handler) InitAuth() {
	h.SetAuth(auth.New())
}

func (h *Handler) SetAuth(ja *jwtauth.JWTAuth) {
	h.tokenAuth = ja
}
