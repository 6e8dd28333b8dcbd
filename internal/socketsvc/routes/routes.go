package routes

import (
	"github.com/avvvet/blackjack-services/internal/monitor"
	"github.com/avvvet/blackjack-services/internal/socketsvc/handlers"
	"github.com/avvvet/blackjack-services/internal/socketsvc/ws"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

// SetRoutes mounts the socket endpoints. Browsers cannot set headers on a
// websocket upgrade, so the token may also come in the jwt query parameter.
func SetRoutes(r chi.Router, ws *ws.Ws, tokenAuth *jwtauth.JWTAuth, metrics *monitor.Metrics) {
	h := handlers.NewHandler(ws, metrics)

	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(tokenAuth, jwtauth.TokenFromQuery, jwtauth.TokenFromHeader))
			r.Use(jwtauth.Authenticator)

			r.Get("/ws", h.HandleWebSocket)
		})
	})
}
