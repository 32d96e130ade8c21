package gateway

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// routes builds the router. Streaming endpoints sit outside the request
// timeout.
func (g *Gateway) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(g.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", g.healthHandler)
	r.Get("/v1/status", g.statusHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(g.cfg.RequestTimeout))

		r.Route("/v1/clients", func(r chi.Router) {
			r.Post("/", g.createClientHandler)
			r.Get("/", g.listClientsHandler)
			r.Get("/{handle}", g.getClientHandler)
			r.Delete("/{handle}", g.deleteClientHandler)
		})

		r.Route("/v1/subscribers", func(r chi.Router) {
			r.Post("/", g.createSubscriberHandler)
			r.Get("/{id}", g.getSubscriberHandler)
			r.Delete("/{id}", g.deleteSubscriberHandler)
			r.Post("/{id}/topics", g.addTopicsHandler)
			r.Post("/{id}/subscribe", g.subscribeHandler)
			r.Post("/{id}/unsubscribe", g.unsubscribeHandler)
			r.Get("/{id}/poll", g.pollHandler)
		})
	})

	r.Get("/v1/subscribers/{id}/ws", g.subscriberWebsocketHandler)
	return r
}
