package devserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all dev-server routes mounted.
// authEnabled controls whether Bearer token auth is enforced on the API.
// eventsHandler, if non-nil, is mounted at GET /api/events inside the auth
// group. Asset and health routes are always open so bundles load without a
// token.
func NewRouter(h *Handler, authEnabled bool, token string, eventsHandler http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)
	r.Get("/assets/*", h.Asset)

	r.Route("/api", func(api chi.Router) {
		api.Use(AuthMiddleware(authEnabled, token))
		api.Get("/manifest", h.Manifest)
		api.Get("/graph", h.Graph)
		api.Get("/chunks", h.Chunks)
		api.Post("/build", h.Build)
		if eventsHandler != nil {
			api.Get("/events", eventsHandler.ServeHTTP)
		}
	})

	return r
}
