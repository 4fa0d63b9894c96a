package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sowilo/internal/learnservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *learnservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Nodes.
	r.Get("/nodes", h.ListNodes)
	r.Post("/nodes", h.CreateNode)
	r.Get("/nodes/*", h.GetNode)

	// Scheduling.
	r.Get("/next", h.Next)
	r.Post("/review/*", h.Review)
	r.Post("/unlock", h.Unlock)

	// Lifecycle.
	r.Post("/start/*", h.Start)
	r.Post("/pause/*", h.Pause)
	r.Post("/resume/*", h.Resume)

	// Read models.
	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)
	r.Get("/stats", h.Stats)
	r.Get("/history/*", h.History)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
