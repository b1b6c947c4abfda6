// Package api is the local read-only dashboard over the memory engine.
// It binds to loopback by default; the MCP stdio surface stays the only
// write path apart from POST /search, which is a query.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/AVIDS2/memorix/internal/memory"
)

// NewRouter creates the chi router with all routes and middleware.
func NewRouter(svc *memory.Service, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	h := NewHandler(svc)

	r.Get("/health", h.Health)
	r.Get("/observations", h.ListObservations)
	r.Get("/observations/{id}", h.GetObservation)
	r.Post("/search", h.Search)
	r.Get("/sessions", h.ListSessions)
	r.Get("/graph", h.Graph)
	r.Get("/retention", h.Retention)
	r.Get("/stats", h.Stats)

	return r
}
