package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Field state
		r.Route("/fields", func(r chi.Router) {
			r.Get("/", s.handleListFields)
			r.Get("/{id}", s.handleGetField)
		})

		// Derived views for front-of-house displays
		r.Route("/views", func(r chi.Router) {
			r.Get("/scheduled", s.handleScheduledView)
			r.Get("/popups", s.handlePopupsView)
		})

		// Audit trail
		r.Get("/audit", s.handleListAudit)

		// Event ingestion (match-control connector, operator tools)
		r.Post("/events", s.handlePostEvent)

		// Operational controls
		r.Route("/control", func(r chi.Router) {
			r.Post("/reload", s.handleControlReload)
		})
		r.Route("/mappings", func(r chi.Router) {
			r.Post("/reload", s.handleMappingsReload)
		})

		// WebSocket event relay
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     s.version,
		"queue_depth": s.queue.Len(),
	})
}
