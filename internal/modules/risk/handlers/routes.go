package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers risk analysis routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk-analysis", func(r chi.Router) {
		r.Post("/", h.HandleSubmit)
		r.Get("/scenarios", h.HandleListScenarios)
	})
}
