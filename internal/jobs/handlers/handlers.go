// Package handlers provides HTTP handlers for job status polling.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/jobs"
)

// Handler serves job records to polling callers.
type Handler struct {
	store *jobs.Store
	log   zerolog.Logger
}

func NewHandler(store *jobs.Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "jobs").Logger(),
	}
}

// RegisterRoutes registers job polling routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/jobs/{jobID}", h.HandleGetJob)
}

// HandleGetJob handles GET /api/jobs/{jobID}.
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := h.store.Get(jobID)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
