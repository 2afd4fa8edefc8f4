// Package handlers provides HTTP handlers for optimization job submission.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/jobs"
	"github.com/equitylens/engine/internal/modules/optimization"
)

// Handler submits optimization solves as background jobs.
type Handler struct {
	service *optimization.Service
	runner  *jobs.Runner
	log     zerolog.Logger
}

func NewHandler(service *optimization.Service, runner *jobs.Runner, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		runner:  runner,
		log:     log.With().Str("handler", "optimization").Logger(),
	}
}

// RegisterRoutes registers optimization routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/optimization", h.HandleSubmit)
}

// HandleSubmit handles POST /api/optimization.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req optimization.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !optimization.ValidObjective(req.Objective) {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown optimization objective: %s", req.Objective))
		return
	}
	if len(req.Universe) == 0 && req.PortfolioID == 0 {
		h.writeError(w, http.StatusBadRequest, "universe or portfolio_id is required")
		return
	}

	tag := strconv.FormatInt(req.PortfolioID, 10)
	if req.PortfolioID == 0 {
		tag = fmt.Sprintf("universe%d", len(req.Universe))
	}
	jobID := h.runner.Submit(jobs.KindOptimization, tag, h.task(req))
	h.writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})
}

func (h *Handler) task(req optimization.Request) jobs.Task {
	return func(ctx context.Context, report func(float64)) (interface{}, error) {
		report(0.1)
		res, err := h.service.Optimize(req)
		if err != nil {
			return nil, err
		}
		report(0.9)
		return res, nil
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
