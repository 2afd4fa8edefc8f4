// Package handlers provides HTTP handlers for factor analysis job
// submission.
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
	"github.com/equitylens/engine/internal/modules/factors"
)

// Handler submits factor analysis calculations as background jobs.
type Handler struct {
	service *factors.Service
	runner  *jobs.Runner
	log     zerolog.Logger
}

func NewHandler(service *factors.Service, runner *jobs.Runner, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		runner:  runner,
		log:     log.With().Str("handler", "factors").Logger(),
	}
}

// RegisterRoutes registers factor analysis routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/factor-analysis", h.HandleSubmit)
}

// HandleSubmit handles POST /api/factor-analysis.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req factors.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PortfolioID == 0 {
		h.writeError(w, http.StatusBadRequest, "portfolio_id is required")
		return
	}
	if !factors.ValidFactorModel(req.FactorModel) {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown factor model: %s", req.FactorModel))
		return
	}
	if req.StartDate == "" || req.EndDate == "" {
		h.writeError(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}

	jobID := h.runner.Submit(jobs.KindFactor, strconv.FormatInt(req.PortfolioID, 10), h.task(req))
	h.writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})
}

func (h *Handler) task(req factors.AnalysisRequest) jobs.Task {
	return func(ctx context.Context, report func(float64)) (interface{}, error) {
		report(0.1)
		res, err := h.service.Analyze(req)
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
