// Package handlers provides HTTP handlers for risk analysis job submission.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/jobs"
	"github.com/equitylens/engine/internal/modules/risk"
)

// Risk calculation kinds accepted by the analysis endpoint.
const (
	CalculationVaR        = "var"
	CalculationStressTest = "stress_test"
)

// AnalysisRequest is the risk-analysis submission body.
type AnalysisRequest struct {
	PortfolioID     int64           `json:"portfolio_id"`
	CalculationType string          `json:"calculation_type"`
	Parameters      json.RawMessage `json:"parameters"`
}

// Handler submits risk calculations as background jobs.
type Handler struct {
	service *risk.Service
	runner  *jobs.Runner
	log     zerolog.Logger
}

func NewHandler(service *risk.Service, runner *jobs.Runner, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		runner:  runner,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// HandleSubmit handles POST /api/risk-analysis. Known-bad enum values are
// rejected synchronously; everything else surfaces through the job record.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PortfolioID == 0 {
		h.writeError(w, http.StatusBadRequest, "portfolio_id is required")
		return
	}

	switch req.CalculationType {
	case CalculationVaR:
		var params risk.VaRParams
		if len(req.Parameters) > 0 {
			if err := json.Unmarshal(req.Parameters, &params); err != nil {
				h.writeError(w, http.StatusBadRequest, "invalid var parameters")
				return
			}
		}
		if !risk.ValidVaRMethod(params.Method) {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown VaR method: %s", params.Method))
			return
		}
		jobID := h.runner.Submit(jobs.KindRisk, strconv.FormatInt(req.PortfolioID, 10), h.varTask(req.PortfolioID, params))
		h.writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})

	case CalculationStressTest:
		var params risk.StressParams
		if len(req.Parameters) > 0 {
			if err := json.Unmarshal(req.Parameters, &params); err != nil {
				h.writeError(w, http.StatusBadRequest, "invalid stress test parameters")
				return
			}
		}
		if !risk.ValidScenarioType(params.ScenarioType) {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown stress test scenario: %s", params.ScenarioType))
			return
		}
		jobID := h.runner.Submit(jobs.KindRisk, strconv.FormatInt(req.PortfolioID, 10), h.stressTask(req.PortfolioID, params))
		h.writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})

	default:
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown calculation type: %s", req.CalculationType))
	}
}

// HandleListScenarios handles GET /api/risk-analysis/scenarios.
func (h *Handler) HandleListScenarios(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"historical_scenarios": risk.ScenarioCatalogue(),
		"scenario_types": []string{
			risk.ScenarioHistorical,
			risk.ScenarioFactorShock,
			risk.ScenarioCustom,
		},
	})
}

func (h *Handler) varTask(portfolioID int64, params risk.VaRParams) jobs.Task {
	return func(ctx context.Context, report func(float64)) (interface{}, error) {
		report(0.1)
		rs, err := h.service.PortfolioReturns(portfolioID)
		if err != nil {
			return nil, err
		}
		report(0.5)
		res, err := risk.CalculateVaR(rs.Portfolio, params)
		if err != nil {
			return nil, err
		}
		res.SkippedSymbols = rs.SkippedSymbols
		report(0.9)
		return res, nil
	}
}

func (h *Handler) stressTask(portfolioID int64, params risk.StressParams) jobs.Task {
	return func(ctx context.Context, report func(float64)) (interface{}, error) {
		report(0.1)
		res, err := h.service.RunStressTest(portfolioID, params)
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
