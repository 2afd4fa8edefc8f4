// Package handlers provides HTTP handlers for portfolio and position
// management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/modules/portfolio"
)

// Handler serves portfolio store operations.
type Handler struct {
	repo *portfolio.Repository
	log  zerolog.Logger
}

func NewHandler(repo *portfolio.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers portfolio store routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Post("/", h.HandleCreatePortfolio)
		r.Get("/{portfolioID}", h.HandleGetPortfolio)
		r.Post("/{portfolioID}/positions", h.HandleAddPosition)
	})
}

// HandleCreatePortfolio handles POST /api/portfolios.
func (h *Handler) HandleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := h.repo.CreatePortfolio(req.Name)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create portfolio")
		h.writeError(w, http.StatusInternalServerError, "failed to create portfolio")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id, "name": req.Name})
}

// HandleGetPortfolio handles GET /api/portfolios/{portfolioID}.
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "portfolioID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	p, err := h.repo.GetPortfolio(id)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		h.log.Error().Err(err).Int64("portfolio_id", id).Msg("Failed to get portfolio")
		h.writeError(w, http.StatusInternalServerError, "failed to get portfolio")
		return
	}
	positions, err := h.repo.GetPositions(id)
	if err != nil {
		h.log.Error().Err(err).Int64("portfolio_id", id).Msg("Failed to get positions")
		h.writeError(w, http.StatusInternalServerError, "failed to get positions")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio": p,
		"positions": positions,
	})
}

// HandleAddPosition handles POST /api/portfolios/{portfolioID}/positions.
func (h *Handler) HandleAddPosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "portfolioID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	var pos portfolio.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if pos.Symbol == "" || pos.Quantity == 0 {
		h.writeError(w, http.StatusBadRequest, "symbol and quantity are required")
		return
	}
	pos.Portfolio = id

	if _, err := h.repo.GetPortfolio(id); err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		h.log.Error().Err(err).Int64("portfolio_id", id).Msg("Failed to get portfolio")
		h.writeError(w, http.StatusInternalServerError, "failed to get portfolio")
		return
	}

	posID, err := h.repo.AddPosition(pos)
	if err != nil {
		h.log.Error().Err(err).Int64("portfolio_id", id).Msg("Failed to add position")
		h.writeError(w, http.StatusInternalServerError, "failed to add position")
		return
	}
	pos.ID = posID
	h.writeJSON(w, http.StatusCreated, pos)
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
