package optimization

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/modules/calculations"
	"github.com/equitylens/engine/internal/modules/portfolio"
)

// Request parameterizes an optimization run. Universe lists the candidate
// symbols explicitly; when empty, the stored portfolio's position symbols
// are used.
type Request struct {
	PortfolioID      int64          `json:"portfolio_id,omitempty"`
	Universe         []string       `json:"universe,omitempty"`
	Objective        string         `json:"objective"`
	Constraints      ConstraintSpec `json:"constraints"`
	TargetVolatility *float64       `json:"target_volatility,omitempty"`
	StartDate        string         `json:"start_date"`
	EndDate          string         `json:"end_date"`
}

// Service prepares optimization inputs from stored prices and solves
// allocation requests.
type Service struct {
	repo  *portfolio.Repository
	cache *calculations.Cache
	log   zerolog.Logger
}

func NewService(repo *portfolio.Repository, cache *calculations.Cache, log zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log.With().Str("component", "optimization").Logger(),
	}
}

// Optimize resolves the universe, prepares expected returns and covariance,
// builds the constraint set, and solves the requested objective.
func (s *Service) Optimize(req Request) (*Result, error) {
	if !ValidObjective(req.Objective) {
		return nil, fmt.Errorf("unknown optimization objective: %s", req.Objective)
	}

	universe := req.Universe
	if len(universe) == 0 {
		if req.PortfolioID == 0 {
			return nil, fmt.Errorf("optimization requires a universe or a portfolio_id")
		}
		positions, err := s.repo.GetPositions(req.PortfolioID)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(positions))
		for _, p := range positions {
			if !seen[p.Symbol] {
				seen[p.Symbol] = true
				universe = append(universe, p.Symbol)
			}
		}
		if len(universe) == 0 {
			return nil, fmt.Errorf("portfolio %d has no positions to build a universe from", req.PortfolioID)
		}
	}

	prices, err := s.repo.GetPriceHistory(universe, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	data, err := PrepareOptimizationData(prices, s.cache)
	if err != nil {
		return nil, err
	}

	cs, err := BuildConstraintSet(data.Symbols, req.Constraints)
	if err != nil {
		return nil, err
	}

	result, err := Optimize(data, cs, req.Objective, req.TargetVolatility)
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("objective", req.Objective).
		Int("universe", len(data.Symbols)).
		Float64("expected_return", result.ExpectedReturn).
		Float64("volatility", result.Volatility).
		Msg("Optimization solved")
	return result, nil
}
