package risk

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/modules/performance"
	"github.com/equitylens/engine/internal/modules/portfolio"
)

// Service loads portfolio data and runs risk calculations against it.
type Service struct {
	repo *portfolio.Repository
	log  zerolog.Logger
}

func NewService(repo *portfolio.Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log.With().Str("component", "risk").Logger()}
}

// PortfolioReturns builds the portfolio's full daily return series for VaR.
// Truncation to the lookback window happens in CalculateVaR.
func (s *Service) PortfolioReturns(portfolioID int64) (performance.ReturnSeries, error) {
	positions, err := s.repo.GetPositions(portfolioID)
	if err != nil {
		return performance.ReturnSeries{}, err
	}
	if len(positions) == 0 {
		return performance.ReturnSeries{}, fmt.Errorf("portfolio %d has no positions", portfolioID)
	}

	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	prices, err := s.repo.GetPriceHistory(symbols, "", "")
	if err != nil {
		return performance.ReturnSeries{}, err
	}
	return performance.BuildReturnSeries(positions, prices)
}

// RunVaR computes VaR for a stored portfolio.
func (s *Service) RunVaR(portfolioID int64, params VaRParams) (*VaRResult, error) {
	rs, err := s.PortfolioReturns(portfolioID)
	if err != nil {
		return nil, err
	}
	res, err := CalculateVaR(rs.Portfolio, params)
	if err != nil {
		return nil, err
	}
	res.SkippedSymbols = rs.SkippedSymbols

	s.log.Debug().
		Int64("portfolio_id", portfolioID).
		Str("method", res.Method).
		Float64("var", res.VaR).
		Msg("VaR computed")
	return res, nil
}

// RunStressTest applies a shock scenario to a stored portfolio's current
// holdings.
func (s *Service) RunStressTest(portfolioID int64, params StressParams) (*StressTestResult, error) {
	positions, err := s.repo.GetPositions(portfolioID)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("portfolio %d has no positions", portfolioID)
	}

	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	prices, err := s.repo.GetPriceHistory(symbols, "", "")
	if err != nil {
		return nil, err
	}

	res, err := RunStressTest(positions, prices, params)
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Int64("portfolio_id", portfolioID).
		Str("scenario_type", params.ScenarioType).
		Float64("pct_change", res.PercentageChange).
		Msg("Stress test computed")
	return res, nil
}
