package performance

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/modules/portfolio"
)

// AnalyticsRequest parameterizes a portfolio analytics run.
type AnalyticsRequest struct {
	PortfolioID      int64  `json:"portfolio_id"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	BenchmarkSymbol  string `json:"benchmark_id,omitempty"`
	IncludePositions bool   `json:"include_positions"`
}

// AnalyticsResult is the completed payload of a portfolio analytics job.
type AnalyticsResult struct {
	PortfolioID    int64                 `json:"portfolio_id"`
	StartDate      string                `json:"start_date"`
	EndDate        string                `json:"end_date"`
	Metrics        Metrics               `json:"performance_metrics"`
	Attribution    []SecurityAttribution `json:"attribution"`
	Positions      []portfolio.Position  `json:"positions,omitempty"`
	SkippedSymbols []string              `json:"skipped_symbols,omitempty"`
}

// Service computes portfolio analytics on top of the portfolio repository.
type Service struct {
	repo *portfolio.Repository
	log  zerolog.Logger
}

func NewService(repo *portfolio.Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log.With().Str("component", "performance").Logger()}
}

// LoadReturnSeries fetches positions and prices for the window and builds the
// portfolio return series, attaching the benchmark when one is requested.
func (s *Service) LoadReturnSeries(req AnalyticsRequest) (ReturnSeries, []portfolio.Position, error) {
	rs, positions, _, err := s.load(req)
	return rs, positions, err
}

func (s *Service) load(req AnalyticsRequest) (ReturnSeries, []portfolio.Position, portfolio.PriceTable, error) {
	positions, err := s.repo.GetPositions(req.PortfolioID)
	if err != nil {
		return ReturnSeries{}, nil, portfolio.PriceTable{}, err
	}
	if len(positions) == 0 {
		return ReturnSeries{}, nil, portfolio.PriceTable{}, fmt.Errorf("portfolio %d has no positions", req.PortfolioID)
	}

	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	prices, err := s.repo.GetPriceHistory(symbols, req.StartDate, req.EndDate)
	if err != nil {
		return ReturnSeries{}, nil, portfolio.PriceTable{}, err
	}

	rs, err := BuildReturnSeries(positions, prices)
	if err != nil {
		return ReturnSeries{}, nil, portfolio.PriceTable{}, err
	}

	if req.BenchmarkSymbol != "" {
		dates, closes, err := s.repo.GetPriceSeries(req.BenchmarkSymbol, req.StartDate, req.EndDate)
		if err != nil {
			return ReturnSeries{}, nil, portfolio.PriceTable{}, fmt.Errorf("benchmark %s: %w", req.BenchmarkSymbol, err)
		}
		if len(dates) > 1 {
			rs.AttachBenchmark(dates, closes)
		}
	}

	return rs, positions, prices, nil
}

// Analyze runs the full analytics calculation for a portfolio window.
func (s *Service) Analyze(req AnalyticsRequest) (*AnalyticsResult, error) {
	rs, positions, prices, err := s.load(req)
	if err != nil {
		return nil, err
	}

	res := &AnalyticsResult{
		PortfolioID:    req.PortfolioID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Metrics:        CalculateMetrics(rs),
		Attribution:    CalculateAttribution(positions, prices),
		SkippedSymbols: rs.SkippedSymbols,
	}
	if req.IncludePositions {
		res.Positions = positions
	}

	s.log.Debug().
		Int64("portfolio_id", req.PortfolioID).
		Int("returns", len(rs.Portfolio)).
		Int("skipped", len(rs.SkippedSymbols)).
		Msg("Portfolio analytics computed")
	return res, nil
}
