package factors

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/modules/performance"
	"github.com/equitylens/engine/internal/modules/portfolio"
)

// AnalysisRequest parameterizes a factor analysis run.
type AnalysisRequest struct {
	PortfolioID int64  `json:"portfolio_id"`
	FactorModel string `json:"factor_model"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// AnalysisResult is the completed payload of a factor analysis job.
type AnalysisResult struct {
	PortfolioID    int64              `json:"portfolio_id"`
	FactorModel    string             `json:"factor_model"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	Observations   int                `json:"observations"`
	Exposures      *ExposureResult    `json:"exposures"`
	Attribution    *AttributionResult `json:"attribution"`
	SkippedSymbols []string           `json:"skipped_symbols,omitempty"`
}

// Service runs factor exposure and attribution analysis for stored
// portfolios.
type Service struct {
	repo     *portfolio.Repository
	provider ReturnProvider
	log      zerolog.Logger
}

func NewService(repo *portfolio.Repository, provider ReturnProvider, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		log:      log.With().Str("component", "factors").Logger(),
	}
}

// Analyze regresses the portfolio's return series on the chosen factor
// model's returns and decomposes the realized return.
func (s *Service) Analyze(req AnalysisRequest) (*AnalysisResult, error) {
	if !ValidFactorModel(req.FactorModel) {
		return nil, fmt.Errorf("unknown factor model: %s", req.FactorModel)
	}

	positions, err := s.repo.GetPositions(req.PortfolioID)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("portfolio %d has no positions", req.PortfolioID)
	}

	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	prices, err := s.repo.GetPriceHistory(symbols, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	rs, err := performance.BuildReturnSeries(positions, prices)
	if err != nil {
		return nil, err
	}

	factorSeries, err := s.provider.FactorReturns(req.FactorModel, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	dates, y, aligned := innerJoin(rs, factorSeries)

	exposures, err := Regress(y, aligned)
	if err != nil {
		return nil, err
	}
	attribution := Attribute(dates, y, aligned, exposures)

	s.log.Debug().
		Int64("portfolio_id", req.PortfolioID).
		Str("model", req.FactorModel).
		Int("observations", exposures.Observations).
		Float64("r_squared", exposures.OverallRSquared).
		Msg("Factor analysis computed")

	return &AnalysisResult{
		PortfolioID:    req.PortfolioID,
		FactorModel:    req.FactorModel,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Observations:   exposures.Observations,
		Exposures:      exposures,
		Attribution:    attribution,
		SkippedSymbols: rs.SkippedSymbols,
	}, nil
}

// innerJoin aligns the portfolio return series with the factor table by
// date. Rows missing on either side are dropped.
func innerJoin(rs performance.ReturnSeries, fs FactorSeries) (dates []string, y []float64, aligned FactorSeries) {
	factorIdx := make(map[string]int, len(fs.Dates))
	for i, d := range fs.Dates {
		factorIdx[d] = i
	}

	aligned = FactorSeries{
		Columns: fs.Columns,
		Data:    make(map[string][]float64, len(fs.Columns)),
	}
	for i, d := range rs.Dates {
		j, ok := factorIdx[d]
		if !ok {
			continue
		}
		dates = append(dates, d)
		y = append(y, rs.Portfolio[i])
		for _, col := range fs.Columns {
			aligned.Data[col] = append(aligned.Data[col], fs.Data[col][j])
		}
	}
	aligned.Dates = dates
	return dates, y, aligned
}
