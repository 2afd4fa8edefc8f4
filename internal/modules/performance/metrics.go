package performance

import (
	"math"

	"github.com/equitylens/engine/pkg/formulas"
)

// Metrics summarizes a portfolio return series. TrackingError and
// InformationRatio are only present when a benchmark was attached.
type Metrics struct {
	TotalReturn      float64  `json:"total_return"`
	AnnualizedReturn float64  `json:"annualized_return"`
	Volatility       float64  `json:"volatility"`
	SharpeRatio      float64  `json:"sharpe_ratio"`
	MaxDrawdown      float64  `json:"max_drawdown"`
	TrackingError    *float64 `json:"tracking_error,omitempty"`
	InformationRatio *float64 `json:"information_ratio,omitempty"`
}

// CalculateMetrics derives performance metrics from a return series. The
// Sharpe ratio uses a zero risk-free rate; volatility and tracking error are
// annualized.
func CalculateMetrics(rs ReturnSeries) Metrics {
	m := Metrics{
		TotalReturn:      formulas.TotalReturn(rs.Portfolio),
		AnnualizedReturn: formulas.AnnualizedReturn(rs.Portfolio),
		Volatility:       formulas.AnnualizedVolatility(rs.Portfolio),
		MaxDrawdown:      formulas.MaxDrawdownFromReturns(rs.Portfolio),
	}
	if m.Volatility > 0 {
		m.SharpeRatio = m.AnnualizedReturn / m.Volatility
	}

	if excess := rs.ExcessReturns(); len(excess) > 1 {
		te := formulas.StdDev(excess) * math.Sqrt(formulas.TradingDaysPerYear)
		m.TrackingError = &te
		if te > 0 {
			ir := formulas.Mean(excess) * formulas.TradingDaysPerYear / te
			m.InformationRatio = &ir
		}
	}

	return m
}
