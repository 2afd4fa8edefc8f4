// Package performance converts position and price data into portfolio return
// series and derives performance metrics from them.
package performance

import (
	"fmt"
	"math"
	"sort"

	"github.com/equitylens/engine/internal/modules/portfolio"
)

// ReturnSeries is a dated portfolio return series, optionally paired with an
// aligned benchmark column. The first price observation is consumed by
// differencing. SkippedSymbols lists positions whose symbol had no price data
// and were therefore excluded from the value calculation.
type ReturnSeries struct {
	Dates          []string  `json:"dates"`
	Portfolio      []float64 `json:"portfolio_returns"`
	Benchmark      []float64 `json:"benchmark_returns,omitempty"` // NaN where the benchmark has no observation
	SkippedSymbols []string  `json:"skipped_symbols,omitempty"`
}

// HasBenchmark reports whether an aligned benchmark column is present.
func (rs ReturnSeries) HasBenchmark() bool {
	return len(rs.Benchmark) == len(rs.Portfolio) && len(rs.Benchmark) > 0
}

// BuildReturnSeries computes a portfolio's daily return series from positions
// and an aligned price table. Per date, each position contributes
// price x quantity; symbols absent from the table are skipped and reported.
// NaN prices (non-trading gaps) contribute nothing on that date.
func BuildReturnSeries(positions []portfolio.Position, prices portfolio.PriceTable) (ReturnSeries, error) {
	if len(positions) == 0 {
		return ReturnSeries{}, fmt.Errorf("portfolio has no positions")
	}

	skipped := make(map[string]bool)
	values := make([]float64, len(prices.Dates))
	for _, pos := range positions {
		series, ok := prices.Data[pos.Symbol]
		if !ok {
			skipped[pos.Symbol] = true
			continue
		}
		for i, price := range series {
			if !math.IsNaN(price) {
				values[i] += price * pos.Quantity
			}
		}
	}

	if len(values) < 2 {
		return ReturnSeries{}, fmt.Errorf("insufficient price data: %d dates available (need at least 2)", len(values))
	}

	rs := ReturnSeries{
		Dates:     prices.Dates[1:],
		Portfolio: make([]float64, len(values)-1),
	}
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			rs.Portfolio[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}

	if len(skipped) > 0 {
		for s := range skipped {
			rs.SkippedSymbols = append(rs.SkippedSymbols, s)
		}
		sort.Strings(rs.SkippedSymbols)
	}

	return rs, nil
}

// AttachBenchmark aligns a benchmark close series to the return series by
// date and fills the benchmark return column. Dates without a benchmark
// observation (or without a prior one to difference against) are NaN.
func (rs *ReturnSeries) AttachBenchmark(dates []string, closes []float64) {
	priceByDate := make(map[string]float64, len(dates))
	orderedDates := make([]string, 0, len(dates))
	for i, d := range dates {
		if i < len(closes) && !math.IsNaN(closes[i]) {
			priceByDate[d] = closes[i]
			orderedDates = append(orderedDates, d)
		}
	}

	// Benchmark return per date, differenced on the benchmark's own calendar.
	retByDate := make(map[string]float64, len(orderedDates))
	for i := 1; i < len(orderedDates); i++ {
		prev := priceByDate[orderedDates[i-1]]
		cur := priceByDate[orderedDates[i]]
		if prev != 0 {
			retByDate[orderedDates[i]] = (cur - prev) / prev
		}
	}

	rs.Benchmark = make([]float64, len(rs.Dates))
	for i, d := range rs.Dates {
		if r, ok := retByDate[d]; ok {
			rs.Benchmark[i] = r
		} else {
			rs.Benchmark[i] = math.NaN()
		}
	}
}

// ExcessReturns returns the portfolio-minus-benchmark series over dates where
// both sides have an observation.
func (rs ReturnSeries) ExcessReturns() []float64 {
	if !rs.HasBenchmark() {
		return nil
	}
	excess := make([]float64, 0, len(rs.Portfolio))
	for i, r := range rs.Portfolio {
		if !math.IsNaN(rs.Benchmark[i]) {
			excess = append(excess, r-rs.Benchmark[i])
		}
	}
	return excess
}
