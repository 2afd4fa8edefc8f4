// Package portfolio provides the portfolio store: portfolios, positions and
// historical daily prices consumed by the calculation engines.
package portfolio

import "math"

// Portfolio is a named collection of positions.
type Portfolio struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Position is a holding within a portfolio. Quantity may be negative (short).
type Position struct {
	ID         int64    `json:"id"`
	Portfolio  int64    `json:"portfolio_id"`
	Symbol     string   `json:"symbol"`
	Quantity   float64  `json:"quantity"`
	EntryDate  string   `json:"entry_date"`
	EntryPrice float64  `json:"entry_price"`
	ExitDate   *string  `json:"exit_date,omitempty"`
	ExitPrice  *float64 `json:"exit_price,omitempty"`
}

// DailyPrice is a single close observation for a symbol.
type DailyPrice struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"` // YYYY-MM-DD
	Close  float64 `json:"close"`
}

// PriceTable holds aligned daily close prices for a symbol set.
// Dates are sorted ascending; a missing observation for a symbol is NaN.
// Symbols with no data at all in the range are absent from Data.
type PriceTable struct {
	Dates []string             `json:"dates"`
	Data  map[string][]float64 `json:"data"`
}

// Latest returns the most recent non-NaN price for a symbol, or false when
// the symbol has no usable observation.
func (t PriceTable) Latest(symbol string) (float64, bool) {
	series, ok := t.Data[symbol]
	if !ok {
		return 0, false
	}
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			return series[i], true
		}
	}
	return 0, false
}

// Symbols returns the symbols present in the table.
func (t PriceTable) Symbols() []string {
	out := make([]string, 0, len(t.Data))
	for s := range t.Data {
		out = append(out, s)
	}
	return out
}
