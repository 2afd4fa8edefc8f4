package performance

import (
	"math"
	"sort"

	"github.com/equitylens/engine/internal/modules/portfolio"
)

// SecurityAttribution reports a single position's contribution to the
// portfolio return over the analysis window. Weight is the position's share
// of starting portfolio value; Contribution is weight x the security's return.
type SecurityAttribution struct {
	Symbol       string  `json:"symbol"`
	Weight       float64 `json:"weight"`
	Return       float64 `json:"return"`
	Contribution float64 `json:"contribution"`
}

// CalculateAttribution decomposes the portfolio return into per-security
// contributions using start-of-window weights. Securities without price
// coverage at both window ends are omitted. Results are sorted by absolute
// contribution, largest first.
func CalculateAttribution(positions []portfolio.Position, prices portfolio.PriceTable) []SecurityAttribution {
	type window struct {
		first, last float64
	}
	windows := make(map[string]window, len(positions))
	var totalStart float64
	for _, pos := range positions {
		series, ok := prices.Data[pos.Symbol]
		if !ok {
			continue
		}
		first, last := math.NaN(), math.NaN()
		for _, p := range series {
			if math.IsNaN(p) {
				continue
			}
			if math.IsNaN(first) {
				first = p
			}
			last = p
		}
		if math.IsNaN(first) || first == 0 {
			continue
		}
		windows[pos.Symbol] = window{first: first, last: last}
		totalStart += first * pos.Quantity
	}
	if totalStart == 0 {
		return nil
	}

	out := make([]SecurityAttribution, 0, len(windows))
	for _, pos := range positions {
		w, ok := windows[pos.Symbol]
		if !ok {
			continue
		}
		weight := w.first * pos.Quantity / totalStart
		ret := (w.last - w.first) / w.first
		out = append(out, SecurityAttribution{
			Symbol:       pos.Symbol,
			Weight:       weight,
			Return:       ret,
			Contribution: weight * ret,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].Contribution) > math.Abs(out[j].Contribution)
	})
	return out
}
