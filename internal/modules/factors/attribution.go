package factors

import (
	"sort"
	"strings"
)

// FactorContribution is one factor's share of the realized return.
type FactorContribution struct {
	Exposure     float64 `json:"exposure"`
	FactorReturn float64 `json:"factor_return"`
	Contribution float64 `json:"contribution"`
}

// PeriodBreakdown decomposes one calendar month: the portfolio return is
// compounded within the month, factor returns are summed.
type PeriodBreakdown struct {
	Period              string             `json:"period"`
	PortfolioReturn     float64            `json:"portfolio_return"`
	FactorContributions map[string]float64 `json:"factor_contributions"`
	SpecificReturn      float64            `json:"specific_return"`
}

// AttributionResult decomposes total portfolio return into per-factor
// contributions plus an unexplained specific return.
type AttributionResult struct {
	TotalReturn         float64                       `json:"total_return"`
	FactorContributions map[string]FactorContribution `json:"factor_contributions"`
	SpecificReturn      float64                       `json:"specific_return"`
	PeriodBreakdown     []PeriodBreakdown             `json:"period_breakdown"`
}

// factorColumn maps a display name back to its series column.
func factorColumn(name string) string {
	switch name {
	case "Market":
		return "mkt_rf"
	case "Size":
		return "smb"
	case "Value":
		return "hml"
	case "Profitability":
		return "rmw"
	case "Investment":
		return "cma"
	}
	return strings.ToLower(name)
}

// Attribute decomposes the aligned portfolio return series using previously
// estimated exposures. Per factor, contribution = exposure x summed factor
// return; the residual is reported as specific return. Total return here is
// the arithmetic sum of daily returns, matching the per-factor sums.
func Attribute(dates []string, y []float64, factors FactorSeries, exposures *ExposureResult) *AttributionResult {
	var totalReturn float64
	for _, r := range y {
		totalReturn += r
	}

	res := &AttributionResult{
		TotalReturn:         totalReturn,
		FactorContributions: make(map[string]FactorContribution, len(exposures.Factors)),
	}

	var totalFactorContribution float64
	for _, name := range exposures.FactorNames() {
		beta := exposures.Factors[name].Exposure
		series := factors.Data[factorColumn(name)]
		var factorReturn float64
		for _, v := range series {
			factorReturn += v
		}
		contribution := beta * factorReturn
		totalFactorContribution += contribution
		res.FactorContributions[name] = FactorContribution{
			Exposure:     beta,
			FactorReturn: factorReturn,
			Contribution: contribution,
		}
	}
	res.SpecificReturn = totalReturn - totalFactorContribution

	res.PeriodBreakdown = monthlyBreakdown(dates, y, factors, exposures)
	return res
}

func monthlyBreakdown(dates []string, y []float64, factors FactorSeries, exposures *ExposureResult) []PeriodBreakdown {
	type monthAgg struct {
		compounded float64
		factorSums map[string]float64
	}

	names := exposures.FactorNames()
	byMonth := make(map[string]*monthAgg)
	for i, d := range dates {
		if len(d) < 7 {
			continue
		}
		month := d[:7]
		agg, ok := byMonth[month]
		if !ok {
			agg = &monthAgg{compounded: 1, factorSums: make(map[string]float64, len(names))}
			byMonth[month] = agg
		}
		agg.compounded *= 1 + y[i]
		for _, name := range names {
			if series := factors.Data[factorColumn(name)]; i < len(series) {
				agg.factorSums[name] += series[i]
			}
		}
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	breakdown := make([]PeriodBreakdown, 0, len(months))
	for _, m := range months {
		agg := byMonth[m]
		pb := PeriodBreakdown{
			Period:              m,
			PortfolioReturn:     agg.compounded - 1,
			FactorContributions: make(map[string]float64, len(names)),
		}
		var monthFactorContribution float64
		for _, name := range names {
			contrib := exposures.Factors[name].Exposure * agg.factorSums[name]
			pb.FactorContributions[name] = contrib
			monthFactorContribution += contrib
		}
		pb.SpecificReturn = pb.PortfolioReturn - monthFactorContribution
		breakdown = append(breakdown, pb)
	}
	return breakdown
}
