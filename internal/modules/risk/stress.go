package risk

import (
	"fmt"
	"sort"

	"github.com/equitylens/engine/internal/modules/portfolio"
)

// Stress scenario types.
const (
	ScenarioHistorical  = "historical"
	ScenarioFactorShock = "factor_shock"
	ScenarioCustom      = "custom"
)

// StressParams selects the scenario and its inputs.
type StressParams struct {
	ScenarioType string             `json:"scenario_type"`
	ScenarioName string             `json:"scenario_name,omitempty"`
	FactorShocks map[string]float64 `json:"factor_shocks,omitempty"`
	CustomShocks map[string]float64 `json:"custom_shocks,omitempty"`
}

// ValidScenarioType reports whether name is a recognized scenario type.
func ValidScenarioType(name string) bool {
	switch name {
	case ScenarioHistorical, ScenarioFactorShock, ScenarioCustom:
		return true
	}
	return false
}

// PositionImpact is the per-position outcome of a price-shock scenario.
type PositionImpact struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	CurrentPrice  float64 `json:"current_price"`
	CurrentValue  float64 `json:"current_value"`
	ShockReturn   float64 `json:"shock_return"`
	StressedValue float64 `json:"stressed_value"`
	ValueChange   float64 `json:"value_change"`
}

// FactorImpact is one factor's contribution in a factor-shock scenario.
type FactorImpact struct {
	Factor string  `json:"factor"`
	Shock  float64 `json:"shock"`
	Beta   float64 `json:"beta"`
	Impact float64 `json:"impact"`
}

// StressTestResult aggregates a scenario's effect on current holdings.
type StressTestResult struct {
	ScenarioType        string           `json:"scenario_type"`
	ScenarioName        string           `json:"scenario_name,omitempty"`
	ScenarioDescription string           `json:"scenario_description,omitempty"`
	ScenarioPeriod      []string         `json:"scenario_period,omitempty"`
	CurrentValue        float64          `json:"current_portfolio_value"`
	StressedValue       float64          `json:"stressed_portfolio_value"`
	AbsoluteChange      float64          `json:"absolute_change"`
	PercentageChange    float64          `json:"percentage_change"`
	PositionImpacts     []PositionImpact `json:"position_impacts,omitempty"`
	FactorImpacts       []FactorImpact   `json:"factor_impacts,omitempty"`
	SkippedSymbols      []string         `json:"skipped_symbols,omitempty"`
}

// RunStressTest dispatches on scenario type. Unknown types are a
// configuration error.
func RunStressTest(positions []portfolio.Position, prices portfolio.PriceTable, params StressParams) (*StressTestResult, error) {
	switch params.ScenarioType {
	case ScenarioHistorical:
		scenario, ok := historicalScenarios[params.ScenarioName]
		if !ok {
			return nil, fmt.Errorf("unknown historical scenario: %s", params.ScenarioName)
		}
		res := applyPriceShocks(positions, prices, scenario.ShockFor)
		res.ScenarioType = ScenarioHistorical
		res.ScenarioName = scenario.Name
		res.ScenarioDescription = scenario.Description
		res.ScenarioPeriod = []string{scenario.StartDate, scenario.EndDate}
		return res, nil

	case ScenarioFactorShock:
		return applyFactorShocks(positions, prices, params.FactorShocks), nil

	case ScenarioCustom:
		res := applyPriceShocks(positions, prices, func(symbol string) float64 {
			return params.CustomShocks[symbol]
		})
		res.ScenarioType = ScenarioCustom
		return res, nil

	default:
		return nil, fmt.Errorf("unknown stress test scenario: %s", params.ScenarioType)
	}
}

// currentValues prices each position at its latest available close. Positions
// whose symbol has no price data are skipped and reported.
func currentValues(positions []portfolio.Position, prices portfolio.PriceTable) (impacts []PositionImpact, total float64, skipped []string) {
	for _, pos := range positions {
		price, ok := prices.Latest(pos.Symbol)
		if !ok {
			skipped = append(skipped, pos.Symbol)
			continue
		}
		value := pos.Quantity * price
		impacts = append(impacts, PositionImpact{
			Symbol:       pos.Symbol,
			Quantity:     pos.Quantity,
			CurrentPrice: price,
			CurrentValue: value,
		})
		total += value
	}
	sort.Strings(skipped)
	return impacts, total, skipped
}

func applyPriceShocks(positions []portfolio.Position, prices portfolio.PriceTable, shockFor func(symbol string) float64) *StressTestResult {
	impacts, currentTotal, skipped := currentValues(positions, prices)

	var stressedTotal float64
	for i := range impacts {
		shock := shockFor(impacts[i].Symbol)
		stressedPrice := impacts[i].CurrentPrice * (1 + shock)
		stressedValue := impacts[i].Quantity * stressedPrice
		impacts[i].ShockReturn = shock
		impacts[i].StressedValue = stressedValue
		impacts[i].ValueChange = stressedValue - impacts[i].CurrentValue
		stressedTotal += stressedValue
	}

	change := stressedTotal - currentTotal
	pctChange := 0.0
	if currentTotal != 0 {
		pctChange = change / currentTotal
	}

	return &StressTestResult{
		CurrentValue:     currentTotal,
		StressedValue:    stressedTotal,
		AbsoluteChange:   change,
		PercentageChange: pctChange,
		PositionImpacts:  impacts,
		SkippedSymbols:   skipped,
	}
}

// applyFactorShocks computes the aggregate impact as the linear combination
// of shocks and the fixed beta table. Factors without a beta are ignored.
func applyFactorShocks(positions []portfolio.Position, prices portfolio.PriceTable, shocks map[string]float64) *StressTestResult {
	_, currentTotal, skipped := currentValues(positions, prices)

	var totalImpact float64
	var factorImpacts []FactorImpact
	for factor, shock := range shocks {
		beta, ok := portfolioFactorBetas[factor]
		if !ok {
			continue
		}
		impact := beta * shock
		factorImpacts = append(factorImpacts, FactorImpact{
			Factor: factor,
			Shock:  shock,
			Beta:   beta,
			Impact: impact,
		})
		totalImpact += impact
	}
	sort.Slice(factorImpacts, func(i, j int) bool {
		return factorImpacts[i].Factor < factorImpacts[j].Factor
	})

	stressedTotal := currentTotal * (1 + totalImpact)
	change := stressedTotal - currentTotal
	pctChange := 0.0
	if currentTotal != 0 {
		pctChange = change / currentTotal
	}

	return &StressTestResult{
		ScenarioType:     ScenarioFactorShock,
		CurrentValue:     currentTotal,
		StressedValue:    stressedTotal,
		AbsoluteChange:   change,
		PercentageChange: pctChange,
		FactorImpacts:    factorImpacts,
		SkippedSymbols:   skipped,
	}
}
