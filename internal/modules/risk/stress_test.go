package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitylens/engine/internal/modules/portfolio"
)

func stressFixture() ([]portfolio.Position, portfolio.PriceTable) {
	positions := []portfolio.Position{
		{Symbol: "SPY", Quantity: 100},
		{Symbol: "AAPL", Quantity: 200},
	}
	prices := portfolio.PriceTable{
		Dates: []string{"2024-01-02", "2024-01-03"},
		Data: map[string][]float64{
			"SPY":  {480, 500},
			"AAPL": {240, 250},
		},
	}
	return positions, prices
}

func TestHistoricalScenario(t *testing.T) {
	positions, prices := stressFixture()

	res, err := RunStressTest(positions, prices, StressParams{
		ScenarioType: ScenarioHistorical,
		ScenarioName: "financial_crisis_2008",
	})
	require.NoError(t, err)

	// Current value: 100*500 + 200*250 = 100,000.
	assert.InDelta(t, 100000, res.CurrentValue, 1e-6)

	// SPY shocked -30%, AAPL takes the -25% default.
	// Stressed: 50,000*0.70 + 50,000*0.75 = 72,500.
	assert.InDelta(t, 72500, res.StressedValue, 1e-6)
	assert.InDelta(t, -27500, res.AbsoluteChange, 1e-6)
	assert.InDelta(t, -0.275, res.PercentageChange, 1e-9)
	assert.Equal(t, "2008 Financial Crisis (Sep-Nov 2008)", res.ScenarioDescription)
	require.Len(t, res.PositionImpacts, 2)
}

func TestHistoricalScenarioUnknownName(t *testing.T) {
	positions, prices := stressFixture()
	_, err := RunStressTest(positions, prices, StressParams{
		ScenarioType: ScenarioHistorical,
		ScenarioName: "dot_com_bust",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown historical scenario")
}

func TestFactorShock(t *testing.T) {
	positions, prices := stressFixture()

	res, err := RunStressTest(positions, prices, StressParams{
		ScenarioType: ScenarioFactorShock,
		FactorShocks: map[string]float64{"Market": -0.10},
	})
	require.NoError(t, err)

	// Market beta 1.05 x -0.10 = -0.105 on a 100,000 portfolio.
	assert.InDelta(t, -0.105, res.PercentageChange, 1e-9)
	assert.InDelta(t, 89500, res.StressedValue, 1e-6)
	require.Len(t, res.FactorImpacts, 1)
	assert.InDelta(t, 1.05, res.FactorImpacts[0].Beta, 1e-9)
}

func TestFactorShockIgnoresUnknownFactors(t *testing.T) {
	positions, prices := stressFixture()

	res, err := RunStressTest(positions, prices, StressParams{
		ScenarioType: ScenarioFactorShock,
		FactorShocks: map[string]float64{"Market": -0.10, "Sentiment": -0.50},
	})
	require.NoError(t, err)
	require.Len(t, res.FactorImpacts, 1)
	assert.InDelta(t, -0.105, res.PercentageChange, 1e-9)
}

func TestCustomShock(t *testing.T) {
	positions, prices := stressFixture()

	res, err := RunStressTest(positions, prices, StressParams{
		ScenarioType: ScenarioCustom,
		CustomShocks: map[string]float64{"SPY": -0.20},
	})
	require.NoError(t, err)

	// AAPL not in the map: zero shock.
	assert.InDelta(t, 90000, res.StressedValue, 1e-6)
	assert.InDelta(t, -0.10, res.PercentageChange, 1e-9)
}

func TestZeroShockLeavesValueUnchanged(t *testing.T) {
	positions, prices := stressFixture()

	res, err := RunStressTest(positions, prices, StressParams{
		ScenarioType: ScenarioCustom,
		CustomShocks: map[string]float64{},
	})
	require.NoError(t, err)
	assert.InDelta(t, res.CurrentValue, res.StressedValue, 1e-9)
	assert.Equal(t, 0.0, res.PercentageChange)
}

func TestMissingPriceDataSkipsPosition(t *testing.T) {
	positions := []portfolio.Position{
		{Symbol: "SPY", Quantity: 100},
		{Symbol: "ZZZZ", Quantity: 50},
	}
	prices := portfolio.PriceTable{
		Dates: []string{"2024-01-02"},
		Data:  map[string][]float64{"SPY": {500}},
	}

	res, err := RunStressTest(positions, prices, StressParams{
		ScenarioType: ScenarioCustom,
		CustomShocks: map[string]float64{"SPY": -0.10},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ZZZZ"}, res.SkippedSymbols)
	assert.InDelta(t, 50000, res.CurrentValue, 1e-6)
}

func TestEmptyPortfolioReportsZeroPctChange(t *testing.T) {
	res, err := RunStressTest(nil, portfolio.PriceTable{}, StressParams{
		ScenarioType: ScenarioCustom,
		CustomShocks: map[string]float64{"SPY": -0.10},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.CurrentValue)
	assert.Equal(t, 0.0, res.PercentageChange)
}

func TestUnknownScenarioType(t *testing.T) {
	positions, prices := stressFixture()
	_, err := RunStressTest(positions, prices, StressParams{ScenarioType: "volcano"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stress test scenario")
}

func TestScenarioCatalogue(t *testing.T) {
	names := ScenarioCatalogue()
	assert.Len(t, names, 3)
	assert.Contains(t, names, "covid_crash_2020")
}
