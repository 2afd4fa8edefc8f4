package risk

// HistoricalScenario is a named market episode with per-symbol shock returns.
// The "_default" entry applies to any symbol not listed explicitly.
type HistoricalScenario struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	StartDate   string             `json:"start_date"`
	EndDate     string             `json:"end_date"`
	Shocks      map[string]float64 `json:"shocks"`
}

const defaultShockKey = "_default"

// ShockFor returns the scenario's shock return for a symbol, falling back to
// the scenario default.
func (s HistoricalScenario) ShockFor(symbol string) float64 {
	if shock, ok := s.Shocks[symbol]; ok {
		return shock
	}
	return s.Shocks[defaultShockKey]
}

// historicalScenarios is the fixed catalogue of replayable episodes.
var historicalScenarios = map[string]HistoricalScenario{
	"financial_crisis_2008": {
		Name:        "financial_crisis_2008",
		Description: "2008 Financial Crisis (Sep-Nov 2008)",
		StartDate:   "2008-09-01",
		EndDate:     "2008-11-30",
		Shocks: map[string]float64{
			"SPY":           -0.30,
			"QQQ":           -0.35,
			"EEM":           -0.40,
			"TLT":           0.10,
			"GLD":           0.05,
			defaultShockKey: -0.25,
		},
	},
	"covid_crash_2020": {
		Name:        "covid_crash_2020",
		Description: "COVID-19 Market Crash (Feb-Mar 2020)",
		StartDate:   "2020-02-19",
		EndDate:     "2020-03-23",
		Shocks: map[string]float64{
			"SPY":           -0.34,
			"QQQ":           -0.28,
			"EEM":           -0.33,
			"TLT":           0.15,
			"GLD":           -0.05,
			defaultShockKey: -0.30,
		},
	},
	"rate_shock_2022": {
		Name:        "rate_shock_2022",
		Description: "Interest Rate Shock (H1 2022)",
		StartDate:   "2022-01-01",
		EndDate:     "2022-06-30",
		Shocks: map[string]float64{
			"SPY":           -0.20,
			"QQQ":           -0.30,
			"TLT":           -0.25,
			"HYG":           -0.15,
			"SHY":           -0.05,
			defaultShockKey: -0.15,
		},
	},
}

// ScenarioCatalogue lists the available historical scenario names.
func ScenarioCatalogue() []string {
	names := make([]string, 0, len(historicalScenarios))
	for name := range historicalScenarios {
		names = append(names, name)
	}
	return names
}

// portfolioFactorBetas is the fixed factor sensitivity table used by
// factor-shock stress tests.
var portfolioFactorBetas = map[string]float64{
	"Market":     1.05,
	"Size":       0.20,
	"Value":      -0.15,
	"Momentum":   0.10,
	"Quality":    0.25,
	"Volatility": -0.30,
}
