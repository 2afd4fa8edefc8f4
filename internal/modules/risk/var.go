// Package risk implements Value-at-Risk and stress-testing calculations for
// equity portfolios.
package risk

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/equitylens/engine/pkg/formulas"
)

// VaR calculation methods.
const (
	MethodHistorical = "historical"
	MethodParametric = "parametric"
	MethodMonteCarlo = "monte_carlo"
)

const (
	DefaultConfidenceLevel = 0.95
	DefaultLookbackDays    = 252
	DefaultNumSimulations  = 10000

	// Fixed seed so Monte Carlo runs are reproducible across calls.
	monteCarloSeed = 42
)

// VaRParams selects the method and its inputs. Zero fields take defaults.
type VaRParams struct {
	ConfidenceLevel float64 `json:"confidence_level"`
	Method          string  `json:"method"`
	LookbackDays    int     `json:"lookback_days"`
	NumSimulations  int     `json:"num_simulations"`
}

func (p *VaRParams) applyDefaults() {
	if p.ConfidenceLevel == 0 {
		p.ConfidenceLevel = DefaultConfidenceLevel
	}
	if p.Method == "" {
		p.Method = MethodHistorical
	}
	if p.LookbackDays == 0 {
		p.LookbackDays = DefaultLookbackDays
	}
	if p.NumSimulations == 0 {
		p.NumSimulations = DefaultNumSimulations
	}
}

// ValidVaRMethod reports whether name is a recognized calculation method.
func ValidVaRMethod(name string) bool {
	switch name {
	case "", MethodHistorical, MethodParametric, MethodMonteCarlo:
		return true
	}
	return false
}

// SampleDiagnostics describes the return sample a historical VaR was
// computed on.
type SampleDiagnostics struct {
	Mean           float64 `json:"mean"`
	Volatility     float64 `json:"volatility"`
	Skewness       float64 `json:"skewness"`
	ExcessKurtosis float64 `json:"excess_kurtosis"`
}

// VaRResult reports VaR and CVaR as positive loss magnitudes.
type VaRResult struct {
	Method          string             `json:"method"`
	ConfidenceLevel float64            `json:"confidence_level"`
	VaR             float64            `json:"var"`
	CVaR            float64            `json:"cvar"`
	Percentile      float64            `json:"percentile"`
	Observations    int                `json:"observations"`
	Diagnostics     *SampleDiagnostics `json:"diagnostics,omitempty"`
	SkippedSymbols  []string           `json:"skipped_symbols,omitempty"`
}

// CalculateVaR truncates the sample to the lookback window and dispatches to
// the selected method. An unknown method name is a configuration error.
func CalculateVaR(returns []float64, params VaRParams) (*VaRResult, error) {
	params.applyDefaults()
	if params.ConfidenceLevel <= 0 || params.ConfidenceLevel >= 1 {
		return nil, fmt.Errorf("confidence level must be in (0, 1), got %v", params.ConfidenceLevel)
	}
	if len(returns) == 0 {
		return nil, fmt.Errorf("no returns available for VaR calculation")
	}
	if len(returns) > params.LookbackDays {
		returns = returns[len(returns)-params.LookbackDays:]
	}

	switch params.Method {
	case MethodHistorical:
		return HistoricalVaR(returns, params.ConfidenceLevel)
	case MethodParametric:
		return ParametricVaR(returns, params.ConfidenceLevel)
	case MethodMonteCarlo:
		return MonteCarloVaR(returns, params.ConfidenceLevel, params.NumSimulations)
	default:
		return nil, fmt.Errorf("unknown VaR method: %s", params.Method)
	}
}

// HistoricalVaR takes the empirical (1-c) quantile of the sample as the VaR
// threshold and the mean of the tail at or below it as CVaR, both negated to
// loss magnitudes.
func HistoricalVaR(returns []float64, confidence float64) (*VaRResult, error) {
	quantile := formulas.Quantile(returns, 1-confidence)

	var tailSum float64
	var tailN int
	for _, r := range returns {
		if r <= quantile {
			tailSum += r
			tailN++
		}
	}
	cvar := -quantile
	if tailN > 0 {
		cvar = -tailSum / float64(tailN)
	}

	return &VaRResult{
		Method:          MethodHistorical,
		ConfidenceLevel: confidence,
		VaR:             -quantile,
		CVaR:            cvar,
		Percentile:      (1 - confidence) * 100,
		Observations:    len(returns),
		Diagnostics: &SampleDiagnostics{
			Mean:           formulas.Mean(returns),
			Volatility:     formulas.StdDev(returns),
			Skewness:       formulas.Skewness(returns),
			ExcessKurtosis: formulas.ExcessKurtosis(returns),
		},
	}, nil
}

// ParametricVaR fits a normal distribution to the sample and uses the
// closed-form normal quantile and expected-shortfall formulas.
func ParametricVaR(returns []float64, confidence float64) (*VaRResult, error) {
	mean := formulas.Mean(returns)
	sigma := formulas.StdDev(returns)

	std := distuv.Normal{Mu: 0, Sigma: 1}
	z := std.Quantile(1 - confidence)

	varValue := -(mean + z*sigma)
	cvar := -(mean - sigma*std.Prob(z)/(1-confidence))

	return &VaRResult{
		Method:          MethodParametric,
		ConfidenceLevel: confidence,
		VaR:             varValue,
		CVaR:            cvar,
		Percentile:      (1 - confidence) * 100,
		Observations:    len(returns),
	}, nil
}

// MonteCarloVaR draws numSims returns from Normal(mean, sigma) with a fixed
// seed and applies the historical quantile method to the simulated sample.
func MonteCarloVaR(returns []float64, confidence float64, numSims int) (*VaRResult, error) {
	if numSims <= 0 {
		numSims = DefaultNumSimulations
	}
	mean := formulas.Mean(returns)
	sigma := formulas.StdDev(returns)
	if sigma == 0 {
		return nil, fmt.Errorf("return sample has zero volatility, cannot simulate")
	}

	dist := distuv.Normal{
		Mu:    mean,
		Sigma: sigma,
		Src:   rand.NewPCG(monteCarloSeed, monteCarloSeed),
	}
	simulated := make([]float64, numSims)
	for i := range simulated {
		simulated[i] = dist.Rand()
	}

	res, err := HistoricalVaR(simulated, confidence)
	if err != nil {
		return nil, err
	}
	res.Method = MethodMonteCarlo
	res.Diagnostics = nil
	return res, nil
}
