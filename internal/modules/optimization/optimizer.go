package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	// Quadratic penalty applied to constraint violations.
	penaltyWeight = 1000.0

	// Weights below this are dropped from the cleaned allocation.
	cleanThreshold = 1e-4

	// Stand-in volatility ceiling for max_return without an explicit
	// target; high enough to push the solve to the max-return corner.
	defaultVolatilityCeiling = 2.0

	// Post-solve tolerance for constraint satisfaction. The penalty method
	// leaves a small slack proportional to 1/penaltyWeight.
	feasibilityTolerance = 0.01
)

// Result is the solved allocation with its ex-ante metrics.
type Result struct {
	Objective      string             `json:"optimization_type"`
	Weights        map[string]float64 `json:"weights"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
	WeightsSum     float64            `json:"weights_sum"`
}

// Optimize solves the requested objective over the prepared data under the
// constraint set. Constraints are enforced with quadratic penalties and the
// final allocation is validated against them; violations beyond tolerance
// are reported as an infeasibility error.
func Optimize(data *OptimizationData, cs ConstraintSet, objective string, targetVolatility *float64) (*Result, error) {
	n := len(data.Symbols)
	if n == 0 {
		return nil, fmt.Errorf("no symbols to optimize")
	}
	if len(data.Covariance) != n {
		return nil, fmt.Errorf("covariance matrix size %d does not match universe size %d", len(data.Covariance), n)
	}

	mu := make([]float64, n)
	for i, symbol := range data.Symbols {
		ret, ok := data.ExpectedReturns[symbol]
		if !ok {
			return nil, fmt.Errorf("missing expected return for %s", symbol)
		}
		mu[i] = ret
	}

	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		if len(data.Covariance[i]) != n {
			return nil, fmt.Errorf("covariance matrix row %d has size %d, expected %d", i, len(data.Covariance[i]), n)
		}
		for j := 0; j < n; j++ {
			sigma.Set(i, j, data.Covariance[i][j])
		}
	}

	// Resolve bounds into index-aligned arrays up front so every closure
	// sees fixed per-security values.
	minW := make([]float64, n)
	maxW := make([]float64, n)
	for i, symbol := range data.Symbols {
		b := cs.BoundFor(symbol)
		minW[i] = b.Min
		maxW[i] = b.Max
	}

	var problem optimize.Problem
	switch objective {
	case ObjectiveMaxSharpe:
		problem = maxSharpeProblem(mu, sigma, data.Symbols, minW, maxW, cs)
	case ObjectiveMinVolatility:
		problem = minVolatilityProblem(mu, sigma, data.Symbols, minW, maxW, cs)
	case ObjectiveMaxReturn:
		ceiling := defaultVolatilityCeiling
		if targetVolatility != nil {
			ceiling = *targetVolatility
		}
		problem = maxReturnProblem(mu, sigma, data.Symbols, minW, maxW, cs, ceiling)
	default:
		return nil, fmt.Errorf("unknown optimization objective: %s", objective)
	}

	xFinal, err := solve(problem, n)
	if err != nil {
		return nil, err
	}

	weights := finalizeWeights(xFinal, data.Symbols, minW, maxW)
	if err := validateFeasibility(weights, mu, data.Symbols, cs); err != nil {
		return nil, err
	}

	expectedReturn, volatility := allocationMetrics(weights, mu, sigma, data.Symbols)
	sharpe := 0.0
	if volatility > 0 {
		sharpe = expectedReturn / volatility
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}

	return &Result{
		Objective:      objective,
		Weights:        weights,
		ExpectedReturn: expectedReturn,
		Volatility:     volatility,
		SharpeRatio:    sharpe,
		WeightsSum:     sum,
	}, nil
}

func maxSharpeProblem(mu []float64, sigma *mat.Dense, symbols []string, minW, maxW []float64, cs ConstraintSet) optimize.Problem {
	n := len(mu)
	return optimize.Problem{
		Func: func(x []float64) float64 {
			xp := projectToBounds(x, minW, maxW)
			ret, variance := portfolioMoments(xp, mu, sigma)
			std := math.Sqrt(math.Max(variance, 1e-10))

			obj := -ret / std
			obj += sumPenalty(xp)
			obj += sectorPenalty(xp, symbols, cs.Sector)
			obj += targetReturnPenalty(ret, cs.TargetReturn)
			return obj
		},
		Grad: func(grad, x []float64) {
			xp := projectToBounds(x, minW, maxW)
			ret, variance := portfolioMoments(xp, mu, sigma)
			std := math.Sqrt(math.Max(variance, 1e-10))

			for i := 0; i < n; i++ {
				var dVariance float64
				for j := 0; j < n; j++ {
					dVariance += 2 * sigma.At(i, j) * xp[j]
				}
				grad[i] = -mu[i]/std + ret*dVariance/(2*std*std*std)
			}
			addSumPenaltyGradient(grad, xp)
			addSectorPenaltyGradient(grad, xp, symbols, cs.Sector)
			addTargetReturnPenaltyGradient(grad, ret, mu, cs.TargetReturn)
		},
	}
}

func minVolatilityProblem(mu []float64, sigma *mat.Dense, symbols []string, minW, maxW []float64, cs ConstraintSet) optimize.Problem {
	n := len(mu)
	return optimize.Problem{
		Func: func(x []float64) float64 {
			xp := projectToBounds(x, minW, maxW)
			ret, variance := portfolioMoments(xp, mu, sigma)

			obj := variance
			obj += sumPenalty(xp)
			obj += sectorPenalty(xp, symbols, cs.Sector)
			obj += targetReturnPenalty(ret, cs.TargetReturn)
			return obj
		},
		Grad: func(grad, x []float64) {
			xp := projectToBounds(x, minW, maxW)
			ret, _ := portfolioMoments(xp, mu, sigma)

			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * sigma.At(i, j) * xp[j]
				}
			}
			addSumPenaltyGradient(grad, xp)
			addSectorPenaltyGradient(grad, xp, symbols, cs.Sector)
			addTargetReturnPenaltyGradient(grad, ret, mu, cs.TargetReturn)
		},
	}
}

// maxReturnProblem maximizes expected return under a one-sided volatility
// ceiling.
func maxReturnProblem(mu []float64, sigma *mat.Dense, symbols []string, minW, maxW []float64, cs ConstraintSet, volCeiling float64) optimize.Problem {
	n := len(mu)
	maxVariance := volCeiling * volCeiling
	return optimize.Problem{
		Func: func(x []float64) float64 {
			xp := projectToBounds(x, minW, maxW)
			ret, variance := portfolioMoments(xp, mu, sigma)

			obj := -ret
			if variance > maxVariance {
				obj += penaltyWeight * (variance - maxVariance) * (variance - maxVariance)
			}
			obj += sumPenalty(xp)
			obj += sectorPenalty(xp, symbols, cs.Sector)
			obj += targetReturnPenalty(ret, cs.TargetReturn)
			return obj
		},
		Grad: func(grad, x []float64) {
			xp := projectToBounds(x, minW, maxW)
			ret, variance := portfolioMoments(xp, mu, sigma)

			for i := 0; i < n; i++ {
				grad[i] = -mu[i]
				if variance > maxVariance {
					var dVariance float64
					for j := 0; j < n; j++ {
						dVariance += 2 * sigma.At(i, j) * xp[j]
					}
					grad[i] += 2 * penaltyWeight * (variance - maxVariance) * dVariance
				}
			}
			addSumPenaltyGradient(grad, xp)
			addSectorPenaltyGradient(grad, xp, symbols, cs.Sector)
			addTargetReturnPenaltyGradient(grad, ret, mu, cs.TargetReturn)
		},
	}
}

func solve(problem optimize.Problem, n int) ([]float64, error) {
	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	success := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !success[result.Status] {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
		if !success[result.Status] {
			return nil, fmt.Errorf("optimization did not converge: status=%v", result.Status)
		}
	}
	return result.X, nil
}

// finalizeWeights projects the raw solution to bounds, clips negatives,
// drops entries below the cleaning threshold, and normalizes to sum 1.
func finalizeWeights(x []float64, symbols []string, minW, maxW []float64) map[string]float64 {
	xp := projectToBounds(x, minW, maxW)

	var sum float64
	for _, v := range xp {
		sum += math.Max(0, v)
	}
	weights := make(map[string]float64, len(symbols))
	for i, symbol := range symbols {
		w := math.Max(0, xp[i]) / math.Max(sum, 1e-10)
		if w >= cleanThreshold {
			weights[symbol] = w
		}
	}

	sum = 0
	for _, w := range weights {
		sum += w
	}
	if sum > 0 {
		for symbol := range weights {
			weights[symbol] /= sum
		}
	}
	return weights
}

func validateFeasibility(weights map[string]float64, mu []float64, symbols []string, cs ConstraintSet) error {
	if cs.Sector != nil {
		sectorWeights := make(map[string]float64)
		for symbol, w := range weights {
			if sector, ok := cs.Sector.SectorMapper[symbol]; ok {
				sectorWeights[sector] += w
			}
		}
		for sector, lower := range cs.Sector.SectorLower {
			if sectorWeights[sector] < lower-feasibilityTolerance {
				return fmt.Errorf("constraint set infeasible: sector %s weight %.4f below minimum %.4f", sector, sectorWeights[sector], lower)
			}
		}
		for sector, upper := range cs.Sector.SectorUpper {
			if sectorWeights[sector] > upper+feasibilityTolerance {
				return fmt.Errorf("constraint set infeasible: sector %s weight %.4f above maximum %.4f", sector, sectorWeights[sector], upper)
			}
		}
	}

	if cs.TargetReturn != nil {
		var ret float64
		for i, symbol := range symbols {
			ret += mu[i] * weights[symbol]
		}
		if ret < *cs.TargetReturn-feasibilityTolerance {
			return fmt.Errorf("constraint set infeasible: expected return %.4f below target %.4f", ret, *cs.TargetReturn)
		}
	}
	return nil
}

func allocationMetrics(weights map[string]float64, mu []float64, sigma *mat.Dense, symbols []string) (expectedReturn, volatility float64) {
	n := len(symbols)
	w := make([]float64, n)
	for i, symbol := range symbols {
		w[i] = weights[symbol]
	}
	var variance float64
	for i := 0; i < n; i++ {
		expectedReturn += mu[i] * w[i]
		for j := 0; j < n; j++ {
			variance += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return expectedReturn, math.Sqrt(math.Max(variance, 0))
}

func portfolioMoments(x, mu []float64, sigma *mat.Dense) (ret, variance float64) {
	n := len(x)
	for i := 0; i < n; i++ {
		ret += mu[i] * x[i]
		for j := 0; j < n; j++ {
			variance += x[i] * x[j] * sigma.At(i, j)
		}
	}
	return ret, variance
}

func projectToBounds(x, minW, maxW []float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(minW[i], math.Min(maxW[i], x[i]))
	}
	return proj
}

func sumPenalty(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return penaltyWeight * (sum - 1.0) * (sum - 1.0)
}

func addSumPenaltyGradient(grad, x []float64) {
	var sum float64
	for _, v := range x {
		sum += v
	}
	for i := range grad {
		grad[i] += 2 * penaltyWeight * (sum - 1.0)
	}
}

func targetReturnPenalty(ret float64, target *float64) float64 {
	if target == nil || ret >= *target {
		return 0
	}
	return penaltyWeight * (*target - ret) * (*target - ret)
}

func addTargetReturnPenaltyGradient(grad []float64, ret float64, mu []float64, target *float64) {
	if target == nil || ret >= *target {
		return
	}
	for i := range grad {
		grad[i] -= 2 * penaltyWeight * (*target - ret) * mu[i]
	}
}

func sectorPenalty(x []float64, symbols []string, sc *SectorConstraint) float64 {
	if sc == nil {
		return 0
	}
	sectorWeights := make(map[string]float64)
	for i, symbol := range symbols {
		if sector, ok := sc.SectorMapper[symbol]; ok {
			sectorWeights[sector] += x[i]
		}
	}

	var penalty float64
	for sector, lower := range sc.SectorLower {
		if w := sectorWeights[sector]; w < lower {
			penalty += penaltyWeight * (lower - w) * (lower - w)
		}
	}
	for sector, upper := range sc.SectorUpper {
		if w := sectorWeights[sector]; w > upper {
			penalty += penaltyWeight * (w - upper) * (w - upper)
		}
	}
	return penalty
}

func addSectorPenaltyGradient(grad, x []float64, symbols []string, sc *SectorConstraint) {
	if sc == nil {
		return
	}
	sectorWeights := make(map[string]float64)
	for i, symbol := range symbols {
		if sector, ok := sc.SectorMapper[symbol]; ok {
			sectorWeights[sector] += x[i]
		}
	}

	for sector, lower := range sc.SectorLower {
		if w := sectorWeights[sector]; w < lower {
			g := 2 * penaltyWeight * (lower - w)
			for i, symbol := range symbols {
				if sc.SectorMapper[symbol] == sector {
					grad[i] -= g
				}
			}
		}
	}
	for sector, upper := range sc.SectorUpper {
		if w := sectorWeights[sector]; w > upper {
			g := 2 * penaltyWeight * (w - upper)
			for i, symbol := range symbols {
				if sc.SectorMapper[symbol] == sector {
					grad[i] += g
				}
			}
		}
	}
}
