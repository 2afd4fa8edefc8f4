package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeAssetData builds a universe where A has the best Sharpe, B the
// highest return, and C the lowest volatility. Covariance entries are
// annualized variances.
func threeAssetData() *OptimizationData {
	return &OptimizationData{
		Symbols: []string{"A", "B", "C"},
		ExpectedReturns: map[string]float64{
			"A": 0.10,
			"B": 0.15,
			"C": 0.04,
		},
		Covariance: [][]float64{
			{0.010, 0.002, 0.001},
			{0.002, 0.090, 0.002},
			{0.001, 0.002, 0.005},
		},
		Observations: 252,
	}
}

func assertValidWeights(t *testing.T, res *Result) {
	t.Helper()
	var sum float64
	for symbol, w := range res.Weights {
		assert.GreaterOrEqual(t, w, 0.0, "weight for %s", symbol)
		assert.GreaterOrEqual(t, w, 1e-4, "cleaned weight for %s", symbol)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestOptimizeMaxSharpe(t *testing.T) {
	data := threeAssetData()
	cs, err := BuildConstraintSet(data.Symbols, ConstraintSpec{})
	require.NoError(t, err)

	res, err := Optimize(data, cs, ObjectiveMaxSharpe, nil)
	require.NoError(t, err)

	assertValidWeights(t, res)
	assert.Equal(t, ObjectiveMaxSharpe, res.Objective)
	assert.Greater(t, res.SharpeRatio, 0.0)
	// A dominates on risk-adjusted return.
	assert.Greater(t, res.Weights["A"], res.Weights["B"])
}

func TestOptimizeMinVolatility(t *testing.T) {
	data := threeAssetData()
	cs, err := BuildConstraintSet(data.Symbols, ConstraintSpec{})
	require.NoError(t, err)

	res, err := Optimize(data, cs, ObjectiveMinVolatility, nil)
	require.NoError(t, err)

	assertValidWeights(t, res)
	// C has the lowest variance and should carry the largest weight.
	assert.Greater(t, res.Weights["C"], res.Weights["B"])
	assert.Less(t, res.Volatility, math.Sqrt(0.010))
}

func TestOptimizeMaxReturn(t *testing.T) {
	data := threeAssetData()
	cs, err := BuildConstraintSet(data.Symbols, ConstraintSpec{})
	require.NoError(t, err)

	res, err := Optimize(data, cs, ObjectiveMaxReturn, nil)
	require.NoError(t, err)

	assertValidWeights(t, res)
	// Without a volatility target, the solve concentrates in B.
	assert.Greater(t, res.Weights["B"], 0.9)
	assert.InDelta(t, 0.15, res.ExpectedReturn, 0.02)
}

func TestOptimizeMaxReturnRespectsBounds(t *testing.T) {
	data := threeAssetData()
	maxB := 0.5
	cs, err := BuildConstraintSet(data.Symbols, ConstraintSpec{
		Positions: &PositionLimits{
			MaxWeight: 1.0,
			SecurityLimits: map[string]SecurityLimit{
				"B": {Max: &maxB},
			},
		},
	})
	require.NoError(t, err)

	res, err := Optimize(data, cs, ObjectiveMaxReturn, nil)
	require.NoError(t, err)

	assertValidWeights(t, res)
	assert.LessOrEqual(t, res.Weights["B"], 0.5+0.02)
}

func TestOptimizeSectorConstraint(t *testing.T) {
	data := threeAssetData()
	maxTech := 0.4
	cs, err := BuildConstraintSet(data.Symbols, ConstraintSpec{
		Sectors: []SectorLimit{
			{Name: "Technology", Symbols: []string{"A", "B"}, Max: &maxTech},
		},
	})
	require.NoError(t, err)

	res, err := Optimize(data, cs, ObjectiveMaxSharpe, nil)
	require.NoError(t, err)

	assertValidWeights(t, res)
	techWeight := res.Weights["A"] + res.Weights["B"]
	assert.LessOrEqual(t, techWeight, 0.4+0.02)
}

func TestOptimizeInfeasibleTargetReturn(t *testing.T) {
	data := threeAssetData()
	target := 0.50 // above every expected return
	cs, err := BuildConstraintSet(data.Symbols, ConstraintSpec{TargetReturn: &target})
	require.NoError(t, err)

	_, err = Optimize(data, cs, ObjectiveMaxSharpe, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "infeasible")
}

func TestOptimizeUnknownObjective(t *testing.T) {
	data := threeAssetData()
	cs, err := BuildConstraintSet(data.Symbols, ConstraintSpec{})
	require.NoError(t, err)

	_, err = Optimize(data, cs, "risk_parity", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown optimization objective")
}

func TestValidObjective(t *testing.T) {
	assert.True(t, ValidObjective(ObjectiveMaxSharpe))
	assert.True(t, ValidObjective(ObjectiveMinVolatility))
	assert.True(t, ValidObjective(ObjectiveMaxReturn))
	assert.False(t, ValidObjective("hrp"))
}
