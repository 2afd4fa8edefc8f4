package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitylens/engine/internal/modules/portfolio"
)

func TestFillMissing(t *testing.T) {
	nan := math.NaN()
	prices := portfolio.PriceTable{
		Dates: []string{"d1", "d2", "d3", "d4"},
		Data: map[string][]float64{
			"A": {nan, 100, nan, 104},
			"B": {nan, nan, nan, nan},
		},
	}

	filled := fillMissing(prices)
	assert.Equal(t, []float64{100, 100, 100, 104}, filled.Data["A"])
	// Symbols with no observations at all are dropped.
	_, ok := filled.Data["B"]
	assert.False(t, ok)
}

func TestPrepareOptimizationData(t *testing.T) {
	prices := portfolio.PriceTable{
		Dates: []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-08"},
		Data: map[string][]float64{
			"AAPL": {100, 101, 102, 101, 103},
			"MSFT": {200, 198, 202, 204, 203},
		},
	}

	data, err := PrepareOptimizationData(prices, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, data.Symbols)
	assert.Equal(t, 4, data.Observations)
	require.Len(t, data.Covariance, 2)
	require.Len(t, data.Covariance[0], 2)

	// Covariance is symmetric with positive diagonal.
	assert.Equal(t, data.Covariance[0][1], data.Covariance[1][0])
	assert.Greater(t, data.Covariance[0][0], 0.0)
	assert.Greater(t, data.Covariance[1][1], 0.0)

	// Expected returns are annualized.
	assert.Greater(t, data.ExpectedReturns["AAPL"], 0.0)
}

func TestPrepareOptimizationDataErrors(t *testing.T) {
	_, err := PrepareOptimizationData(portfolio.PriceTable{Data: map[string][]float64{}}, nil)
	assert.Error(t, err)

	short := portfolio.PriceTable{
		Dates: []string{"d1", "d2"},
		Data:  map[string][]float64{"A": {100, 101}},
	}
	_, err = PrepareOptimizationData(short, nil)
	assert.Error(t, err)
}

func TestLedoitWolfShrinkagePullsTowardsTarget(t *testing.T) {
	sample := [][]float64{
		{0.04, 0.00, 0.00},
		{0.00, 0.01, 0.00},
		{0.00, 0.00, 0.09},
	}
	shrunk := ledoitWolfShrinkage(sample)

	// Diagonal moves towards the average variance, off-diagonal towards
	// the average covariance (0 here stays 0).
	avgVar := (0.04 + 0.01 + 0.09) / 3
	assert.Greater(t, shrunk[1][1], sample[1][1])
	assert.Less(t, shrunk[2][2], sample[2][2])
	assert.Less(t, math.Abs(shrunk[0][0]-avgVar), math.Abs(sample[0][0]-avgVar)+1e-12)
	assert.Equal(t, shrunk[0][1], shrunk[1][0])
}
