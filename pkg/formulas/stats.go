package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization base for daily return series.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Skewness calculates the sample skewness of a return series
func Skewness(data []float64) float64 {
	if len(data) < 3 {
		return 0
	}
	return stat.Skew(data, nil)
}

// ExcessKurtosis calculates the excess kurtosis (kurtosis - 3) of a return series
func ExcessKurtosis(data []float64) float64 {
	if len(data) < 4 {
		return 0
	}
	return stat.ExKurtosis(data, nil)
}

// CalculateReturns converts prices to percentage returns
// Returns[i] = (Price[i] - Price[i-1]) / Price[i-1]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns x sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}

	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// TotalReturn compounds a daily return series into a cumulative return.
func TotalReturn(dailyReturns []float64) float64 {
	cum := 1.0
	for _, r := range dailyReturns {
		cum *= 1 + r
	}
	return cum - 1
}

// AnnualizedReturn geometrically annualizes a daily return series.
// Formula: ((1+r1)*(1+r2)*...*(1+rN))^(252/N) - 1
func AnnualizedReturn(dailyReturns []float64) float64 {
	n := len(dailyReturns)
	if n == 0 {
		return 0
	}

	total := TotalReturn(dailyReturns)
	base := 1 + total
	if base <= 0 {
		return -1
	}
	return math.Pow(base, TradingDaysPerYear/float64(n)) - 1
}

// Quantile returns the empirical quantile of a sample at probability p.
// The input does not need to be sorted.
func Quantile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// Correlation calculates the Pearson correlation coefficient between two datasets
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// Covariance calculates the sample covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}
