package optimization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/stat"

	"github.com/equitylens/engine/internal/modules/calculations"
	"github.com/equitylens/engine/internal/modules/portfolio"
	"github.com/equitylens/engine/pkg/formulas"
)

// OptimizationData holds the solver inputs prepared from a price universe.
// Expected returns and covariance are both annualized.
type OptimizationData struct {
	Symbols         []string
	ExpectedReturns map[string]float64
	Covariance      [][]float64
	Observations    int
}

// cachedCovariance is the msgpack-encoded cache payload.
type cachedCovariance struct {
	Symbols      []string    `msgpack:"symbols"`
	Matrix       [][]float64 `msgpack:"matrix"`
	Observations int         `msgpack:"observations"`
}

// fillMissing forward-fills price gaps per symbol, then back-fills any
// leading NaN run. Symbols with no data at all are dropped.
func fillMissing(prices portfolio.PriceTable) portfolio.PriceTable {
	filled := portfolio.PriceTable{Dates: prices.Dates, Data: make(map[string][]float64, len(prices.Data))}
	for symbol, series := range prices.Data {
		out := make([]float64, len(series))
		copy(out, series)

		last := math.NaN()
		for i, v := range out {
			if math.IsNaN(v) {
				out[i] = last
			} else {
				last = v
			}
		}
		// Leading gap: back-fill from the first observation.
		var first float64 = math.NaN()
		for _, v := range out {
			if !math.IsNaN(v) {
				first = v
				break
			}
		}
		if math.IsNaN(first) {
			continue
		}
		for i, v := range out {
			if math.IsNaN(v) {
				out[i] = first
			}
		}
		filled.Data[symbol] = out
	}
	return filled
}

// PrepareOptimizationData computes annualized mean historical returns and a
// Ledoit-Wolf shrunk covariance matrix from the price table. The covariance
// is cached by symbol set and date window when a cache is supplied.
func PrepareOptimizationData(prices portfolio.PriceTable, cache *calculations.Cache) (*OptimizationData, error) {
	prices = fillMissing(prices)

	symbols := prices.Symbols()
	sort.Strings(symbols)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols with price data in optimization universe")
	}
	if len(prices.Dates) < 3 {
		return nil, fmt.Errorf("insufficient price history: %d dates", len(prices.Dates))
	}

	returns := make(map[string][]float64, len(symbols))
	mu := make(map[string]float64, len(symbols))
	obs := 0
	for _, symbol := range symbols {
		r := formulas.CalculateReturns(prices.Data[symbol])
		if len(r) < 2 {
			return nil, fmt.Errorf("insufficient return history for %s", symbol)
		}
		returns[symbol] = r
		mu[symbol] = formulas.AnnualizedReturn(r)
		obs = len(r)
	}

	key := covarianceKey(symbols, prices.Dates)
	if cache != nil {
		if blob, ok := cache.Get("covariance", key); ok {
			var cached cachedCovariance
			if err := msgpack.Unmarshal(blob, &cached); err == nil && equalSymbols(cached.Symbols, symbols) {
				return &OptimizationData{
					Symbols:         symbols,
					ExpectedReturns: mu,
					Covariance:      cached.Matrix,
					Observations:    cached.Observations,
				}, nil
			}
		}
	}

	sample, err := sampleCovariance(returns, symbols)
	if err != nil {
		return nil, err
	}
	shrunk := ledoitWolfShrinkage(sample)

	// Annualize to match the expected-return scale.
	for i := range shrunk {
		for j := range shrunk[i] {
			shrunk[i][j] *= formulas.TradingDaysPerYear
		}
	}

	if cache != nil {
		payload := cachedCovariance{Symbols: symbols, Matrix: shrunk, Observations: obs}
		if blob, err := msgpack.Marshal(payload); err == nil {
			_ = cache.Set("covariance", key, blob, calculations.TTLCovariance)
		}
	}

	return &OptimizationData{
		Symbols:         symbols,
		ExpectedReturns: mu,
		Covariance:      shrunk,
		Observations:    obs,
	}, nil
}

func covarianceKey(symbols, dates []string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(symbols, ",")))
	if len(dates) > 0 {
		h.Write([]byte("|" + dates[0] + "|" + dates[len(dates)-1]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func equalSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sampleCovariance computes the pairwise sample covariance of daily returns.
func sampleCovariance(returns map[string][]float64, symbols []string) ([][]float64, error) {
	n := len(symbols)
	length := len(returns[symbols[0]])
	for _, s := range symbols {
		if len(returns[s]) != length {
			return nil, fmt.Errorf("inconsistent return lengths: %s has %d, expected %d", s, len(returns[s]), length)
		}
	}
	if length < 2 {
		return nil, fmt.Errorf("insufficient data: need at least 2 observations, got %d", length)
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := stat.Covariance(returns[symbols[i]], returns[symbols[j]], nil)
			cov[i][j] = c
			cov[j][i] = c
		}
	}
	return cov, nil
}

// ledoitWolfShrinkage shrinks the sample covariance towards a constant
// correlation target to stabilize the estimate on short histories.
func ledoitWolfShrinkage(sample [][]float64) [][]float64 {
	n := len(sample)
	if n == 0 {
		return sample
	}

	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sample[i][i]
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sample[i][j]
			}
		}
	}
	avgVar /= float64(n)
	if n > 1 {
		avgCov /= float64(n * (n - 1))
	}

	target := make([][]float64, n)
	for i := range target {
		target[i] = make([]float64, n)
		for j := range target[i] {
			if i == j {
				target[i][j] = avgVar
			} else {
				target[i][j] = avgCov
			}
		}
	}

	shrinkage := 0.2
	if n > 2 && avgVar > 0 {
		var sumSqDiff, sumSq, mean float64
		count := float64(n * n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				diff := sample[i][j] - target[i][j]
				sumSqDiff += diff * diff
				mean += sample[i][j]
				sumSq += sample[i][j] * sample[i][j]
			}
		}
		meanSqDiff := sumSqDiff / count
		mean /= count
		variance := sumSq/count - mean*mean
		if variance > 0 && meanSqDiff > 0 {
			shrinkage = math.Min(0.5, math.Max(0.0, variance/(variance+meanSqDiff)))
		}
	}

	shrunk := make([][]float64, n)
	for i := range shrunk {
		shrunk[i] = make([]float64, n)
		for j := range shrunk[i] {
			shrunk[i][j] = (1-shrinkage)*sample[i][j] + shrinkage*target[i][j]
		}
	}
	return shrunk
}
