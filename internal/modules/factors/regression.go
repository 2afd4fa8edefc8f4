package factors

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MinObservations is the smallest joined sample a regression will accept.
const MinObservations = 20

// FactorStat holds a single factor's regression output.
type FactorStat struct {
	Exposure    float64 `json:"exposure"`
	TStatistic  float64 `json:"t_statistic"`
	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant"`
}

// ExposureResult is the output of the factor regression.
type ExposureResult struct {
	OverallRSquared  float64               `json:"overall_r_squared"`
	AdjustedRSquared float64               `json:"adjusted_r_squared"`
	Factors          map[string]FactorStat `json:"factors"`
	Observations     int                   `json:"observations"`

	// names preserves factor ordering for attribution.
	names []string
}

// FactorNames returns the regressed factors in design-matrix order.
func (r *ExposureResult) FactorNames() []string {
	return r.names
}

// selectFactorSet picks the factor columns and display names from the joined
// table. Fama-French column sets take precedence; anything else is treated as
// a custom factor set using the raw column names.
func selectFactorSet(columns []string) (cols, names []string) {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}

	switch {
	case have["mkt_rf"] && have["smb"] && have["hml"] && have["rmw"] && have["cma"]:
		return []string{"mkt_rf", "smb", "hml", "rmw", "cma"},
			[]string{"Market", "Size", "Value", "Profitability", "Investment"}
	case have["mkt_rf"] && have["smb"] && have["hml"]:
		return []string{"mkt_rf", "smb", "hml"},
			[]string{"Market", "Size", "Value"}
	default:
		return columns, columns
	}
}

// Regress runs OLS of y on the factor columns plus an intercept and reports
// per-factor exposure, t-statistic, p-value, and fit quality.
func Regress(y []float64, factors FactorSeries) (*ExposureResult, error) {
	n := len(y)
	if n < MinObservations {
		return nil, fmt.Errorf("insufficient data for factor analysis (need at least %d observations, have %d)", MinObservations, n)
	}

	cols, names := selectFactorSet(factors.Columns)
	k := len(cols)
	if k == 0 {
		return nil, fmt.Errorf("no factor columns to regress on")
	}
	p := k + 1 // intercept
	if n <= p {
		return nil, fmt.Errorf("insufficient data: %d observations for %d parameters", n, p)
	}

	X := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1)
		for j, col := range cols {
			series, ok := factors.Data[col]
			if !ok || len(series) != n {
				return nil, fmt.Errorf("factor column %s misaligned with return series", col)
			}
			X.Set(i, j+1, series[i])
		}
	}
	yVec := mat.NewVecDense(n, y)

	var coef mat.VecDense
	if err := coef.SolveVec(X, yVec); err != nil {
		return nil, fmt.Errorf("factor regression failed: %w", err)
	}

	// Residual variance and coefficient covariance via (X'X)^-1.
	var fitted mat.VecDense
	fitted.MulVec(X, &coef)
	var rss float64
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		rss += r * r
	}

	meanY := stat.Mean(y, nil)
	var tss float64
	for _, v := range y {
		d := v - meanY
		tss += d * d
	}

	rSquared := 0.0
	if tss > 0 {
		rSquared = 1 - rss/tss
	}
	adjRSquared := 1 - (1-rSquared)*float64(n-1)/float64(n-p)

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("singular design matrix: %w", err)
	}
	sigma2 := rss / float64(n-p)

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - p)}
	result := &ExposureResult{
		OverallRSquared:  rSquared,
		AdjustedRSquared: adjRSquared,
		Factors:          make(map[string]FactorStat, k),
		Observations:     n,
		names:            names,
	}
	for j := 0; j < k; j++ {
		beta := coef.AtVec(j + 1)
		se := math.Sqrt(sigma2 * xtxInv.At(j+1, j+1))
		tStat := 0.0
		pValue := 1.0
		if se > 0 {
			tStat = beta / se
			pValue = 2 * tDist.CDF(-math.Abs(tStat))
		}
		result.Factors[names[j]] = FactorStat{
			Exposure:    beta,
			TStatistic:  tStat,
			PValue:      pValue,
			Significant: pValue < 0.05,
		}
	}
	return result, nil
}
