package factors

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/equitylens/engine/internal/modules/performance"
)

// syntheticSample builds y = 1.2*mkt_rf - 0.4*smb + 0.3*hml + noise.
func syntheticSample(n int, noiseSigma float64) ([]string, []float64, FactorSeries) {
	src := rand.NewPCG(11, 11)
	mkt := distuv.Normal{Mu: 0.0003, Sigma: 0.010, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: noiseSigma, Src: rand.NewPCG(13, 13)}

	fs := FactorSeries{
		Columns: []string{"mkt_rf", "smb", "hml"},
		Data: map[string][]float64{
			"mkt_rf": make([]float64, n),
			"smb":    make([]float64, n),
			"hml":    make([]float64, n),
		},
	}
	dates := make([]string, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		dates[i] = fmt.Sprintf("2024-%02d-%02d", i/28%12+1, i%28+1)
		m, s, h := mkt.Rand(), mkt.Rand()*0.5, mkt.Rand()*0.6
		fs.Data["mkt_rf"][i] = m
		fs.Data["smb"][i] = s
		fs.Data["hml"][i] = h
		y[i] = 1.2*m - 0.4*s + 0.3*h + noise.Rand()
	}
	fs.Dates = dates
	return dates, y, fs
}

func TestRegressRecoversBetas(t *testing.T) {
	_, y, fs := syntheticSample(500, 0.001)

	res, err := Regress(y, fs)
	require.NoError(t, err)
	require.Len(t, res.Factors, 3)

	assert.InDelta(t, 1.2, res.Factors["Market"].Exposure, 0.05)
	assert.InDelta(t, -0.4, res.Factors["Size"].Exposure, 0.05)
	assert.InDelta(t, 0.3, res.Factors["Value"].Exposure, 0.05)
	assert.True(t, res.Factors["Market"].Significant)
	assert.Greater(t, res.OverallRSquared, 0.95)
	assert.Equal(t, []string{"Market", "Size", "Value"}, res.FactorNames())
}

func TestRegressRSquaredFallsWithNoise(t *testing.T) {
	_, yLow, fsLow := syntheticSample(400, 0.001)
	_, yHigh, fsHigh := syntheticSample(400, 0.02)

	low, err := Regress(yLow, fsLow)
	require.NoError(t, err)
	high, err := Regress(yHigh, fsHigh)
	require.NoError(t, err)

	assert.Greater(t, low.OverallRSquared, high.OverallRSquared)
}

func TestRegressRejectsSmallSample(t *testing.T) {
	_, y, fs := syntheticSample(10, 0.001)
	_, err := Regress(y, fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 20 observations")
}

func TestSelectFactorSet(t *testing.T) {
	cols, names := selectFactorSet([]string{"mkt_rf", "smb", "hml"})
	assert.Equal(t, []string{"mkt_rf", "smb", "hml"}, cols)
	assert.Equal(t, []string{"Market", "Size", "Value"}, names)

	cols, names = selectFactorSet([]string{"mkt_rf", "smb", "hml", "rmw", "cma"})
	assert.Len(t, cols, 5)
	assert.Equal(t, "Investment", names[4])

	cols, names = selectFactorSet([]string{"momentum", "carry"})
	assert.Equal(t, []string{"momentum", "carry"}, cols)
	assert.Equal(t, cols, names)
}

func TestAttributeDecomposition(t *testing.T) {
	dates, y, fs := syntheticSample(100, 0.001)

	exposures, err := Regress(y, fs)
	require.NoError(t, err)

	attr := Attribute(dates, y, fs, exposures)

	// Contributions plus specific return reassemble the total.
	var sum float64
	for _, fc := range attr.FactorContributions {
		sum += fc.Contribution
	}
	assert.InDelta(t, attr.TotalReturn, sum+attr.SpecificReturn, 1e-9)

	require.NotEmpty(t, attr.PeriodBreakdown)
	for _, pb := range attr.PeriodBreakdown {
		var monthSum float64
		for _, c := range pb.FactorContributions {
			monthSum += c
		}
		assert.InDelta(t, pb.PortfolioReturn, monthSum+pb.SpecificReturn, 1e-9)
	}
}

func TestSyntheticProviderReproducible(t *testing.T) {
	p := NewSyntheticProvider()

	a, err := p.FactorReturns(ModelFamaFrench3, "2024-01-01", "2024-03-29")
	require.NoError(t, err)
	b, err := p.FactorReturns(ModelFamaFrench3, "2024-01-01", "2024-03-29")
	require.NoError(t, err)

	assert.Equal(t, a.Dates, b.Dates)
	assert.Equal(t, a.Data["mkt_rf"], b.Data["mkt_rf"])
	assert.Equal(t, []string{"mkt_rf", "smb", "hml"}, a.Columns)

	// Business days only.
	assert.NotContains(t, a.Dates, "2024-01-06")
	assert.NotContains(t, a.Dates, "2024-01-07")
	assert.Contains(t, a.Dates, "2024-01-08")
}

func TestSyntheticProviderFiveFactor(t *testing.T) {
	p := NewSyntheticProvider()
	fs, err := p.FactorReturns(ModelFamaFrench5, "2024-01-01", "2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, []string{"mkt_rf", "smb", "hml", "rmw", "cma"}, fs.Columns)

	_, err = p.FactorReturns("barra", "2024-01-01", "2024-02-29")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown factor model")
}

func TestInnerJoinDropsUnmatchedDates(t *testing.T) {
	portfolioSeries := performance.ReturnSeries{
		Dates:     []string{"2024-01-02", "2024-01-03", "2024-01-04"},
		Portfolio: []float64{0.01, 0.02, -0.01},
	}
	fs := FactorSeries{
		Dates:   []string{"2024-01-03", "2024-01-04", "2024-01-05"},
		Columns: []string{"mkt_rf"},
		Data:    map[string][]float64{"mkt_rf": {0.001, 0.002, 0.003}},
	}

	dates, y, aligned := innerJoin(portfolioSeries, fs)
	assert.Equal(t, []string{"2024-01-03", "2024-01-04"}, dates)
	assert.Equal(t, []float64{0.02, -0.01}, y)
	assert.Equal(t, []float64{0.001, 0.002}, aligned.Data["mkt_rf"])
}
