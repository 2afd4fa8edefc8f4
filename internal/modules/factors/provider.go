// Package factors regresses portfolio returns on factor-model returns and
// decomposes realized return into factor and specific components.
package factors

import (
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// Factor model names.
const (
	ModelFamaFrench3 = "fama_french_3"
	ModelFamaFrench5 = "fama_french_5"
)

// ValidFactorModel reports whether name is a recognized factor model.
func ValidFactorModel(name string) bool {
	switch name {
	case ModelFamaFrench3, ModelFamaFrench5:
		return true
	}
	return false
}

// FactorSeries is a dated table of factor returns, one column per factor.
type FactorSeries struct {
	Dates   []string
	Columns []string
	Data    map[string][]float64
}

// ReturnProvider supplies daily factor returns for a model over a date range.
// Implementations may query a factor database or synthesize series.
type ReturnProvider interface {
	FactorReturns(model, startDate, endDate string) (FactorSeries, error)
}

// SyntheticProvider generates reproducible synthetic factor returns drawn
// from fixed normal distributions, seeded so repeated calls with identical
// parameters return identical series. It stands in until a real factor data
// feed is wired up.
type SyntheticProvider struct {
	Seed uint64
}

// NewSyntheticProvider returns a provider with the default fixed seed.
func NewSyntheticProvider() *SyntheticProvider {
	return &SyntheticProvider{Seed: 42}
}

// factorSpec defines the distribution a synthetic factor is drawn from.
type factorSpec struct {
	column string
	mean   float64
	sigma  float64
}

var famaFrench3Specs = []factorSpec{
	{column: "mkt_rf", mean: 0.0003, sigma: 0.010},
	{column: "smb", mean: 0.0001, sigma: 0.005},
	{column: "hml", mean: 0.0002, sigma: 0.006},
}

var famaFrench5Specs = append(famaFrench3Specs[:3:3],
	factorSpec{column: "rmw", mean: 0.0001, sigma: 0.004},
	factorSpec{column: "cma", mean: 0.0001, sigma: 0.003},
)

// FactorReturns synthesizes one return per business day in [startDate,
// endDate] for each factor of the model.
func (p *SyntheticProvider) FactorReturns(model, startDate, endDate string) (FactorSeries, error) {
	var specs []factorSpec
	switch model {
	case ModelFamaFrench3:
		specs = famaFrench3Specs
	case ModelFamaFrench5:
		specs = famaFrench5Specs
	default:
		return FactorSeries{}, fmt.Errorf("unknown factor model: %s", model)
	}

	dates, err := businessDays(startDate, endDate)
	if err != nil {
		return FactorSeries{}, err
	}

	fs := FactorSeries{
		Dates:   dates,
		Columns: make([]string, 0, len(specs)),
		Data:    make(map[string][]float64, len(specs)),
	}
	src := rand.NewPCG(p.Seed, p.Seed)
	for _, spec := range specs {
		dist := distuv.Normal{Mu: spec.mean, Sigma: spec.sigma, Src: src}
		series := make([]float64, len(dates))
		for i := range series {
			series[i] = dist.Rand()
		}
		fs.Columns = append(fs.Columns, spec.column)
		fs.Data[spec.column] = series
	}
	return fs, nil
}

func businessDays(startDate, endDate string) ([]string, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s before start date %s", endDate, startDate)
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, d.Format("2006-01-02"))
		}
	}
	return dates, nil
}
