// Package optimization builds constraint sets and solves mean-variance
// portfolio allocations.
package optimization

import (
	"fmt"
)

// Optimization objectives.
const (
	ObjectiveMaxSharpe     = "max_sharpe"
	ObjectiveMinVolatility = "min_volatility"
	ObjectiveMaxReturn     = "max_return"
)

// ValidObjective reports whether name is a recognized objective.
func ValidObjective(name string) bool {
	switch name {
	case ObjectiveMaxSharpe, ObjectiveMinVolatility, ObjectiveMaxReturn:
		return true
	}
	return false
}

// SectorLimit bounds one sector's aggregate weight. Symbols lists the
// securities belonging to the sector.
type SectorLimit struct {
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
}

// SecurityLimit bounds a single security's weight.
type SecurityLimit struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// PositionLimits holds portfolio-wide and per-security weight bounds.
type PositionLimits struct {
	MinWeight      float64                  `json:"min_weight"`
	MaxWeight      float64                  `json:"max_weight"`
	SecurityLimits map[string]SecurityLimit `json:"security_limits,omitempty"`
}

// ConstraintSpec is the request-side constraint description.
type ConstraintSpec struct {
	Sectors      []SectorLimit   `json:"sectors,omitempty"`
	Positions    *PositionLimits `json:"positions,omitempty"`
	TargetReturn *float64        `json:"target_return,omitempty"`
}

// SecurityBound is a resolved per-security weight bound. Each bound holds
// its own symbol and limits by value so constraints never share state.
type SecurityBound struct {
	Symbol string
	Min    float64
	Max    float64
}

// SectorConstraint groups securities into sectors with aggregate bounds.
type SectorConstraint struct {
	SectorMapper map[string]string
	SectorLower  map[string]float64
	SectorUpper  map[string]float64
}

// ConstraintSet is the solver-ready constraint structure, built once per
// request and immutable during the solve.
type ConstraintSet struct {
	Bounds       []SecurityBound
	Sector       *SectorConstraint
	TargetReturn *float64
}

// BoundFor returns the resolved bound for a symbol. Symbols without an
// explicit bound are long-only with no upper cap.
func (cs ConstraintSet) BoundFor(symbol string) SecurityBound {
	for _, b := range cs.Bounds {
		if b.Symbol == symbol {
			return b
		}
	}
	return SecurityBound{Symbol: symbol, Min: 0, Max: 1}
}

// BuildConstraintSet resolves a request's constraint spec against the
// optimization universe. Per-security limits override the portfolio-wide
// bounds; every resolved bound is validated for internal consistency and
// joint feasibility with the full-investment requirement.
func BuildConstraintSet(universe []string, spec ConstraintSpec) (ConstraintSet, error) {
	if len(universe) == 0 {
		return ConstraintSet{}, fmt.Errorf("empty optimization universe")
	}

	minWeight, maxWeight := 0.0, 1.0
	var securityLimits map[string]SecurityLimit
	if spec.Positions != nil {
		minWeight = spec.Positions.MinWeight
		if spec.Positions.MaxWeight > 0 {
			maxWeight = spec.Positions.MaxWeight
		}
		securityLimits = spec.Positions.SecurityLimits
	}
	if minWeight < 0 {
		return ConstraintSet{}, fmt.Errorf("min_weight %v is negative; short positions are not supported", minWeight)
	}
	if minWeight > maxWeight {
		return ConstraintSet{}, fmt.Errorf("min_weight %v exceeds max_weight %v", minWeight, maxWeight)
	}

	cs := ConstraintSet{
		Bounds:       make([]SecurityBound, 0, len(universe)),
		TargetReturn: spec.TargetReturn,
	}

	var sumMin, sumMax float64
	for _, symbol := range universe {
		bound := SecurityBound{Symbol: symbol, Min: minWeight, Max: maxWeight}
		if limit, ok := securityLimits[symbol]; ok {
			if limit.Min != nil {
				bound.Min = *limit.Min
			}
			if limit.Max != nil {
				bound.Max = *limit.Max
			}
		}
		if bound.Min < 0 {
			return ConstraintSet{}, fmt.Errorf("security %s: negative minimum weight %v", symbol, bound.Min)
		}
		if bound.Min > bound.Max {
			return ConstraintSet{}, fmt.Errorf("security %s: minimum weight %v exceeds maximum %v", symbol, bound.Min, bound.Max)
		}
		cs.Bounds = append(cs.Bounds, bound)
		sumMin += bound.Min
		sumMax += bound.Max
	}
	if sumMin > 1+1e-9 {
		return ConstraintSet{}, fmt.Errorf("infeasible bounds: minimum weights sum to %v (> 1)", sumMin)
	}
	if sumMax < 1-1e-9 {
		return ConstraintSet{}, fmt.Errorf("infeasible bounds: maximum weights sum to %v (< 1)", sumMax)
	}

	if len(spec.Sectors) > 0 {
		sector := &SectorConstraint{
			SectorMapper: make(map[string]string),
			SectorLower:  make(map[string]float64),
			SectorUpper:  make(map[string]float64),
		}
		inUniverse := make(map[string]bool, len(universe))
		for _, s := range universe {
			inUniverse[s] = true
		}
		for _, limit := range spec.Sectors {
			if limit.Min != nil && limit.Max != nil && *limit.Min > *limit.Max {
				return ConstraintSet{}, fmt.Errorf("sector %s: minimum %v exceeds maximum %v", limit.Name, *limit.Min, *limit.Max)
			}
			for _, symbol := range limit.Symbols {
				if !inUniverse[symbol] {
					continue
				}
				sector.SectorMapper[symbol] = limit.Name
			}
			if limit.Min != nil {
				sector.SectorLower[limit.Name] = *limit.Min
			}
			if limit.Max != nil {
				sector.SectorUpper[limit.Name] = *limit.Max
			}
		}
		cs.Sector = sector
	}

	return cs, nil
}
