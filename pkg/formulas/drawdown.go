package formulas

// DrawdownMetrics holds drawdown statistics for a value series.
type DrawdownMetrics struct {
	MaxDrawdown     float64 `json:"max_drawdown"` // Most negative peak-to-trough decline (e.g. -0.25)
	CurrentDrawdown float64 `json:"current_drawdown"`
	DaysInDrawdown  int     `json:"days_in_drawdown"`
	PeakValue       float64 `json:"peak_value"`
	CurrentValue    float64 `json:"current_value"`
}

// MaxDrawdown calculates the maximum peak-to-trough decline of a cumulative
// value series. Returns a non-positive number (0 for monotonically rising series).
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	maxDD := 0.0
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := v/peak - 1
			if dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// MaxDrawdownFromReturns compounds a daily return series into a cumulative
// value curve and reports its maximum drawdown.
func MaxDrawdownFromReturns(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}

	values := make([]float64, len(dailyReturns))
	cum := 1.0
	for i, r := range dailyReturns {
		cum *= 1 + r
		values[i] = cum
	}
	return MaxDrawdown(values)
}

// CalculateDrawdownMetrics computes full drawdown statistics for a value series.
func CalculateDrawdownMetrics(values []float64) DrawdownMetrics {
	if len(values) == 0 {
		return DrawdownMetrics{}
	}

	m := DrawdownMetrics{
		MaxDrawdown:  MaxDrawdown(values),
		CurrentValue: values[len(values)-1],
	}

	peak := values[0]
	peakIdx := 0
	for i, v := range values {
		if v > peak {
			peak = v
			peakIdx = i
		}
	}
	m.PeakValue = peak
	if peak > 0 {
		m.CurrentDrawdown = m.CurrentValue/peak - 1
	}
	if m.CurrentDrawdown < 0 {
		m.DaysInDrawdown = len(values) - 1 - peakIdx
	}

	return m
}
