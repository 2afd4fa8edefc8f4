package ingest

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Periods follow the common convention: 20/50/200-day moving averages,
// 14-day RSI and 12/26/9 MACD.
const (
	smaShort   = 20
	smaMid     = 50
	smaLong    = 200
	emaPeriod  = 20
	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// IndicatorSet holds the latest technical indicator values for a symbol.
// Indicators that cannot be computed from the available history are NaN
// and stored as NULL.
type IndicatorSet struct {
	Symbol     string
	Date       string
	SMA20      float64
	SMA50      float64
	SMA200     float64
	EMA20      float64
	RSI14      float64
	MACD       float64
	MACDSignal float64
}

// ComputeIndicators derives the latest indicator values from a close series
// ordered oldest first. It returns false when the series is too short for
// even the shortest indicator.
func ComputeIndicators(closes []float64) (IndicatorSet, bool) {
	if len(closes) < smaShort {
		return IndicatorSet{}, false
	}

	set := IndicatorSet{
		SMA20:      last(talib.Sma(closes, smaShort)),
		SMA50:      math.NaN(),
		SMA200:     math.NaN(),
		EMA20:      last(talib.Ema(closes, emaPeriod)),
		RSI14:      math.NaN(),
		MACD:       math.NaN(),
		MACDSignal: math.NaN(),
	}

	if len(closes) >= smaMid {
		set.SMA50 = last(talib.Sma(closes, smaMid))
	}
	if len(closes) >= smaLong {
		set.SMA200 = last(talib.Sma(closes, smaLong))
	}
	if len(closes) > rsiPeriod {
		set.RSI14 = last(talib.Rsi(closes, rsiPeriod))
	}
	if len(closes) >= macdSlow+macdSignal {
		macd, signal, _ := talib.Macd(closes, macdFast, macdSlow, macdSignal)
		set.MACD = last(macd)
		set.MACDSignal = last(signal)
	}

	return set, true
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}
