package ingest

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/database"
)

const indicatorSchema = `
CREATE TABLE IF NOT EXISTS technical_indicators (
	symbol TEXT NOT NULL,
	date TEXT NOT NULL,
	sma_20 REAL,
	sma_50 REAL,
	sma_200 REAL,
	ema_20 REAL,
	rsi_14 REAL,
	macd REAL,
	macd_signal REAL,
	PRIMARY KEY (symbol, date)
);
`

// IndicatorStore persists derived technical indicators alongside the price
// history.
type IndicatorStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewIndicatorStore creates the store and ensures its schema exists.
func NewIndicatorStore(db *database.DB, log zerolog.Logger) (*IndicatorStore, error) {
	if _, err := db.Conn().Exec(indicatorSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize indicator schema: %w", err)
	}
	return &IndicatorStore{
		db:  db,
		log: log.With().Str("component", "indicator_store").Logger(),
	}, nil
}

// Upsert writes the latest indicator row for a symbol/date.
func (s *IndicatorStore) Upsert(set IndicatorSet) error {
	_, err := s.db.Conn().Exec(
		`INSERT INTO technical_indicators
		 (symbol, date, sma_20, sma_50, sma_200, ema_20, rsi_14, macd, macd_signal)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(symbol, date) DO UPDATE SET
		 sma_20 = excluded.sma_20, sma_50 = excluded.sma_50, sma_200 = excluded.sma_200,
		 ema_20 = excluded.ema_20, rsi_14 = excluded.rsi_14,
		 macd = excluded.macd, macd_signal = excluded.macd_signal`,
		set.Symbol, set.Date,
		nullable(set.SMA20), nullable(set.SMA50), nullable(set.SMA200),
		nullable(set.EMA20), nullable(set.RSI14),
		nullable(set.MACD), nullable(set.MACDSignal),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert indicators for %s %s: %w", set.Symbol, set.Date, err)
	}
	return nil
}

// Latest returns the most recent indicator row for a symbol, if any.
func (s *IndicatorStore) Latest(symbol string) (IndicatorSet, bool, error) {
	row := s.db.Conn().QueryRow(
		`SELECT symbol, date, sma_20, sma_50, sma_200, ema_20, rsi_14, macd, macd_signal
		 FROM technical_indicators WHERE symbol = ? ORDER BY date DESC LIMIT 1`, symbol)

	var set IndicatorSet
	var sma20, sma50, sma200, ema20, rsi, macd, signal sql.NullFloat64
	err := row.Scan(&set.Symbol, &set.Date, &sma20, &sma50, &sma200, &ema20, &rsi, &macd, &signal)
	if err == sql.ErrNoRows {
		return IndicatorSet{}, false, nil
	}
	if err != nil {
		return IndicatorSet{}, false, fmt.Errorf("failed to query indicators for %s: %w", symbol, err)
	}

	set.SMA20 = fromNullable(sma20)
	set.SMA50 = fromNullable(sma50)
	set.SMA200 = fromNullable(sma200)
	set.EMA20 = fromNullable(ema20)
	set.RSI14 = fromNullable(rsi)
	set.MACD = fromNullable(macd)
	set.MACDSignal = fromNullable(signal)
	return set, true, nil
}

func nullable(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
