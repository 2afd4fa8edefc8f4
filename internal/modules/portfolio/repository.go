package portfolio

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/database"
)

// ErrNotFound is returned when a portfolio does not exist.
var ErrNotFound = fmt.Errorf("portfolio not found")

const schema = `
CREATE TABLE IF NOT EXISTS portfolios (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	portfolio_id INTEGER NOT NULL REFERENCES portfolios(id),
	symbol TEXT NOT NULL,
	quantity REAL NOT NULL,
	entry_date TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_date TEXT,
	exit_price REAL
);

CREATE TABLE IF NOT EXISTS daily_prices (
	symbol TEXT NOT NULL,
	date TEXT NOT NULL,
	close REAL NOT NULL,
	PRIMARY KEY (symbol, date)
);

CREATE INDEX IF NOT EXISTS idx_positions_portfolio ON positions(portfolio_id);
CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);
`

// Repository provides access to portfolios, positions and price history.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a repository and ensures the schema exists.
func NewRepository(db *database.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Conn().Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize portfolio schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("component", "portfolio_repo").Logger(),
	}, nil
}

// GetPortfolio returns a portfolio by id, or ErrNotFound.
func (r *Repository) GetPortfolio(id int64) (*Portfolio, error) {
	var p Portfolio
	err := r.db.Conn().QueryRow(`SELECT id, name FROM portfolios WHERE id = ?`, id).
		Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio %d: %w", id, err)
	}
	return &p, nil
}

// CreatePortfolio inserts a portfolio and returns its id.
func (r *Repository) CreatePortfolio(name string) (int64, error) {
	res, err := r.db.Conn().Exec(`INSERT INTO portfolios (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to insert portfolio: %w", err)
	}
	return res.LastInsertId()
}

// AddPosition inserts a position for a portfolio.
func (r *Repository) AddPosition(p Position) (int64, error) {
	res, err := r.db.Conn().Exec(
		`INSERT INTO positions (portfolio_id, symbol, quantity, entry_date, entry_price, exit_date, exit_price)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Portfolio, p.Symbol, p.Quantity, p.EntryDate, p.EntryPrice, p.ExitDate, p.ExitPrice,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position: %w", err)
	}
	return res.LastInsertId()
}

// GetPositions returns all positions for a portfolio.
func (r *Repository) GetPositions(portfolioID int64) ([]Position, error) {
	if _, err := r.GetPortfolio(portfolioID); err != nil {
		return nil, err
	}

	rows, err := r.db.Conn().Query(
		`SELECT id, portfolio_id, symbol, quantity, entry_date, entry_price, exit_date, exit_price
		 FROM positions WHERE portfolio_id = ? ORDER BY symbol`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.Portfolio, &p.Symbol, &p.Quantity,
			&p.EntryDate, &p.EntryPrice, &p.ExitDate, &p.ExitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UpsertDailyPrice inserts or replaces a close observation.
func (r *Repository) UpsertDailyPrice(p DailyPrice) error {
	_, err := r.db.Conn().Exec(
		`INSERT INTO daily_prices (symbol, date, close) VALUES (?, ?, ?)
		 ON CONFLICT(symbol, date) DO UPDATE SET close = excluded.close`,
		p.Symbol, p.Date, p.Close)
	if err != nil {
		return fmt.Errorf("failed to upsert price %s %s: %w", p.Symbol, p.Date, err)
	}
	return nil
}

// GetPriceHistory builds an aligned price table for a symbol set over a date
// range (inclusive, YYYY-MM-DD; empty bounds mean unbounded). Gaps for
// non-trading symbols are NaN and must be tolerated by callers; a symbol with
// no observations at all is absent from the table.
func (r *Repository) GetPriceHistory(symbols []string, start, end string) (PriceTable, error) {
	if len(symbols) == 0 {
		return PriceTable{Data: map[string][]float64{}}, nil
	}

	query := `SELECT symbol, date, close FROM daily_prices WHERE symbol IN (?` +
		strings.Repeat(",?", len(symbols)-1) + `)`
	args := make([]interface{}, 0, len(symbols)+2)
	for _, s := range symbols {
		args = append(args, s)
	}
	if start != "" {
		query += ` AND date >= ?`
		args = append(args, start)
	}
	if end != "" {
		query += ` AND date <= ?`
		args = append(args, end)
	}
	query += ` ORDER BY date`

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return PriceTable{}, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	bySymbol := make(map[string]map[string]float64)
	dateSet := make(map[string]bool)
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.Symbol, &p.Date, &p.Close); err != nil {
			return PriceTable{}, fmt.Errorf("failed to scan price: %w", err)
		}
		if bySymbol[p.Symbol] == nil {
			bySymbol[p.Symbol] = make(map[string]float64)
		}
		bySymbol[p.Symbol][p.Date] = p.Close
		dateSet[p.Date] = true
	}
	if err := rows.Err(); err != nil {
		return PriceTable{}, err
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	table := PriceTable{Dates: dates, Data: make(map[string][]float64, len(bySymbol))}
	for symbol, prices := range bySymbol {
		series := make([]float64, len(dates))
		for i, d := range dates {
			if v, ok := prices[d]; ok {
				series[i] = v
			} else {
				series[i] = math.NaN()
			}
		}
		table.Data[symbol] = series
	}

	return table, nil
}

// GetPriceSeries returns the dated close series for a single symbol.
func (r *Repository) GetPriceSeries(symbol, start, end string) ([]string, []float64, error) {
	table, err := r.GetPriceHistory([]string{symbol}, start, end)
	if err != nil {
		return nil, nil, err
	}
	series, ok := table.Data[symbol]
	if !ok {
		return nil, nil, nil
	}
	return table.Dates, series, nil
}

// KnownSymbols lists every symbol with at least one stored price.
func (r *Repository) KnownSymbols() ([]string, error) {
	rows, err := r.db.Conn().Query(`SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
