package portfolio

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitylens/engine/internal/database"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewRepository(db, zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func TestPortfolioCRUD(t *testing.T) {
	repo := newTestRepo(t)

	id, err := repo.CreatePortfolio("growth")
	require.NoError(t, err)

	p, err := repo.GetPortfolio(id)
	require.NoError(t, err)
	assert.Equal(t, "growth", p.Name)

	_, err = repo.GetPortfolio(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPositions(t *testing.T) {
	repo := newTestRepo(t)

	id, err := repo.CreatePortfolio("growth")
	require.NoError(t, err)

	_, err = repo.AddPosition(Position{
		Portfolio:  id,
		Symbol:     "MSFT",
		Quantity:   25,
		EntryDate:  "2024-01-02",
		EntryPrice: 370,
	})
	require.NoError(t, err)
	_, err = repo.AddPosition(Position{
		Portfolio:  id,
		Symbol:     "AAPL",
		Quantity:   50,
		EntryDate:  "2024-01-02",
		EntryPrice: 185,
	})
	require.NoError(t, err)

	positions, err := repo.GetPositions(id)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	// Ordered by symbol.
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, "MSFT", positions[1].Symbol)

	_, err = repo.GetPositions(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPriceHistoryAlignment(t *testing.T) {
	repo := newTestRepo(t)

	prices := []DailyPrice{
		{Symbol: "AAPL", Date: "2024-01-02", Close: 185},
		{Symbol: "AAPL", Date: "2024-01-03", Close: 184},
		{Symbol: "AAPL", Date: "2024-01-04", Close: 182},
		{Symbol: "MSFT", Date: "2024-01-02", Close: 370},
		// MSFT has no 2024-01-03 observation.
		{Symbol: "MSFT", Date: "2024-01-04", Close: 368},
	}
	for _, p := range prices {
		require.NoError(t, repo.UpsertDailyPrice(p))
	}

	table, err := repo.GetPriceHistory([]string{"AAPL", "MSFT", "GHOST"}, "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-04"}, table.Dates)
	assert.Equal(t, []float64{185, 184, 182}, table.Data["AAPL"])

	msft := table.Data["MSFT"]
	require.Len(t, msft, 3)
	assert.Equal(t, 370.0, msft[0])
	assert.True(t, math.IsNaN(msft[1]))
	assert.Equal(t, 368.0, msft[2])

	// Symbol with no data is absent rather than all-NaN.
	_, ok := table.Data["GHOST"]
	assert.False(t, ok)

	latest, ok := table.Latest("MSFT")
	require.True(t, ok)
	assert.Equal(t, 368.0, latest)
}

func TestPriceHistoryDateRange(t *testing.T) {
	repo := newTestRepo(t)

	for _, date := range []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"} {
		require.NoError(t, repo.UpsertDailyPrice(DailyPrice{Symbol: "SPY", Date: date, Close: 470}))
	}

	table, err := repo.GetPriceHistory([]string{"SPY"}, "2024-01-03", "2024-01-04")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03", "2024-01-04"}, table.Dates)
}

func TestUpsertReplacesClose(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.UpsertDailyPrice(DailyPrice{Symbol: "SPY", Date: "2024-01-02", Close: 470}))
	require.NoError(t, repo.UpsertDailyPrice(DailyPrice{Symbol: "SPY", Date: "2024-01-02", Close: 471}))

	_, closes, err := repo.GetPriceSeries("SPY", "", "")
	require.NoError(t, err)
	require.Len(t, closes, 1)
	assert.Equal(t, 471.0, closes[0])
}

func TestKnownSymbols(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.UpsertDailyPrice(DailyPrice{Symbol: "MSFT", Date: "2024-01-02", Close: 370}))
	require.NoError(t, repo.UpsertDailyPrice(DailyPrice{Symbol: "AAPL", Date: "2024-01-02", Close: 185}))

	symbols, err := repo.KnownSymbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}
