package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitylens/engine/internal/database"
	"github.com/equitylens/engine/internal/jobs"
	"github.com/equitylens/engine/internal/modules/portfolio"
	"github.com/equitylens/engine/internal/modules/risk"
)

type testEnv struct {
	router *chi.Mux
	repo   *portfolio.Repository
	store  *jobs.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "engine.db"),
		Profile: database.ProfileStandard,
		Name:    "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := portfolio.NewRepository(db, zerolog.Nop())
	require.NoError(t, err)

	store := jobs.NewStore(zerolog.Nop())
	runner := jobs.NewRunner(store, 2, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Shutdown(ctx)
	})

	service := risk.NewService(repo, zerolog.Nop())
	handler := NewHandler(service, runner, zerolog.Nop())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	return &testEnv{router: router, repo: repo, store: store}
}

// seedPortfolio creates a one-position portfolio with a short price history.
func seedPortfolio(t *testing.T, repo *portfolio.Repository) int64 {
	t.Helper()

	id, err := repo.CreatePortfolio("test")
	require.NoError(t, err)
	_, err = repo.AddPosition(portfolio.Position{
		Portfolio:  id,
		Symbol:     "SPY",
		Quantity:   10,
		EntryDate:  "2024-01-02",
		EntryPrice: 470,
	})
	require.NoError(t, err)

	closes := []float64{470, 472, 465, 468, 471, 469, 474, 470, 466, 472}
	for i, c := range closes {
		date := time.Date(2024, 1, 2+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		require.NoError(t, repo.UpsertDailyPrice(portfolio.DailyPrice{Symbol: "SPY", Date: date, Close: c}))
	}
	return id
}

func (e *testEnv) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/risk-analysis", strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// awaitJob polls the store until the job reaches a terminal state.
func awaitJob(t *testing.T, store *jobs.Store, id string) jobs.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := store.Get(id)
		require.True(t, ok, "job disappeared from store")
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return jobs.Job{}
}

func TestSubmitVaRJob(t *testing.T) {
	env := newTestEnv(t)
	id := seedPortfolio(t, env.repo)

	rec := env.post(t, `{"portfolio_id": `+jsonInt(id)+`, "calculation_type": "var", "parameters": {"confidence_level": 0.95, "method": "historical"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["job_id"])

	job := awaitJob(t, env.store, resp["job_id"])
	require.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, 1.0, job.Progress)

	result, ok := job.Result.(*risk.VaRResult)
	require.True(t, ok)
	assert.Equal(t, risk.MethodHistorical, result.Method)
	assert.GreaterOrEqual(t, result.CVaR, result.VaR)
}

func TestSubmitStressTestJob(t *testing.T) {
	env := newTestEnv(t)
	id := seedPortfolio(t, env.repo)

	rec := env.post(t, `{"portfolio_id": `+jsonInt(id)+`, "calculation_type": "stress_test", "parameters": {"scenario_type": "historical", "scenario_name": "covid_crash_2020"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	job := awaitJob(t, env.store, resp["job_id"])
	require.Equal(t, jobs.StatusCompleted, job.Status)

	result, ok := job.Result.(*risk.StressTestResult)
	require.True(t, ok)
	assert.Equal(t, "covid_crash_2020", result.ScenarioName)
	assert.Less(t, result.StressedValue, result.CurrentValue)
}

func TestSubmitMissingPortfolioFailsAsync(t *testing.T) {
	env := newTestEnv(t)

	// Unknown portfolio passes synchronous validation and fails in the job.
	rec := env.post(t, `{"portfolio_id": 999, "calculation_type": "var"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	job := awaitJob(t, env.store, resp["job_id"])
	assert.Equal(t, jobs.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "not found")
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"malformed body", `{`, "invalid request body"},
		{"missing portfolio", `{"calculation_type": "var"}`, "portfolio_id is required"},
		{"unknown type", `{"portfolio_id": 1, "calculation_type": "frontier"}`, "unknown calculation type"},
		{"unknown method", `{"portfolio_id": 1, "calculation_type": "var", "parameters": {"method": "quantum"}}`, "unknown VaR method"},
		{"unknown scenario", `{"portfolio_id": 1, "calculation_type": "stress_test", "parameters": {"scenario_type": "alien_invasion"}}`, "unknown stress test scenario"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.post(t, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
}

func TestListScenarios(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/risk-analysis/scenarios", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "financial_crisis_2008")
	assert.Contains(t, rec.Body.String(), "factor_shock")
}

func jsonInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
