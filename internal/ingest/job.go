package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/modules/portfolio"
)

// historyWindow is how far back the indicator pass loads closes. It covers
// the 200-day moving average with slack for non-trading days.
const historyWindowDays = 320

// PipelineJob runs the market-data pipeline on a cron schedule: refresh
// recent closes for every known symbol, then recompute technical indicators
// from the updated history. It implements scheduler.Job.
type PipelineJob struct {
	repo   *portfolio.Repository
	store  *IndicatorStore
	source Source
	now    func() time.Time
	log    zerolog.Logger
}

// NewPipelineJob creates the scheduled ingestion job.
func NewPipelineJob(repo *portfolio.Repository, store *IndicatorStore, source Source, log zerolog.Logger) *PipelineJob {
	return &PipelineJob{
		repo:   repo,
		store:  store,
		source: source,
		now:    time.Now,
		log:    log.With().Str("job", "ingest:market-data").Logger(),
	}
}

// Name returns the job identifier for scheduler logging.
func (j *PipelineJob) Name() string {
	return "ingest:market-data"
}

// Run executes one pipeline pass. Weekend runs are skipped since markets are
// closed. Per-symbol failures are logged and do not abort the pass.
func (j *PipelineJob) Run() error {
	now := j.now()
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		j.log.Info().Msg("Skipping market data run on weekend")
		return nil
	}

	runID := uuid.NewString()
	log := j.log.With().Str("run_id", runID).Logger()

	symbols, err := j.repo.KnownSymbols()
	if err != nil {
		return fmt.Errorf("failed to list symbols: %w", err)
	}
	if len(symbols) == 0 {
		log.Info().Msg("No symbols to ingest")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// A few days of history so missed runs backfill themselves.
	start := now.AddDate(0, 0, -5).Format("2006-01-02")
	end := now.Format("2006-01-02")

	bars, err := j.source.DailyCloses(ctx, symbols, start, end)
	if err != nil {
		return fmt.Errorf("failed to fetch daily closes: %w", err)
	}

	inserted := 0
	for _, bar := range bars {
		err := j.repo.UpsertDailyPrice(portfolio.DailyPrice{
			Symbol: bar.Symbol,
			Date:   bar.Date,
			Close:  bar.Close,
		})
		if err != nil {
			log.Error().Err(err).Str("symbol", bar.Symbol).Msg("Failed to store price")
			continue
		}
		inserted++
	}
	log.Info().Int("bars", inserted).Int("symbols", len(symbols)).Msg("Price refresh finished")

	updated := 0
	historyStart := now.AddDate(0, 0, -historyWindowDays).Format("2006-01-02")
	for _, symbol := range symbols {
		dates, closes, err := j.repo.GetPriceSeries(symbol, historyStart, end)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load price history")
			continue
		}
		if len(closes) == 0 {
			continue
		}

		set, ok := ComputeIndicators(closes)
		if !ok {
			log.Debug().Str("symbol", symbol).Int("observations", len(closes)).
				Msg("Insufficient history for indicators")
			continue
		}
		set.Symbol = symbol
		set.Date = dates[len(dates)-1]

		if err := j.store.Upsert(set); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("Failed to store indicators")
			continue
		}
		updated++
	}
	log.Info().Int("updated", updated).Msg("Indicator refresh finished")

	return nil
}
