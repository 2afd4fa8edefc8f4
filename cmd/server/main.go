// Package main is the entry point for the portfolio calculation engine.
// The engine exposes an HTTP API for portfolio analytics, risk (VaR and
// stress tests), factor analysis and portfolio optimization. Heavy
// calculations run as asynchronous jobs polled by job id.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/equitylens/engine/internal/config"
	"github.com/equitylens/engine/internal/database"
	"github.com/equitylens/engine/internal/ingest"
	"github.com/equitylens/engine/internal/jobs"
	"github.com/equitylens/engine/internal/modules/calculations"
	"github.com/equitylens/engine/internal/modules/factors"
	"github.com/equitylens/engine/internal/modules/optimization"
	"github.com/equitylens/engine/internal/modules/performance"
	"github.com/equitylens/engine/internal/modules/portfolio"
	"github.com/equitylens/engine/internal/modules/risk"
	"github.com/equitylens/engine/internal/scheduler"
	"github.com/equitylens/engine/internal/server"
	"github.com/equitylens/engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting calculation engine")

	// Two databases: durable portfolio state and the ephemeral result cache.
	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	repo, err := portfolio.NewRepository(portfolioDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize portfolio repository")
	}

	cache, err := calculations.NewCache(cacheDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize calculation cache")
	}

	performanceSvc := performance.NewService(repo, log)
	riskSvc := risk.NewService(repo, log)
	factorsSvc := factors.NewService(repo, factors.NewSyntheticProvider(), log)
	optimizationSvc := optimization.NewService(repo, cache, log)

	jobStore := jobs.NewStore(log)
	jobRunner := jobs.NewRunner(jobStore, cfg.JobWorkers, log)

	sched := scheduler.New(log)
	if err := sched.AddJob("@hourly", jobs.NewSweepJob(jobStore, cfg.JobRetention, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register job sweep")
	}

	if cfg.IngestEnabled {
		indicatorStore, err := ingest.NewIndicatorStore(portfolioDB, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize indicator store")
		}
		source := ingest.NewHTTPSource(cfg.QuoteURL, log)
		pipeline := ingest.NewPipelineJob(repo, indicatorStore, source, log)
		if err := sched.AddJob(cfg.IngestSchedule, pipeline); err != nil {
			log.Fatal().Err(err).Msg("Failed to register market data pipeline")
		}
	}
	sched.Start()

	srv := server.New(cfg, server.Services{
		Portfolio:    repo,
		Performance:  performanceSvc,
		Risk:         riskSvc,
		Factors:      factorsSvc,
		Optimization: optimizationSvc,
		JobStore:     jobStore,
		JobRunner:    jobRunner,
	}, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := jobRunner.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Job runner shutdown timed out")
	}
	sched.Stop()

	log.Info().Msg("Calculation engine stopped")
}
