// Package main is the entry point for the Breakwater coastal protection
// simulator. It wires the stochastic water model, the per-borough cost
// calculators, and the episode engine, then serves the planning API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opencoastal/breakwater/internal/config"
	"github.com/opencoastal/breakwater/internal/database"
	"github.com/opencoastal/breakwater/internal/modules/environment"
	"github.com/opencoastal/breakwater/internal/modules/hydro"
	"github.com/opencoastal/breakwater/internal/modules/interaction"
	"github.com/opencoastal/breakwater/internal/modules/montecarlo"
	"github.com/opencoastal/breakwater/internal/modules/rewards"
	"github.com/opencoastal/breakwater/internal/modules/snapshots"
	"github.com/opencoastal/breakwater/internal/modules/tables"
	"github.com/opencoastal/breakwater/internal/modules/universe"
	"github.com/opencoastal/breakwater/internal/scheduler"
	"github.com/opencoastal/breakwater/internal/server"
	"github.com/opencoastal/breakwater/pkg/logger"
)

func main() {
	// Load configuration first to get log level
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

	log.Info().Msg("Starting Breakwater")

	// Three-database layout:
	// - tables.db: transition tables and the SCC schedule (regenerable)
	// - universe.db: borough definitions (editable via the API)
	// - results.db: the append-only episode record
	tablesDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("tables.db"),
		Profile: database.ProfileCache,
		Name:    "tables",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open tables database")
	}
	defer tablesDB.Close()

	universeDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("universe.db"),
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open universe database")
	}
	defer universeDB.Close()

	resultsDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("results.db"),
		Profile: database.ProfileResults,
		Name:    "results",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open results database")
	}
	defer resultsDB.Close()

	// Load transition tables, generating a synthetic set on first start.
	store, err := tables.NewStore(tablesDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tables store")
	}

	empty, err := store.IsEmpty()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to inspect tables store")
	}

	var mem *tables.Memory
	if empty {
		log.Info().Int64("seed", cfg.SyntheticSeed).Msg("No tables found, generating synthetic set")
		mem = tables.GenerateSynthetic(tables.DefaultSyntheticConfig(cfg.SyntheticSeed))
		if err := store.Save(mem); err != nil {
			log.Fatal().Err(err).Msg("Failed to persist synthetic tables")
		}
	} else {
		mem, err = store.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load tables")
		}
	}

	process, err := hydro.NewProcess(mem, mem.Surge(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build water process")
	}

	// Borough definitions live in the universe database so parameter edits
	// survive restarts. Defaults are seeded once.
	universeRepo, err := universe.NewRepository(universeDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize universe repository")
	}
	if err := universeRepo.SeedDefaults(universe.Defaults()); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed boroughs")
	}
	stored, err := universeRepo.List()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load boroughs")
	}

	// List orders alphabetically; the action vector follows the canonical
	// borough order, with stored parameter overrides applied in place.
	boroughs := universe.ApplyOverrides(universe.Defaults(), stored)

	components, calculators, err := universe.BuildComponents(boroughs, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build cost calculators")
	}
	engine, err := interaction.New(universe.DefaultPairs(), calculators, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build interaction engine")
	}
	aggregator := rewards.NewAggregator(cfg.DiscountFactor, log)

	factory := func(rng hydro.RNG) (*environment.Environment, error) {
		return environment.New(environment.Config{
			Components: components,
			Process:    process,
			Engine:     engine,
			Aggregator: aggregator,
			SCC:        mem.SCC(),
			RNG:        rng,
			Horizon:    cfg.Horizon,
			Log:        log,
		})
	}
	runner := montecarlo.NewRunner(factory, log)

	episodeStore, err := snapshots.NewRepository(resultsDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize episode repository")
	}
	episodes := server.NewEpisodeManager(factory, episodeStore, log)

	// Scheduled baseline sweep, off unless configured.
	var sweepJob *scheduler.SweepJob
	if cfg.SweepEnabled {
		sweepJob = scheduler.NewSweepJob(runner, montecarlo.Config{
			Episodes: cfg.SweepEpisodes,
			Workers:  cfg.SweepWorkers,
			Policy:   montecarlo.DoNothingPolicy(len(components)),
		}, episodeStore, log)

		sched := scheduler.New(log)
		if err := sched.AddJob(cfg.SweepSchedule, sweepJob); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("Failed to schedule sweep")
		}
		sched.Start()
		defer sched.Stop()
		log.Info().Str("schedule", cfg.SweepSchedule).Int("episodes", cfg.SweepEpisodes).Msg("Sweep scheduled")
	}

	srv := server.New(server.Config{
		Log:          log,
		Config:       cfg,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		Episodes:     episodes,
		Runner:       runner,
		SweepJob:     sweepJob,
		UniverseRepo: universeRepo,
		Components:   len(components),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Int("boroughs", len(components)).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
