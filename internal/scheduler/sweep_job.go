package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencoastal/breakwater/internal/modules/montecarlo"
)

// SweepStore persists completed sweep summaries.
type SweepStore interface {
	SaveSweep(summary montecarlo.Summary, ranAt time.Time) error
}

// SweepJob runs a periodic Monte Carlo baseline sweep and keeps the latest
// summary for the API to serve.
type SweepJob struct {
	runner  *montecarlo.Runner
	cfg     montecarlo.Config
	store   SweepStore
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.RWMutex
	last    *montecarlo.Summary
	lastRun time.Time
}

// NewSweepJob returns a sweep job with the given batch configuration. A nil
// store disables persistence.
func NewSweepJob(runner *montecarlo.Runner, cfg montecarlo.Config, store SweepStore, log zerolog.Logger) *SweepJob {
	return &SweepJob{
		runner:  runner,
		cfg:     cfg,
		store:   store,
		timeout: 30 * time.Minute,
		log:     log.With().Str("job", "montecarlo_sweep").Logger(),
	}
}

// Name implements Job.
func (j *SweepJob) Name() string {
	return "montecarlo_sweep"
}

// Run executes one sweep. Each run reseeds from the wall clock so successive
// sweeps explore different water trajectories.
func (j *SweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	cfg := j.cfg
	cfg.Seed = time.Now().UnixNano()

	summary, err := j.runner.Run(ctx, cfg)
	if err != nil {
		return err
	}

	ranAt := time.Now().UTC()
	j.mu.Lock()
	j.last = &summary
	j.lastRun = ranAt
	j.mu.Unlock()

	if j.store != nil {
		if err := j.store.SaveSweep(summary, ranAt); err != nil {
			j.log.Warn().Err(err).Msg("failed to persist sweep summary")
		}
	}

	j.log.Info().
		Int("episodes", summary.Episodes).
		Float64("mean", summary.Mean).
		Float64("p05", summary.Quantiles["p05"]).
		Float64("p95", summary.Quantiles["p95"]).
		Msg("sweep complete")
	return nil
}

// Latest returns the most recent sweep summary, if any.
func (j *SweepJob) Latest() (montecarlo.Summary, time.Time, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.last == nil {
		return montecarlo.Summary{}, time.Time{}, false
	}
	return *j.last, j.lastRun, true
}
