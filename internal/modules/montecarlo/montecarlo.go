// Package montecarlo runs batches of independent episodes in parallel and
// summarizes the cumulative-reward distribution. Episodes share only the
// read-only tables; each rollout owns its environment and RNG, so no locking
// is needed.
package montecarlo

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/opencoastal/breakwater/internal/modules/environment"
	"github.com/opencoastal/breakwater/internal/modules/hydro"
	"github.com/opencoastal/breakwater/internal/modules/protection"
	"github.com/opencoastal/breakwater/internal/utils"
)

// Factory builds a fresh environment around the given randomness source.
// Implementations must hand each call its own episode state.
type Factory func(rng hydro.RNG) (*environment.Environment, error)

// Policy chooses the next action vector from the current observation.
type Policy func(obs environment.Observation) []protection.Action

// DoNothingPolicy never builds anything; it measures the unprotected
// baseline.
func DoNothingPolicy(components int) Policy {
	actions := make([]protection.Action, components)
	return func(environment.Observation) []protection.Action {
		return actions
	}
}

// StaticPolicy replays the same action vector every year.
func StaticPolicy(actions []protection.Action) Policy {
	return func(environment.Observation) []protection.Action {
		return actions
	}
}

// Config controls a batch run.
type Config struct {
	Episodes int
	Workers  int
	Seed     int64
	Policy   Policy
}

// Summary describes the cumulative-reward distribution of a batch.
type Summary struct {
	Episodes  int                `json:"episodes"`
	Mean      float64            `json:"mean"`
	StdDev    float64            `json:"std_dev"`
	Min       float64            `json:"min"`
	Max       float64            `json:"max"`
	Quantiles map[string]float64 `json:"quantiles"`
}

// Runner executes Monte Carlo batches against an environment factory.
type Runner struct {
	factory Factory
	log     zerolog.Logger
}

// NewRunner returns a runner bound to the factory.
func NewRunner(factory Factory, log zerolog.Logger) *Runner {
	return &Runner{
		factory: factory,
		log:     log.With().Str("module", "montecarlo").Logger(),
	}
}

// Run executes cfg.Episodes rollouts with at most cfg.Workers in flight and
// returns the reward distribution summary. Each episode gets a deterministic
// seed derived from cfg.Seed, so a batch is reproducible.
func (r *Runner) Run(ctx context.Context, cfg Config) (Summary, error) {
	if cfg.Episodes <= 0 {
		return Summary{}, fmt.Errorf("episode count must be positive, got %d", cfg.Episodes)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Policy == nil {
		return Summary{}, fmt.Errorf("no policy supplied")
	}

	timer := utils.NewTimer("montecarlo_batch", r.log)
	defer timer.Stop()

	rewards := make([]float64, cfg.Episodes)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i := 0; i < cfg.Episodes; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			total, err := r.rollout(cfg.Policy, cfg.Seed+int64(i))
			if err != nil {
				return fmt.Errorf("episode %d: %w", i, err)
			}
			rewards[i] = total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary := summarize(rewards)
	r.log.Info().
		Int("episodes", summary.Episodes).
		Float64("mean", summary.Mean).
		Float64("std_dev", summary.StdDev).
		Msg("batch complete")
	return summary, nil
}

func (r *Runner) rollout(policy Policy, seed int64) (float64, error) {
	env, err := r.factory(rand.New(rand.NewSource(seed)))
	if err != nil {
		return 0, err
	}

	obs := env.Observe()
	for !obs.Terminal {
		result, err := env.Step(policy(obs))
		if err != nil {
			return 0, err
		}
		obs = result.Observation
	}
	return env.CumulativeReward(), nil
}

func summarize(rewards []float64) Summary {
	sorted := append([]float64(nil), rewards...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	quantile := func(p float64) float64 {
		return stat.Quantile(p, stat.Empirical, sorted, nil)
	}

	return Summary{
		Episodes: len(sorted),
		Mean:     mean,
		StdDev:   std,
		Min:      sorted[0],
		Max:      sorted[len(sorted)-1],
		Quantiles: map[string]float64{
			"p05": quantile(0.05),
			"p25": quantile(0.25),
			"p50": quantile(0.50),
			"p75": quantile(0.75),
			"p95": quantile(0.95),
		},
	}
}
