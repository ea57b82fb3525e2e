// Package environment owns episode state and composes the simulation
// pipeline: configuration advance, water-level sampling, cost computation,
// lateral interaction adjustment and reward aggregation.
package environment

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opencoastal/breakwater/internal/modules/costs"
	"github.com/opencoastal/breakwater/internal/modules/hydro"
	"github.com/opencoastal/breakwater/internal/modules/interaction"
	"github.com/opencoastal/breakwater/internal/modules/protection"
	"github.com/opencoastal/breakwater/internal/modules/rewards"
	"github.com/opencoastal/breakwater/internal/modules/tables"
)

var (
	// ErrInvalidActionVector is returned when the action vector has the wrong
	// arity or contains an invalid action.
	ErrInvalidActionVector = errors.New("invalid action vector")
	// ErrEpisodeTerminal is returned when Step is called after the horizon.
	ErrEpisodeTerminal = errors.New("episode already terminal")
)

// DefaultHorizon is the planning horizon in years.
const DefaultHorizon = 40

// DefaultInitialWater is the water state every episode starts from.
var DefaultInitialWater = hydro.State{SLRIndex: 4, SurgeIndex: 1}

// Component binds a borough name to its cost calculator. Order in the
// component list fixes the order of the action vector.
type Component struct {
	Name       string
	Calculator costs.Calculator
}

// Config assembles an environment. Process, Engine, Aggregator, SCC and RNG
// are shared read-only (or per-episode, for the RNG) collaborators.
type Config struct {
	Components   []Component
	Process      *hydro.Process
	Engine       *interaction.Engine
	Aggregator   *rewards.Aggregator
	SCC          tables.SCCProvider
	RNG          hydro.RNG
	Horizon      int
	InitialWater *hydro.State // nil selects DefaultInitialWater
	Log          zerolog.Logger
}

// Observation is the caller-visible slice of episode state.
type Observation struct {
	YearIndex      int                                 `json:"year_index"`
	Water          hydro.State                         `json:"water"`
	WaterHeight    float64                             `json:"water_height_m"`
	Configurations map[string]protection.Configuration `json:"configurations"`
	Terminal       bool                                `json:"terminal"`
}

// StepResult carries everything one step produces.
type StepResult struct {
	Observation Observation                `json:"observation"`
	Reward      float64                    `json:"reward"`
	Terminal    bool                       `json:"terminal"`
	Breakdowns  map[string]costs.Breakdown `json:"breakdowns"`
}

// Environment is a single episode of the coastal-protection process. It is
// not safe for concurrent use; run one goroutine per episode and share only
// the read-only collaborators.
type Environment struct {
	components []Component
	process    *hydro.Process
	engine     *interaction.Engine
	aggregator *rewards.Aggregator
	scc        tables.SCCProvider
	rng        hydro.RNG
	horizon    int
	initial    hydro.State
	log        zerolog.Logger

	year        int
	water       hydro.State
	configs     map[string]protection.Configuration
	actions     map[string][]protection.Action
	costHistory map[string][]costs.Breakdown
	cumulative  float64
	terminal    bool
}

// New builds an environment and resets it to the initial state.
func New(cfg Config) (*Environment, error) {
	if len(cfg.Components) == 0 {
		return nil, fmt.Errorf("environment needs at least one component")
	}
	seen := make(map[string]bool, len(cfg.Components))
	for _, c := range cfg.Components {
		if c.Name == "" || c.Calculator == nil {
			return nil, fmt.Errorf("component %q is incomplete", c.Name)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate component %q", c.Name)
		}
		seen[c.Name] = true
	}
	if cfg.Process == nil || cfg.Engine == nil || cfg.Aggregator == nil || cfg.SCC == nil || cfg.RNG == nil {
		return nil, fmt.Errorf("environment is missing a collaborator")
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultHorizon
	}
	initial := DefaultInitialWater
	if cfg.InitialWater != nil {
		initial = *cfg.InitialWater
	}
	if !initial.Valid() {
		return nil, fmt.Errorf("%w: initial state slr=%d surge=%d",
			hydro.ErrInvalidStateIndex, initial.SLRIndex, initial.SurgeIndex)
	}

	env := &Environment{
		components: cfg.Components,
		process:    cfg.Process,
		engine:     cfg.Engine,
		aggregator: cfg.Aggregator,
		scc:        cfg.SCC,
		rng:        cfg.RNG,
		horizon:    cfg.Horizon,
		initial:    initial,
		log:        cfg.Log.With().Str("module", "environment").Logger(),
	}
	env.Reset()
	return env, nil
}

// Reset returns the environment to year zero: initial water state, all
// configurations at NoStructure, empty histories.
func (e *Environment) Reset() Observation {
	e.year = 0
	e.water = e.initial
	e.water.YearIndex = 0
	e.terminal = false
	e.cumulative = 0
	e.configs = make(map[string]protection.Configuration, len(e.components))
	e.actions = make(map[string][]protection.Action, len(e.components))
	e.costHistory = make(map[string][]costs.Breakdown, len(e.components))
	for _, c := range e.components {
		e.configs[c.Name] = protection.NoStructure
		e.actions[c.Name] = nil
		e.costHistory[c.Name] = nil
	}
	e.log.Debug().Msg("episode reset")
	return e.observe()
}

// Step advances the episode by one year. The step is atomic: any validation
// or sampling failure leaves the episode state untouched.
func (e *Environment) Step(actions []protection.Action) (StepResult, error) {
	if e.terminal {
		return StepResult{}, ErrEpisodeTerminal
	}
	if len(actions) != len(e.components) {
		return StepResult{}, fmt.Errorf("%w: got %d actions, want %d",
			ErrInvalidActionVector, len(actions), len(e.components))
	}

	// Advance configurations into a scratch map first.
	next := make(map[string]protection.Configuration, len(e.components))
	for i, c := range e.components {
		cfg, err := protection.Advance(e.configs[c.Name], actions[i])
		if err != nil {
			return StepResult{}, fmt.Errorf("%w: component %s: %v", ErrInvalidActionVector, c.Name, err)
		}
		next[c.Name] = cfg
	}

	water, err := e.process.Sample(e.water, e.rng)
	if err != nil {
		return StepResult{}, err
	}

	sccValue, err := e.scc.Value(e.year)
	if err != nil {
		return StepResult{}, err
	}

	raw := make(map[string]costs.Breakdown, len(e.components))
	for _, c := range e.components {
		raw[c.Name] = c.Calculator.ComputeCosts(costs.Inputs{
			Config:      next[c.Name],
			PriorConfig: e.configs[c.Name],
			Water:       water,
			YearIndex:   e.year,
		})
	}

	// One consistent snapshot for all pairs.
	adjusted := e.engine.Adjust(next, water, raw)
	reward, final := e.aggregator.Aggregate(raw, adjusted, sccValue, e.year)

	// Commit.
	e.configs = next
	e.water = water
	e.cumulative += reward
	for i, c := range e.components {
		e.actions[c.Name] = append(e.actions[c.Name], actions[i])
		e.costHistory[c.Name] = append(e.costHistory[c.Name], final[c.Name])
	}
	e.year++
	e.terminal = e.year >= e.horizon

	e.log.Debug().
		Int("year", e.year).
		Float64("water_m", water.HeightMeters()).
		Float64("reward", reward).
		Bool("terminal", e.terminal).
		Msg("step complete")

	return StepResult{
		Observation: e.observe(),
		Reward:      reward,
		Terminal:    e.terminal,
		Breakdowns:  final,
	}, nil
}

// Observe returns the current observation without advancing the episode.
func (e *Environment) Observe() Observation {
	return e.observe()
}

// ComponentNames returns the component names in action-vector order.
func (e *Environment) ComponentNames() []string {
	names := make([]string, len(e.components))
	for i, c := range e.components {
		names[i] = c.Name
	}
	return names
}

// ActionHistory returns the per-component ordered action sequences.
func (e *Environment) ActionHistory() map[string][]protection.Action {
	out := make(map[string][]protection.Action, len(e.actions))
	for name, seq := range e.actions {
		out[name] = append([]protection.Action(nil), seq...)
	}
	return out
}

// CostHistory returns the per-component ordered final breakdowns.
func (e *Environment) CostHistory() map[string][]costs.Breakdown {
	out := make(map[string][]costs.Breakdown, len(e.costHistory))
	for name, seq := range e.costHistory {
		out[name] = append([]costs.Breakdown(nil), seq...)
	}
	return out
}

// CumulativeReward returns the sum of all step rewards since the last reset.
func (e *Environment) CumulativeReward() float64 {
	return e.cumulative
}

// Horizon returns the episode length in years.
func (e *Environment) Horizon() int {
	return e.horizon
}

func (e *Environment) observe() Observation {
	configs := make(map[string]protection.Configuration, len(e.configs))
	for name, cfg := range e.configs {
		configs[name] = cfg
	}
	return Observation{
		YearIndex:      e.year,
		Water:          e.water,
		WaterHeight:    e.water.HeightMeters(),
		Configurations: configs,
		Terminal:       e.terminal,
	}
}
