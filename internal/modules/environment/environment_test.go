package environment

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencoastal/breakwater/internal/modules/costs"
	"github.com/opencoastal/breakwater/internal/modules/hydro"
	"github.com/opencoastal/breakwater/internal/modules/interaction"
	"github.com/opencoastal/breakwater/internal/modules/protection"
	"github.com/opencoastal/breakwater/internal/modules/rewards"
	"github.com/opencoastal/breakwater/internal/modules/tables"
)

func baseParams() costs.Parameters {
	return costs.Parameters{
		ExposureValue:       15.3e6,
		VulnerabilityFactor: 0.07,
		Slope:               0.0085,
		CityHeight:          8.5,
		PrimaryBase:         0.2,
		PrimaryTop:          1.7,
		CriticalBase:        1.9,
		CriticalTop:         3.4,
	}
}

func newTestConfig(t *testing.T, seed int64) Config {
	t.Helper()
	log := zerolog.Nop()

	mem := tables.GenerateSynthetic(tables.DefaultSyntheticConfig(42))
	process, err := hydro.NewProcess(mem, mem.Surge(), log)
	require.NoError(t, err)

	wall := func() costs.Calculator {
		c, err := costs.NewTwoFloodwallCalculator(baseParams(), log)
		require.NoError(t, err)
		return c
	}
	greenParams := baseParams()
	greenParams.Seawall = 0.5
	greenParams.PrimaryBase = 0.8
	greenParams.PrimaryTop = 1.6
	greenParams.UptakeRate = 0.17e-3
	green, err := costs.NewGreenSpaceCalculator(greenParams, log)
	require.NoError(t, err)

	marshParams := baseParams()
	marshParams.NatureWidth = 200
	marshParams.UptakeRate = 0.44e-3
	marsh, err := costs.NewSaltMarshCalculator(marshParams, log)
	require.NoError(t, err)

	reefParams := baseParams()
	reefParams.NatureWidth = 150
	reefParams.UptakeRate = 0.30e-3
	reef, err := costs.NewOysterReefCalculator(reefParams, log)
	require.NoError(t, err)

	components := []Component{
		{Name: "bronx", Calculator: wall()},
		{Name: "manhattan", Calculator: green},
		{Name: "brooklyn", Calculator: wall()},
		{Name: "queens", Calculator: reef},
		{Name: "staten_island", Calculator: marsh},
	}
	calcs := make(map[string]costs.Calculator, len(components))
	for _, c := range components {
		calcs[c.Name] = c.Calculator
	}

	engine, err := interaction.New([]interaction.Pair{
		{Higher: "manhattan", Lower: "brooklyn", FactorLower: 0.20, FactorHigher: 0.10},
		{Higher: "manhattan", Lower: "bronx", FactorLower: 0.20, FactorHigher: 0.10},
		{Higher: "brooklyn", Lower: "queens", FactorLower: 0.20, FactorHigher: 0.10},
		{Higher: "brooklyn", Lower: "bronx", FactorLower: 0.20, FactorHigher: 0.10},
		{Higher: "brooklyn", Lower: "staten_island", FactorLower: 0.20, FactorHigher: 0.10},
	}, calcs, log)
	require.NoError(t, err)

	return Config{
		Components: components,
		Process:    process,
		Engine:     engine,
		Aggregator: rewards.NewAggregator(0.97, log),
		SCC:        mem.SCC(),
		RNG:        rand.New(rand.NewSource(seed)),
		Log:        log,
	}
}

func newTestEnvironment(t *testing.T, seed int64) *Environment {
	t.Helper()
	env, err := New(newTestConfig(t, seed))
	require.NoError(t, err)
	return env
}

func doNothing(n int) []protection.Action {
	actions := make([]protection.Action, n)
	for i := range actions {
		actions[i] = protection.DoNothing
	}
	return actions
}

func TestReset_InitialObservation(t *testing.T) {
	env := newTestEnvironment(t, 1)
	obs := env.Reset()

	assert.Equal(t, 0, obs.YearIndex)
	assert.False(t, obs.Terminal)
	assert.InDelta(t, 4*0.02+1*0.10, obs.WaterHeight, 1e-12)
	assert.Len(t, obs.Configurations, 5)
	for name, cfg := range obs.Configurations {
		assert.Equal(t, protection.NoStructure, cfg, name)
	}
}

func TestStep_TerminalExactlyAtHorizon(t *testing.T) {
	env := newTestEnvironment(t, 2)

	for year := 0; year < 40; year++ {
		result, err := env.Step(doNothing(5))
		require.NoError(t, err, "year %d", year)
		if year < 39 {
			assert.False(t, result.Terminal, "year %d must not be terminal", year)
		} else {
			assert.True(t, result.Terminal, "the 40th step ends the episode")
		}
		assert.Equal(t, year+1, result.Observation.YearIndex)
	}

	_, err := env.Step(doNothing(5))
	assert.ErrorIs(t, err, ErrEpisodeTerminal)
}

func TestStep_RejectsBadActionVectors(t *testing.T) {
	env := newTestEnvironment(t, 3)
	before := env.Observe()

	_, err := env.Step(doNothing(4))
	assert.ErrorIs(t, err, ErrInvalidActionVector)

	bad := doNothing(5)
	bad[2] = protection.Action(7)
	_, err = env.Step(bad)
	assert.ErrorIs(t, err, ErrInvalidActionVector)

	// Failed steps must not mutate episode state.
	assert.Equal(t, before, env.Observe())
}

func TestStep_ConfigurationsAreMonotone(t *testing.T) {
	env := newTestEnvironment(t, 4)

	actions := doNothing(5)
	actions[0] = protection.BuildBoth
	result, err := env.Step(actions)
	require.NoError(t, err)
	assert.Equal(t, protection.Both, result.Observation.Configurations["bronx"])

	// Later DoNothing steps never lose the structures.
	for i := 0; i < 10; i++ {
		result, err = env.Step(doNothing(5))
		require.NoError(t, err)
		assert.Equal(t, protection.Both, result.Observation.Configurations["bronx"])
	}
}

func TestStep_HistoriesAndCumulativeReward(t *testing.T) {
	env := newTestEnvironment(t, 5)

	sum := 0.0
	for i := 0; i < 12; i++ {
		result, err := env.Step(doNothing(5))
		require.NoError(t, err)
		sum += result.Reward
		assert.Len(t, result.Breakdowns, 5)
	}

	assert.InDelta(t, sum, env.CumulativeReward(), 1e-9)
	for _, name := range env.ComponentNames() {
		assert.Len(t, env.ActionHistory()[name], 12)
		assert.Len(t, env.CostHistory()[name], 12)
	}

	env.Reset()
	assert.Zero(t, env.CumulativeReward())
	assert.Empty(t, env.ActionHistory()["bronx"])
}

func TestStep_BreakdownTotalsMatchReward(t *testing.T) {
	env := newTestEnvironment(t, 6)

	result, err := env.Step([]protection.Action{
		protection.BuildPrimary,
		protection.BuildCritical,
		protection.DoNothing,
		protection.BuildBoth,
		protection.DoNothing,
	})
	require.NoError(t, err)

	sum := 0.0
	for _, bd := range result.Breakdowns {
		sum += bd.NetMonetary
	}
	assert.InDelta(t, sum, result.Reward, 1e-9)
}

func TestNew_InitialWater(t *testing.T) {
	// The zero state is a legitimate start, distinct from "use the default".
	cfg := newTestConfig(t, 8)
	cfg.InitialWater = &hydro.State{}
	env, err := New(cfg)
	require.NoError(t, err)
	obs := env.Observe()
	assert.Equal(t, 0, obs.Water.SLRIndex)
	assert.Equal(t, 0, obs.Water.SurgeIndex)
	assert.Zero(t, obs.WaterHeight)

	cfg.InitialWater = nil
	env, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultInitialWater.SLRIndex, env.Observe().Water.SLRIndex)
	assert.InDelta(t, 0.18, env.Observe().WaterHeight, 1e-12)

	cfg.InitialWater = &hydro.State{SLRIndex: -1}
	_, err = New(cfg)
	assert.ErrorIs(t, err, hydro.ErrInvalidStateIndex)
}

func TestNew_Validation(t *testing.T) {
	env := newTestEnvironment(t, 7)

	_, err := New(Config{})
	assert.Error(t, err)

	// Missing collaborators are rejected even with components present.
	_, err = New(Config{Components: []Component{
		{Name: "bronx", Calculator: env.components[0].Calculator},
	}})
	assert.Error(t, err)
}
