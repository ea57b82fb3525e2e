package interaction

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencoastal/breakwater/internal/modules/costs"
	"github.com/opencoastal/breakwater/internal/modules/hydro"
	"github.com/opencoastal/breakwater/internal/modules/protection"
)

func testCalculator(t *testing.T) costs.Calculator {
	t.Helper()
	calc, err := costs.NewTwoFloodwallCalculator(costs.Parameters{
		ExposureValue:       15.3e6,
		VulnerabilityFactor: 0.07,
		Slope:               0.0085,
		CityHeight:          8.5,
		PrimaryBase:         0.2,
		PrimaryTop:          1.7,
		CriticalBase:        1.9,
		CriticalTop:         3.4,
	}, zerolog.Nop())
	require.NoError(t, err)
	return calc
}

func testEngine(t *testing.T, pairs []Pair, names ...string) *Engine {
	t.Helper()
	calcs := make(map[string]costs.Calculator, len(names))
	for _, n := range names {
		calcs[n] = testCalculator(t)
	}
	eng, err := New(pairs, calcs, zerolog.Nop())
	require.NoError(t, err)
	return eng
}

func rawDamage(amounts map[string]float64) map[string]costs.Breakdown {
	raw := make(map[string]costs.Breakdown, len(amounts))
	for name, m := range amounts {
		raw[name] = costs.Breakdown{FloodDamage: costs.Term{Monetary: m}}
	}
	return raw
}

// inRange is a water state at 2.5 m, inside the shared [1.9, 3.4] critical
// band; belowRange sits at 0.5 m.
var (
	inRange    = hydro.State{SLRIndex: 5, SurgeIndex: 24}
	belowRange = hydro.State{SLRIndex: 5, SurgeIndex: 4}
)

func TestAdjust_NeitherCriticalBuilt(t *testing.T) {
	eng := testEngine(t, []Pair{
		{Higher: "manhattan", Lower: "brooklyn", FactorLower: 0.10, FactorHigher: 0.05},
	}, "manhattan", "brooklyn")

	snapshot := map[string]protection.Configuration{
		"manhattan": protection.NoStructure,
		"brooklyn":  protection.PrimaryOnly,
	}
	adjusted := eng.Adjust(snapshot, inRange, rawDamage(map[string]float64{
		"manhattan": -1000,
		"brooklyn":  -1000,
	}))

	assert.InDelta(t, -1100, adjusted["brooklyn"], 1e-9)
	assert.InDelta(t, -1050, adjusted["manhattan"], 1e-9)
}

func TestAdjust_OneSideProtected(t *testing.T) {
	eng := testEngine(t, []Pair{
		{Higher: "manhattan", Lower: "brooklyn", FactorLower: 0.10, FactorHigher: 0.05},
	}, "manhattan", "brooklyn")

	// Higher side's critical structure built: the lower side is spared, but
	// the higher side still takes j% because the lower side is open.
	snapshot := map[string]protection.Configuration{
		"manhattan": protection.CriticalOnly,
		"brooklyn":  protection.NoStructure,
	}
	adjusted := eng.Adjust(snapshot, inRange, rawDamage(map[string]float64{
		"manhattan": -1000,
		"brooklyn":  -1000,
	}))

	assert.InDelta(t, -1000, adjusted["brooklyn"], 1e-9)
	assert.InDelta(t, -1050, adjusted["manhattan"], 1e-9)
}

func TestAdjust_BothProtected(t *testing.T) {
	eng := testEngine(t, []Pair{
		{Higher: "manhattan", Lower: "brooklyn", FactorLower: 0.10, FactorHigher: 0.05},
	}, "manhattan", "brooklyn")

	snapshot := map[string]protection.Configuration{
		"manhattan": protection.Both,
		"brooklyn":  protection.CriticalOnly,
	}
	adjusted := eng.Adjust(snapshot, inRange, rawDamage(map[string]float64{
		"manhattan": -1000,
		"brooklyn":  -1000,
	}))

	assert.InDelta(t, -1000, adjusted["brooklyn"], 1e-9)
	assert.InDelta(t, -1000, adjusted["manhattan"], 1e-9)
}

func TestAdjust_WaterOutsideCriticalRange(t *testing.T) {
	eng := testEngine(t, []Pair{
		{Higher: "manhattan", Lower: "brooklyn", FactorLower: 0.10, FactorHigher: 0.05},
	}, "manhattan", "brooklyn")

	snapshot := map[string]protection.Configuration{
		"manhattan": protection.NoStructure,
		"brooklyn":  protection.NoStructure,
	}
	adjusted := eng.Adjust(snapshot, belowRange, rawDamage(map[string]float64{
		"manhattan": -1000,
		"brooklyn":  -1000,
	}))

	assert.InDelta(t, -1000, adjusted["brooklyn"], 1e-9)
	assert.InDelta(t, -1000, adjusted["manhattan"], 1e-9)
}

func TestAdjust_MultiplePairsAccumulateAdditively(t *testing.T) {
	// Bronx is the lower side of two pairs: its percentage increases sum
	// before being applied once.
	eng := testEngine(t, []Pair{
		{Higher: "manhattan", Lower: "bronx", FactorLower: 0.20, FactorHigher: 0.10},
		{Higher: "brooklyn", Lower: "bronx", FactorLower: 0.20, FactorHigher: 0.10},
	}, "manhattan", "brooklyn", "bronx")

	snapshot := map[string]protection.Configuration{
		"manhattan": protection.NoStructure,
		"brooklyn":  protection.NoStructure,
		"bronx":     protection.NoStructure,
	}
	adjusted := eng.Adjust(snapshot, inRange, rawDamage(map[string]float64{
		"manhattan": -1000,
		"brooklyn":  -1000,
		"bronx":     -1000,
	}))

	// 1 + 0.20 + 0.20, not (1.20)^2.
	assert.InDelta(t, -1400, adjusted["bronx"], 1e-9)
	assert.InDelta(t, -1100, adjusted["manhattan"], 1e-9)
	assert.InDelta(t, -1100, adjusted["brooklyn"], 1e-9)
}

func TestNew_RejectsUnknownComponent(t *testing.T) {
	calcs := map[string]costs.Calculator{"manhattan": testCalculator(t)}
	_, err := New([]Pair{
		{Higher: "manhattan", Lower: "atlantis", FactorLower: 0.1, FactorHigher: 0.05},
	}, calcs, zerolog.Nop())
	assert.ErrorIs(t, err, ErrMissingParameters)
}

func TestNew_RejectsMismatchedCriticalRanges(t *testing.T) {
	other, err := costs.NewTwoFloodwallCalculator(costs.Parameters{
		ExposureValue:       1e6,
		VulnerabilityFactor: 0.1,
		Slope:               0.01,
		CityHeight:          5,
		PrimaryBase:         0.2,
		PrimaryTop:          1.7,
		CriticalBase:        2.0,
		CriticalTop:         3.0,
	}, zerolog.Nop())
	require.NoError(t, err)

	calcs := map[string]costs.Calculator{
		"manhattan": testCalculator(t),
		"brooklyn":  other,
	}
	_, err = New([]Pair{
		{Higher: "manhattan", Lower: "brooklyn", FactorLower: 0.1, FactorHigher: 0.05},
	}, calcs, zerolog.Nop())
	assert.ErrorIs(t, err, ErrMissingParameters)
}
