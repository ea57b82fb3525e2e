package costs

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencoastal/breakwater/internal/modules/hydro"
	"github.com/opencoastal/breakwater/internal/modules/protection"
)

// wallParams mirrors the reference two-floodwall wedge: F1 at [0.2, 1.7],
// F2 at [1.9, 3.4].
func wallParams() Parameters {
	return Parameters{
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

func greenParams() Parameters {
	p := wallParams()
	p.Seawall = 0.5
	p.PrimaryBase = 0.8
	p.PrimaryTop = 1.6
	p.UptakeRate = 0.17e-3
	return p
}

func marshParams() Parameters {
	p := wallParams()
	p.NatureWidth = 200
	p.UptakeRate = 0.44e-3
	return p
}

// waterAt builds a state whose total height is slr*0.02 + surge*0.10 meters.
func waterAt(slrIdx, surgeIdx int) hydro.State {
	return hydro.State{SLRIndex: slrIdx, SurgeIndex: surgeIdx}
}

func TestTwoFloodwall_UnprotectedDamageMatchesExposureFraction(t *testing.T) {
	// The canonical scenario: exposure 1,000,000, damage factor 0.1, water at
	// the full city height -> flood damage of 100,000 before SCC conversion
	// and interaction adjustment.
	params := Parameters{
		ExposureValue:       1_000_000,
		VulnerabilityFactor: 0.1,
		Slope:               0.01,
		CityHeight:          5.0,
		PrimaryBase:         0.2,
		PrimaryTop:          1.7,
		CriticalBase:        1.9,
		CriticalTop:         3.4,
	}
	calc, err := NewTwoFloodwallCalculator(params, zerolog.Nop())
	require.NoError(t, err)

	bd := calc.ComputeCosts(Inputs{
		Config:      protection.NoStructure,
		PriorConfig: protection.NoStructure,
		Water:       waterAt(0, 50), // 5.0 m, the full city height
	})

	assert.InDelta(t, -100_000, bd.FloodDamage.Monetary, 1e-6)
	// Damage is capped at the full exposure fraction even for higher water.
	bdHigher := calc.ComputeCosts(Inputs{
		Config:      protection.NoStructure,
		PriorConfig: protection.NoStructure,
		Water:       waterAt(50, 60), // 7.0 m
	})
	assert.InDelta(t, -100_000, bdHigher.FloodDamage.Monetary, 1e-6)
}

func TestTwoFloodwall_WallHoldsInsideBandOnly(t *testing.T) {
	calc, err := NewTwoFloodwallCalculator(wallParams(), zerolog.Nop())
	require.NoError(t, err)

	// Water inside F2's band with F2 built: pocket area, less than the open
	// wedge at the same height.
	inBand := calc.floodedArea(2.5, protection.CriticalOnly)
	open := calc.floodedArea(2.5, protection.NoStructure)
	assert.Less(t, inBand, open)

	// Overtopped: same as unprotected.
	assert.InDelta(t, calc.floodedArea(3.5, protection.NoStructure),
		calc.floodedArea(3.5, protection.CriticalOnly), 1e-9)

	// Below the band the wall is irrelevant.
	assert.InDelta(t, calc.floodedArea(1.0, protection.NoStructure),
		calc.floodedArea(1.0, protection.CriticalOnly), 1e-9)
}

func TestTwoFloodwall_ConstructionChargedOnTransitionOnly(t *testing.T) {
	calc, err := NewTwoFloodwallCalculator(wallParams(), zerolog.Nop())
	require.NoError(t, err)
	water := waterAt(4, 1)

	// F1 newly built: unit cost x 1.5 m height.
	built := calc.ComputeCosts(Inputs{
		Config:      protection.PrimaryOnly,
		PriorConfig: protection.NoStructure,
		Water:       water,
	})
	assert.InDelta(t, -1.38e4/1.5*1.5, built.Construction.Monetary, 1e-6)
	assert.Negative(t, built.Construction.CarbonTons)

	// Same configuration a year later: no construction, only maintenance.
	held := calc.ComputeCosts(Inputs{
		Config:      protection.PrimaryOnly,
		PriorConfig: protection.PrimaryOnly,
		Water:       water,
	})
	assert.Zero(t, held.Construction.Monetary)
	assert.Zero(t, held.Construction.CarbonTons)
	assert.InDelta(t, -100, held.Maintenance.Monetary, 1e-9)

	// Building both from nothing charges both walls at once.
	both := calc.ComputeCosts(Inputs{
		Config:      protection.Both,
		PriorConfig: protection.NoStructure,
		Water:       water,
	})
	assert.InDelta(t, -1.38e4/1.5*(1.5+1.5), both.Construction.Monetary, 1e-6)
	assert.InDelta(t, -200, both.Maintenance.Monetary, 1e-9)
}

func TestTwoFloodwall_NoUptake(t *testing.T) {
	calc, err := NewTwoFloodwallCalculator(wallParams(), zerolog.Nop())
	require.NoError(t, err)

	bd := calc.ComputeCosts(Inputs{
		Config:      protection.Both,
		PriorConfig: protection.Both,
		Water:       waterAt(4, 1),
	})
	assert.Zero(t, bd.UptakeCarbonTons)
}

func TestGreenSpace_SeawallShieldsLowWater(t *testing.T) {
	calc, err := NewGreenSpaceCalculator(greenParams(), zerolog.Nop())
	require.NoError(t, err)

	bd := calc.ComputeCosts(Inputs{
		Config:      protection.NoStructure,
		PriorConfig: protection.NoStructure,
		Water:       waterAt(10, 2), // 0.4 m, below the 0.5 m seawall
	})
	assert.Zero(t, bd.FloodDamage.Monetary)
}

func TestGreenSpace_BandReducesDamage(t *testing.T) {
	calc, err := NewGreenSpaceCalculator(greenParams(), zerolog.Nop())
	require.NoError(t, err)

	// Water inside the green band: damage-weighted area strictly below the
	// bare wedge, strictly above zero.
	withGreen := calc.floodedArea(1.2, protection.PrimaryOnly)
	without := calc.floodedArea(1.2, protection.NoStructure)
	assert.Greater(t, withGreen, 0.0)
	assert.Less(t, withGreen, without)

	// Above the band the reduction only applies to the band segment.
	aboveWith := calc.floodedArea(1.8, protection.PrimaryOnly)
	aboveWithout := calc.floodedArea(1.8, protection.NoStructure)
	assert.Less(t, aboveWith, aboveWithout)
}

func TestGreenSpace_UptakeOnlyWhenPlanted(t *testing.T) {
	calc, err := NewGreenSpaceCalculator(greenParams(), zerolog.Nop())
	require.NoError(t, err)
	water := waterAt(4, 1)

	planted := calc.ComputeCosts(Inputs{
		Config:      protection.PrimaryOnly,
		PriorConfig: protection.PrimaryOnly,
		Water:       water,
	})
	bare := calc.ComputeCosts(Inputs{
		Config:      protection.CriticalOnly,
		PriorConfig: protection.CriticalOnly,
		Water:       water,
	})

	assert.Positive(t, planted.UptakeCarbonTons)
	assert.Zero(t, bare.UptakeCarbonTons)
	assert.InDelta(t, 0.17e-3*calc.slantLength, planted.UptakeCarbonTons, 1e-12)
}

func TestSaltMarsh_AttenuationCappedAtSurge(t *testing.T) {
	calc, err := NewSaltMarshCalculator(marshParams(), zerolog.Nop())
	require.NoError(t, err)

	// Shallow water: 60% attenuation, but the reduction may not exceed the
	// surge contribution.
	shallow := waterAt(3, 0) // 0.06 m total, all SLR
	area := calc.floodedArea(shallow, protection.PrimaryOnly)
	assert.InDelta(t, calc.floodedArea(shallow, protection.NoStructure), area, 1e-9,
		"without surge there is nothing to attenuate")

	// With surge present the marsh strictly reduces flooding.
	surging := waterAt(10, 15) // 0.2 + 1.5 m
	assert.Less(t, calc.floodedArea(surging, protection.PrimaryOnly),
		calc.floodedArea(surging, protection.NoStructure))
}

func TestSaltMarsh_WallAfterMarsh(t *testing.T) {
	calc, err := NewSaltMarshCalculator(marshParams(), zerolog.Nop())
	require.NoError(t, err)

	// Water that overtops the wall raw but falls inside its band after marsh
	// attenuation: Both must flood strictly less than CriticalOnly.
	water := waterAt(3, 34) // 0.06 + 3.4 = 3.46 m, just above the 3.4 m top
	both := calc.floodedArea(water, protection.Both)
	wallOnly := calc.floodedArea(water, protection.CriticalOnly)
	assert.Less(t, both, wallOnly)
}

func TestOysterReef_AttenuationAndUptake(t *testing.T) {
	p := marshParams()
	p.UptakeRate = 0.30e-3
	calc, err := NewOysterReefCalculator(p, zerolog.Nop())
	require.NoError(t, err)

	surging := waterAt(10, 15)
	assert.Less(t, calc.floodedArea(surging, protection.PrimaryOnly),
		calc.floodedArea(surging, protection.NoStructure))

	bd := calc.ComputeCosts(Inputs{
		Config:      protection.PrimaryOnly,
		PriorConfig: protection.PrimaryOnly,
		Water:       surging,
	})
	assert.InDelta(t, 0.30e-3*200, bd.UptakeCarbonTons, 1e-12)
}

func TestWaveAttenuationCurves(t *testing.T) {
	// Marsh: flat 60% in very shallow water, decaying beyond.
	assert.InDelta(t, 0.60, marshWaveAttenuation(0.05), 1e-12)
	assert.InDelta(t, 6.3398*math.Pow(2.0, -0.974)/100, marshWaveAttenuation(2.0), 1e-12)

	// Reef: flat 30% while the crest is near the surface.
	assert.InDelta(t, 0.30, reefWaveAttenuation(0.4), 1e-12)
	assert.Less(t, reefWaveAttenuation(3.0), 0.30)
}

func TestCriticalRange_SharedAcrossVariants(t *testing.T) {
	wall, err := NewTwoFloodwallCalculator(wallParams(), zerolog.Nop())
	require.NoError(t, err)
	marsh, err := NewSaltMarshCalculator(marshParams(), zerolog.Nop())
	require.NoError(t, err)

	wb, wt := wall.CriticalRange()
	mb, mt := marsh.CriticalRange()
	assert.Equal(t, wb, mb)
	assert.Equal(t, wt, mt)

	assert.False(t, wall.CriticalBuilt(protection.PrimaryOnly))
	assert.True(t, wall.CriticalBuilt(protection.CriticalOnly))
	assert.True(t, marsh.CriticalBuilt(protection.Both))
}
