package costs

import (
	"github.com/rs/zerolog"

	"github.com/opencoastal/breakwater/internal/modules/protection"
)

// Economic constants shared across variants. All derive from the 2007-dollar
// cost study behind the original model; monetary values are negative (costs).
const (
	// wallUnitCost is the construction cost per meter of floodwall height
	// (the reference wall costs 13,800 per 1.5 m).
	wallUnitCost = -1.38e4 / 1.5
	// wallMaintenance is the annual maintenance cost per floodwall.
	wallMaintenance = -100.0
	// floodCarbonPerMonetary converts monetary flood damage into recovery
	// emissions: 445.1 tCO2e per 2007-million of damage, at a 0.77
	// deflator. Applied to negative damage it yields a negative tonnage.
	floodCarbonPerMonetary = 445.1 * 0.77 / 1e6
	// wallConstructionCarbonPerMeter is the life-cycle emission tonnage per
	// meter of wall height (243 tCO2e per 2007-million at 8,000/m, 0.89
	// deflator), expressed as a negative carbon cost.
	wallConstructionCarbonPerMeter = -243.0 * 8000 * 0.89 / 1e6
	// wallMaintenanceCarbon is the annual maintenance emission tonnage per
	// wall (385 tCO2e per 2007-million at 100/yr, 0.89 deflator).
	wallMaintenanceCarbon = -385.0 * 100 * 0.89 / 1e6
)

// baseCalculator carries the parameters and derived values common to all four
// variants, mirroring how the concrete calculators embed a shared base.
type baseCalculator struct {
	params Parameters
	// cf is the full-flooding damage value: -vulnerability x exposure.
	cf float64
	// zoneVolume is the cross-section volume of the whole city wedge.
	zoneVolume float64
	log        zerolog.Logger
}

func newBaseCalculator(params Parameters, name string, log zerolog.Logger) baseCalculator {
	return baseCalculator{
		params:     params,
		cf:         -params.VulnerabilityFactor * params.ExposureValue,
		zoneVolume: 0.5 * params.CityHeight * params.CityHeight / params.Slope,
		log:        log.With().Str("calculator", name).Logger(),
	}
}

// CriticalBuilt reports whether the critical structure is present.
func (b *baseCalculator) CriticalBuilt(cfg protection.Configuration) bool {
	return cfg.CriticalBuilt()
}

// CriticalRange returns the critical structure's elevation band.
func (b *baseCalculator) CriticalRange() (float64, float64) {
	return b.params.CriticalBase, b.params.CriticalTop
}

// damageFromArea converts a flooded cross-section area into the flood-damage
// term. The flooded fraction is capped at 1 so damage never exceeds the full
// exposure value.
func (b *baseCalculator) damageFromArea(area float64) Term {
	ratio := area / b.zoneVolume
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	monetary := b.cf * ratio
	return Term{
		Monetary:   monetary,
		CarbonTons: monetary * floodCarbonPerMonetary,
	}
}

// wallConstruction returns the construction term for one floodwall of the
// given height.
func wallConstruction(height float64) Term {
	return Term{
		Monetary:   wallUnitCost * height,
		CarbonTons: wallConstructionCarbonPerMeter * height,
	}
}

// wallUpkeep returns the annual maintenance term for one floodwall.
func wallUpkeep() Term {
	return Term{
		Monetary:   wallMaintenance,
		CarbonTons: wallMaintenanceCarbon,
	}
}

func (t Term) add(other Term) Term {
	return Term{
		Monetary:   t.Monetary + other.Monetary,
		CarbonTons: t.CarbonTons + other.CarbonTons,
	}
}

// newlyBuilt reports which structures transition from absent to present
// between the prior and current configuration. Construction is charged only
// in that step.
func newlyBuilt(prior, current protection.Configuration) (primary, critical bool) {
	primary = current.PrimaryBuilt() && !prior.PrimaryBuilt()
	critical = current.CriticalBuilt() && !prior.CriticalBuilt()
	return primary, critical
}

// wedgeArea is the flooded cross-section of an unprotected wedge at water
// height h: a right triangle with slope s.
func wedgeArea(slope, h float64) float64 {
	if h <= 0 {
		return 0
	}
	return 0.5 * h * h / slope
}

// pocketArea is the flooded cross-section when a wall with bottom elevation
// base holds back water at height h (base < h <= top): the triangle below the
// wall plus the rectangle of water pressed against it.
func pocketArea(slope, base, h float64) float64 {
	return 0.5*base*base/slope + (h-base)*base/slope
}
