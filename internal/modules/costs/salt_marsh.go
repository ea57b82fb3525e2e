package costs

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/opencoastal/breakwater/internal/modules/protection"
)

// Salt-marsh economics, per meter of marsh width.
const (
	marshConstructionCost   = -1000.0 // Construction cost per m
	marshConstructionCarbon = -1.0e-3 // Restoration emissions, tCO2e per m
)

// marshWaveAttenuation is the fraction of the incoming water height dissipated
// by the marsh at a given total depth. Attenuation is strongest in shallow
// water and decays with depth following the empirical power law.
func marshWaveAttenuation(totalHeight float64) float64 {
	if totalHeight <= 0.1 {
		return 0.60
	}
	return 6.3398 * math.Pow(totalHeight, -0.974) / 100
}

// SaltMarshCalculator prices a borough protected by a restored salt-marsh
// belt (primary) and an optional floodwall F (critical) behind it.
type SaltMarshCalculator struct {
	baseCalculator
	wallHeight float64
}

// NewSaltMarshCalculator validates parameters and returns the calculator.
func NewSaltMarshCalculator(params Parameters, log zerolog.Logger) (*SaltMarshCalculator, error) {
	if err := validateCommon(params); err != nil {
		return nil, err
	}
	if params.NatureWidth <= 0 {
		return nil, fmt.Errorf("marsh width must be positive, got %g", params.NatureWidth)
	}
	if params.CriticalTop <= params.CriticalBase {
		return nil, fmt.Errorf("floodwall band [%g, %g] is empty", params.CriticalBase, params.CriticalTop)
	}
	return &SaltMarshCalculator{
		baseCalculator: newBaseCalculator(params, "salt_marsh", log),
		wallHeight:     params.CriticalTop - params.CriticalBase,
	}, nil
}

// Variant identifies the protection type.
func (c *SaltMarshCalculator) Variant() Variant {
	return VariantSaltMarsh
}

// ComputeCosts returns the raw breakdown for one step.
func (c *SaltMarshCalculator) ComputeCosts(in Inputs) Breakdown {
	var bd Breakdown

	newMarsh, newWall := newlyBuilt(in.PriorConfig, in.Config)
	if newMarsh {
		bd.Construction = bd.Construction.add(Term{
			Monetary:   marshConstructionCost * c.params.NatureWidth,
			CarbonTons: marshConstructionCarbon * c.params.NatureWidth,
		})
	}
	if newWall {
		bd.Construction = bd.Construction.add(wallConstruction(c.wallHeight))
	}

	// An established marsh needs no paid upkeep; only the wall does.
	if in.Config.CriticalBuilt() {
		bd.Maintenance = bd.Maintenance.add(wallUpkeep())
	}
	if in.Config.PrimaryBuilt() {
		bd.UptakeCarbonTons = c.params.UptakeRate * c.params.NatureWidth
	}

	bd.FloodDamage = c.damageFromArea(c.floodedArea(in.Water, in.Config))
	bd.PostInteractionFloodDamage = bd.FloodDamage.Monetary
	return bd
}

// floodedArea computes the flooded cross-section. The marsh attenuates the
// incoming water before the wall sees it; the attenuation only ever removes
// the surge contribution, never sea-level rise itself.
func (c *SaltMarshCalculator) floodedArea(water waterLevels, cfg protection.Configuration) float64 {
	p := c.params
	h := water.HeightMeters()

	if cfg.PrimaryBuilt() {
		h = attenuate(h, water.SurgeMeters(), marshWaveAttenuation(h))
	}

	if cfg.CriticalBuilt() && h > p.CriticalBase && h <= p.CriticalTop {
		return pocketArea(p.Slope, p.CriticalBase, h)
	}
	return wedgeArea(p.Slope, h)
}

// waterLevels is the subset of hydro.State the nature-based calculators need.
type waterLevels interface {
	HeightMeters() float64
	SurgeMeters() float64
}

// attenuate reduces the total water height by factor x height, capped at the
// surge contribution.
func attenuate(totalHeight, surgeHeight, factor float64) float64 {
	reduction := factor * totalHeight
	if reduction >= surgeHeight {
		reduction = surgeHeight
	}
	return totalHeight - reduction
}
