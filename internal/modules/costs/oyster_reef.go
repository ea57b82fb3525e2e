package costs

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/opencoastal/breakwater/internal/modules/protection"
)

// Oyster-reef economics, per meter of reef length.
const (
	reefConstructionCost   = -1500.0 // Construction cost per m
	reefConstructionCarbon = -1.2e-3 // Substrate placement emissions, tCO2e per m
)

// reefWaveAttenuation is the fraction of the incoming water height dissipated
// by the reef at a given total depth. Reefs attenuate well while the crest is
// near the surface; the effect decays as they submerge.
func reefWaveAttenuation(totalHeight float64) float64 {
	if totalHeight <= 0.5 {
		return 0.30
	}
	return 4.2 * math.Pow(totalHeight, -0.9) / 100
}

// OysterReefCalculator prices a borough protected by an offshore oyster reef
// (primary) and an optional floodwall F (critical) on shore.
type OysterReefCalculator struct {
	baseCalculator
	wallHeight float64
}

// NewOysterReefCalculator validates parameters and returns the calculator.
func NewOysterReefCalculator(params Parameters, log zerolog.Logger) (*OysterReefCalculator, error) {
	if err := validateCommon(params); err != nil {
		return nil, err
	}
	if params.NatureWidth <= 0 {
		return nil, fmt.Errorf("reef length must be positive, got %g", params.NatureWidth)
	}
	if params.CriticalTop <= params.CriticalBase {
		return nil, fmt.Errorf("floodwall band [%g, %g] is empty", params.CriticalBase, params.CriticalTop)
	}
	return &OysterReefCalculator{
		baseCalculator: newBaseCalculator(params, "oyster_reef", log),
		wallHeight:     params.CriticalTop - params.CriticalBase,
	}, nil
}

// Variant identifies the protection type.
func (c *OysterReefCalculator) Variant() Variant {
	return VariantOysterReef
}

// ComputeCosts returns the raw breakdown for one step.
func (c *OysterReefCalculator) ComputeCosts(in Inputs) Breakdown {
	var bd Breakdown

	newReef, newWall := newlyBuilt(in.PriorConfig, in.Config)
	if newReef {
		bd.Construction = bd.Construction.add(Term{
			Monetary:   reefConstructionCost * c.params.NatureWidth,
			CarbonTons: reefConstructionCarbon * c.params.NatureWidth,
		})
	}
	if newWall {
		bd.Construction = bd.Construction.add(wallConstruction(c.wallHeight))
	}

	// A living reef is self-maintaining; only the wall needs upkeep.
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

// floodedArea computes the flooded cross-section: reef attenuation first
// (capped at the surge contribution), then the floodwall while the reduced
// level is inside its band.
func (c *OysterReefCalculator) floodedArea(water waterLevels, cfg protection.Configuration) float64 {
	p := c.params
	h := water.HeightMeters()

	if cfg.PrimaryBuilt() {
		h = attenuate(h, water.SurgeMeters(), reefWaveAttenuation(h))
	}

	if cfg.CriticalBuilt() && h > p.CriticalBase && h <= p.CriticalTop {
		return pocketArea(p.Slope, p.CriticalBase, h)
	}
	return wedgeArea(p.Slope, h)
}
