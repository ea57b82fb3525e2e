package costs

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/opencoastal/breakwater/internal/modules/protection"
)

// Green-space economics, per meter of slant length of the planted band.
const (
	greenConstructionCost      = -25.0    // Construction cost per m
	greenMaintenanceCost       = -2.7     // Annual maintenance per m
	greenConstructionCarbon    = -1.6e-3  // Planting emissions, tCO2e per m
	greenMaintenanceCarbon     = -0.09e-3 // Upkeep emissions, tCO2e per m
	greenDamageReductionFactor = 0.80     // Damage factor inside the green band
)

// GreenSpaceCalculator prices a borough protected by an existing seawall, an
// optional planted green-space band (primary) and an optional floodwall F
// (critical) above it.
type GreenSpaceCalculator struct {
	baseCalculator
	slantLength float64 // Slant length of the green band along the slope
	wallHeight  float64 // Height of floodwall F
}

// NewGreenSpaceCalculator validates parameters and returns the calculator.
func NewGreenSpaceCalculator(params Parameters, log zerolog.Logger) (*GreenSpaceCalculator, error) {
	if err := validateCommon(params); err != nil {
		return nil, err
	}
	if params.PrimaryTop <= params.PrimaryBase {
		return nil, fmt.Errorf("green-space band [%g, %g] is empty", params.PrimaryBase, params.PrimaryTop)
	}
	if params.CriticalTop <= params.CriticalBase {
		return nil, fmt.Errorf("floodwall band [%g, %g] is empty", params.CriticalBase, params.CriticalTop)
	}
	if params.Seawall < 0 {
		return nil, fmt.Errorf("seawall height must be non-negative, got %g", params.Seawall)
	}

	rise := params.PrimaryTop - params.PrimaryBase
	run := rise / params.Slope
	return &GreenSpaceCalculator{
		baseCalculator: newBaseCalculator(params, "green_space", log),
		slantLength:    math.Sqrt(run*run + rise*rise),
		wallHeight:     params.CriticalTop - params.CriticalBase,
	}, nil
}

// Variant identifies the protection type.
func (c *GreenSpaceCalculator) Variant() Variant {
	return VariantGreenSpace
}

// ComputeCosts returns the raw breakdown for one step.
func (c *GreenSpaceCalculator) ComputeCosts(in Inputs) Breakdown {
	var bd Breakdown

	newGreen, newWall := newlyBuilt(in.PriorConfig, in.Config)
	if newGreen {
		bd.Construction = bd.Construction.add(Term{
			Monetary:   greenConstructionCost * c.slantLength,
			CarbonTons: greenConstructionCarbon * c.slantLength,
		})
	}
	if newWall {
		bd.Construction = bd.Construction.add(wallConstruction(c.wallHeight))
	}

	if in.Config.PrimaryBuilt() {
		bd.Maintenance = bd.Maintenance.add(Term{
			Monetary:   greenMaintenanceCost * c.slantLength,
			CarbonTons: greenMaintenanceCarbon * c.slantLength,
		})
		bd.UptakeCarbonTons = c.params.UptakeRate * c.slantLength
	}
	if in.Config.CriticalBuilt() {
		bd.Maintenance = bd.Maintenance.add(wallUpkeep())
	}

	bd.FloodDamage = c.damageFromArea(c.floodedArea(in.Water.HeightMeters(), in.Config))
	bd.PostInteractionFloodDamage = bd.FloodDamage.Monetary
	return bd
}

// floodedArea computes the flooded cross-section. The seawall shields the
// wedge entirely below its crest; above it, water inside the green band does
// reduced damage, and the floodwall holds a pocket while within its band.
func (c *GreenSpaceCalculator) floodedArea(h float64, cfg protection.Configuration) float64 {
	p := c.params
	if h <= p.Seawall {
		return 0
	}

	green := cfg.PrimaryBuilt()
	wall := cfg.CriticalBuilt()

	switch {
	case !green && !wall:
		return wedgeArea(p.Slope, h-p.Seawall)

	case green && !wall:
		return c.greenBandArea(h, math.Inf(1))

	case !green && wall:
		if h > p.CriticalBase && h <= p.CriticalTop {
			base := p.CriticalBase - p.Seawall
			return 0.5*base*base/p.Slope + (h-p.CriticalBase)*base/p.Slope
		}
		return wedgeArea(p.Slope, h-p.Seawall)

	default: // Green band and floodwall
		if h > p.CriticalBase && h <= p.CriticalTop {
			// Water pocketed against the wall: damage-weighted area up to
			// the wall base plus the pressed rectangle above it.
			area := c.greenBandArea(p.CriticalBase, math.Inf(1))
			area += (h - p.CriticalBase) * (p.CriticalBase - p.Seawall) / p.Slope
			return area
		}
		return c.greenBandArea(h, math.Inf(1))
	}
}

// greenBandArea is the damage-weighted flooded area with the green band in
// place: full damage below the band and above it, reduced damage inside it.
// The limit bounds the top of the flooded region (used for the floodwall case).
func (c *GreenSpaceCalculator) greenBandArea(h, limit float64) float64 {
	p := c.params
	if h > limit {
		h = limit
	}
	if h <= p.Seawall {
		return 0
	}

	total := wedgeArea(p.Slope, h-p.Seawall)
	if h <= p.PrimaryBase {
		return total
	}

	below := wedgeArea(p.Slope, p.PrimaryBase-p.Seawall)
	if h <= p.PrimaryTop {
		inside := total - below
		return below + greenDamageReductionFactor*inside
	}

	band := wedgeArea(p.Slope, p.PrimaryTop-p.Seawall) - below
	above := total - below - band
	return below + greenDamageReductionFactor*band + above
}
