package costs

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opencoastal/breakwater/internal/modules/protection"
)

// TwoFloodwallCalculator prices a borough protected by two conventional
// floodwalls: F1 (primary, lower band) and F2 (critical, higher band).
type TwoFloodwallCalculator struct {
	baseCalculator
	h1 float64 // Height of F1
	h2 float64 // Height of F2
}

// NewTwoFloodwallCalculator validates parameters and returns the calculator.
func NewTwoFloodwallCalculator(params Parameters, log zerolog.Logger) (*TwoFloodwallCalculator, error) {
	if err := validateCommon(params); err != nil {
		return nil, err
	}
	if params.PrimaryTop <= params.PrimaryBase {
		return nil, fmt.Errorf("floodwall F1 band [%g, %g] is empty", params.PrimaryBase, params.PrimaryTop)
	}
	if params.CriticalTop <= params.CriticalBase {
		return nil, fmt.Errorf("floodwall F2 band [%g, %g] is empty", params.CriticalBase, params.CriticalTop)
	}
	return &TwoFloodwallCalculator{
		baseCalculator: newBaseCalculator(params, "two_floodwall", log),
		h1:             params.PrimaryTop - params.PrimaryBase,
		h2:             params.CriticalTop - params.CriticalBase,
	}, nil
}

// Variant identifies the protection type.
func (c *TwoFloodwallCalculator) Variant() Variant {
	return VariantTwoFloodwall
}

// ComputeCosts returns the raw breakdown for one step.
func (c *TwoFloodwallCalculator) ComputeCosts(in Inputs) Breakdown {
	var bd Breakdown

	newPrimary, newCritical := newlyBuilt(in.PriorConfig, in.Config)
	if newPrimary {
		bd.Construction = bd.Construction.add(wallConstruction(c.h1))
	}
	if newCritical {
		bd.Construction = bd.Construction.add(wallConstruction(c.h2))
	}

	// Each wall present incurs annual upkeep.
	if in.Config.PrimaryBuilt() {
		bd.Maintenance = bd.Maintenance.add(wallUpkeep())
	}
	if in.Config.CriticalBuilt() {
		bd.Maintenance = bd.Maintenance.add(wallUpkeep())
	}

	bd.FloodDamage = c.damageFromArea(c.floodedArea(in.Water.HeightMeters(), in.Config))
	bd.PostInteractionFloodDamage = bd.FloodDamage.Monetary
	return bd
}

// floodedArea computes the flooded cross-section for the configuration. A
// wall only holds water while the level is inside its band; above the top it
// is overtopped and the wedge floods as if unprotected.
func (c *TwoFloodwallCalculator) floodedArea(h float64, cfg protection.Configuration) float64 {
	p := c.params
	switch {
	case !cfg.PrimaryBuilt() && !cfg.CriticalBuilt():
		return wedgeArea(p.Slope, h)

	case cfg.PrimaryBuilt() && !cfg.CriticalBuilt():
		if h > p.PrimaryBase && h <= p.PrimaryTop {
			return pocketArea(p.Slope, p.PrimaryBase, h)
		}
		return wedgeArea(p.Slope, h)

	case !cfg.PrimaryBuilt() && cfg.CriticalBuilt():
		if h > p.CriticalBase && h <= p.CriticalTop {
			return pocketArea(p.Slope, p.CriticalBase, h)
		}
		return wedgeArea(p.Slope, h)

	default: // Both walls
		switch {
		case h <= p.PrimaryBase:
			return wedgeArea(p.Slope, h)
		case h <= p.PrimaryTop:
			return pocketArea(p.Slope, p.PrimaryBase, h)
		case h <= p.CriticalBase:
			return wedgeArea(p.Slope, h)
		case h <= p.CriticalTop:
			return pocketArea(p.Slope, p.CriticalBase, h)
		default:
			return wedgeArea(p.Slope, h)
		}
	}
}

func validateCommon(params Parameters) error {
	if params.ExposureValue <= 0 {
		return fmt.Errorf("exposure value must be positive, got %g", params.ExposureValue)
	}
	if params.VulnerabilityFactor <= 0 || params.VulnerabilityFactor > 1 {
		return fmt.Errorf("vulnerability factor must be in (0, 1], got %g", params.VulnerabilityFactor)
	}
	if params.Slope <= 0 {
		return fmt.Errorf("slope must be positive, got %g", params.Slope)
	}
	if params.CityHeight <= 0 {
		return fmt.Errorf("city height must be positive, got %g", params.CityHeight)
	}
	return nil
}
