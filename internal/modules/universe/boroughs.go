// Package universe holds the modeled boroughs: their protection variants,
// cost parameters and the adjacency pairs that couple them. Defaults mirror
// the NYC study configuration; a sqlite-backed repository allows per-borough
// overrides without recompiling.
package universe

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opencoastal/breakwater/internal/modules/costs"
	"github.com/opencoastal/breakwater/internal/modules/environment"
	"github.com/opencoastal/breakwater/internal/modules/interaction"
)

// Borough binds a name to a protection variant and its cost parameters.
type Borough struct {
	Name       string           `json:"name" msgpack:"name"`
	Variant    costs.Variant    `json:"variant" msgpack:"variant"`
	Parameters costs.Parameters `json:"parameters" msgpack:"parameters"`
}

// Shared critical floodwall band. Interaction pairs require identical bands
// on both sides, so all boroughs carry the same one.
const (
	criticalBase = 1.9
	criticalTop  = 3.4
)

// Default lateral damage-increase factors: i on the lower-slope side, j on
// the higher-slope side.
const (
	DefaultFactorLower  = 0.20
	DefaultFactorHigher = 0.10
)

// Defaults returns the five-borough configuration in action-vector order.
func Defaults() []Borough {
	return []Borough{
		{
			Name:    "bronx",
			Variant: costs.VariantTwoFloodwall,
			Parameters: costs.Parameters{
				ExposureValue:       9.8e6,
				VulnerabilityFactor: 0.07,
				Slope:               0.0085,
				CityHeight:          8.5,
				PrimaryBase:         0.2,
				PrimaryTop:          1.7,
				CriticalBase:        criticalBase,
				CriticalTop:         criticalTop,
			},
		},
		{
			Name:    "manhattan",
			Variant: costs.VariantGreenSpace,
			Parameters: costs.Parameters{
				ExposureValue:       15.3e6,
				VulnerabilityFactor: 0.07,
				Slope:               0.0110,
				CityHeight:          8.5,
				Seawall:             0.5,
				PrimaryBase:         0.8,
				PrimaryTop:          1.6,
				CriticalBase:        criticalBase,
				CriticalTop:         criticalTop,
				UptakeRate:          0.17e-3,
			},
		},
		{
			Name:    "brooklyn",
			Variant: costs.VariantTwoFloodwall,
			Parameters: costs.Parameters{
				ExposureValue:       12.6e6,
				VulnerabilityFactor: 0.07,
				Slope:               0.0100,
				CityHeight:          8.5,
				PrimaryBase:         0.2,
				PrimaryTop:          1.7,
				CriticalBase:        criticalBase,
				CriticalTop:         criticalTop,
			},
		},
		{
			Name:    "queens",
			Variant: costs.VariantOysterReef,
			Parameters: costs.Parameters{
				ExposureValue:       11.1e6,
				VulnerabilityFactor: 0.07,
				Slope:               0.0075,
				CityHeight:          8.5,
				NatureWidth:         150,
				CriticalBase:        criticalBase,
				CriticalTop:         criticalTop,
				UptakeRate:          0.30e-3,
			},
		},
		{
			Name:    "staten_island",
			Variant: costs.VariantSaltMarsh,
			Parameters: costs.Parameters{
				ExposureValue:       6.4e6,
				VulnerabilityFactor: 0.07,
				Slope:               0.0070,
				CityHeight:          8.5,
				NatureWidth:         200,
				CriticalBase:        criticalBase,
				CriticalTop:         criticalTop,
				UptakeRate:          0.44e-3,
			},
		},
	}
}

// ApplyOverrides returns the base boroughs in their given order, replacing
// any entry whose name also appears in overrides. The action-vector order is
// fixed by base; stored overrides only change parameters, never position.
func ApplyOverrides(base, overrides []Borough) []Borough {
	byName := make(map[string]Borough, len(overrides))
	for _, b := range overrides {
		byName[b.Name] = b
	}
	out := make([]Borough, len(base))
	for i, b := range base {
		if o, ok := byName[b.Name]; ok {
			out[i] = o
			continue
		}
		out[i] = b
	}
	return out
}

// DefaultPairs returns the higher-slope to lower-slope adjacency list.
func DefaultPairs() []interaction.Pair {
	pairs := [][2]string{
		{"manhattan", "brooklyn"},
		{"manhattan", "bronx"},
		{"brooklyn", "queens"},
		{"brooklyn", "bronx"},
		{"brooklyn", "staten_island"},
	}
	out := make([]interaction.Pair, len(pairs))
	for k, p := range pairs {
		out[k] = interaction.Pair{
			Higher:       p[0],
			Lower:        p[1],
			FactorLower:  DefaultFactorLower,
			FactorHigher: DefaultFactorHigher,
		}
	}
	return out
}

// NewCalculator builds the cost calculator for a borough's variant.
func NewCalculator(b Borough, log zerolog.Logger) (costs.Calculator, error) {
	switch b.Variant {
	case costs.VariantTwoFloodwall:
		return costs.NewTwoFloodwallCalculator(b.Parameters, log)
	case costs.VariantGreenSpace:
		return costs.NewGreenSpaceCalculator(b.Parameters, log)
	case costs.VariantOysterReef:
		return costs.NewOysterReefCalculator(b.Parameters, log)
	case costs.VariantSaltMarsh:
		return costs.NewSaltMarshCalculator(b.Parameters, log)
	default:
		return nil, fmt.Errorf("unknown protection variant %q for borough %s", b.Variant, b.Name)
	}
}

// BuildComponents constructs environment components and the calculator map
// the interaction engine needs, preserving borough order.
func BuildComponents(boroughs []Borough, log zerolog.Logger) ([]environment.Component, map[string]costs.Calculator, error) {
	components := make([]environment.Component, 0, len(boroughs))
	calcs := make(map[string]costs.Calculator, len(boroughs))
	for _, b := range boroughs {
		calc, err := NewCalculator(b, log)
		if err != nil {
			return nil, nil, err
		}
		components = append(components, environment.Component{Name: b.Name, Calculator: calc})
		calcs[b.Name] = calc
	}
	return components, calcs, nil
}
