// Package costs computes per-borough, per-year cost breakdowns for the four
// protection-type variants.
//
// Sign convention (kept consistent through the whole engine): costs are
// negative monetary values and negative carbon tonnages; credits (carbon
// uptake by nature-based structures) are positive. Carbon terms are raw
// tonnages here - the reward aggregator converts them to money with the
// year's Social Cost of Carbon.
package costs

import (
	"github.com/opencoastal/breakwater/internal/modules/hydro"
	"github.com/opencoastal/breakwater/internal/modules/protection"
)

// Variant identifies the protection-type of a borough.
type Variant string

const (
	// VariantTwoFloodwall - two conventional floodwalls F1 (primary) and F2 (critical)
	VariantTwoFloodwall Variant = "two_floodwall"
	// VariantGreenSpace - sloped green space band plus floodwall F
	VariantGreenSpace Variant = "green_space"
	// VariantOysterReef - offshore oyster reef plus floodwall F
	VariantOysterReef Variant = "oyster_reef"
	// VariantSaltMarsh - salt marsh belt plus floodwall F
	VariantSaltMarsh Variant = "salt_marsh"
)

// Nature reports whether the variant's primary structure is nature-based.
func (v Variant) Nature() bool {
	return v != VariantTwoFloodwall
}

// Parameters holds the immutable physical and economic parameters of one
// borough. Which fields are meaningful depends on the variant; constructors
// validate what they need.
type Parameters struct {
	ExposureValue       float64 // Value of exposed assets (money per m width)
	VulnerabilityFactor float64 // Fraction of exposure lost at full flooding
	Slope               float64 // Terrain slope of the city wedge
	CityHeight          float64 // Height of the city wedge (m)
	Seawall             float64 // Existing seawall height (m), green-space variant only

	// Primary structure: floodwall F1 band for two-floodwall, green-space
	// band for the green variant, footprint width for marsh/reef.
	PrimaryBase float64 // Bottom elevation of F1 / green band (m)
	PrimaryTop  float64 // Top elevation of F1 / green band (m)
	NatureWidth float64 // Marsh/reef footprint width (m)

	// Critical structure: floodwall F2 (or F for nature-based variants).
	CriticalBase float64 // Bottom elevation (m)
	CriticalTop  float64 // Top elevation (m)

	// UptakeRate is the annual carbon uptake capacity in tons CO2-equivalent
	// per square meter of nature-based structure. Zero for floodwall-only
	// boroughs.
	UptakeRate float64
}

// Term is one cost component: its monetary part and its raw carbon tonnage
// (pre-SCC conversion).
type Term struct {
	Monetary   float64 `json:"monetary"`
	CarbonTons float64 `json:"carbon_tons"`
}

// Breakdown is the per-borough, per-step cost record. ComputeCosts fills the
// raw terms; the interaction engine and reward aggregator fill
// PostInteractionFloodDamage and NetMonetary.
type Breakdown struct {
	Construction Term `json:"construction"`
	Maintenance  Term `json:"maintenance"`
	FloodDamage  Term `json:"flood_damage"`

	// UptakeCarbonTons is the carbon credit from nature-based structures
	// (positive, pre-SCC). Zero when no such structure is present.
	UptakeCarbonTons float64 `json:"uptake_carbon_tons"`

	// PostInteractionFloodDamage is the monetary flood damage after lateral
	// interaction adjustments.
	PostInteractionFloodDamage float64 `json:"post_interaction_flood_damage"`

	// NetMonetary is the discounted, SCC-converted net cost of this borough
	// for this step.
	NetMonetary float64 `json:"net_monetary"`
}

// Inputs bundles everything a calculator needs for one step.
type Inputs struct {
	Config      protection.Configuration
	PriorConfig protection.Configuration
	Water       hydro.State
	YearIndex   int
}

// Calculator is the shared capability set of the four protection variants.
// Implementations are stateless given their parameters; the same calculator
// may serve many parallel episodes.
type Calculator interface {
	// Variant identifies the concrete protection type.
	Variant() Variant
	// ComputeCosts returns the raw cost breakdown for one step, before
	// interaction adjustment and before SCC conversion.
	ComputeCosts(in Inputs) Breakdown
	// CriticalBuilt reports whether the critical structure is present in the
	// given configuration.
	CriticalBuilt(cfg protection.Configuration) bool
	// CriticalRange returns the (base, top) elevation band of the critical
	// structure, used by the interaction engine to gate lateral effects.
	CriticalRange() (base, top float64)
}
