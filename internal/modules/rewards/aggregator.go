// Package rewards converts per-component cost breakdowns into a single step
// reward. Costs carry a negative sign throughout, so the total is directly
// usable as a reward: less negative is better.
package rewards

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/opencoastal/breakwater/internal/modules/costs"
)

// Aggregator finalizes raw breakdowns: interaction-adjusted flood damage
// replaces the raw value, carbon quantities become money at the year's SCC,
// and monetary terms are discounted exponentially. Carbon terms are not
// discounted here; the SCC table is already a discounted sum.
type Aggregator struct {
	discount float64
	log      zerolog.Logger
}

// NewAggregator returns an aggregator with the given annual discount factor.
func NewAggregator(discount float64, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		discount: discount,
		log:      log.With().Str("module", "rewards").Logger(),
	}
}

// Discount returns the annual discount factor.
func (a *Aggregator) Discount() float64 {
	return a.discount
}

// Aggregate produces the final per-component breakdowns and the step total.
// The total always equals the sum of the components' NetMonetary values.
// Components are summed in name order; float addition is not associative, so
// a fixed order keeps equal-seed episodes bit-identical.
func (a *Aggregator) Aggregate(
	raw map[string]costs.Breakdown,
	adjustedFloodDamage map[string]float64,
	sccValue float64,
	yearIndex int,
) (float64, map[string]costs.Breakdown) {
	factor := discountFactor(a.discount, yearIndex)

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0.0
	final := make(map[string]costs.Breakdown, len(raw))
	for _, name := range names {
		bd := raw[name]
		bd.PostInteractionFloodDamage = adjustedFloodDamage[name]

		monetary := bd.Construction.Monetary + bd.Maintenance.Monetary + bd.PostInteractionFloodDamage
		carbon := bd.Construction.CarbonTons + bd.Maintenance.CarbonTons +
			bd.FloodDamage.CarbonTons + bd.UptakeCarbonTons

		bd.NetMonetary = monetary*factor + carbon*sccValue
		total += bd.NetMonetary
		final[name] = bd
	}

	a.log.Debug().
		Int("year", yearIndex).
		Float64("scc", sccValue).
		Float64("total", total).
		Msg("step reward aggregated")
	return total, final
}

func discountFactor(discount float64, yearIndex int) float64 {
	factor := 1.0
	for i := 0; i < yearIndex; i++ {
		factor *= discount
	}
	return factor
}
