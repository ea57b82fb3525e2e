// Package interaction applies lateral flood-damage adjustments between
// adjacent boroughs. When water spills past an unprotected borough it loads
// its neighbors: each pair couples a higher-slope borough to a lower-slope
// one with asymmetric damage-increase factors.
package interaction

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opencoastal/breakwater/internal/modules/costs"
	"github.com/opencoastal/breakwater/internal/modules/hydro"
	"github.com/opencoastal/breakwater/internal/modules/protection"
)

// ErrMissingParameters indicates a pair references a component or critical
// height range that is not configured.
var ErrMissingParameters = errors.New("interaction: missing pair parameters")

// Pair couples two adjacent boroughs. FactorLower (i) is the fractional
// damage increase applied to the lower-slope side when the higher side's
// critical structure is absent; FactorHigher (j) is applied to the higher
// side when the lower side's critical structure is absent.
type Pair struct {
	Higher       string  `json:"higher"`
	Lower        string  `json:"lower"`
	FactorLower  float64 `json:"factor_lower"`
	FactorHigher float64 `json:"factor_higher"`
}

// Engine evaluates all pairs against a single configuration snapshot. It is
// stateless after construction and safe for concurrent use across episodes.
type Engine struct {
	pairs       []Pair
	calculators map[string]costs.Calculator
	log         zerolog.Logger
}

// New validates that every pair references known components with matching
// critical height ranges and non-negative factors.
func New(pairs []Pair, calculators map[string]costs.Calculator, log zerolog.Logger) (*Engine, error) {
	for _, p := range pairs {
		higher, ok := calculators[p.Higher]
		if !ok {
			return nil, fmt.Errorf("%w: unknown component %q", ErrMissingParameters, p.Higher)
		}
		lower, ok := calculators[p.Lower]
		if !ok {
			return nil, fmt.Errorf("%w: unknown component %q", ErrMissingParameters, p.Lower)
		}
		if p.FactorLower < 0 || p.FactorHigher < 0 {
			return nil, fmt.Errorf("%w: pair %s/%s has negative factors", ErrMissingParameters, p.Higher, p.Lower)
		}
		hb, ht := higher.CriticalRange()
		lb, lt := lower.CriticalRange()
		if hb != lb || ht != lt {
			return nil, fmt.Errorf("%w: pair %s/%s critical ranges differ ([%g, %g] vs [%g, %g])",
				ErrMissingParameters, p.Higher, p.Lower, hb, ht, lb, lt)
		}
		if ht <= hb {
			return nil, fmt.Errorf("%w: pair %s/%s critical range [%g, %g] is empty",
				ErrMissingParameters, p.Higher, p.Lower, hb, ht)
		}
	}
	return &Engine{
		pairs:       pairs,
		calculators: calculators,
		log:         log.With().Str("module", "interaction").Logger(),
	}, nil
}

// Pairs returns the configured pair list.
func (e *Engine) Pairs() []Pair {
	return e.pairs
}

// Adjust computes per-component adjusted monetary flood damage. The snapshot
// must be the configuration set taken once at the start of the step: every
// pair is evaluated against it, never against another pair's output.
// Percentage increases from multiple pairs accumulate additively and are
// applied to the raw damage in one multiplication, so the result does not
// depend on pair-list order.
func (e *Engine) Adjust(
	snapshot map[string]protection.Configuration,
	water hydro.State,
	raw map[string]costs.Breakdown,
) map[string]float64 {
	increase := make(map[string]float64, len(raw))
	height := water.HeightMeters()

	for _, p := range e.pairs {
		base, top := e.calculators[p.Higher].CriticalRange()
		if height < base || height > top {
			continue
		}
		if !e.calculators[p.Higher].CriticalBuilt(snapshot[p.Higher]) {
			increase[p.Lower] += p.FactorLower
		}
		if !e.calculators[p.Lower].CriticalBuilt(snapshot[p.Lower]) {
			increase[p.Higher] += p.FactorHigher
		}
	}

	adjusted := make(map[string]float64, len(raw))
	for name, bd := range raw {
		adjusted[name] = bd.FloodDamage.Monetary * (1 + increase[name])
		if increase[name] > 0 {
			e.log.Debug().
				Str("component", name).
				Float64("increase", increase[name]).
				Float64("adjusted", adjusted[name]).
				Msg("lateral flood adjustment applied")
		}
	}
	return adjusted
}
