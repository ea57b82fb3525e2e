package tables

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// SyntheticConfig controls synthetic table generation.
type SyntheticConfig struct {
	Seed        int64
	Years       int // Number of SLR matrices to generate
	SLRStates   int
	SurgeStates int
	SCCYears    int
}

// DefaultSyntheticConfig matches the production table dimensions: 130 years of
// 77-state SLR matrices, a 72-state surge matrix and 60 years of SCC values.
func DefaultSyntheticConfig(seed int64) SyntheticConfig {
	return SyntheticConfig{
		Seed:        seed,
		Years:       130,
		SLRStates:   77,
		SurgeStates: 72,
		SCCYears:    60,
	}
}

// GenerateSynthetic builds a plausible stand-in for the climate-model tables.
// SLR rows drift upward with a year-dependent rate (non-stationary); surge
// rows revert toward a low baseline with a heavy upper tail (stationary).
// All rows are exactly normalized, so they pass stochasticity validation.
func GenerateSynthetic(cfg SyntheticConfig) *Memory {
	rng := rand.New(rand.NewSource(cfg.Seed))

	slr := make([]*mat.Dense, cfg.Years)
	for year := 0; year < cfg.Years; year++ {
		// Drift accelerates over the covered period.
		drift := 0.15 + 0.55*float64(year)/float64(cfg.Years)
		slr[year] = driftMatrix(cfg.SLRStates, drift, rng)
	}

	surge := revertingMatrix(cfg.SurgeStates, rng)

	scc := make([]float64, cfg.SCCYears)
	for year := 0; year < cfg.SCCYears; year++ {
		// Rising carbon price path, money per ton CO2-equivalent.
		scc[year] = 120.0 + 4.5*float64(year)
	}

	mem, err := NewMemory(slr, surge, scc)
	if err != nil {
		// Construction from freshly generated non-empty tables cannot fail.
		panic(err)
	}
	return mem
}

// driftMatrix builds a row-stochastic band matrix where mass moves to equal or
// higher states only (sea level does not fall between years).
func driftMatrix(n int, drift float64, rng *rand.Rand) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		row := make([]float64, n)
		if i == n-1 {
			row[i] = 1 // Absorbing top state
		} else {
			jitter := 0.05 * rng.Float64()
			stay := 1 - drift - jitter
			up1 := drift * 0.8
			up2 := drift*0.2 + jitter
			row[i] = stay
			row[min(i+1, n-1)] += up1
			row[min(i+2, n-1)] += up2
		}
		normalizeRow(row)
		m.SetRow(i, row)
	}
	return m
}

// revertingMatrix builds a row-stochastic matrix with mean reversion toward a
// calm baseline plus a small probability of jumping to high-surge states.
func revertingMatrix(n int, rng *rand.Rand) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	baseline := 1
	for i := 0; i < n; i++ {
		row := make([]float64, n)
		// Bulk of the mass near the baseline, geometric decay with distance.
		for j := 0; j < n; j++ {
			dist := math.Abs(float64(j - baseline))
			row[j] = math.Exp(-0.9 * dist)
		}
		// Small state-dependent chance of an extreme event.
		tail := n - 1 - rng.Intn(5)
		row[tail] += 0.002
		normalizeRow(row)
		m.SetRow(i, row)
	}
	return m
}

func normalizeRow(row []float64) {
	sum := 0.0
	for _, v := range row {
		sum += v
	}
	for j := range row {
		row[j] /= sum
	}
}
