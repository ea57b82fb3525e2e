// Package hydro models the shared stochastic water level: a non-stationary
// sea-level-rise chain (year-indexed transition matrices) and a stationary
// storm-surge chain, sampled independently each year.
package hydro

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/opencoastal/breakwater/internal/modules/tables"
)

const (
	// SLRStates is the size of the sea-level-rise state space.
	SLRStates = 77
	// SurgeStates is the size of the storm-surge state space.
	SurgeStates = 72
	// SLRStepMeters is the SLR discretization step (2 cm).
	SLRStepMeters = 0.02
	// SurgeStepMeters is the surge discretization step (10 cm).
	SurgeStepMeters = 0.10
	// RowSumTolerance is the allowed deviation of a transition row sum from 1.
	RowSumTolerance = 1e-6
)

var (
	// ErrInvalidStateIndex is returned when a water-level index is out of range.
	ErrInvalidStateIndex = errors.New("invalid water state index")
	// ErrRowNotStochastic is returned at load when a transition row does not
	// sum to 1 within tolerance (or contains negative entries).
	ErrRowNotStochastic = errors.New("transition row is not stochastic")
)

// State is the joint water-level state at the start of a simulation year.
type State struct {
	YearIndex  int `json:"year_index"`
	SLRIndex   int `json:"slr_index"`
	SurgeIndex int `json:"surge_index"`
}

// SLRMeters returns the sea-level-rise contribution in meters.
func (s State) SLRMeters() float64 {
	return float64(s.SLRIndex) * SLRStepMeters
}

// SurgeMeters returns the storm-surge contribution in meters.
func (s State) SurgeMeters() float64 {
	return float64(s.SurgeIndex) * SurgeStepMeters
}

// HeightMeters returns the total peak water height in meters.
func (s State) HeightMeters() float64 {
	return s.SLRMeters() + s.SurgeMeters()
}

// Valid reports whether both indices are inside their state spaces.
func (s State) Valid() bool {
	return s.SLRIndex >= 0 && s.SLRIndex < SLRStates &&
		s.SurgeIndex >= 0 && s.SurgeIndex < SurgeStates
}

// RNG is the randomness source used for categorical draws. *math/rand.Rand
// satisfies it; tests substitute fixed draws.
type RNG interface {
	Float64() float64
}

// Process samples the joint water-level state year over year. Transition
// tables are validated once at construction and shared read-only afterwards,
// so one Process may serve many parallel episodes.
type Process struct {
	slr   tables.SLRProvider
	surge tables.SurgeProvider
	log   zerolog.Logger
}

// NewProcess validates the supplied transition tables and returns a sampler.
// Every SLR row (for every covered year) and every surge row must sum to 1
// within RowSumTolerance and contain no negative entries.
func NewProcess(slr tables.SLRProvider, surge tables.SurgeProvider, log zerolog.Logger) (*Process, error) {
	for year := 0; year < slr.Years(); year++ {
		matrix, err := slr.Matrix(year)
		if err != nil {
			return nil, fmt.Errorf("failed to load SLR matrix for year %d: %w", year, err)
		}
		if err := validateStochastic(matrix, SLRStates, fmt.Sprintf("slr[%d]", year)); err != nil {
			return nil, err
		}
	}
	if err := validateStochastic(surge.Matrix(), SurgeStates, "surge"); err != nil {
		return nil, err
	}

	log.Debug().
		Int("slr_years", slr.Years()).
		Msg("Validated water-level transition tables")

	return &Process{
		slr:   slr,
		surge: surge,
		log:   log.With().Str("component", "hydro").Logger(),
	}, nil
}

// Sample draws the next joint water-level state. SLR uses the year-specific
// matrix for the current year; surge uses the stationary matrix. The two
// chains are sampled independently.
func (p *Process) Sample(current State, rng RNG) (State, error) {
	if !current.Valid() {
		return State{}, fmt.Errorf("%w: slr=%d surge=%d", ErrInvalidStateIndex, current.SLRIndex, current.SurgeIndex)
	}

	slrMatrix, err := p.slr.Matrix(current.YearIndex)
	if err != nil {
		return State{}, fmt.Errorf("failed to load SLR matrix for year %d: %w", current.YearIndex, err)
	}

	nextSLR := drawCategorical(slrMatrix.RawRowView(current.SLRIndex), rng.Float64())
	nextSurge := drawCategorical(p.surge.Matrix().RawRowView(current.SurgeIndex), rng.Float64())

	return State{
		YearIndex:  current.YearIndex + 1,
		SLRIndex:   nextSLR,
		SurgeIndex: nextSurge,
	}, nil
}

// validateStochastic checks dimensions and row sums of a transition matrix.
func validateStochastic(m *mat.Dense, states int, name string) error {
	rows, cols := m.Dims()
	if rows != states || cols != states {
		return fmt.Errorf("%w: %s has dimensions %dx%d, want %dx%d",
			ErrRowNotStochastic, name, rows, cols, states, states)
	}
	for i := 0; i < rows; i++ {
		sum := 0.0
		for _, v := range m.RawRowView(i) {
			if v < 0 {
				return fmt.Errorf("%w: %s row %d has negative entry %g", ErrRowNotStochastic, name, i, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > RowSumTolerance {
			return fmt.Errorf("%w: %s row %d sums to %.9f", ErrRowNotStochastic, name, i, sum)
		}
	}
	return nil
}

// drawCategorical maps a uniform draw in [0,1) to an index of the probability
// row. Accumulated rounding pushes any residual mass onto the last state.
func drawCategorical(probs []float64, u float64) int {
	cum := 0.0
	for i, p := range probs {
		cum += p
		if u < cum {
			return i
		}
	}
	return len(probs) - 1
}
