// Package tables supplies the read-only numeric tables the simulation engine
// consumes: year-indexed sea-level-rise transition matrices, the stationary
// storm-surge transition matrix, and the Social-Cost-of-Carbon series.
//
// The engine never loads these itself - it sees them through the narrow
// provider interfaces below, so production data (converted climate-model
// output), the sqlite store, and synthetic tables are interchangeable.
package tables

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrYearOutOfRange is returned for a year index outside a provider's range.
var ErrYearOutOfRange = errors.New("year index out of range")

// SLRProvider supplies the year-indexed sea-level-rise transition matrices.
// Matrices are row-stochastic over the SLR state space.
type SLRProvider interface {
	// Matrix returns the transition matrix for the given year.
	Matrix(year int) (*mat.Dense, error)
	// Years returns the number of years the provider covers.
	Years() int
}

// SurgeProvider supplies the single stationary storm-surge transition matrix.
type SurgeProvider interface {
	Matrix() *mat.Dense
}

// SCCProvider supplies the per-year Social Cost of Carbon in money per ton
// CO2-equivalent. Values are pre-discounted upstream.
type SCCProvider interface {
	// Value returns the SCC for the given year.
	Value(year int) (float64, error)
	// Years returns the number of years the provider covers.
	Years() int
}

// Memory is the in-memory implementation of all three providers. It is
// immutable after construction and safe to share across parallel episodes.
type Memory struct {
	slr   []*mat.Dense
	surge *mat.Dense
	scc   []float64
}

// NewMemory builds a Memory provider from fully materialized tables.
func NewMemory(slr []*mat.Dense, surge *mat.Dense, scc []float64) (*Memory, error) {
	if len(slr) == 0 {
		return nil, fmt.Errorf("no SLR transition matrices supplied")
	}
	if surge == nil {
		return nil, fmt.Errorf("no surge transition matrix supplied")
	}
	if len(scc) == 0 {
		return nil, fmt.Errorf("no SCC values supplied")
	}
	return &Memory{slr: slr, surge: surge, scc: scc}, nil
}

// Matrix returns the SLR transition matrix for the given year.
func (m *Memory) Matrix(year int) (*mat.Dense, error) {
	if year < 0 || year >= len(m.slr) {
		return nil, fmt.Errorf("%w: SLR year %d not in [0, %d)", ErrYearOutOfRange, year, len(m.slr))
	}
	return m.slr[year], nil
}

// Years returns the number of years of SLR matrices held.
func (m *Memory) Years() int {
	return len(m.slr)
}

// SurgeMatrix returns the stationary surge transition matrix.
func (m *Memory) SurgeMatrix() *mat.Dense {
	return m.surge
}

// SCC exposes the SCC series as its own provider.
func (m *Memory) SCC() SCCProvider {
	return sccSeries(m.scc)
}

// Surge exposes the surge matrix as its own provider.
func (m *Memory) Surge() SurgeProvider {
	return surgeMatrix{m.surge}
}

type sccSeries []float64

func (s sccSeries) Value(year int) (float64, error) {
	if year < 0 || year >= len(s) {
		return 0, fmt.Errorf("%w: SCC year %d not in [0, %d)", ErrYearOutOfRange, year, len(s))
	}
	return s[year], nil
}

func (s sccSeries) Years() int {
	return len(s)
}

type surgeMatrix struct {
	m *mat.Dense
}

func (s surgeMatrix) Matrix() *mat.Dense {
	return s.m
}
