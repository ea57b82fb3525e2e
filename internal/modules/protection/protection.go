// Package protection models the discrete build state of a borough's flood
// defences and the deterministic transitions between them.
//
// Every borough carries two possible structures: a "primary" structure (the
// lower floodwall F1, or the nature-based structure for green variants) and a
// "critical" structure (the higher floodwall F2, or the accompanying floodwall
// F). Structures accumulate monotonically - nothing is ever demolished.
package protection

import (
	"errors"
	"fmt"
)

// Configuration is the discrete protection-build state of a borough.
type Configuration int

const (
	// NoStructure - no protection built
	NoStructure Configuration = iota
	// PrimaryOnly - only the primary structure (F1 / nature-based) is built
	PrimaryOnly
	// CriticalOnly - only the critical floodwall (F2 / F) is built
	CriticalOnly
	// Both - both structures are built
	Both
)

// String returns a human-readable configuration name.
func (c Configuration) String() string {
	switch c {
	case NoStructure:
		return "no_structure"
	case PrimaryOnly:
		return "primary_only"
	case CriticalOnly:
		return "critical_only"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("configuration(%d)", int(c))
	}
}

// Valid reports whether c is one of the four defined configurations.
func (c Configuration) Valid() bool {
	return c >= NoStructure && c <= Both
}

// PrimaryBuilt reports whether the primary structure is present.
func (c Configuration) PrimaryBuilt() bool {
	return c == PrimaryOnly || c == Both
}

// CriticalBuilt reports whether the critical structure is present.
func (c Configuration) CriticalBuilt() bool {
	return c == CriticalOnly || c == Both
}

// StructureCount returns the number of structures present (0-2).
func (c Configuration) StructureCount() int {
	count := 0
	if c.PrimaryBuilt() {
		count++
	}
	if c.CriticalBuilt() {
		count++
	}
	return count
}

// Action is a per-borough, per-year construction decision.
type Action int

const (
	// DoNothing - no construction this year
	DoNothing Action = iota
	// BuildPrimary - build the primary structure
	BuildPrimary
	// BuildCritical - build the critical floodwall
	BuildCritical
	// BuildBoth - build both structures in one year
	BuildBoth
)

// String returns a human-readable action name.
func (a Action) String() string {
	switch a {
	case DoNothing:
		return "do_nothing"
	case BuildPrimary:
		return "build_primary"
	case BuildCritical:
		return "build_critical"
	case BuildBoth:
		return "build_both"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Valid reports whether a is one of the four defined actions.
func (a Action) Valid() bool {
	return a >= DoNothing && a <= BuildBoth
}

// ErrInvalidAction is returned when an action outside {0..3} is supplied.
var ErrInvalidAction = errors.New("invalid action")

// transitions holds the full (configuration, action) -> configuration table.
// Rows are current configurations, columns are actions. Building a structure
// that already exists is a no-op on that structure.
var transitions = [4][4]Configuration{
	NoStructure:  {NoStructure, PrimaryOnly, CriticalOnly, Both},
	PrimaryOnly:  {PrimaryOnly, PrimaryOnly, Both, Both},
	CriticalOnly: {CriticalOnly, Both, CriticalOnly, Both},
	Both:         {Both, Both, Both, Both},
}

// Advance returns the configuration reached by taking action from current.
// The transition is pure and monotone: the result never has fewer structures
// than the input.
func Advance(current Configuration, action Action) (Configuration, error) {
	if !current.Valid() {
		return current, fmt.Errorf("%w: configuration %d out of range", ErrInvalidAction, int(current))
	}
	if !action.Valid() {
		return current, fmt.Errorf("%w: action %d out of range", ErrInvalidAction, int(action))
	}
	return transitions[current][action], nil
}
