package protection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_TransitionTable(t *testing.T) {
	tests := []struct {
		name     string
		current  Configuration
		action   Action
		expected Configuration
	}{
		{"nothing built, do nothing", NoStructure, DoNothing, NoStructure},
		{"nothing built, build primary", NoStructure, BuildPrimary, PrimaryOnly},
		{"nothing built, build critical", NoStructure, BuildCritical, CriticalOnly},
		{"nothing built, build both", NoStructure, BuildBoth, Both},
		{"primary built, do nothing", PrimaryOnly, DoNothing, PrimaryOnly},
		{"primary built, build primary again", PrimaryOnly, BuildPrimary, PrimaryOnly},
		{"primary built, build critical", PrimaryOnly, BuildCritical, Both},
		{"primary built, build both", PrimaryOnly, BuildBoth, Both},
		{"critical built, do nothing", CriticalOnly, DoNothing, CriticalOnly},
		{"critical built, build primary", CriticalOnly, BuildPrimary, Both},
		{"critical built, build critical again", CriticalOnly, BuildCritical, CriticalOnly},
		{"critical built, build both", CriticalOnly, BuildBoth, Both},
		{"both built, any action keeps both", Both, DoNothing, Both},
		{"both built, build primary", Both, BuildPrimary, Both},
		{"both built, build critical", Both, BuildCritical, Both},
		{"both built, build both", Both, BuildBoth, Both},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Advance(tt.current, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, next)
		})
	}
}

func TestAdvance_Monotone(t *testing.T) {
	// No (configuration, action) pair may reduce the number of structures,
	// and a structure present before must still be present after.
	for cfg := NoStructure; cfg <= Both; cfg++ {
		for act := DoNothing; act <= BuildBoth; act++ {
			next, err := Advance(cfg, act)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, next.StructureCount(), cfg.StructureCount(),
				"structure count decreased for %s + %s", cfg, act)
			if cfg.PrimaryBuilt() {
				assert.True(t, next.PrimaryBuilt(), "primary removed by %s + %s", cfg, act)
			}
			if cfg.CriticalBuilt() {
				assert.True(t, next.CriticalBuilt(), "critical removed by %s + %s", cfg, act)
			}
		}
	}
}

func TestAdvance_InvalidAction(t *testing.T) {
	_, err := Advance(NoStructure, Action(4))
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = Advance(NoStructure, Action(-1))
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestConfiguration_StructureFlags(t *testing.T) {
	assert.False(t, NoStructure.PrimaryBuilt())
	assert.False(t, NoStructure.CriticalBuilt())
	assert.True(t, PrimaryOnly.PrimaryBuilt())
	assert.False(t, PrimaryOnly.CriticalBuilt())
	assert.False(t, CriticalOnly.PrimaryBuilt())
	assert.True(t, CriticalOnly.CriticalBuilt())
	assert.True(t, Both.PrimaryBuilt())
	assert.True(t, Both.CriticalBuilt())
}
