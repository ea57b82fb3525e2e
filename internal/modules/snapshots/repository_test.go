package snapshots

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencoastal/breakwater/internal/modules/costs"
	"github.com/opencoastal/breakwater/internal/modules/hydro"
	"github.com/opencoastal/breakwater/internal/modules/montecarlo"
	"github.com/opencoastal/breakwater/internal/modules/protection"
	testhelpers "github.com/opencoastal/breakwater/internal/testing"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, cleanup := testhelpers.NewTestDB(t, "results")
	t.Cleanup(cleanup)

	repo, err := NewRepository(db, zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func sampleStep(index int, reward float64, terminal bool) StepRecord {
	return StepRecord{
		StepIndex: index,
		Water:     hydro.State{YearIndex: index + 1, SLRIndex: 5, SurgeIndex: 2},
		Actions: []protection.Action{
			protection.DoNothing, protection.BuildPrimary, protection.DoNothing,
			protection.DoNothing, protection.BuildBoth,
		},
		Reward:   reward,
		Terminal: terminal,
		Breakdowns: map[string]costs.Breakdown{
			"bronx": {
				FloodDamage:                costs.Term{Monetary: -5000, CarbonTons: -1.7},
				PostInteractionFloodDamage: -5500,
				NetMonetary:                reward,
			},
		},
	}
}

func TestRepository_EpisodeLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	id := uuid.New().String()

	require.NoError(t, repo.CreateEpisode(id, 40))
	require.NoError(t, repo.RecordStep(id, sampleStep(0, -5500, false)))
	require.NoError(t, repo.RecordStep(id, sampleStep(1, -4200, false)))

	ep, err := repo.GetEpisode(id)
	require.NoError(t, err)
	assert.Equal(t, 40, ep.Horizon)
	assert.Equal(t, 2, ep.StepsTaken)
	assert.InDelta(t, -9700, ep.CumulativeReward, 1e-9)
	assert.False(t, ep.Terminal)

	require.NoError(t, repo.RecordStep(id, sampleStep(2, -100, true)))
	ep, err = repo.GetEpisode(id)
	require.NoError(t, err)
	assert.True(t, ep.Terminal)
}

func TestRepository_StepsRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	id := uuid.New().String()
	require.NoError(t, repo.CreateEpisode(id, 40))

	want := sampleStep(0, -5500, false)
	require.NoError(t, repo.RecordStep(id, want))

	steps, err := repo.Steps(id)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, want.Water, steps[0].Water)
	assert.Equal(t, want.Actions, steps[0].Actions)
	assert.InDelta(t, want.Breakdowns["bronx"].PostInteractionFloodDamage,
		steps[0].Breakdowns["bronx"].PostInteractionFloodDamage, 1e-9)
}

func TestRepository_RecordStepUnknownEpisode(t *testing.T) {
	repo := newTestRepository(t)
	err := repo.RecordStep(uuid.New().String(), sampleStep(0, -1, false))
	assert.ErrorIs(t, err, ErrEpisodeNotFound)
}

func TestRepository_DeleteEpisode(t *testing.T) {
	repo := newTestRepository(t)
	id := uuid.New().String()
	require.NoError(t, repo.CreateEpisode(id, 40))
	require.NoError(t, repo.RecordStep(id, sampleStep(0, -1, false)))

	require.NoError(t, repo.DeleteEpisode(id))
	_, err := repo.GetEpisode(id)
	assert.ErrorIs(t, err, ErrEpisodeNotFound)

	steps, err := repo.Steps(id)
	require.NoError(t, err)
	assert.Empty(t, steps, "cascade removes the step log")

	assert.ErrorIs(t, repo.DeleteEpisode(id), ErrEpisodeNotFound)
}

func TestRepository_ListEpisodesNewestFirst(t *testing.T) {
	repo := newTestRepository(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateEpisode(uuid.New().String(), 40))
	}

	episodes, err := repo.ListEpisodes(2)
	require.NoError(t, err)
	assert.Len(t, episodes, 2)
}

func TestRepository_SweepRoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	_, _, err := repo.LatestSweep()
	assert.ErrorIs(t, err, ErrNoSweeps)

	older := montecarlo.Summary{Episodes: 8, Mean: -120000, StdDev: 9000,
		Min: -140000, Max: -101000, Quantiles: map[string]float64{"p50": -119000}}
	newer := montecarlo.Summary{Episodes: 16, Mean: -115000, StdDev: 8000,
		Min: -133000, Max: -99000, Quantiles: map[string]float64{"p50": -114000}}

	ranAt := time.Date(2026, 8, 27, 3, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveSweep(older, ranAt))
	require.NoError(t, repo.SaveSweep(newer, ranAt.Add(24*time.Hour)))

	got, gotAt, err := repo.LatestSweep()
	require.NoError(t, err)
	assert.Equal(t, newer, got)
	assert.Equal(t, ranAt.Add(24*time.Hour), gotAt)
}
