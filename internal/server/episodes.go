package server

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencoastal/breakwater/internal/modules/environment"
	"github.com/opencoastal/breakwater/internal/modules/montecarlo"
	"github.com/opencoastal/breakwater/internal/modules/protection"
	"github.com/opencoastal/breakwater/internal/modules/snapshots"
)

// ErrUnknownEpisode is returned for an id with no live episode.
var ErrUnknownEpisode = errors.New("unknown episode")

// EpisodeManager owns the live interactive episodes. Each episode carries
// its own lock so parallel clients can step different episodes concurrently;
// steps within one episode serialize.
type EpisodeManager struct {
	factory montecarlo.Factory
	store   *snapshots.Repository
	log     zerolog.Logger

	mu       sync.RWMutex
	episodes map[string]*managedEpisode
}

type managedEpisode struct {
	id  string
	mu  sync.Mutex
	env *environment.Environment

	subMu sync.Mutex
	subs  map[chan environment.StepResult]struct{}
}

// NewEpisodeManager returns a manager that persists episodes to the store.
func NewEpisodeManager(factory montecarlo.Factory, store *snapshots.Repository, log zerolog.Logger) *EpisodeManager {
	return &EpisodeManager{
		factory:  factory,
		store:    store,
		log:      log.With().Str("component", "episodes").Logger(),
		episodes: make(map[string]*managedEpisode),
	}
}

// Create starts a fresh episode. A zero seed is replaced by the wall clock.
// The returned names fix the action-vector order for the episode.
func (m *EpisodeManager) Create(seed int64) (string, []string, environment.Observation, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	env, err := m.factory(rand.New(rand.NewSource(seed)))
	if err != nil {
		return "", nil, environment.Observation{}, err
	}

	id := uuid.New().String()
	if err := m.store.CreateEpisode(id, env.Horizon()); err != nil {
		return "", nil, environment.Observation{}, err
	}

	m.mu.Lock()
	m.episodes[id] = &managedEpisode{
		id:   id,
		env:  env,
		subs: make(map[chan environment.StepResult]struct{}),
	}
	m.mu.Unlock()

	m.log.Info().Str("episode_id", id).Int64("seed", seed).Msg("episode created")
	return id, env.ComponentNames(), env.Observe(), nil
}

// Step advances an episode and records the step. Subscribers receive the
// result after the step committed.
func (m *EpisodeManager) Step(id string, actions []protection.Action) (environment.StepResult, error) {
	ep, err := m.get(id)
	if err != nil {
		return environment.StepResult{}, err
	}

	ep.mu.Lock()
	result, err := ep.env.Step(actions)
	if err != nil {
		ep.mu.Unlock()
		return environment.StepResult{}, err
	}
	stepIndex := result.Observation.YearIndex - 1
	ep.mu.Unlock()

	rec := snapshots.StepRecord{
		StepIndex:  stepIndex,
		Water:      result.Observation.Water,
		Actions:    append([]protection.Action(nil), actions...),
		Reward:     result.Reward,
		Terminal:   result.Terminal,
		Breakdowns: result.Breakdowns,
	}
	if err := m.store.RecordStep(id, rec); err != nil {
		// The in-memory episode already advanced; surface the persistence
		// failure rather than hiding it.
		return environment.StepResult{}, fmt.Errorf("step advanced but was not recorded: %w", err)
	}

	ep.broadcast(result)
	return result, nil
}

// Observe returns the current observation and cumulative reward.
func (m *EpisodeManager) Observe(id string) (environment.Observation, float64, error) {
	ep, err := m.get(id)
	if err != nil {
		return environment.Observation{}, 0, err
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.env.Observe(), ep.env.CumulativeReward(), nil
}

// Delete removes a live episode and its persisted record.
func (m *EpisodeManager) Delete(id string) error {
	m.mu.Lock()
	ep, ok := m.episodes[id]
	delete(m.episodes, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEpisode, id)
	}

	ep.closeSubscribers()
	return m.store.DeleteEpisode(id)
}

// Subscribe returns a channel of step results for the episode. The cancel
// function must be called when the consumer is done.
func (m *EpisodeManager) Subscribe(id string) (<-chan environment.StepResult, func(), error) {
	ep, err := m.get(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan environment.StepResult, 16)
	ep.subMu.Lock()
	ep.subs[ch] = struct{}{}
	ep.subMu.Unlock()

	cancel := func() {
		ep.subMu.Lock()
		if _, ok := ep.subs[ch]; ok {
			delete(ep.subs, ch)
			close(ch)
		}
		ep.subMu.Unlock()
	}
	return ch, cancel, nil
}

func (m *EpisodeManager) get(id string) (*managedEpisode, error) {
	m.mu.RLock()
	ep, ok := m.episodes[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEpisode, id)
	}
	return ep, nil
}

func (ep *managedEpisode) broadcast(result environment.StepResult) {
	ep.subMu.Lock()
	defer ep.subMu.Unlock()
	for ch := range ep.subs {
		// Non-blocking send; a slow consumer drops updates instead of
		// stalling the stepper.
		select {
		case ch <- result:
		default:
		}
	}
}

func (ep *managedEpisode) closeSubscribers() {
	ep.subMu.Lock()
	defer ep.subMu.Unlock()
	for ch := range ep.subs {
		delete(ep.subs, ch)
		close(ch)
	}
}
