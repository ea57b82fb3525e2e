package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opencoastal/breakwater/internal/modules/environment"
	"github.com/opencoastal/breakwater/internal/modules/montecarlo"
	"github.com/opencoastal/breakwater/internal/modules/protection"
	"github.com/opencoastal/breakwater/internal/modules/snapshots"
	"github.com/opencoastal/breakwater/internal/modules/universe"
)

type createEpisodeRequest struct {
	Seed int64 `json:"seed"`
}

type createEpisodeResponse struct {
	ID          string                  `json:"id"`
	Components  []string                `json:"components"` // Action-vector order
	Observation environment.Observation `json:"observation"`
}

// handleCreateEpisode handles POST /api/episodes
func (s *Server) handleCreateEpisode(w http.ResponseWriter, r *http.Request) {
	var req createEpisodeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	id, names, obs, err := s.episodes.Create(req.Seed)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create episode")
		s.writeError(w, http.StatusInternalServerError, "failed to create episode")
		return
	}

	s.writeJSON(w, http.StatusCreated, createEpisodeResponse{
		ID:          id,
		Components:  names,
		Observation: obs,
	})
}

// handleListEpisodes handles GET /api/episodes
func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	episodes, err := s.episodes.store.ListEpisodes(100)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list episodes")
		s.writeError(w, http.StatusInternalServerError, "failed to list episodes")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"episodes": episodes})
}

type episodeDetailResponse struct {
	Episode          snapshots.Episode       `json:"episode"`
	Observation      environment.Observation `json:"observation"`
	CumulativeReward float64                 `json:"cumulative_reward"`
	Steps            []snapshots.StepRecord  `json:"steps"`
}

// handleGetEpisode handles GET /api/episodes/{id}
func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ep, err := s.episodes.store.GetEpisode(id)
	if err != nil {
		if errors.Is(err, snapshots.ErrEpisodeNotFound) {
			s.writeError(w, http.StatusNotFound, "episode not found")
			return
		}
		s.log.Error().Err(err).Str("episode_id", id).Msg("Failed to load episode")
		s.writeError(w, http.StatusInternalServerError, "failed to load episode")
		return
	}

	steps, err := s.episodes.store.Steps(id)
	if err != nil {
		s.log.Error().Err(err).Str("episode_id", id).Msg("Failed to load episode steps")
		s.writeError(w, http.StatusInternalServerError, "failed to load episode steps")
		return
	}

	resp := episodeDetailResponse{Episode: ep, Steps: steps}
	if obs, cumulative, err := s.episodes.Observe(id); err == nil {
		resp.Observation = obs
		resp.CumulativeReward = cumulative
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleDeleteEpisode handles DELETE /api/episodes/{id}
func (s *Server) handleDeleteEpisode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.episodes.Delete(id)
	if err != nil {
		if errors.Is(err, ErrUnknownEpisode) || errors.Is(err, snapshots.ErrEpisodeNotFound) {
			s.writeError(w, http.StatusNotFound, "episode not found")
			return
		}
		s.log.Error().Err(err).Str("episode_id", id).Msg("Failed to delete episode")
		s.writeError(w, http.StatusInternalServerError, "failed to delete episode")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type stepRequest struct {
	Actions []int `json:"actions"`
}

// handleStepEpisode handles POST /api/episodes/{id}/step
func (s *Server) handleStepEpisode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actions := make([]protection.Action, len(req.Actions))
	for i, a := range req.Actions {
		actions[i] = protection.Action(a)
	}

	result, err := s.episodes.Step(id, actions)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownEpisode):
			s.writeError(w, http.StatusNotFound, "episode not found")
		case errors.Is(err, environment.ErrInvalidActionVector):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, environment.ErrEpisodeTerminal):
			s.writeError(w, http.StatusConflict, "episode already terminal")
		default:
			s.log.Error().Err(err).Str("episode_id", id).Msg("Step failed")
			s.writeError(w, http.StatusInternalServerError, "step failed")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

type monteCarloRequest struct {
	Episodes int   `json:"episodes"`
	Workers  int   `json:"workers"`
	Seed     int64 `json:"seed"`
	Actions  []int `json:"actions,omitempty"` // Static policy; empty = do nothing
}

// handleMonteCarlo handles POST /api/montecarlo
func (s *Server) handleMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req monteCarloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Episodes <= 0 || req.Episodes > 10000 {
		s.writeError(w, http.StatusBadRequest, "episodes must be in [1, 10000]")
		return
	}

	policy := montecarlo.DoNothingPolicy(s.components)
	if len(req.Actions) > 0 {
		if len(req.Actions) != s.components {
			s.writeError(w, http.StatusBadRequest, "actions must match component count")
			return
		}
		actions := make([]protection.Action, len(req.Actions))
		for i, a := range req.Actions {
			actions[i] = protection.Action(a)
		}
		policy = montecarlo.StaticPolicy(actions)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	summary, err := s.runner.Run(ctx, montecarlo.Config{
		Episodes: req.Episodes,
		Workers:  req.Workers,
		Seed:     req.Seed,
		Policy:   policy,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Monte Carlo batch failed")
		s.writeError(w, http.StatusInternalServerError, "batch failed")
		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}

// handleLatestSweep handles GET /api/sweeps/latest. Falls back to the
// persisted record when no sweep has run since startup.
func (s *Server) handleLatestSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweepJob != nil {
		if summary, ranAt, ok := s.sweepJob.Latest(); ok {
			s.writeJSON(w, http.StatusOK, map[string]interface{}{
				"summary": summary,
				"ran_at":  ranAt.Format(time.RFC3339),
			})
			return
		}
	}

	summary, ranAt, err := s.episodes.store.LatestSweep()
	if err != nil {
		if errors.Is(err, snapshots.ErrNoSweeps) {
			s.writeError(w, http.StatusNotFound, "no sweep has completed yet")
			return
		}
		s.log.Error().Err(err).Msg("Failed to load latest sweep")
		s.writeError(w, http.StatusInternalServerError, "failed to load latest sweep")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
		"ran_at":  ranAt.Format(time.RFC3339),
	})
}

// handleListBoroughs handles GET /api/boroughs
func (s *Server) handleListBoroughs(w http.ResponseWriter, r *http.Request) {
	boroughs, err := s.universeRepo.List()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list boroughs")
		s.writeError(w, http.StatusInternalServerError, "failed to list boroughs")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"boroughs": boroughs})
}

// handleGetBorough handles GET /api/boroughs/{name}
func (s *Server) handleGetBorough(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	b, err := s.universeRepo.Get(name)
	if err != nil {
		if errors.Is(err, universe.ErrBoroughNotFound) {
			s.writeError(w, http.StatusNotFound, "borough not found")
			return
		}
		s.log.Error().Err(err).Str("borough", name).Msg("Failed to load borough")
		s.writeError(w, http.StatusInternalServerError, "failed to load borough")
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

// handleSaveBorough handles PUT /api/boroughs/{name}. Changes apply to
// environments built after the next restart; live episodes keep the
// parameters they started with.
func (s *Server) handleSaveBorough(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var b universe.Borough
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b.Name = name

	// Reject parameter sets the calculators would refuse at startup.
	if _, err := universe.NewCalculator(b, s.log); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.universeRepo.Save(b); err != nil {
		s.log.Error().Err(err).Str("borough", name).Msg("Failed to save borough")
		s.writeError(w, http.StatusInternalServerError, "failed to save borough")
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}
