// Package snapshots persists episode records: one row per episode plus an
// append-only step log. Step payloads are msgpack blobs, so the simulation
// record survives breakdown-shape evolution without column migrations.
package snapshots

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/opencoastal/breakwater/internal/database"
	"github.com/opencoastal/breakwater/internal/modules/costs"
	"github.com/opencoastal/breakwater/internal/modules/hydro"
	"github.com/opencoastal/breakwater/internal/modules/montecarlo"
	"github.com/opencoastal/breakwater/internal/modules/protection"
)

// ErrEpisodeNotFound is returned when an episode id has no record.
var ErrEpisodeNotFound = errors.New("episode not found")

// ErrNoSweeps is returned when no sweep summary has been stored yet.
var ErrNoSweeps = errors.New("no sweeps recorded")

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS episodes (
	id                TEXT PRIMARY KEY,
	created_at        TEXT NOT NULL,
	horizon           INTEGER NOT NULL,
	steps_taken       INTEGER NOT NULL DEFAULT 0,
	cumulative_reward REAL NOT NULL DEFAULT 0,
	terminal          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS episode_steps (
	episode_id TEXT NOT NULL REFERENCES episodes(id) ON DELETE CASCADE,
	step_index INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	PRIMARY KEY (episode_id, step_index)
);

CREATE TABLE IF NOT EXISTS sweeps (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	ran_at  TEXT NOT NULL,
	payload BLOB NOT NULL
);
`

// Episode is the per-episode summary row.
type Episode struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Horizon          int       `json:"horizon"`
	StepsTaken       int       `json:"steps_taken"`
	CumulativeReward float64   `json:"cumulative_reward"`
	Terminal         bool      `json:"terminal"`
}

// StepRecord is one step of an episode as persisted.
type StepRecord struct {
	StepIndex  int                        `json:"step_index" msgpack:"step_index"`
	Water      hydro.State                `json:"water" msgpack:"water"`
	Actions    []protection.Action        `json:"actions" msgpack:"actions"`
	Reward     float64                    `json:"reward" msgpack:"reward"`
	Terminal   bool                       `json:"terminal" msgpack:"terminal"`
	Breakdowns map[string]costs.Breakdown `json:"breakdowns" msgpack:"breakdowns"`
}

// Repository stores episodes in the results database.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository ensures the schema exists and returns the repository.
func NewRepository(db *database.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Conn().Exec(snapshotSchema); err != nil {
		return nil, fmt.Errorf("failed to create snapshots schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("module", "snapshots").Logger(),
	}, nil
}

// CreateEpisode registers a fresh episode.
func (r *Repository) CreateEpisode(id string, horizon int) error {
	_, err := r.db.Conn().Exec(`
		INSERT INTO episodes (id, created_at, horizon) VALUES (?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339), horizon)
	if err != nil {
		return fmt.Errorf("failed to create episode %s: %w", id, err)
	}
	return nil
}

// RecordStep appends a step and refreshes the episode summary in one
// transaction.
func (r *Repository) RecordStep(episodeID string, rec StepRecord) error {
	blob, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode step %d of episode %s: %w", rec.StepIndex, episodeID, err)
	}

	return r.db.WithTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE episodes SET
				steps_taken = steps_taken + 1,
				cumulative_reward = cumulative_reward + ?,
				terminal = ?
			WHERE id = ?`,
			rec.Reward, boolToInt(rec.Terminal), episodeID)
		if err != nil {
			return fmt.Errorf("failed to update episode %s summary: %w", episodeID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrEpisodeNotFound, episodeID)
		}
		if _, err := tx.Exec(`
			INSERT INTO episode_steps (episode_id, step_index, payload)
			VALUES (?, ?, ?)`,
			episodeID, rec.StepIndex, blob); err != nil {
			return fmt.Errorf("failed to append step %d of episode %s: %w", rec.StepIndex, episodeID, err)
		}
		return nil
	})
}

// GetEpisode returns one episode summary.
func (r *Repository) GetEpisode(id string) (Episode, error) {
	row := r.db.Conn().QueryRow(`
		SELECT id, created_at, horizon, steps_taken, cumulative_reward, terminal
		FROM episodes WHERE id = ?`, id)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Episode{}, fmt.Errorf("%w: %s", ErrEpisodeNotFound, id)
	}
	return ep, err
}

// ListEpisodes returns episode summaries, newest first.
func (r *Repository) ListEpisodes(limit int) ([]Episode, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Conn().Query(`
		SELECT id, created_at, horizon, steps_taken, cumulative_reward, terminal
		FROM episodes ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	var out []Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// Steps returns the ordered step log of an episode.
func (r *Repository) Steps(episodeID string) ([]StepRecord, error) {
	rows, err := r.db.Conn().Query(`
		SELECT payload FROM episode_steps
		WHERE episode_id = ? ORDER BY step_index`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps of episode %s: %w", episodeID, err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var rec StepRecord
		if err := msgpack.Unmarshal(blob, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode step of episode %s: %w", episodeID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteEpisode removes an episode and its step log.
func (r *Repository) DeleteEpisode(id string) error {
	res, err := r.db.Conn().Exec(`DELETE FROM episodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete episode %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrEpisodeNotFound, id)
	}
	return nil
}

// SaveSweep appends a Monte Carlo sweep summary.
func (r *Repository) SaveSweep(summary montecarlo.Summary, ranAt time.Time) error {
	blob, err := msgpack.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode sweep summary: %w", err)
	}
	if _, err := r.db.Conn().Exec(`
		INSERT INTO sweeps (ran_at, payload) VALUES (?, ?)`,
		ranAt.UTC().Format(time.RFC3339), blob); err != nil {
		return fmt.Errorf("failed to store sweep summary: %w", err)
	}
	return nil
}

// LatestSweep returns the most recently stored sweep summary.
func (r *Repository) LatestSweep() (montecarlo.Summary, time.Time, error) {
	var (
		ranAt string
		blob  []byte
	)
	err := r.db.Conn().QueryRow(`
		SELECT ran_at, payload FROM sweeps ORDER BY id DESC LIMIT 1`).Scan(&ranAt, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return montecarlo.Summary{}, time.Time{}, ErrNoSweeps
	}
	if err != nil {
		return montecarlo.Summary{}, time.Time{}, fmt.Errorf("failed to load latest sweep: %w", err)
	}

	var summary montecarlo.Summary
	if err := msgpack.Unmarshal(blob, &summary); err != nil {
		return montecarlo.Summary{}, time.Time{}, fmt.Errorf("failed to decode sweep summary: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, ranAt)
	if err != nil {
		return montecarlo.Summary{}, time.Time{}, fmt.Errorf("bad ran_at on sweep: %w", err)
	}
	return summary, ts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row rowScanner) (Episode, error) {
	var (
		ep       Episode
		created  string
		terminal int
	)
	if err := row.Scan(&ep.ID, &created, &ep.Horizon, &ep.StepsTaken, &ep.CumulativeReward, &terminal); err != nil {
		return Episode{}, err
	}
	ts, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return Episode{}, fmt.Errorf("bad created_at for episode %s: %w", ep.ID, err)
	}
	ep.CreatedAt = ts
	ep.Terminal = terminal != 0
	return ep, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
