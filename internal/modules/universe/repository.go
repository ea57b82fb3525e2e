package universe

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/opencoastal/breakwater/internal/database"
	"github.com/opencoastal/breakwater/internal/modules/costs"
)

// ErrBoroughNotFound is returned when a borough name is not in the registry.
var ErrBoroughNotFound = errors.New("borough not found")

const boroughSchema = `
CREATE TABLE IF NOT EXISTS boroughs (
	name       TEXT PRIMARY KEY,
	variant    TEXT NOT NULL,
	params     BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Repository persists borough definitions. Parameters are stored as a
// msgpack blob so parameter-set evolution never needs a column migration.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository ensures the schema exists and returns the repository.
func NewRepository(db *database.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Conn().Exec(boroughSchema); err != nil {
		return nil, fmt.Errorf("failed to create boroughs schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("module", "universe").Logger(),
	}, nil
}

// Save upserts a borough definition.
func (r *Repository) Save(b Borough) error {
	blob, err := msgpack.Marshal(b.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters for %s: %w", b.Name, err)
	}
	_, err = r.db.Conn().Exec(`
		INSERT INTO boroughs (name, variant, params, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			variant = excluded.variant,
			params = excluded.params,
			updated_at = excluded.updated_at`,
		b.Name, string(b.Variant), blob, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save borough %s: %w", b.Name, err)
	}
	return nil
}

// Get returns one borough by name.
func (r *Repository) Get(name string) (Borough, error) {
	row := r.db.Conn().QueryRow(
		`SELECT name, variant, params FROM boroughs WHERE name = ?`, name)
	b, err := scanBorough(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Borough{}, fmt.Errorf("%w: %s", ErrBoroughNotFound, name)
	}
	return b, err
}

// List returns all boroughs ordered by name.
func (r *Repository) List() ([]Borough, error) {
	rows, err := r.db.Conn().Query(
		`SELECT name, variant, params FROM boroughs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list boroughs: %w", err)
	}
	defer rows.Close()

	var out []Borough
	for rows.Next() {
		b, err := scanBorough(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Count returns the number of stored boroughs.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM boroughs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count boroughs: %w", err)
	}
	return n, nil
}

// SeedDefaults inserts the given borough configuration when the table is
// empty. Existing overrides are left untouched.
func (r *Repository) SeedDefaults(boroughs []Borough) error {
	n, err := r.Count()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, b := range boroughs {
		if err := r.Save(b); err != nil {
			return err
		}
	}
	r.log.Info().Int("boroughs", len(boroughs)).Msg("seeded default borough registry")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBorough(row rowScanner) (Borough, error) {
	var (
		b       Borough
		variant string
		blob    []byte
	)
	if err := row.Scan(&b.Name, &variant, &blob); err != nil {
		return Borough{}, err
	}
	if err := msgpack.Unmarshal(blob, &b.Parameters); err != nil {
		return Borough{}, fmt.Errorf("failed to decode parameters for %s: %w", b.Name, err)
	}
	b.Variant = costs.Variant(variant)
	return b, nil
}
