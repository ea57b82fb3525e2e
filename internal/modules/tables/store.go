package tables

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/opencoastal/breakwater/internal/utils"
)

// Store persists and loads the numeric tables in a sqlite database. Matrix
// rows are stored as msgpack-encoded float64 slices, one row per record, so a
// single year can be inspected or replaced without rewriting the whole table.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a tables store on the given database connection.
func NewStore(db *sql.DB, log zerolog.Logger) (*Store, error) {
	s := &Store{
		db:  db,
		log: log.With().Str("repository", "tables").Logger(),
	}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS slr_rows (
			year INTEGER NOT NULL,
			row  INTEGER NOT NULL,
			probs BLOB NOT NULL,
			PRIMARY KEY (year, row)
		);
		CREATE TABLE IF NOT EXISTS surge_rows (
			row  INTEGER PRIMARY KEY,
			probs BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS scc_values (
			year INTEGER PRIMARY KEY,
			value REAL NOT NULL
		);
	`)
	return err
}

// IsEmpty reports whether no tables have been stored yet.
func (s *Store) IsEmpty() (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM scc_values`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

// Save writes a full set of tables, replacing any existing contents.
func (s *Store) Save(m *Memory) error {
	defer utils.OperationTimer("tables_save", s.log)()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tables transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"slr_rows", "surge_rows", "scc_values"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	slrStmt, err := tx.Prepare(`INSERT INTO slr_rows (year, row, probs) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare slr insert: %w", err)
	}
	defer slrStmt.Close()

	for year := 0; year < m.Years(); year++ {
		matrix, err := m.Matrix(year)
		if err != nil {
			return err
		}
		rows, _ := matrix.Dims()
		for i := 0; i < rows; i++ {
			payload, err := msgpack.Marshal(matrix.RawRowView(i))
			if err != nil {
				return fmt.Errorf("failed to encode SLR row %d/%d: %w", year, i, err)
			}
			if _, err := slrStmt.Exec(year, i, payload); err != nil {
				return fmt.Errorf("failed to store SLR row %d/%d: %w", year, i, err)
			}
		}
	}

	surge := m.SurgeMatrix()
	surgeRows, _ := surge.Dims()
	for i := 0; i < surgeRows; i++ {
		payload, err := msgpack.Marshal(surge.RawRowView(i))
		if err != nil {
			return fmt.Errorf("failed to encode surge row %d: %w", i, err)
		}
		if _, err := tx.Exec(`INSERT INTO surge_rows (row, probs) VALUES (?, ?)`, i, payload); err != nil {
			return fmt.Errorf("failed to store surge row %d: %w", i, err)
		}
	}

	scc := m.SCC()
	for year := 0; year < scc.Years(); year++ {
		value, err := scc.Value(year)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO scc_values (year, value) VALUES (?, ?)`, year, value); err != nil {
			return fmt.Errorf("failed to store SCC year %d: %w", year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tables: %w", err)
	}

	s.log.Info().
		Int("slr_years", m.Years()).
		Int("scc_years", scc.Years()).
		Msg("Stored simulation tables")

	return nil
}

// Load reads the full set of tables into memory. All episodes share the
// returned Memory read-only.
func (s *Store) Load() (*Memory, error) {
	slr, err := s.loadSLR()
	if err != nil {
		return nil, err
	}
	surge, err := s.loadSurge()
	if err != nil {
		return nil, err
	}
	scc, err := s.loadSCC()
	if err != nil {
		return nil, err
	}
	return NewMemory(slr, surge, scc)
}

func (s *Store) loadSLR() ([]*mat.Dense, error) {
	rows, err := s.db.Query(`SELECT year, row, probs FROM slr_rows ORDER BY year, row`)
	if err != nil {
		return nil, fmt.Errorf("failed to query SLR rows: %w", err)
	}
	defer rows.Close()

	byYear := make(map[int][][]float64)
	maxYear := -1
	for rows.Next() {
		var year, rowIdx int
		var payload []byte
		if err := rows.Scan(&year, &rowIdx, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan SLR row: %w", err)
		}
		var probs []float64
		if err := msgpack.Unmarshal(payload, &probs); err != nil {
			return nil, fmt.Errorf("failed to decode SLR row %d/%d: %w", year, rowIdx, err)
		}
		byYear[year] = append(byYear[year], probs)
		if year > maxYear {
			maxYear = year
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate SLR rows: %w", err)
	}
	if maxYear < 0 {
		return nil, fmt.Errorf("no SLR rows stored")
	}

	matrices := make([]*mat.Dense, maxYear+1)
	for year := 0; year <= maxYear; year++ {
		yearRows, ok := byYear[year]
		if !ok {
			return nil, fmt.Errorf("missing SLR matrix for year %d", year)
		}
		matrices[year] = denseFromRows(yearRows)
	}
	return matrices, nil
}

func (s *Store) loadSurge() (*mat.Dense, error) {
	rows, err := s.db.Query(`SELECT row, probs FROM surge_rows ORDER BY row`)
	if err != nil {
		return nil, fmt.Errorf("failed to query surge rows: %w", err)
	}
	defer rows.Close()

	var collected [][]float64
	for rows.Next() {
		var rowIdx int
		var payload []byte
		if err := rows.Scan(&rowIdx, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan surge row: %w", err)
		}
		var probs []float64
		if err := msgpack.Unmarshal(payload, &probs); err != nil {
			return nil, fmt.Errorf("failed to decode surge row %d: %w", rowIdx, err)
		}
		collected = append(collected, probs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate surge rows: %w", err)
	}
	if len(collected) == 0 {
		return nil, fmt.Errorf("no surge rows stored")
	}
	return denseFromRows(collected), nil
}

func (s *Store) loadSCC() ([]float64, error) {
	rows, err := s.db.Query(`SELECT year, value FROM scc_values ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("failed to query SCC values: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var year int
		var value float64
		if err := rows.Scan(&year, &value); err != nil {
			return nil, fmt.Errorf("failed to scan SCC value: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate SCC values: %w", err)
	}
	return values, nil
}

func denseFromRows(rows [][]float64) *mat.Dense {
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}
