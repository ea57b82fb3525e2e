// Package testing provides shared test helpers for the breakwater project.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/opencoastal/breakwater/internal/database"
	_ "modernc.org/sqlite"
)

// NewTestDB creates a file-backed SQLite database for testing. Each call gets
// its own temporary file for isolation. The cleanup function closes the
// connection and removes the file; it is safe to call more than once.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			t.Logf("Warning: Failed to remove temporary database file %s: %v", tmpPath, err)
		}
	}
}
