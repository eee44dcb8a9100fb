// Package testing provides testing utilities and helpers for the tvm project.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/tvm/internal/database"
)

// NewTestDB creates a temporary file-backed SQLite database with its embedded
// schema applied. The database is closed and removed when the test ends.
//
// Supported schema names:
//   - "calculations" - applies calculations_schema.sql
//
// Names without an embedded schema fail the test; use NewTestDBWithSchema.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db
}

// NewTestDBWithSchema creates a temporary database and executes schema on it
// instead of the embedded migration.
func NewTestDBWithSchema(t *testing.T, name string, schema string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}

	return db
}
