package testutil

import (
	"testing"

	"github.com/bensuskins/gymthon/internal/database"
)

func NewTestDatabase(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
