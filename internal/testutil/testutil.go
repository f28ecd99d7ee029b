// Package testutil provides shared test helpers.
package testutil

import (
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/guesthairspa/salon/internal/database"
)

// TestLogger returns a logger that only prints warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// TestDB opens a migrated SQLite database in the test's temp dir.  It is
// closed automatically when the test ends.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Options{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "salon-test.db"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Clock is a manually advanced time source for repositories and the auth gate.
type Clock struct {
	T time.Time
}

// NewClock starts a clock at a fixed UTC instant.
func NewClock() *Clock {
	return &Clock{T: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time { return c.T }

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.T = c.T.Add(d)
	return c.T
}
