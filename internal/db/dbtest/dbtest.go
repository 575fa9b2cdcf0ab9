// Package dbtest provides migrated throwaway databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfwise/apiserver/config"
	"github.com/shelfwise/apiserver/internal/db"
)

// Open creates a SQLite database under t.TempDir, applies all migrations and
// returns an open handle that is closed when the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:     db.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "library.db"),
	}
	require.NoError(t, db.MigrateUp(cfg))

	conn, err := db.OpenSQLite(context.Background(), cfg.SQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
