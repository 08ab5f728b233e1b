// Package testdb provides helpers for tests that need a real PostgreSQL
// database. Tests skip unless DATABASE_URL or TOPICGEN_TEST_DB_URL is set.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/topicgen/internal/platform/postgres"
)

// TestTimeout is the default timeout for test database operations.
const TestTimeout = 10 * time.Second

// IsIntegrationTestEnvironment reports whether a test database is configured.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// GetTestDatabaseURL returns DATABASE_URL, falling back to TOPICGEN_TEST_DB_URL.
func GetTestDatabaseURL() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	return os.Getenv("TOPICGEN_TEST_DB_URL")
}

// GetTestDBWithT opens the test database and migrates it to the latest
// schema, skipping the test when no database is configured. The connection
// is closed when the test ends.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()
	if !IsIntegrationTestEnvironment() {
		t.Skip("skipping integration test: DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", GetTestDatabaseURL())
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "failed to ping test database")

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, postgres.MigrateUp(ctx, db, quiet), "failed to migrate test database")
	return db
}

// WithTx runs fn in a transaction that is always rolled back.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "failed to begin transaction")
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("failed to roll back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// CleanupTopics deletes the given topics and their questions when the test ends.
func CleanupTopics(t *testing.T, db *sql.DB, ids ...any) {
	t.Helper()
	t.Cleanup(func() {
		for _, id := range ids {
			_, _ = db.Exec(`DELETE FROM questions WHERE topic_id = $1`, id)
			_, _ = db.Exec(`DELETE FROM topics WHERE id = $1`, id)
		}
	})
}
