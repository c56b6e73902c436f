// internal/database/dbtest/dbtest.go

// Package dbtest opens an isolated file-backed SQLite store for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/javajoker/storefront/internal/database"
)

// New returns a migrated SQLite database under t.TempDir(). The pool is
// pinned to one connection, so concurrent transactions serialize the way row
// locks would serialize them on PostgreSQL. The file outlives any connection
// that database/sql discards after a cancelled transaction.
func New(t testing.TB) *gorm.DB {
	return NewWithConns(t, 1)
}

// NewWithConns is New with a pool of conns connections. Transactions begin
// IMMEDIATE and wait on busy_timeout, so writers on different connections
// queue for the write lock instead of failing.
func NewWithConns(t testing.TB, conns int) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "store.db") +
		"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig("silent"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	sqlDB.SetMaxIdleConns(conns)

	require.NoError(t, database.RunMigrations(db))

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}
