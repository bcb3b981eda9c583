// Package testutil provides a fast in-memory database harness for repo
// and use-case tests: gorm.io/driver/sqlite, migrated with the same
// domain types the Postgres schema uses.
//
// Grounded on the teacher's test-tooling convention of an in-memory
// sqlite handle for repo-level tests, reserving a real Postgres
// connection (gated on an env var) for the claim-pattern exclusivity
// tests that need SKIP LOCKED semantics sqlite cannot emulate.
package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
)

// NewLogger builds a development-mode logger for test output.
func NewLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

// NewDB opens a fresh, uniquely-named in-memory sqlite database and
// migrates every domain type, returning a ready-to-use *gorm.DB scoped
// to the test. The name is derived from t.Name() so parallel/sequential
// tests in the same package never share state through sqlite's shared
// cache.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&domain.Company{},
		&domain.CompanySkill{},
		&domain.Technician{},
		&domain.Job{},
		&domain.JobRouting{},
		&domain.OutboxEvent{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}
