// Package db bootstraps the Postgres connection and runs auto-migration
// over the logical schema in SPEC_FULL.md §6.
//
// Grounded on the teacher's internal/db/postgres.go: DSN built from
// discrete env-driven components, gormLogger configured with
// IgnoreRecordNotFoundError (critical for the outbox and poll workers,
// which routinely observe "no row yet" as a normal claim-query outcome
// rather than a logged error), and DisableForeignKeyConstraintWhenMigrating
// so AutoMigrate doesn't need a hand-maintained table order.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fieldroute/jobsync/internal/config"
	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
)

// Service wraps the underlying *gorm.DB.
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// New opens the Postgres connection described by cfg, configures the
// pool, and returns the wrapped service. It does not migrate; call
// AutoMigrateAll explicitly once the process is ready to own the schema.
func New(cfg config.Config, baseLog *logger.Logger) (*Service, error) {
	log := baseLog.With("component", "db.Service")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresName, cfg.PostgresSSLMode)

	gl := gormlogger.New(
		gormStdLogWriter{log: log},
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gl,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrapping sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.PostgresMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.PostgresMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Warn("failed to ensure uuid-ossp extension, continuing", "error", err)
	}

	return &Service{db: gdb, log: log}, nil
}

// AutoMigrateAll migrates every domain type in dependency order.
func (s *Service) AutoMigrateAll() error {
	return s.db.AutoMigrate(
		&domain.Company{},
		&domain.CompanySkill{},
		&domain.Technician{},
		&domain.Job{},
		&domain.JobRouting{},
		&domain.OutboxEvent{},
	)
}

// DB returns the underlying *gorm.DB for repository construction.
func (s *Service) DB() *gorm.DB { return s.db }

// gormStdLogWriter adapts gorm's logger.Writer interface onto the
// component logger, so SQL logging flows through the same zap sink as
// everything else.
type gormStdLogWriter struct {
	log *logger.Logger
}

func (w gormStdLogWriter) Printf(format string, args ...interface{}) {
	w.log.Debug(fmt.Sprintf(format, args...))
}
