// Package config loads process configuration from the environment once,
// at startup, and hands a plain value struct to every component that
// needs it. No component re-reads the environment on its own.
package config

import (
	"os"
	"strconv"

	"github.com/fieldroute/jobsync/internal/pkg/logger"
)

// Config holds every recognized option named in the external interfaces
// section, plus the ambient options (bind address, DSN components,
// Redis address) a running process also needs.
type Config struct {
	LogMode  string
	HTTPAddr string

	PostgresHost         string
	PostgresPort         string
	PostgresUser         string
	PostgresPassword     string
	PostgresName         string
	PostgresSSLMode      string
	PostgresMaxOpenConns int
	PostgresMaxIdleConns int

	RedisAddr string
	RedisDB   int

	OutboxIntervalSeconds          int
	PollIntervalSeconds            int
	SyncPendingJobsIntervalSeconds int
	PollJobUpdatesIntervalSeconds  int
	RetryFailedJobsIntervalSeconds int
	SyncIntervalMinutes            int

	MaxRetryAttempts   int
	RetryBackoffFactor int
	BatchSize          int
	PollingBatchSize   int

	TaskTimeLimitSeconds     int
	TaskSoftTimeLimitSeconds int

	CleanupOutboxEventsIntervalHours int
	OutboxCleanupOlderThanDays       int

	WorkerShutdownGraceSeconds int
	ProviderHTTPTimeoutSeconds int
	OutboxDedupTTLSeconds      int

	RateLimitSyncJobPerMinute       int
	RateLimitPollPerMinute          int
	RateLimitCompanySyncPerMinute   int
}

// GetEnv reads key from the environment, logging at Debug whether the
// value was found or defaulted.
func GetEnv(log *logger.Logger, key, def string) string {
	l := log.With("env_var", key)
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.Debug("env var not set, using default", "default", def)
		return def
	}
	l.Debug("env var found", "value", v)
	return v
}

// GetEnvAsInt is GetEnv's integer-parsing counterpart; on a parse failure
// it warns and falls back to def.
func GetEnvAsInt(log *logger.Logger, key string, def int) int {
	l := log.With("env_var", key)
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.Debug("env var not set, using default", "default", def)
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.Warn("env var failed to parse as int, using default", "value", v, "default", def, "error", err)
		return def
	}
	l.Debug("env var found", "value", n)
	return n
}

// Load populates a Config from the environment.
func Load(log *logger.Logger) Config {
	return Config{
		LogMode:  GetEnv(log, "LOG_MODE", "development"),
		HTTPAddr: GetEnv(log, "HTTP_ADDR", ":8080"),

		PostgresHost:         GetEnv(log, "POSTGRES_HOST", "localhost"),
		PostgresPort:         GetEnv(log, "POSTGRES_PORT", "5432"),
		PostgresUser:         GetEnv(log, "POSTGRES_USER", "postgres"),
		PostgresPassword:     GetEnv(log, "POSTGRES_PASSWORD", ""),
		PostgresName:         GetEnv(log, "POSTGRES_NAME", "jobsync"),
		PostgresSSLMode:      GetEnv(log, "POSTGRES_SSLMODE", "disable"),
		PostgresMaxOpenConns: GetEnvAsInt(log, "POSTGRES_MAX_OPEN_CONNS", 30),
		PostgresMaxIdleConns: GetEnvAsInt(log, "POSTGRES_MAX_IDLE_CONNS", 10),

		RedisAddr: GetEnv(log, "REDIS_ADDR", "localhost:6379"),
		RedisDB:   GetEnvAsInt(log, "REDIS_DB", 0),

		OutboxIntervalSeconds:          GetEnvAsInt(log, "OUTBOX_INTERVAL_SECONDS", 30),
		PollIntervalSeconds:            GetEnvAsInt(log, "POLL_INTERVAL_SECONDS", 60),
		SyncPendingJobsIntervalSeconds: GetEnvAsInt(log, "SYNC_PENDING_JOBS_INTERVAL_SECONDS", 120),
		PollJobUpdatesIntervalSeconds:  GetEnvAsInt(log, "POLL_JOB_UPDATES_INTERVAL_SECONDS", 20),
		RetryFailedJobsIntervalSeconds: GetEnvAsInt(log, "RETRY_FAILED_JOBS_INTERVAL_SECONDS", 600),
		SyncIntervalMinutes:            GetEnvAsInt(log, "SYNC_INTERVAL_MINUTES", 30),

		MaxRetryAttempts:   GetEnvAsInt(log, "MAX_RETRY_ATTEMPTS", 3),
		RetryBackoffFactor: GetEnvAsInt(log, "RETRY_BACKOFF_FACTOR", 2),
		BatchSize:          GetEnvAsInt(log, "BATCH_SIZE", 50),
		PollingBatchSize:   GetEnvAsInt(log, "POLLING_BATCH_SIZE", 100),

		TaskTimeLimitSeconds:     GetEnvAsInt(log, "TASK_TIME_LIMIT_SECONDS", 600),
		TaskSoftTimeLimitSeconds: GetEnvAsInt(log, "TASK_SOFT_TIME_LIMIT_SECONDS", 480),

		CleanupOutboxEventsIntervalHours: GetEnvAsInt(log, "CLEANUP_OUTBOX_EVENTS_INTERVAL_HOURS", 12),
		OutboxCleanupOlderThanDays:       GetEnvAsInt(log, "OUTBOX_CLEANUP_OLDER_THAN_DAYS", 7),

		WorkerShutdownGraceSeconds: GetEnvAsInt(log, "WORKER_SHUTDOWN_GRACE_SECONDS", 30),
		ProviderHTTPTimeoutSeconds: GetEnvAsInt(log, "PROVIDER_HTTP_TIMEOUT_SECONDS", 30),
		OutboxDedupTTLSeconds:      GetEnvAsInt(log, "OUTBOX_DEDUP_TTL_SECONDS", 300),

		RateLimitSyncJobPerMinute:     GetEnvAsInt(log, "RATE_LIMIT_SYNC_JOB_PER_MINUTE", 60),
		RateLimitPollPerMinute:        GetEnvAsInt(log, "RATE_LIMIT_POLL_PER_MINUTE", 30),
		RateLimitCompanySyncPerMinute: GetEnvAsInt(log, "RATE_LIMIT_COMPANY_SYNC_PER_MINUTE", 120),
	}
}
