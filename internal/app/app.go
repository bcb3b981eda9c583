// Package app wires every component into a running process: config,
// logger, database, Redis, repositories, domain services, use cases,
// workers, and the HTTP server. Grounded on the teacher's internal/app
// bootstrap package: one App struct, a Run that blocks until signaled,
// and a graceful-shutdown Close bounded by a grace period.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fieldroute/jobsync/internal/config"
	"github.com/fieldroute/jobsync/internal/db"
	"github.com/fieldroute/jobsync/internal/httpapi"
	"github.com/fieldroute/jobsync/internal/outbox"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/provider"
	"github.com/fieldroute/jobsync/internal/ratelimit"
	"github.com/fieldroute/jobsync/internal/repos"
	"github.com/fieldroute/jobsync/internal/retry"
	"github.com/fieldroute/jobsync/internal/usecase"
	"github.com/fieldroute/jobsync/internal/worker"
)

// App owns every long-lived component of the process.
type App struct {
	cfg config.Config
	log *logger.Logger

	dbService   *db.Service
	redisClient *goredis.Client

	supervisor *worker.Supervisor
	httpServer *http.Server
}

// New loads config, connects to Postgres and Redis, migrates the schema,
// and wires every use case, worker, and HTTP route. It does not start
// anything background yet; call Run for that.
func New() (*App, error) {
	bootLog, err := logger.New("boot")
	if err != nil {
		return nil, fmt.Errorf("building boot logger: %w", err)
	}
	cfg := config.Load(bootLog)

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	dbService, err := db.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("auto-migrating schema: %w", err)
	}
	gdb := dbService.DB()

	redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})

	companyRepo := repos.NewCompanyRepo(gdb, log)
	techRepo := repos.NewTechnicianRepo(gdb, log)
	jobRepo := repos.NewJobRepo(gdb, log)
	routingRepo := repos.NewJobRoutingRepo(gdb, log)
	outboxRepo := repos.NewOutboxEventRepo(gdb, log)

	outboxSvc := outbox.NewService(outboxRepo)
	registry := provider.NewRegistry(time.Duration(cfg.ProviderHTTPTimeoutSeconds)*time.Second, redisClient, log)
	limiter := ratelimit.NewRedisLimiter(redisClient, log)
	retryer := retry.NewExecutor(log)

	createJob := usecase.NewCreateJob(gdb, log, companyRepo, techRepo, jobRepo, routingRepo, outboxSvc)
	syncJob := usecase.NewSyncJob(gdb, log, jobRepo, companyRepo, routingRepo, registry, limiter, cfg.MaxRetryAttempts, cfg.RateLimitSyncJobPerMinute)
	pollUpdates := usecase.NewPollUpdates(gdb, log, jobRepo, companyRepo, routingRepo, registry, cfg.SyncIntervalMinutes)

	outboxWorker := worker.NewOutboxWorker(worker.OutboxWorkerConfig{
		Interval:               time.Duration(cfg.OutboxIntervalSeconds) * time.Second,
		BatchSize:              cfg.BatchSize,
		RetryFraction:          0.25,
		StalePendingInterval:   time.Duration(cfg.SyncPendingJobsIntervalSeconds) * time.Second,
		StalePendingAge:        time.Duration(cfg.SyncPendingJobsIntervalSeconds) * time.Second,
		StuckReclaimThreshold:  10 * time.Minute,
		MaxConcurrentSyncTasks: 10,
		DedupTTL:               time.Duration(cfg.OutboxDedupTTLSeconds) * time.Second,
		MaintenanceInterval:    time.Duration(cfg.RetryFailedJobsIntervalSeconds) * time.Second,
		OutboxRetentionDays:    cfg.OutboxCleanupOlderThanDays,
		TaskHardTimeout:        time.Duration(cfg.TaskTimeLimitSeconds) * time.Second,
		TaskSoftTimeout:        time.Duration(cfg.TaskSoftTimeLimitSeconds) * time.Second,
	}, log, outboxRepo, routingRepo, syncJob, retryer)

	pollWorker := worker.NewPollWorker(worker.PollWorkerConfig{
		Interval:           time.Duration(cfg.PollJobUpdatesIntervalSeconds) * time.Second,
		BatchSize:          cfg.PollingBatchSize,
		RateLimitPerMinute: cfg.RateLimitPollPerMinute,
	}, log, pollUpdates, limiter, retryer)

	supervisor := worker.NewSupervisor(log)
	supervisor.Register("outbox", outboxWorker)
	supervisor.Register("poll", pollWorker)

	router := httpapi.NewRouter(httpapi.Deps{
		DB: gdb, Log: log, Cfg: cfg,
		Jobs: jobRepo, Routings: routingRepo,
		CreateJob: createJob, Limiter: limiter, Retryer: retryer,
		Supervisor: supervisor,
	})

	return &App{
		cfg: cfg, log: log,
		dbService: dbService, redisClient: redisClient,
		supervisor: supervisor,
		httpServer: &http.Server{Addr: cfg.HTTPAddr, Handler: router},
	}, nil
}

// Run starts the workers and the HTTP server, blocking until ctx is
// cancelled, then shuts everything down within the configured grace
// period.
func (a *App) Run(ctx context.Context) error {
	a.supervisor.StartAll(ctx)

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-serverErr:
		a.log.Error("http server failed", "error", err)
	}

	return a.Close()
}

// Close shuts the HTTP server and every worker down within the
// configured grace period, then closes the database and Redis clients.
func (a *App) Close() error {
	grace := time.Duration(a.cfg.WorkerShutdownGraceSeconds) * time.Second

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http server shutdown did not complete cleanly", "error", err)
	}

	a.supervisor.StopAll(grace)

	if err := a.redisClient.Close(); err != nil {
		a.log.Warn("error closing redis client", "error", err)
	}
	if sqlDB, err := a.dbService.DB().DB(); err == nil {
		_ = sqlDB.Close()
	}
	return a.log.Sync()
}
