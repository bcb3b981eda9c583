// Package worker holds the long-running loops (C11 outbox worker, C13
// poll worker) and the supervisor (C14) that starts/stops/restarts them.
//
// Grounded on the teacher's internal/jobs/worker/worker.go: a
// time.Ticker-driven loop, a heartbeat-style liveness signal, a
// recover()-based panic safety net around dispatched work, and
// cancellation via the loop's context.Context.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/outbox"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/repos"
	"github.com/fieldroute/jobsync/internal/retry"
	"github.com/fieldroute/jobsync/internal/usecase"
)

// OutboxWorkerConfig bundles the tunables named in SPEC_FULL.md §6.
type OutboxWorkerConfig struct {
	Interval               time.Duration
	BatchSize              int
	RetryFraction          float64 // up to this fraction of BatchSize drawn from failed_events_for_retry
	StalePendingInterval   time.Duration
	StalePendingAge        time.Duration
	StuckReclaimThreshold  time.Duration
	MaxConcurrentSyncTasks int
	DedupTTL               time.Duration
	MaintenanceInterval    time.Duration
	OutboxRetentionDays    int
	// TaskHardTimeout and TaskSoftTimeout are the per-task deadlines
	// §5 requires: the hard timeout aborts the task's context outright,
	// the soft timeout (shorter) marks the routing failed so it is
	// re-dispatchable without waiting for the hard deadline.
	TaskHardTimeout time.Duration
	TaskSoftTimeout time.Duration
}

// OutboxWorker drains the transactional outbox and dispatches sync tasks.
type OutboxWorker struct {
	cfg      OutboxWorkerConfig
	log      *logger.Logger
	outbox   repos.OutboxEventRepo
	routings repos.JobRoutingRepo
	syncJob  *usecase.SyncJob
	dedup    *outbox.DedupCache
	retryer  *retry.Executor

	sem chan struct{}

	mu       sync.Mutex
	running  bool
	lastTick time.Time
	ticks    int64
}

func NewOutboxWorker(cfg OutboxWorkerConfig, baseLog *logger.Logger, outboxRepo repos.OutboxEventRepo, routings repos.JobRoutingRepo, syncJob *usecase.SyncJob, retryer *retry.Executor) *OutboxWorker {
	if cfg.MaxConcurrentSyncTasks <= 0 {
		cfg.MaxConcurrentSyncTasks = 10
	}
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = 10 * time.Minute
	}
	if cfg.OutboxRetentionDays <= 0 {
		cfg.OutboxRetentionDays = 7
	}
	if cfg.TaskHardTimeout <= 0 {
		cfg.TaskHardTimeout = 10 * time.Minute
	}
	if cfg.TaskSoftTimeout <= 0 {
		cfg.TaskSoftTimeout = 8 * time.Minute
	}
	return &OutboxWorker{
		cfg: cfg, log: baseLog.With("component", "worker.OutboxWorker"),
		outbox: outboxRepo, routings: routings, syncJob: syncJob,
		dedup:   outbox.NewDedupCache(cfg.DedupTTL),
		retryer: retryer,
		sem:     make(chan struct{}, cfg.MaxConcurrentSyncTasks),
	}
}

// Run blocks, ticking every cfg.Interval until ctx is cancelled. It never
// exits on a per-tick error: it logs and continues (§7's "workers never
// propagate exceptions out of their loops").
func (w *OutboxWorker) Run(ctx context.Context) {
	w.mu.Lock()
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	staleTicker := time.NewTicker(w.cfg.StalePendingInterval)
	defer staleTicker.Stop()

	maintTicker := time.NewTicker(w.cfg.MaintenanceInterval)
	defer maintTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("outbox worker stopping")
			return
		case <-ticker.C:
			w.tick(ctx)
		case <-staleTicker.C:
			w.staleScan(ctx)
		case <-maintTicker.C:
			w.maintenance(ctx)
		}
	}
}

// maintenance runs the two periodic backup sweeps SPEC_FULL.md §9
// supplements: resetting failed routings whose backoff window elapsed
// (in case their outbox retry event was itself lost) and pruning
// completed outbox events past the retention window.
func (w *OutboxWorker) maintenance(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("maintenance sweep panicked, recovering", "panic", r)
		}
	}()

	dbc := dbctx.Background(nil)
	dbc.Ctx = ctx

	if n, err := w.routings.ResetFailedForRetry(dbc, w.cfg.BatchSize); err != nil {
		w.log.Error("failed-routing retry reset failed", "error", err)
	} else if n > 0 {
		w.log.Info("reset failed routings for retry", "count", n)
	}

	if n, err := w.outbox.CleanupCompleted(dbc, w.cfg.OutboxRetentionDays); err != nil {
		w.log.Error("outbox cleanup failed", "error", err)
	} else if n > 0 {
		w.log.Info("cleaned up completed outbox events", "count", n)
	}
}

func (w *OutboxWorker) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("outbox worker tick panicked, recovering", "panic", r)
		}
	}()

	w.mu.Lock()
	w.lastTick = time.Now().UTC()
	w.ticks++
	w.mu.Unlock()

	dbc := dbctx.Background(nil)
	dbc.Ctx = ctx

	// Reclaim stuck-processing routings first, per SPEC_FULL.md §9's
	// decision to resolve the stuck-reclaim open question here.
	if n, err := w.routings.ReclaimStuck(dbc, w.cfg.StuckReclaimThreshold); err != nil {
		w.log.Error("stuck-routing reclaim failed", "error", err)
	} else if n > 0 {
		w.log.Info("reclaimed stuck routings", "count", n)
	}

	retryBudget := int(float64(w.cfg.BatchSize) * w.cfg.RetryFraction)
	var retryable []*domain.OutboxEvent
	if retryBudget > 0 {
		var err error
		retryable, err = w.outbox.FailedEventsForRetry(dbc, retryBudget)
		if err != nil {
			w.log.Error("failed to list retryable outbox events", "error", err)
		}
	}
	for _, e := range retryable {
		if ok, err := w.outbox.ResetForRetry(dbc, e.ID); err != nil {
			w.log.Error("failed to reset event for retry", "event_id", e.ID, "error", err)
		} else if ok {
			w.processEvent(ctx, e.ID)
		}
	}

	pending, err := w.outbox.PendingEvents(dbc, "", w.cfg.BatchSize)
	if err != nil {
		w.log.Error("failed to list pending outbox events", "error", err)
		return
	}
	for _, e := range pending {
		w.processEvent(ctx, e.ID)
	}
}

// processEvent claims one event and dispatches it by type. Dispatch
// success marks the event completed; dispatch failure marks it failed
// with the error message (§4.9).
func (w *OutboxWorker) processEvent(ctx context.Context, eventID uuid.UUID) {
	dbc := dbctx.Background(nil)
	dbc.Ctx = ctx

	claimed, err := w.outbox.ClaimEvent(dbc, eventID)
	if err != nil {
		w.log.Error("failed to claim outbox event", "event_id", eventID, "error", err)
		return
	}
	if claimed == nil {
		return
	}

	if err := w.dispatch(ctx, claimed); err != nil {
		if markErr := w.outbox.MarkFailed(dbc, claimed.ID, err.Error()); markErr != nil {
			w.log.Error("failed to mark outbox event failed", "event_id", claimed.ID, "error", markErr)
		}
		return
	}
	if err := w.outbox.MarkCompleted(dbc, claimed.ID); err != nil {
		w.log.Error("failed to mark outbox event completed", "event_id", claimed.ID, "error", err)
	}
}

func (w *OutboxWorker) dispatch(ctx context.Context, e *domain.OutboxEvent) error {
	switch e.EventType {
	case domain.OutboxEventTypeJobSync:
		var payload struct {
			RoutingID string `json:"routing_id"`
		}
		if err := json.Unmarshal(e.EventData, &payload); err != nil {
			return err
		}
		if w.dedup.SeenRecently(payload.RoutingID) {
			return nil
		}
		routingID, err := uuid.Parse(payload.RoutingID)
		if err != nil {
			return err
		}
		return w.runSyncTask(ctx, routingID)
	default:
		w.log.Debug("ignoring outbox event of unhandled type", "event_type", e.EventType)
		return nil
	}
}

// runSyncTask bounds total concurrent outbound HTTP work via a
// semaphore-style buffered channel (§5's "bounded pool"), enforces the
// per-task hard/soft deadlines (§5), and is the single choke point
// where every sync dispatch passes through the shared retry executor's
// circuit breaker (C7). SyncJob.Execute calls the provider at most once
// and returns an error only for a database failure, so the executor's
// up-to-3 retries re-run Execute only after such a failure; repeat
// provider attempts across dispatches are driven by the persisted
// next_retry_at/ClaimForProcessing gating, not a loop here.
func (w *OutboxWorker) runSyncTask(ctx context.Context, routingID uuid.UUID) error {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-w.sem }()

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("sync task panicked, recovering", "routing_id", routingID, "panic", r)
		}
	}()

	hardCtx, cancel := context.WithTimeout(ctx, w.cfg.TaskHardTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.retryer.Execute(hardCtx, retry.Options{
			MaxRetries:   3,
			BaseDelay:    time.Second,
			OperationKey: "sync_job",
		}, func(opCtx context.Context) error {
			_, err := w.syncJob.Execute(opCtx, routingID)
			return err
		})
	}()

	softTimer := time.NewTimer(w.cfg.TaskSoftTimeout)
	defer softTimer.Stop()

	select {
	case err := <-done:
		return err
	case <-softTimer.C:
		msg := fmt.Sprintf("sync task exceeded soft time limit of %s", w.cfg.TaskSoftTimeout)
		w.log.Warn("sync task soft deadline exceeded, marking routing failed", "routing_id", routingID)
		if markErr := w.syncJob.MarkFailedExternally(ctx, routingID, msg); markErr != nil {
			w.log.Error("failed to mark routing failed after soft deadline", "routing_id", routingID, "error", markErr)
		}
		select {
		case err := <-done:
			return err
		case <-hardCtx.Done():
			return hardCtx.Err()
		}
	case <-hardCtx.Done():
		return hardCtx.Err()
	}
}

// staleScan re-enqueues pending routings whose outbox event may have
// been lost, the backup scan SPEC_FULL.md §9 supplements from the
// original's scheduler.py periodic tasks.
func (w *OutboxWorker) staleScan(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("stale scan panicked, recovering", "panic", r)
		}
	}()

	dbc := dbctx.Background(nil)
	dbc.Ctx = ctx

	stale, err := w.routings.ListStalePending(dbc, w.cfg.StalePendingAge, w.cfg.BatchSize)
	if err != nil {
		w.log.Error("stale-pending scan failed", "error", err)
		return
	}
	for _, r := range stale {
		if w.dedup.SeenRecently(r.ID.String()) {
			continue
		}
		if err := w.runSyncTask(ctx, r.ID); err != nil {
			w.log.Warn("stale-pending sync task failed", "routing_id", r.ID, "error", err)
		}
	}
}

// Health reports whether the worker's loop is currently running and how
// many ticks it has observed, for the admin surface (C14).
func (w *OutboxWorker) Health() (running bool, ticks int64, lastTick time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running, w.ticks, w.lastTick
}
