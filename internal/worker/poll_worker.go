package worker

import (
	"context"
	"sync"
	"time"

	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/ratelimit"
	"github.com/fieldroute/jobsync/internal/retry"
	"github.com/fieldroute/jobsync/internal/usecase"
)

// PollWorkerConfig bundles C13's tunables.
type PollWorkerConfig struct {
	Interval           time.Duration
	BatchSize          int
	RateLimitPerMinute int
}

// PollWorker periodically calls PollUpdates, guarded by a single global
// rate-limit key (polling is not per-company, unlike sync) and the shared
// retry executor's circuit breaker under operation key "poll_job_updates".
type PollWorker struct {
	cfg     PollWorkerConfig
	log     *logger.Logger
	poll    *usecase.PollUpdates
	limiter ratelimit.Limiter
	retryer *retry.Executor

	mu       sync.Mutex
	running  bool
	lastTick time.Time
	ticks    int64
}

func NewPollWorker(cfg PollWorkerConfig, baseLog *logger.Logger, poll *usecase.PollUpdates, limiter ratelimit.Limiter, retryer *retry.Executor) *PollWorker {
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	return &PollWorker{
		cfg: cfg, log: baseLog.With("component", "worker.PollWorker"),
		poll: poll, limiter: limiter, retryer: retryer,
	}
}

func (w *PollWorker) Run(ctx context.Context) {
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

	for {
		select {
		case <-ctx.Done():
			w.log.Info("poll worker stopping")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PollWorker) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("poll worker tick panicked, recovering", "panic", r)
		}
	}()

	w.mu.Lock()
	w.lastTick = time.Now().UTC()
	w.ticks++
	w.mu.Unlock()

	if !w.limiter.Allow(ctx, "poll_job_updates", "global", w.cfg.RateLimitPerMinute, time.Minute) {
		w.log.Warn("poll_job_updates rate limited, skipping this tick")
		return
	}

	err := w.retryer.Execute(ctx, retry.Options{
		MaxRetries:   3,
		BaseDelay:    time.Second,
		OperationKey: "poll_job_updates",
	}, func(ctx context.Context) error {
		result, err := w.poll.Execute(ctx, w.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(result.Errors) > 0 {
			w.log.Warn("poll tick completed with errors",
				"polled", result.TotalPolled, "updated", result.Updated,
				"completed", result.Completed, "error_count", len(result.Errors))
		} else if result.TotalPolled > 0 {
			w.log.Info("poll tick completed",
				"polled", result.TotalPolled, "updated", result.Updated, "completed", result.Completed)
		}
		return nil
	})
	if err != nil {
		w.log.Error("poll tick failed", "error", err)
	}
}

// Health reports the worker's liveness for the admin surface.
func (w *PollWorker) Health() (running bool, ticks int64, lastTick time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running, w.ticks, w.lastTick
}
