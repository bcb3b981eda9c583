package worker

import (
	"context"
	"sync"
	"time"

	"github.com/fieldroute/jobsync/internal/pkg/logger"
)

// runnable is anything Supervisor can start, stop, and health-check.
// OutboxWorker and PollWorker both satisfy it.
type runnable interface {
	Run(ctx context.Context)
	Health() (running bool, ticks int64, lastTick time.Time)
}

// Supervisor starts every registered worker in its own goroutine and
// restarts one if its Run method returns unexpectedly (it shouldn't,
// since both workers catch their own panics, but a loop exiting without
// ctx being cancelled is still treated as a crash).
//
// Grounded conceptually on the teacher's temporalworker/runner.go
// retry-with-backoff-on-start idiom: a worker that exits early is
// restarted after a short backoff rather than left dead, and the
// supervisor's own Stop always wins over a pending restart.
type Supervisor struct {
	log     *logger.Logger
	workers map[string]runnable

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSupervisor(baseLog *logger.Logger) *Supervisor {
	return &Supervisor{
		log:     baseLog.With("component", "worker.Supervisor"),
		workers: make(map[string]runnable),
	}
}

// Register adds a worker under name. Call before StartAll.
func (s *Supervisor) Register(name string, w runnable) {
	s.workers[name] = w
}

// StartAll launches every registered worker. It returns immediately; the
// workers run until StopAll is called or ctx is cancelled.
func (s *Supervisor) StartAll(ctx context.Context) {
	s.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	for name, w := range s.workers {
		s.wg.Add(1)
		go s.superviseOne(ctx, name, w)
	}
	s.log.Info("supervisor started all workers", "count", len(s.workers))
}

// superviseOne runs w.Run repeatedly, backing off between restarts, until
// ctx is done.
func (s *Supervisor) superviseOne(ctx context.Context, name string, w runnable) {
	defer s.wg.Done()

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		started := time.Now()
		s.runOnce(ctx, name, w)

		if ctx.Err() != nil {
			return
		}

		// Run() returned without ctx being cancelled: treat as a crash
		// and restart after a backoff, growing it only when crashes
		// happen in quick succession.
		if time.Since(started) < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		} else {
			backoff = time.Second
		}

		s.log.Error("worker exited unexpectedly, restarting", "worker", name, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context, name string, w runnable) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("worker panicked, supervisor recovering", "worker", name, "panic", r)
		}
	}()
	w.Run(ctx)
}

// StopAll cancels every worker's context and waits (bounded by grace)
// for their loops to return.
func (s *Supervisor) StopAll(grace time.Duration) {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("supervisor stopped all workers cleanly")
	case <-time.After(grace):
		s.log.Warn("supervisor grace period elapsed before all workers stopped")
	}
}

// Health reports per-worker liveness for the admin surface (C14).
func (s *Supervisor) Health() map[string]WorkerHealth {
	out := make(map[string]WorkerHealth, len(s.workers))
	for name, w := range s.workers {
		running, ticks, lastTick := w.Health()
		out[name] = WorkerHealth{Running: running, Ticks: ticks, LastTick: lastTick}
	}
	return out
}

// WorkerHealth is the admin-facing snapshot of one worker's state.
type WorkerHealth struct {
	Running  bool      `json:"running"`
	Ticks    int64     `json:"ticks"`
	LastTick time.Time `json:"last_tick"`
}
