// Package retry wraps a fallible operation with bounded retries,
// exponential backoff with jitter, and a per-key circuit breaker backed
// by sony/gobreaker.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/fieldroute/jobsync/internal/pkg/logger"
)

// Options configures one call to Execute.
type Options struct {
	MaxRetries   int           // default 3
	BaseDelay    time.Duration // default 1s
	OperationKey string        // default "default"
}

// ErrCircuitOpen is returned when the circuit for an operation key is
// open and the cool-down has not elapsed.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Executor runs operations through per-key gobreaker circuit breakers.
// Grounded on original_source's RetryHandler (execute_with_retry,
// _calculate_delay) and the teacher's internal/pkg/httpx.go jitter helper
// and internal/jobs/orchestrator/engine.go backoff computation.
type Executor struct {
	log *logger.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewExecutor(baseLog *logger.Logger) *Executor {
	return &Executor{
		log:      baseLog.With("component", "retry.Executor"),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (e *Executor) breakerFor(key string) *gobreaker.CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.breakers[key]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.log.Info("circuit breaker state change", "operation_key", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[key] = b
	return b
}

// Retryable is implemented by errors that know whether they are worth
// retrying (see internal/pkg/errors).
type Retryable interface {
	Retryable() bool
}

// calculateDelay implements §4.5: base * 2^attempt, +-25% jitter, capped
// at 60s.
func calculateDelay(base time.Duration, attempt int) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt))
	jitter := (rand.Float64()*2 - 1) * 0.25
	d = d * (1 + jitter)
	capped := 60 * time.Second
	out := time.Duration(d)
	if out > capped {
		return capped
	}
	if out < 0 {
		return 0
	}
	return out
}

// Execute runs op, retrying on failure per opts, gated by the circuit
// breaker for opts.OperationKey. It never retries past opts.MaxRetries
// and never runs op while the circuit is open.
func (e *Executor) Execute(ctx context.Context, opts Options, op func(ctx context.Context) error) error {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.OperationKey == "" {
		opts.OperationKey = "default"
	}
	breaker := e.breakerFor(opts.OperationKey)

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, op(ctx)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			e.log.Warn("circuit open, failing fast", "operation_key", opts.OperationKey)
			return err
		}

		if r, ok := err.(Retryable); ok && !r.Retryable() {
			return err
		}

		if attempt == opts.MaxRetries {
			break
		}

		delay := calculateDelay(opts.BaseDelay, attempt)
		e.log.Warn("operation failed, backing off before retry",
			"operation_key", opts.OperationKey, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("operation %q exhausted %d retries: %w", opts.OperationKey, opts.MaxRetries, lastErr)
}

// CircuitState reports the current state of the named operation's
// breaker, for the admin/health surface.
func (e *Executor) CircuitState(operationKey string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.breakers[operationKey]
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return b.State().String()
}
