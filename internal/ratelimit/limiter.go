// Package ratelimit implements the fixed-window counter rate limiter
// described in SPEC_FULL.md §4.4: a counter per (operation, principal)
// key, reset every window, backed by Redis for shared deployments with
// fail-open behavior on a backing-store error.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldroute/jobsync/internal/pkg/logger"
)

// Limiter is the fixed-window rate limiter contract used by the HTTP
// middleware and by the use cases that guard outbound operations.
type Limiter interface {
	// Allow reports whether a call tagged (operation, principal) may
	// proceed, incrementing the window counter as a side effect. On a
	// backing-store error it fails open (returns true) and logs.
	Allow(ctx context.Context, operation, principal string, max int, window time.Duration) bool
}

// redisLimiter is the shared-deployment implementation: INCR the window
// key, set its expiry on first increment, compare against max.
// Grounded on the teacher's internal/clients/redis usage idiom
// (Addr/DB wiring, context-scoped calls) and original_source's
// infrastructure/external/rate_limiter.py fixed-window semantics.
type redisLimiter struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisLimiter(client *redis.Client, baseLog *logger.Logger) Limiter {
	return &redisLimiter{client: client, log: baseLog.With("component", "ratelimit.redisLimiter")}
}

func windowKey(operation, principal string, window time.Duration) string {
	bucket := time.Now().UTC().Unix() / int64(window.Seconds())
	return fmt.Sprintf("ratelimit:%s:%s:%d", operation, principal, bucket)
}

func (l *redisLimiter) Allow(ctx context.Context, operation, principal string, max int, window time.Duration) bool {
	key := windowKey(operation, principal, window)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.log.Warn("rate limiter backing store error, failing open", "operation", operation, "principal", principal, "error", err)
		return true
	}
	if count == 1 {
		// First increment in this window: set the expiry so the key
		// disappears once the window rolls, rather than growing forever.
		if err := l.client.Expire(ctx, key, window).Err(); err != nil {
			l.log.Warn("rate limiter failed to set window expiry", "key", key, "error", err)
		}
	}
	return count <= int64(max)
}

// inMemoryLimiter is the single-process fallback: a plain map guarded by
// a mutex, sufficient per §4.4 when there is no shared store.
type inMemoryLimiter struct {
	mu      sync.Mutex
	counts  map[string]int64
	buckets map[string]int64
}

func NewInMemoryLimiter() Limiter {
	return &inMemoryLimiter{
		counts:  make(map[string]int64),
		buckets: make(map[string]int64),
	}
}

func (l *inMemoryLimiter) Allow(ctx context.Context, operation, principal string, max int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := operation + ":" + principal
	bucket := time.Now().UTC().Unix() / int64(window.Seconds())
	if l.buckets[key] != bucket {
		l.buckets[key] = bucket
		l.counts[key] = 0
	}
	l.counts[key]++
	return l.counts[key] <= int64(max)
}
