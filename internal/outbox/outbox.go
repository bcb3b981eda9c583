// Package outbox is the transactional outbox service (C5): a thin
// convenience layer over repos.OutboxEventRepo plus the bounded
// dedup cache the outbox worker uses to avoid redundant re-enqueues
// (SPEC_FULL.md §4.9, §9).
package outbox

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/repos"
)

// Service wraps an OutboxEventRepo with the create_event convenience
// (§4.3) use cases call inside their own transaction.
type Service struct {
	repo repos.OutboxEventRepo
}

func NewService(repo repos.OutboxEventRepo) *Service {
	return &Service{repo: repo}
}

// CreateEvent marshals data to JSON and inserts a pending event in the
// ambient transaction carried by dbc.
func (s *Service) CreateEvent(dbc dbctx.Context, eventType domain.OutboxEventType, aggregateID string, data map[string]interface{}, maxRetries int) (*domain.OutboxEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	e := &domain.OutboxEvent{
		EventType:   eventType,
		AggregateID: aggregateID,
		EventData:   raw,
		Status:      domain.OutboxEventStatusPending,
		MaxRetries:  maxRetries,
	}
	return s.repo.Create(dbc, e)
}

// DedupCache is a bounded TTL cache of recently-enqueued routing ids,
// grounded on SPEC_FULL.md §9's "recently enqueued routing_ids" note:
// not required for correctness (the claim pattern alone suffices), but
// reduces redundant sync-task dispatch when the outbox worker observes
// the same routing via both a fresh outbox event and the stale-pending
// backup scan within the cache's TTL.
type DedupCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]time.Time
}

func NewDedupCache(ttl time.Duration) *DedupCache {
	return &DedupCache{ttl: ttl, entries: make(map[string]time.Time)}
}

// SeenRecently reports whether key was recorded within the TTL, and
// records it (refreshing the TTL) if not already present and fresh.
func (c *DedupCache) SeenRecently(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if expiry, ok := c.entries[key]; ok && now.Before(expiry) {
		return true
	}
	c.entries[key] = now.Add(c.ttl)
	c.evictExpiredLocked(now)
	return false
}

func (c *DedupCache) evictExpiredLocked(now time.Time) {
	for k, expiry := range c.entries {
		if now.After(expiry) {
			delete(c.entries, k)
		}
	}
}
