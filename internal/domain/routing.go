package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// SyncStatus is a JobRouting's position in the sync state machine
// (see the sync-job use case).
type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusProcessing SyncStatus = "processing"
	SyncStatusSynced     SyncStatus = "synced"
	SyncStatusFailed     SyncStatus = "failed"
	SyncStatusCompleted  SyncStatus = "completed"
)

// StuckProcessingThreshold is how long a routing may sit in processing
// before it is presumed to have lost its owner and is reclaimed.
const StuckProcessingThreshold = 10 * time.Minute

// JobRouting is a declared intention to send a Job to one specific
// receiving company, with its own sync state. Unique per
// (job_id, company_id_received).
type JobRouting struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	JobID             uuid.UUID  `gorm:"column:job_id;type:uuid;not null;index:idx_routing_unique,unique,priority:1"`
	CompanyIDReceived uuid.UUID  `gorm:"column:company_id_received;type:uuid;not null;index:idx_routing_unique,unique,priority:2"`
	ExternalID        *string    `gorm:"column:external_id;uniqueIndex"`
	SyncStatus        SyncStatus `gorm:"column:sync_status;not null;default:pending;index:idx_routing_status_company"`
	RetryCount        int        `gorm:"column:retry_count;not null;default:0"`
	TotalSyncAttempts int        `gorm:"column:total_sync_attempts;not null;default:0"`
	NextRetryAt       *time.Time `gorm:"column:next_retry_at;index:idx_routing_status_retry"`
	LastSyncedAt      *time.Time `gorm:"column:last_synced_at;index:idx_routing_lastsync_status"`
	ClaimedAt         *time.Time `gorm:"column:claimed_at"`
	ErrorMessage      *string    `gorm:"column:error_message"`
	Revenue           *float64   `gorm:"column:revenue"`
	CreatedAt         time.Time  `gorm:"default:now()"`
	UpdatedAt         time.Time  `gorm:"default:now()"`
}

func (JobRouting) TableName() string { return "job_routings" }

// CanSync reports whether the sync-job use case should attempt to move
// this routing forward: false for a terminal state, for a failed routing
// with no retries remaining, or for a processing routing that isn't yet
// stuck.
func (r *JobRouting) CanSync(maxRetryAttempts int) bool {
	switch r.SyncStatus {
	case SyncStatusCompleted:
		return false
	case SyncStatusSynced:
		return false
	case SyncStatusFailed:
		return r.RetryCount < maxRetryAttempts
	case SyncStatusProcessing:
		return r.ClaimedAt != nil && time.Since(*r.ClaimedAt) > StuckProcessingThreshold
	case SyncStatusPending:
		return true
	default:
		return false
	}
}

// AlreadyDone reports whether the routing is already synced or completed,
// the "return true" branch of the sync-job algorithm's step 2.
func (r *JobRouting) AlreadyDone() bool {
	return r.SyncStatus == SyncStatusSynced || r.SyncStatus == SyncStatusCompleted
}

// NextRetryDelay computes 5m * 2^(retryCount-1) capped at 20m, the
// per-attempt backoff §4.7 prescribes for a failed sync.
func NextRetryDelay(retryCount int) time.Duration {
	base := 5 * time.Minute
	if retryCount < 1 {
		retryCount = 1
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(retryCount-1)))
	cap := 20 * time.Minute
	if d > cap {
		return cap
	}
	return d
}

// ShouldPoll reports whether a synced routing is due for another poll:
// last_synced_at is unset, or older than syncIntervalMinutes.
func (r *JobRouting) ShouldPoll(syncIntervalMinutes int) bool {
	if r.SyncStatus != SyncStatusSynced {
		return false
	}
	if r.LastSyncedAt == nil {
		return true
	}
	return time.Since(*r.LastSyncedAt) >= time.Duration(syncIntervalMinutes)*time.Minute
}
