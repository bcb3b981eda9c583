package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OutboxEventType distinguishes the kinds of durable intent the outbox
// carries. Only job_sync is dispatched by this implementation's worker;
// the others are recognized by the schema for forward compatibility with
// the source system's broader event catalog.
type OutboxEventType string

const (
	OutboxEventTypeJobSync          OutboxEventType = "job_sync"
	OutboxEventTypeJobStatusUpdate  OutboxEventType = "job_status_update"
	OutboxEventTypeCompanySync      OutboxEventType = "company_sync"
	OutboxEventTypeProviderSync     OutboxEventType = "provider_sync"
)

// OutboxEventStatus is an event's position in the claim/complete/fail
// life cycle. An event is never observed in two of these at once.
type OutboxEventStatus string

const (
	OutboxEventStatusPending    OutboxEventStatus = "pending"
	OutboxEventStatusProcessing OutboxEventStatus = "processing"
	OutboxEventStatusCompleted  OutboxEventStatus = "completed"
	OutboxEventStatusFailed     OutboxEventStatus = "failed"
)

// OutboxEvent is a durable record that an action should be performed. It
// is not owned by a domain aggregate; aggregate_id is a back-reference
// (for job_sync, the JobRouting id).
type OutboxEvent struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	EventType    OutboxEventType   `gorm:"column:event_type;not null"`
	AggregateID  string            `gorm:"column:aggregate_id;not null;index"`
	EventData    datatypes.JSON    `gorm:"column:event_data"`
	Status       OutboxEventStatus `gorm:"not null;default:pending;index:idx_outbox_status_created"`
	RetryCount   int               `gorm:"column:retry_count;not null;default:0"`
	MaxRetries   int               `gorm:"column:max_retries;not null;default:3"`
	CreatedAt    time.Time         `gorm:"default:now();index:idx_outbox_status_created"`
	ProcessedAt  *time.Time        `gorm:"column:processed_at"`
	ErrorMessage *string           `gorm:"column:error_message"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// RetryEligible reports whether a failed event is eligible for reset to
// pending: retry_count below max_retries, and the exponential backoff
// window (base 5min * 3^retry_count) measured from processed_at has
// elapsed.
func (e *OutboxEvent) RetryEligible() bool {
	if e.Status != OutboxEventStatusFailed {
		return false
	}
	if e.RetryCount >= e.MaxRetries {
		return false
	}
	if e.ProcessedAt == nil {
		return true
	}
	base := 5 * time.Minute
	backoff := base
	for i := 0; i < e.RetryCount; i++ {
		backoff *= 3
	}
	return time.Since(*e.ProcessedAt) >= backoff
}
