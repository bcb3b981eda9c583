package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
)

// OutboxEventRepo is typed, transaction-scoped persistence for the
// append-only outbox log, including its claim/complete/fail/retry
// transitions (SPEC_FULL.md §4.3).
type OutboxEventRepo interface {
	Create(dbc dbctx.Context, e *domain.OutboxEvent) (*domain.OutboxEvent, error)

	// ClaimEvent atomically transitions id from pending to processing.
	// This is its own small transaction per §5 on the repository's base
	// connection, independent of any caller-held ambient transaction:
	// dbc.Tx is ignored and only dbc.Ctx is used.
	ClaimEvent(dbc dbctx.Context, id uuid.UUID) (*domain.OutboxEvent, error)

	MarkCompleted(dbc dbctx.Context, id uuid.UUID) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, errMsg string) error

	// ResetForRetry transitions id from failed to pending iff it is
	// currently retry-eligible per domain.OutboxEvent.RetryEligible.
	ResetForRetry(dbc dbctx.Context, id uuid.UUID) (bool, error)

	PendingEvents(dbc dbctx.Context, eventType string, limit int) ([]*domain.OutboxEvent, error)
	FailedEventsForRetry(dbc dbctx.Context, limit int) ([]*domain.OutboxEvent, error)
	CleanupCompleted(dbc dbctx.Context, olderThanDays int) (int64, error)
}

type outboxEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutboxEventRepo(db *gorm.DB, baseLog *logger.Logger) OutboxEventRepo {
	return &outboxEventRepo{db: db, log: baseLog.With("repo", "OutboxEventRepo")}
}

func (r *outboxEventRepo) gormDB(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *outboxEventRepo) Create(dbc dbctx.Context, e *domain.OutboxEvent) (*domain.OutboxEvent, error) {
	if e.MaxRetries == 0 {
		e.MaxRetries = 3
	}
	if e.Status == "" {
		e.Status = domain.OutboxEventStatusPending
	}
	if err := r.gormDB(dbc).WithContext(dbc.Ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

func (r *outboxEventRepo) ClaimEvent(dbc dbctx.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var claimed domain.OutboxEvent
	err := r.db.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var row domain.OutboxEvent
		qErr := txx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("id = ?", id).
			Limit(1).
			Find(&row).Error
		if qErr != nil {
			return qErr
		}
		if row.ID == uuid.Nil || row.Status != domain.OutboxEventStatusPending {
			return gorm.ErrRecordNotFound
		}
		res := txx.Model(&domain.OutboxEvent{}).
			Where("id = ? AND status = ?", row.ID, domain.OutboxEventStatusPending).
			Update("status", domain.OutboxEventStatusProcessing)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return txx.Where("id = ?", row.ID).Limit(1).Find(&claimed).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claimed, nil
}

func (r *outboxEventRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.gormDB(dbc).WithContext(dbc.Ctx).
		Model(&domain.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       domain.OutboxEventStatusCompleted,
			"processed_at": now,
		}).Error
}

func (r *outboxEventRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, errMsg string) error {
	now := time.Now().UTC()
	return r.gormDB(dbc).WithContext(dbc.Ctx).
		Model(&domain.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        domain.OutboxEventStatusFailed,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"processed_at":  now,
			"error_message": errMsg,
		}).Error
}

func (r *outboxEventRepo) ResetForRetry(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	var row domain.OutboxEvent
	if err := r.gormDB(dbc).WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return false, err
	}
	if row.ID == uuid.Nil || !row.RetryEligible() {
		return false, nil
	}
	res := r.gormDB(dbc).WithContext(dbc.Ctx).
		Model(&domain.OutboxEvent{}).
		Where("id = ? AND status = ?", id, domain.OutboxEventStatusFailed).
		Update("status", domain.OutboxEventStatusPending)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *outboxEventRepo) PendingEvents(dbc dbctx.Context, eventType string, limit int) ([]*domain.OutboxEvent, error) {
	q := r.gormDB(dbc).WithContext(dbc.Ctx).
		Where("status = ?", domain.OutboxEventStatusPending).
		Order("created_at ASC")
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*domain.OutboxEvent
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *outboxEventRepo) FailedEventsForRetry(dbc dbctx.Context, limit int) ([]*domain.OutboxEvent, error) {
	q := r.gormDB(dbc).WithContext(dbc.Ctx).
		Where("status = ? AND retry_count < max_retries", domain.OutboxEventStatusFailed).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var candidates []*domain.OutboxEvent
	if err := q.Find(&candidates).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.OutboxEvent, 0, len(candidates))
	for _, c := range candidates {
		if c.RetryEligible() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *outboxEventRepo) CleanupCompleted(dbc dbctx.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	res := r.gormDB(dbc).WithContext(dbc.Ctx).
		Where("status = ? AND processed_at < ?", domain.OutboxEventStatusCompleted, cutoff).
		Delete(&domain.OutboxEvent{})
	return res.RowsAffected, res.Error
}
