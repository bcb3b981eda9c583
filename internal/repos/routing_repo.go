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

// JobRoutingRepo is typed, transaction-scoped persistence for routings,
// including the claim-pattern transitions the sync state machine needs.
type JobRoutingRepo interface {
	Create(dbc dbctx.Context, rows []*domain.JobRouting) ([]*domain.JobRouting, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.JobRouting, error)
	ListByJobID(dbc dbctx.Context, jobID uuid.UUID) ([]*domain.JobRouting, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	// ClaimForProcessing atomically transitions the routing identified by
	// id from pending (or stuck processing) to processing, stamping
	// claimed_at=now and incrementing total_sync_attempts. Returns
	// (nil, nil) if the row could not be claimed by this call (already
	// owned, terminal, or missing) so the caller can distinguish "lost
	// the race" from "actual error".
	ClaimForProcessing(dbc dbctx.Context, id uuid.UUID, maxRetryAttempts int) (*domain.JobRouting, error)

	// ReclaimStuck resets every routing stuck in processing past the
	// stuck threshold back to pending, returning how many rows it reset.
	ReclaimStuck(dbc dbctx.Context, threshold time.Duration) (int64, error)

	// ResetFailedForRetry transitions failed routings whose next_retry_at
	// has passed back to pending, returning how many rows it reset. This
	// is the periodic backup sweep described in SPEC_FULL.md §9.
	ResetFailedForRetry(dbc dbctx.Context, limit int) (int64, error)

	// ListSyncedForPolling returns up to limit routings in status=synced
	// whose last_synced_at is older than syncIntervalMinutes or null.
	ListSyncedForPolling(dbc dbctx.Context, syncIntervalMinutes, limit int) ([]*domain.JobRouting, error)

	// ListStalePending returns pending routings older than olderThan,
	// the backup scan described in SPEC_FULL.md §9
	// (sync_pending_jobs_interval_seconds).
	ListStalePending(dbc dbctx.Context, olderThan time.Duration, limit int) ([]*domain.JobRouting, error)
}

type jobRoutingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRoutingRepo(db *gorm.DB, baseLog *logger.Logger) JobRoutingRepo {
	return &jobRoutingRepo{db: db, log: baseLog.With("repo", "JobRoutingRepo")}
}

func (r *jobRoutingRepo) gormDB(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *jobRoutingRepo) Create(dbc dbctx.Context, rows []*domain.JobRouting) ([]*domain.JobRouting, error) {
	if len(rows) == 0 {
		return []*domain.JobRouting{}, nil
	}
	if err := r.gormDB(dbc).WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *jobRoutingRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.JobRouting, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row domain.JobRouting
	err := r.gormDB(dbc).WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *jobRoutingRepo) ListByJobID(dbc dbctx.Context, jobID uuid.UUID) ([]*domain.JobRouting, error) {
	var out []*domain.JobRouting
	err := r.gormDB(dbc).WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRoutingRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.gormDB(dbc).WithContext(dbc.Ctx).
		Model(&domain.JobRouting{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ClaimForProcessing is grounded on job_run.go's ClaimNextRunnable: a
// row-level lock followed by a conditional status-gated UPDATE, so only
// one caller ever wins the claim for a given routing (§5's exclusivity
// guarantee).
func (r *jobRoutingRepo) ClaimForProcessing(dbc dbctx.Context, id uuid.UUID, maxRetryAttempts int) (*domain.JobRouting, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	base := r.gormDB(dbc)
	var claimed domain.JobRouting

	err := base.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var row domain.JobRouting
		qErr := txx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("id = ?", id).
			Limit(1).
			Find(&row).Error
		if qErr != nil {
			return qErr
		}
		if row.ID == uuid.Nil {
			return gorm.ErrRecordNotFound
		}

		eligible := row.SyncStatus == domain.SyncStatusPending ||
			(row.SyncStatus == domain.SyncStatusFailed && row.RetryCount < maxRetryAttempts) ||
			(row.SyncStatus == domain.SyncStatusProcessing && row.ClaimedAt != nil && time.Since(*row.ClaimedAt) > domain.StuckProcessingThreshold)
		if !eligible {
			return gorm.ErrRecordNotFound
		}

		now := time.Now().UTC()
		res := txx.Model(&domain.JobRouting{}).
			Where("id = ? AND sync_status = ?", row.ID, row.SyncStatus).
			Updates(map[string]interface{}{
				"sync_status":         domain.SyncStatusProcessing,
				"claimed_at":          now,
				"total_sync_attempts": gorm.Expr("total_sync_attempts + 1"),
				"updated_at":          now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		reload := txx.Where("id = ?", row.ID).Limit(1).Find(&claimed)
		return reload.Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claimed, nil
}

func (r *jobRoutingRepo) ReclaimStuck(dbc dbctx.Context, threshold time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	res := r.gormDB(dbc).WithContext(dbc.Ctx).
		Model(&domain.JobRouting{}).
		Where("sync_status = ? AND claimed_at < ?", domain.SyncStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"sync_status": domain.SyncStatusPending,
			"claimed_at":  nil,
			"updated_at":  time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *jobRoutingRepo) ResetFailedForRetry(dbc dbctx.Context, limit int) (int64, error) {
	now := time.Now().UTC()
	sub := r.gormDB(dbc).WithContext(dbc.Ctx).
		Model(&domain.JobRouting{}).
		Select("id").
		Where("sync_status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", domain.SyncStatusFailed, now)
	if limit > 0 {
		sub = sub.Limit(limit)
	}
	res := r.gormDB(dbc).WithContext(dbc.Ctx).
		Model(&domain.JobRouting{}).
		Where("id IN (?)", sub).
		Updates(map[string]interface{}{
			"sync_status":   domain.SyncStatusPending,
			"next_retry_at": nil,
			"updated_at":    now,
		})
	return res.RowsAffected, res.Error
}

func (r *jobRoutingRepo) ListSyncedForPolling(dbc dbctx.Context, syncIntervalMinutes, limit int) ([]*domain.JobRouting, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(syncIntervalMinutes) * time.Minute)
	q := r.gormDB(dbc).WithContext(dbc.Ctx).
		Where("sync_status = ?", domain.SyncStatusSynced).
		Where("last_synced_at IS NULL OR last_synced_at <= ?", cutoff).
		Order("last_synced_at ASC NULLS FIRST")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*domain.JobRouting
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRoutingRepo) ListStalePending(dbc dbctx.Context, olderThan time.Duration, limit int) ([]*domain.JobRouting, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	q := r.gormDB(dbc).WithContext(dbc.Ctx).
		Where("sync_status = ? AND created_at <= ?", domain.SyncStatusPending, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*domain.JobRouting
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
