package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
)

type JobRepo interface {
	Create(dbc dbctx.Context, j *domain.Job) (*domain.Job, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Job, error)
	List(dbc dbctx.Context, limit, offset int) ([]*domain.Job, error)
	MarkCompleted(dbc dbctx.Context, id uuid.UUID, completedAt time.Time) error
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

func (r *jobRepo) gormDB(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *jobRepo) Create(dbc dbctx.Context, j *domain.Job) (*domain.Job, error) {
	if err := r.gormDB(dbc).WithContext(dbc.Ctx).Create(j).Error; err != nil {
		return nil, err
	}
	return j, nil
}

func (r *jobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Job, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row domain.Job
	err := r.gormDB(dbc).WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *jobRepo) List(dbc dbctx.Context, limit, offset int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*domain.Job
	err := r.gormDB(dbc).WithContext(dbc.Ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID, completedAt time.Time) error {
	return r.gormDB(dbc).WithContext(dbc.Ctx).
		Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       domain.JobStatusCompleted,
			"completed_at": completedAt,
			"updated_at":   time.Now().UTC(),
		}).Error
}
