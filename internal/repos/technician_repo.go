package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
)

type TechnicianRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Technician, error)
}

type technicianRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTechnicianRepo(db *gorm.DB, baseLog *logger.Logger) TechnicianRepo {
	return &technicianRepo{db: db, log: baseLog.With("repo", "TechnicianRepo")}
}

func (r *technicianRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Technician, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row domain.Technician
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
