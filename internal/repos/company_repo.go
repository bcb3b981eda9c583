package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
)

// CompanyRepo is typed, transaction-scoped persistence for companies and
// their skills.
type CompanyRepo interface {
	Create(dbc dbctx.Context, c *domain.Company) (*domain.Company, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Company, error)
	ListActiveWithSkills(dbc dbctx.Context) ([]*domain.Company, error)
}

type companyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompanyRepo(db *gorm.DB, baseLog *logger.Logger) CompanyRepo {
	return &companyRepo{db: db, log: baseLog.With("repo", "CompanyRepo")}
}

func (r *companyRepo) gormDB(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *companyRepo) Create(dbc dbctx.Context, c *domain.Company) (*domain.Company, error) {
	if err := r.gormDB(dbc).WithContext(dbc.Ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (r *companyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Company, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row domain.Company
	err := r.gormDB(dbc).WithContext(dbc.Ctx).
		Preload("Skills").
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

// ListActiveWithSkills loads every active company along with its skills,
// the candidate pool the matching engine scores against.
func (r *companyRepo) ListActiveWithSkills(dbc dbctx.Context) ([]*domain.Company, error) {
	var out []*domain.Company
	err := r.gormDB(dbc).WithContext(dbc.Ctx).
		Preload("Skills").
		Where("is_active = ?", true).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
