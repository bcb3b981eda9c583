package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fieldroute/jobsync/internal/domain"
)

// SeedCompany inserts an active company with the given skill/level pairs
// and returns the persisted row.
func SeedCompany(t *testing.T, db *gorm.DB, providerType domain.ProviderType, skills map[string]domain.SkillLevel) *domain.Company {
	t.Helper()
	c := &domain.Company{
		Name:         "test-company",
		ProviderType: providerType,
		IsActive:     true,
	}
	require.NoError(t, db.Create(c).Error)

	for name, level := range skills {
		skill := &domain.CompanySkill{CompanyID: c.ID, SkillName: name, SkillLevel: level}
		require.NoError(t, db.Create(skill).Error)
	}
	return c
}

// SeedTechnician inserts a technician belonging to companyID.
func SeedTechnician(t *testing.T, db *gorm.DB, companyID uuid.UUID) *domain.Technician {
	t.Helper()
	tech := &domain.Technician{Name: "test-tech", CompanyID: companyID}
	require.NoError(t, db.Create(tech).Error)
	return tech
}

// SeedJob inserts a minimal routable job created by (companyID, techID).
func SeedJob(t *testing.T, db *gorm.DB, companyID, techID uuid.UUID) *domain.Job {
	t.Helper()
	j := &domain.Job{
		Summary:               "leaking pipe under sink",
		Street:                "123 Main St",
		City:                  "Springfield",
		State:                 "IL",
		ZipCode:               "62704",
		HomeownerName:         "Jane Homeowner",
		HomeownerPhone:        "555-0100",
		CreatedByCompanyID:    companyID,
		CreatedByTechnicianID: techID,
		Status:                domain.JobStatusPending,
	}
	require.NoError(t, db.Create(j).Error)
	return j
}

// SeedJobRouting inserts a pending routing from jobID to companyID.
func SeedJobRouting(t *testing.T, db *gorm.DB, jobID, companyID uuid.UUID) *domain.JobRouting {
	t.Helper()
	r := &domain.JobRouting{
		JobID:             jobID,
		CompanyIDReceived: companyID,
		SyncStatus:        domain.SyncStatusPending,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}
