package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/outbox"
	pkgerrors "github.com/fieldroute/jobsync/internal/pkg/errors"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/repos"
	"github.com/fieldroute/jobsync/internal/repos/testutil"
	"github.com/fieldroute/jobsync/internal/usecase"
)

func newCreateJob(t *testing.T) (*usecase.CreateJob, *gorm.DB, *logger.Logger) {
	t.Helper()
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)

	companies := repos.NewCompanyRepo(db, log)
	techs := repos.NewTechnicianRepo(db, log)
	jobs := repos.NewJobRepo(db, log)
	routings := repos.NewJobRoutingRepo(db, log)
	outboxRepo := repos.NewOutboxEventRepo(db, log)
	outboxSvc := outbox.NewService(outboxRepo)

	return usecase.NewCreateJob(db, log, companies, techs, jobs, routings, outboxSvc), db, log
}

func TestCreateJob_Execute_RoutesToMatchingCompaniesAndEnqueuesOutbox(t *testing.T) {
	cj, db, _ := newCreateJob(t)

	requestingCompany := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, requestingCompany.ID)
	matchingCompany := testutil.SeedCompany(t, db, domain.ProviderTypeServiceTitan, map[string]domain.SkillLevel{
		"plumbing": domain.SkillLevelExpert,
	})

	result, err := cj.Execute(context.Background(), usecase.CreateJobRequest{
		Summary:               "leaking pipe",
		Street:                "1 Oak Ave",
		City:                  "Springfield",
		State:                 "IL",
		ZipCode:               "62704",
		HomeownerName:         "Jane Homeowner",
		HomeownerPhone:        "555-0100",
		CreatedByCompanyID:    requestingCompany.ID,
		CreatedByTechnicianID: tech.ID,
		RequiredSkills:        []string{"plumbing"},
		SkillLevels:           map[string]domain.SkillLevel{"plumbing": domain.SkillLevelIntermediate},
		Category:              "plumbing",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Job)
	require.Len(t, result.Routings, 1)
	require.Equal(t, matchingCompany.ID, result.Routings[0].CompanyIDReceived)
	require.Equal(t, domain.SyncStatusPending, result.Routings[0].SyncStatus)

	var outboxCount int64
	require.NoError(t, db.Model(&domain.OutboxEvent{}).Count(&outboxCount).Error)
	require.Equal(t, int64(1), outboxCount)
}

func TestCreateJob_Execute_NoMatchesReturnsValidationError(t *testing.T) {
	cj, db, _ := newCreateJob(t)

	requestingCompany := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, requestingCompany.ID)

	_, err := cj.Execute(context.Background(), usecase.CreateJobRequest{
		Summary:               "leaking pipe",
		Street:                "1 Oak Ave",
		City:                  "Springfield",
		State:                 "IL",
		ZipCode:               "62704",
		HomeownerName:         "Jane Homeowner",
		HomeownerPhone:        "555-0100",
		CreatedByCompanyID:    requestingCompany.ID,
		CreatedByTechnicianID: tech.ID,
		RequiredSkills:        []string{"plumbing"},
		SkillLevels:           map[string]domain.SkillLevel{"plumbing": domain.SkillLevelExpert},
		Category:              "plumbing",
	})
	require.Error(t, err)
	var verr *pkgerrors.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCreateJob_Execute_UnknownTechnicianIsValidationError(t *testing.T) {
	cj, db, _ := newCreateJob(t)

	requestingCompany := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)

	_, err := cj.Execute(context.Background(), usecase.CreateJobRequest{
		Summary:               "leaking pipe",
		Street:                "1 Oak Ave",
		City:                  "Springfield",
		State:                 "IL",
		ZipCode:               "62704",
		HomeownerName:         "Jane Homeowner",
		HomeownerPhone:        "555-0100",
		CreatedByCompanyID:    requestingCompany.ID,
		CreatedByTechnicianID: requestingCompany.ID, // not a technician id
		RequiredSkills:        nil,
		Category:              "plumbing",
	})
	require.Error(t, err)
	var verr *pkgerrors.ValidationError
	require.ErrorAs(t, err, &verr)
}
