package repos_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/repos"
	"github.com/fieldroute/jobsync/internal/repos/testutil"
)

func TestJobRepo_CreateAndGetByID(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewJobRepo(db, log)

	company := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, company.ID)

	job := &domain.Job{
		Summary:               "clogged drain",
		Street:                "1 Oak Ave",
		City:                  "Springfield",
		State:                 "IL",
		ZipCode:               "62704",
		HomeownerName:         "Jane Homeowner",
		HomeownerPhone:        "555-0100",
		CreatedByCompanyID:    company.ID,
		CreatedByTechnicianID: tech.ID,
		Status:                domain.JobStatusPending,
	}
	dbc := dbctx.Background(db)
	created, err := repo.Create(dbc, job)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	reloaded, err := repo.GetByID(dbc, created.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	require.Equal(t, "clogged drain", reloaded.Summary)
}

func TestJobRepo_GetByID_ReturnsNilForUnknownID(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewJobRepo(db, log)

	got, err := repo.GetByID(dbctx.Background(db), uuid.New())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestJobRepo_List_OrdersByCreatedAtDescendingAndPaginates(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewJobRepo(db, log)

	company := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, company.ID)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		j := testutil.SeedJob(t, db, company.ID, tech.ID)
		ids = append(ids, j.ID)
		time.Sleep(time.Millisecond)
	}

	dbc := dbctx.Background(db)
	out, err := repo.List(dbc, 2, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, ids[2], out[0].ID, "most recently created job first")
	require.Equal(t, ids[1], out[1].ID)

	page2, err := repo.List(dbc, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.Equal(t, ids[0], page2[0].ID)
}

func TestJobRepo_MarkCompleted(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewJobRepo(db, log)

	company := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, company.ID)
	job := testutil.SeedJob(t, db, company.ID, tech.ID)

	dbc := dbctx.Background(db)
	completedAt := time.Now().UTC()
	require.NoError(t, repo.MarkCompleted(dbc, job.ID, completedAt))

	reloaded, err := repo.GetByID(dbc, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)
}
