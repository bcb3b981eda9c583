package repos_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/repos"
	"github.com/fieldroute/jobsync/internal/repos/testutil"
)

func TestTechnicianRepo_GetByID(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewTechnicianRepo(db, log)

	company := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, company.ID)

	got, err := repo.GetByID(dbctx.Background(db), tech.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, tech.ID, got.ID)
	require.Equal(t, company.ID, got.CompanyID)
}

func TestTechnicianRepo_GetByID_ReturnsNilForUnknownID(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewTechnicianRepo(db, log)

	got, err := repo.GetByID(dbctx.Background(db), uuid.New())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestTechnicianRepo_GetByID_NilUUIDReturnsNilWithoutQuery(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewTechnicianRepo(db, log)

	got, err := repo.GetByID(dbctx.Background(db), uuid.Nil)
	require.NoError(t, err)
	require.Nil(t, got)
}
