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

func TestCompanyRepo_GetByID_PreloadsSkills(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewCompanyRepo(db, log)

	company := testutil.SeedCompany(t, db, domain.ProviderTypeServiceTitan, map[string]domain.SkillLevel{
		"plumbing": domain.SkillLevelExpert,
		"hvac":     domain.SkillLevelBasic,
	})

	dbc := dbctx.Background(db)
	reloaded, err := repo.GetByID(dbc, company.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	require.Len(t, reloaded.Skills, 2)
}

func TestCompanyRepo_GetByID_ReturnsNilForUnknownID(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewCompanyRepo(db, log)

	got, err := repo.GetByID(dbctx.Background(db), uuid.New())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCompanyRepo_ListActiveWithSkills_ExcludesInactive(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewCompanyRepo(db, log)

	active := testutil.SeedCompany(t, db, domain.ProviderTypeHousecallPro, map[string]domain.SkillLevel{"electrical": domain.SkillLevelExpert})
	inactive := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	require.NoError(t, db.Model(&domain.Company{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	out, err := repo.ListActiveWithSkills(dbctx.Background(db))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, active.ID, out[0].ID)
	require.Len(t, out[0].Skills, 1)
}
