package repos_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/repos"
	"github.com/fieldroute/jobsync/internal/repos/testutil"
)

// These tests exercise plain UPDATE/SELECT paths only (no FOR UPDATE
// locking clause), so the in-memory sqlite harness is sufficient.
// ClaimForProcessing's SKIP LOCKED exclusivity is covered separately by
// a Postgres-gated test (see routing_repo_postgres_test.go) since sqlite
// doesn't support that clause.

func TestJobRoutingRepo_ReclaimStuck_ResetsOldProcessingRows(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewJobRoutingRepo(db, log)

	company := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, company.ID)
	job := testutil.SeedJob(t, db, company.ID, tech.ID)
	routing := testutil.SeedJobRouting(t, db, job.ID, company.ID)

	stale := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(&domain.JobRouting{}).Where("id = ?", routing.ID).
		Updates(map[string]interface{}{"sync_status": domain.SyncStatusProcessing, "claimed_at": stale}).Error)

	dbc := dbctx.Background(db)
	n, err := repo.ReclaimStuck(dbc, 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	reloaded, err := repo.GetByID(dbc, routing.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SyncStatusPending, reloaded.SyncStatus)
	require.Nil(t, reloaded.ClaimedAt)
}

func TestJobRoutingRepo_ReclaimStuck_LeavesFreshProcessingRowsAlone(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewJobRoutingRepo(db, log)

	company := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, company.ID)
	job := testutil.SeedJob(t, db, company.ID, tech.ID)
	routing := testutil.SeedJobRouting(t, db, job.ID, company.ID)

	require.NoError(t, db.Model(&domain.JobRouting{}).Where("id = ?", routing.ID).
		Updates(map[string]interface{}{"sync_status": domain.SyncStatusProcessing, "claimed_at": time.Now().UTC()}).Error)

	dbc := dbctx.Background(db)
	n, err := repo.ReclaimStuck(dbc, 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestJobRoutingRepo_ListSyncedForPolling_OnlyReturnsDueRows(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewJobRoutingRepo(db, log)

	company := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	otherCompany := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, company.ID)
	job := testutil.SeedJob(t, db, company.ID, tech.ID)
	due := testutil.SeedJobRouting(t, db, job.ID, company.ID)
	notDue := testutil.SeedJobRouting(t, db, job.ID, otherCompany.ID)

	oldSync := time.Now().UTC().Add(-time.Hour)
	recentSync := time.Now().UTC()
	require.NoError(t, db.Model(&domain.JobRouting{}).Where("id = ?", due.ID).
		Updates(map[string]interface{}{"sync_status": domain.SyncStatusSynced, "last_synced_at": oldSync}).Error)
	require.NoError(t, db.Model(&domain.JobRouting{}).Where("id = ?", notDue.ID).
		Updates(map[string]interface{}{"sync_status": domain.SyncStatusSynced, "last_synced_at": recentSync}).Error)

	dbc := dbctx.Background(db)
	out, err := repo.ListSyncedForPolling(dbc, 30, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, due.ID, out[0].ID)
}

func TestJobRoutingRepo_ListStalePending_OnlyReturnsOldEnoughRows(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewJobRoutingRepo(db, log)

	company := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	otherCompany := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, company.ID)
	job := testutil.SeedJob(t, db, company.ID, tech.ID)
	stale := testutil.SeedJobRouting(t, db, job.ID, company.ID)
	fresh := testutil.SeedJobRouting(t, db, job.ID, otherCompany.ID)

	oldCreated := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(&domain.JobRouting{}).Where("id = ?", stale.ID).
		Update("created_at", oldCreated).Error)

	dbc := dbctx.Background(db)
	out, err := repo.ListStalePending(dbc, 10*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, stale.ID, out[0].ID)
	require.NotEqual(t, fresh.ID, out[0].ID)
}
