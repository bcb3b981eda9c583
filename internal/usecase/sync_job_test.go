package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/provider"
	"github.com/fieldroute/jobsync/internal/repos"
	"github.com/fieldroute/jobsync/internal/repos/testutil"
	"github.com/fieldroute/jobsync/internal/usecase"
)

// fakeLimiter lets a test dictate Allow's outcome without a real Redis
// backing store.
type fakeLimiter struct{ allow bool }

func (f *fakeLimiter) Allow(ctx context.Context, operation, principal string, max int, window time.Duration) bool {
	return f.allow
}

func newSyncJob(t *testing.T, limiter *fakeLimiter) (*usecase.SyncJob, *gorm.DB, *logger.Logger) {
	t.Helper()
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)

	jobs := repos.NewJobRepo(db, log)
	companies := repos.NewCompanyRepo(db, log)
	routings := repos.NewJobRoutingRepo(db, log)
	registry := provider.NewRegistry(5*time.Second, nil, log)

	return usecase.NewSyncJob(db, log, jobs, companies, routings, registry, limiter, 3, 60), db, log
}

func TestSyncJob_Execute_UnknownRoutingReturnsFalseNoError(t *testing.T) {
	sj, _, _ := newSyncJob(t, &fakeLimiter{allow: true})

	ok, err := sj.Execute(context.Background(), uuid.New())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSyncJob_Execute_AlreadySyncedReturnsTrueWithoutProviderCall(t *testing.T) {
	sj, db, _ := newSyncJob(t, &fakeLimiter{allow: true})

	company := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, company.ID)
	job := testutil.SeedJob(t, db, company.ID, tech.ID)
	routing := testutil.SeedJobRouting(t, db, job.ID, company.ID)
	require.NoError(t, db.Model(&domain.JobRouting{}).Where("id = ?", routing.ID).
		Update("sync_status", domain.SyncStatusSynced).Error)

	ok, err := sj.Execute(context.Background(), routing.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSyncJob_Execute_ExhaustedRetriesIsNotSyncable(t *testing.T) {
	sj, db, _ := newSyncJob(t, &fakeLimiter{allow: true})

	company := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, company.ID)
	job := testutil.SeedJob(t, db, company.ID, tech.ID)
	routing := testutil.SeedJobRouting(t, db, job.ID, company.ID)
	require.NoError(t, db.Model(&domain.JobRouting{}).Where("id = ?", routing.ID).
		Updates(map[string]interface{}{"sync_status": domain.SyncStatusFailed, "retry_count": 3}).Error)

	ok, err := sj.Execute(context.Background(), routing.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSyncJob_Execute_RateLimitedMarksRoutingFailedWithBackoff(t *testing.T) {
	sj, db, _ := newSyncJob(t, &fakeLimiter{allow: false})

	company := testutil.SeedCompany(t, db, domain.ProviderTypeMock, nil)
	tech := testutil.SeedTechnician(t, db, company.ID)
	job := testutil.SeedJob(t, db, company.ID, tech.ID)
	routing := testutil.SeedJobRouting(t, db, job.ID, company.ID)

	ok, err := sj.Execute(context.Background(), routing.ID)
	require.NoError(t, err)
	require.False(t, ok)

	reloaded := &domain.JobRouting{}
	require.NoError(t, db.Where("id = ?", routing.ID).First(reloaded).Error)
	require.Equal(t, domain.SyncStatusFailed, reloaded.SyncStatus)
	require.Equal(t, 1, reloaded.RetryCount)
	require.NotNil(t, reloaded.NextRetryAt, "retries remain, so a next_retry_at must be scheduled")
	require.NotNil(t, reloaded.ErrorMessage)
}

func TestSyncJob_Execute_UnconfiguredProviderIsTerminallyFailed(t *testing.T) {
	sj, db, _ := newSyncJob(t, &fakeLimiter{allow: true})

	// ServiceTitan's ValidateConfig requires client_id/client_secret/
	// tenant_id; an empty provider_config fails it without any I/O.
	company := testutil.SeedCompany(t, db, domain.ProviderTypeServiceTitan, nil)
	tech := testutil.SeedTechnician(t, db, company.ID)
	job := testutil.SeedJob(t, db, company.ID, tech.ID)
	routing := testutil.SeedJobRouting(t, db, job.ID, company.ID)

	ok, err := sj.Execute(context.Background(), routing.ID)
	require.NoError(t, err)
	require.False(t, ok)

	reloaded := &domain.JobRouting{}
	require.NoError(t, db.Where("id = ?", routing.ID).First(reloaded).Error)
	require.Equal(t, domain.SyncStatusFailed, reloaded.SyncStatus)
	require.Equal(t, 3, reloaded.RetryCount, "terminal failure stamps retry_count at the max")
	require.Nil(t, reloaded.NextRetryAt, "terminal failure schedules no further retry")
}
