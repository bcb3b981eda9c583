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

// These tests exercise plain insert/update paths only. ClaimEvent's
// FOR UPDATE SKIP LOCKED exclusivity is covered separately by a
// Postgres-gated test (see outbox_repo_postgres_test.go) since sqlite
// doesn't support that clause.

func TestOutboxEventRepo_Create_DefaultsStatusAndMaxRetries(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewOutboxEventRepo(db, log)
	dbc := dbctx.Background(db)

	created, err := repo.Create(dbc, &domain.OutboxEvent{
		EventType:   domain.OutboxEventTypeJobSync,
		AggregateID: "routing-1",
		EventData:   []byte(`{"routing_id":"routing-1"}`),
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutboxEventStatusPending, created.Status)
	require.Equal(t, 3, created.MaxRetries)

	pending, err := repo.PendingEvents(dbc, "", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, created.ID, pending[0].ID)

	filtered, err := repo.PendingEvents(dbc, string(domain.OutboxEventTypeCompanySync), 10)
	require.NoError(t, err)
	require.Empty(t, filtered)
}

func TestOutboxEventRepo_MarkFailedThenResetForRetry(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewOutboxEventRepo(db, log)
	dbc := dbctx.Background(db)

	created, err := repo.Create(dbc, &domain.OutboxEvent{
		EventType:   domain.OutboxEventTypeJobSync,
		AggregateID: "routing-2",
		EventData:   []byte(`{"routing_id":"routing-2"}`),
		MaxRetries:  3,
	})
	require.NoError(t, err)

	require.NoError(t, repo.MarkFailed(dbc, created.ID, "provider timeout"))

	retryCandidates, err := repo.FailedEventsForRetry(dbc, 10)
	require.NoError(t, err)
	require.Empty(t, retryCandidates, "backoff window hasn't elapsed yet")

	// Not yet eligible: processed_at is "now", backoff window hasn't elapsed.
	reset, err := repo.ResetForRetry(dbc, created.ID)
	require.NoError(t, err)
	require.False(t, reset)

	// Simulate the backoff window having elapsed.
	longAgo := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(&domain.OutboxEvent{}).Where("id = ?", created.ID).
		Update("processed_at", longAgo).Error)

	retryCandidates, err = repo.FailedEventsForRetry(dbc, 10)
	require.NoError(t, err)
	require.Len(t, retryCandidates, 1)

	reset, err = repo.ResetForRetry(dbc, created.ID)
	require.NoError(t, err)
	require.True(t, reset)

	reloaded := &domain.OutboxEvent{}
	require.NoError(t, db.Where("id = ?", created.ID).First(reloaded).Error)
	require.Equal(t, domain.OutboxEventStatusPending, reloaded.Status)
}

func TestOutboxEventRepo_MarkCompleted(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewOutboxEventRepo(db, log)
	dbc := dbctx.Background(db)

	created, err := repo.Create(dbc, &domain.OutboxEvent{
		EventType:   domain.OutboxEventTypeJobSync,
		AggregateID: "routing-3",
	})
	require.NoError(t, err)

	require.NoError(t, repo.MarkCompleted(dbc, created.ID))

	pending, err := repo.PendingEvents(dbc, "", 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestOutboxEventRepo_CleanupCompleted_DeletesOnlyOldCompletedRows(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	repo := repos.NewOutboxEventRepo(db, log)
	dbc := dbctx.Background(db)

	old, err := repo.Create(dbc, &domain.OutboxEvent{EventType: domain.OutboxEventTypeJobSync, AggregateID: "a"})
	require.NoError(t, err)
	recent, err := repo.Create(dbc, &domain.OutboxEvent{EventType: domain.OutboxEventTypeJobSync, AggregateID: "b"})
	require.NoError(t, err)

	require.NoError(t, db.Model(&domain.OutboxEvent{}).Where("id = ?", old.ID).
		Updates(map[string]interface{}{"status": domain.OutboxEventStatusCompleted, "processed_at": time.Now().UTC().AddDate(0, 0, -30)}).Error)
	require.NoError(t, db.Model(&domain.OutboxEvent{}).Where("id = ?", recent.ID).
		Updates(map[string]interface{}{"status": domain.OutboxEventStatusCompleted, "processed_at": time.Now().UTC()}).Error)

	n, err := repo.CleanupCompleted(dbc, 7)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
