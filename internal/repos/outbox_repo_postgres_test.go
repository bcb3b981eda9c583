package repos_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/repos"
	"github.com/fieldroute/jobsync/internal/repos/testutil"
)

// TestOutboxEventRepo_ClaimEvent_IsExclusiveUnderConcurrency mirrors
// routing_repo_postgres_test.go's claim exclusivity coverage for
// ClaimEvent's own FOR UPDATE SKIP LOCKED clause.
func TestOutboxEventRepo_ClaimEvent_IsExclusiveUnderConcurrency(t *testing.T) {
	db := openPostgres(t)
	log := testutil.NewLogger(t)
	repo := repos.NewOutboxEventRepo(db, log)
	dbc := dbctx.Background(db)

	created, err := repo.Create(dbc, &domain.OutboxEvent{
		EventType:   domain.OutboxEventTypeJobSync,
		AggregateID: "routing-concurrent",
	})
	require.NoError(t, err)

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimEvent(dbc, created.ID)
			require.NoError(t, err)
			if claimed != nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes, "exactly one concurrent claim attempt must succeed")
}

func TestOutboxEventRepo_ClaimEvent_AlreadyProcessingIsNotReclaimed(t *testing.T) {
	db := openPostgres(t)
	log := testutil.NewLogger(t)
	repo := repos.NewOutboxEventRepo(db, log)
	dbc := dbctx.Background(db)

	created, err := repo.Create(dbc, &domain.OutboxEvent{
		EventType:   domain.OutboxEventTypeJobSync,
		AggregateID: "routing-again",
	})
	require.NoError(t, err)

	first, err := repo.ClaimEvent(dbc, created.ID)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := repo.ClaimEvent(dbc, created.ID)
	require.NoError(t, err)
	require.Nil(t, second)
}
