package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldroute/jobsync/internal/pkg/logger"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	log, err := logger.New("development")
	require.NoError(t, err)
	return NewExecutor(log)
}

type nonRetryableErr struct{}

func (nonRetryableErr) Error() string   { return "permanent" }
func (nonRetryableErr) Retryable() bool { return false }

func TestExecute_SucceedsWithoutRetry(t *testing.T) {
	e := newTestExecutor(t)
	calls := 0
	err := e.Execute(context.Background(), Options{OperationKey: "t1"}, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestExecute_StopsAtMaxRetries(t *testing.T) {
	e := newTestExecutor(t)
	calls := 0
	err := e.Execute(context.Background(), Options{OperationKey: "t2", MaxRetries: 3, BaseDelay: 1}, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	require.Error(t, err)
	require.Equal(t, 4, calls) // initial attempt + 3 retries, never a 5th
}

func TestExecute_NonRetryableFailsFast(t *testing.T) {
	e := newTestExecutor(t)
	calls := 0
	err := e.Execute(context.Background(), Options{OperationKey: "t3", MaxRetries: 3, BaseDelay: 1}, func(ctx context.Context) error {
		calls++
		return nonRetryableErr{}
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestExecute_CircuitOpensAfterFiveConsecutiveFailures(t *testing.T) {
	e := newTestExecutor(t)
	// MaxRetries=0 falls back to the default of 3, so the first call alone
	// records four consecutive breaker failures and the second call's first
	// failure trips the breaker; the remaining calls fail fast while open.
	for i := 0; i < 5; i++ {
		_ = e.Execute(context.Background(), Options{OperationKey: "t4", MaxRetries: 0, BaseDelay: 1}, func(ctx context.Context) error {
			return errors.New("fail")
		})
	}
	require.Equal(t, "open", e.CircuitState("t4"))

	calls := 0
	err := e.Execute(context.Background(), Options{OperationKey: "t4", MaxRetries: 0, BaseDelay: 1}, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	require.Equal(t, 0, calls, "circuit open must fail fast without invoking op")
}
