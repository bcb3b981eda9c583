package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryLimiter_AllowsUpToMax(t *testing.T) {
	l := NewInMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow(ctx, "sync_job", "company-1", 3, time.Minute))
	}
	require.False(t, l.Allow(ctx, "sync_job", "company-1", 3, time.Minute))
}

func TestInMemoryLimiter_SeparateKeysIndependent(t *testing.T) {
	l := NewInMemoryLimiter()
	ctx := context.Background()

	require.True(t, l.Allow(ctx, "sync_job", "company-1", 1, time.Minute))
	require.False(t, l.Allow(ctx, "sync_job", "company-1", 1, time.Minute))
	require.True(t, l.Allow(ctx, "sync_job", "company-2", 1, time.Minute))
}
