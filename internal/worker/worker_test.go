package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldroute/jobsync/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

type fakeWorker struct {
	runCalls int
	block    chan struct{}
}

func (f *fakeWorker) Run(ctx context.Context) {
	f.runCalls++
	<-ctx.Done()
}

func (f *fakeWorker) Health() (bool, int64, time.Time) {
	return f.runCalls > 0, int64(f.runCalls), time.Time{}
}

func TestSupervisor_StartAllRunsEveryWorker(t *testing.T) {
	s := NewSupervisor(testLogger(t))

	a := &fakeWorker{}
	b := &fakeWorker{}
	s.Register("a", a)
	s.Register("b", b)

	ctx, cancel := context.WithCancel(context.Background())
	s.StartAll(ctx)
	time.Sleep(20 * time.Millisecond)

	health := s.Health()
	require.Len(t, health, 2)
	require.True(t, health["a"].Running)
	require.True(t, health["b"].Running)

	cancel()
	s.StopAll(time.Second)
}

func TestSupervisor_StopAllIsIdempotentWithoutStart(t *testing.T) {
	s := NewSupervisor(testLogger(t))
	require.NotPanics(t, func() {
		s.StopAll(10 * time.Millisecond)
		s.StopAll(10 * time.Millisecond)
	})
}
