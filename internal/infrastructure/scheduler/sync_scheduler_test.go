package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
)

// fakeExecutor records sync calls and fails a configurable number of times
type fakeExecutor struct {
	mu        sync.Mutex
	calls     []MerchantSource
	failures  int
	failWith  error
	callCount int
}

func (e *fakeExecutor) SyncOrders(_ context.Context, merchantID uuid.UUID, source order.SourceSystem) (*integration.SyncRun, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callCount++
	e.calls = append(e.calls, MerchantSource{MerchantID: merchantID, Source: source})
	if e.failures > 0 {
		e.failures--
		if e.failWith != nil {
			return nil, e.failWith
		}
		return nil, errors.New("provider unavailable")
	}
	run := integration.NewSyncRun(merchantID, source, time.Now().Add(-time.Hour))
	run.CreatedCount = 1
	run.Finish(time.Now())
	return run, nil
}

func (e *fakeExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func testSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Workers:       2,
		QueueSize:     16,
		JobTimeout:    time.Second,
		RetryAttempts: 2,
		RetryDelay:    10 * time.Millisecond,
	}
}

func TestSyncScheduler_ProcessesSubmittedJob(t *testing.T) {
	executor := &fakeExecutor{}
	sched, err := NewSyncScheduler(testSchedulerConfig(), executor, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop(context.Background())

	merchantID := uuid.New()
	require.NoError(t, sched.ScheduleSync(merchantID, order.SourceZid))

	waitFor(t, time.Second, func() bool { return executor.count() == 1 })

	executor.mu.Lock()
	defer executor.mu.Unlock()
	assert.Equal(t, merchantID, executor.calls[0].MerchantID)
	assert.Equal(t, order.SourceZid, executor.calls[0].Source)
}

func TestSyncScheduler_RejectsSubmitWhenStopped(t *testing.T) {
	sched, err := NewSyncScheduler(testSchedulerConfig(), &fakeExecutor{}, zap.NewNop())
	require.NoError(t, err)

	err = sched.ScheduleSync(uuid.New(), order.SourceWooCommerce)
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestSyncScheduler_RetriesFailedJob(t *testing.T) {
	executor := &fakeExecutor{failures: 1}
	sched, err := NewSyncScheduler(testSchedulerConfig(), executor, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop(context.Background())

	require.NoError(t, sched.ScheduleSync(uuid.New(), order.SourceWooCommerce))

	// First attempt fails, retry succeeds
	waitFor(t, 2*time.Second, func() bool { return executor.count() == 2 })
}

func TestSyncScheduler_DropsUnconfiguredSource(t *testing.T) {
	executor := &fakeExecutor{failures: 10, failWith: integration.ErrSourceNotConfigured}
	sched, err := NewSyncScheduler(testSchedulerConfig(), executor, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop(context.Background())

	require.NoError(t, sched.ScheduleSync(uuid.New(), order.SourceCalendly))

	waitFor(t, time.Second, func() bool { return executor.count() == 1 })
	// Give a potential retry time to fire; it must not
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, executor.count())
}

func TestSyncScheduler_QueueFull(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.QueueSize = 1
	sched, err := NewSyncScheduler(cfg, &fakeExecutor{}, zap.NewNop())
	require.NoError(t, err)

	// Not started, so nothing drains the queue; mark running manually
	sched.isRunning = true
	require.NoError(t, sched.ScheduleSync(uuid.New(), order.SourceZid))
	err = sched.ScheduleSync(uuid.New(), order.SourceZid)
	assert.ErrorIs(t, err, ErrJobQueueFull)
}

func TestSyncSchedulerConfig_Validate(t *testing.T) {
	cfg := DefaultSyncSchedulerConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Workers = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.JobTimeout = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.RetryAttempts = -1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestSyncJob_ScheduleRetry(t *testing.T) {
	job := NewSyncJob(uuid.New(), order.SourceZid, 3)

	job.ScheduleRetry(time.Minute)
	require.NotNil(t, job.NextRetryAt)
	first := time.Until(*job.NextRetryAt)
	assert.InDelta(t, time.Minute.Seconds(), first.Seconds(), 1)

	job.ScheduleRetry(time.Minute)
	second := time.Until(*job.NextRetryAt)
	assert.InDelta(t, (2 * time.Minute).Seconds(), second.Seconds(), 1)

	// Backoff is capped at 30 minutes
	job.RetryCount = 10
	job.ScheduleRetry(time.Minute)
	capped := time.Until(*job.NextRetryAt)
	assert.LessOrEqual(t, capped, 30*time.Minute)
}
