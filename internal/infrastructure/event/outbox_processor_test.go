package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/domain/shared"
)

// memoryOutboxRepo is an in-memory OutboxRepository with per-method
// overrides for failure injection.
type memoryOutboxRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*shared.OutboxEntry
	pending func(ctx context.Context, limit int) ([]*shared.OutboxEntry, error)
	delete  func(ctx context.Context, before time.Time) (int64, error)
}

func newMemoryOutboxRepo() *memoryOutboxRepo {
	return &memoryOutboxRepo{rows: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *memoryOutboxRepo) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.rows[e.ID] = e
	}
	return nil
}

func (r *memoryOutboxRepo) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	if r.pending != nil {
		return r.pending(ctx, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, e := range r.rows {
		if e.Status == shared.OutboxStatusPending {
			out = append(out, e)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memoryOutboxRepo) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, e := range r.rows {
		if e.Status == shared.OutboxStatusFailed && e.NextRetryAt != nil && e.NextRetryAt.Before(before) {
			out = append(out, e)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memoryOutboxRepo) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, id := range ids {
		if e, ok := r.rows[id]; ok {
			e.Status = shared.OutboxStatusProcessing
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryOutboxRepo) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[entry.ID] = entry
	return nil
}

func (r *memoryOutboxRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	if r.delete != nil {
		return r.delete(ctx, before)
	}
	return 0, nil
}

func (r *memoryOutboxRepo) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, e := range r.rows {
		if e.Status == shared.OutboxStatusDead {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memoryOutboxRepo) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id], nil
}

func (r *memoryOutboxRepo) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.rows {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *memoryOutboxRepo) statusOf(id uuid.UUID) shared.OutboxStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id].Status
}

func TestOutboxProcessorDeliversPendingRows(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("order.synced", &syncEvent{})

	repo := newMemoryOutboxRepo()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler("order.synced")
	bus.Subscribe(handler)

	merchantID := uuid.New()
	evt := newSyncEvent("order.synced", merchantID)
	payload, err := serializer.Serialize(evt)
	require.NoError(t, err)
	entry := shared.NewOutboxEntry(merchantID, evt, payload)
	require.NoError(t, repo.Save(context.Background(), entry))

	processor := NewOutboxProcessor(repo, bus, serializer, OutboxProcessorConfig{
		BatchSize:    100,
		PollInterval: 20 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, processor.Start(ctx))

	require.Eventually(t, func() bool {
		return len(handler.events()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, processor.Stop(stopCtx))

	assert.Equal(t, shared.OutboxStatusSent, repo.statusOf(entry.ID))
}

func TestOutboxProcessorMarksUndecodableRowFailed(t *testing.T) {
	// Nothing registered, so deserialization cannot succeed.
	serializer := NewEventSerializer()
	repo := newMemoryOutboxRepo()
	bus := NewInMemoryEventBus(zap.NewNop())

	merchantID := uuid.New()
	evt := newSyncEvent("order.legacy", merchantID)
	entry := shared.NewOutboxEntry(merchantID, evt, []byte(`{"order_number":"SA-1001"}`))
	require.NoError(t, repo.Save(context.Background(), entry))

	processor := NewOutboxProcessor(repo, bus, serializer, OutboxProcessorConfig{
		BatchSize:    100,
		PollInterval: 20 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, processor.Start(ctx))

	require.Eventually(t, func() bool {
		return repo.statusOf(entry.ID) == shared.OutboxStatusFailed
	}, time.Second, 10*time.Millisecond)

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, processor.Stop(stopCtx))

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Contains(t, repo.rows[entry.ID].LastError, "unknown event type")
}

func TestOutboxProcessorStopsCleanly(t *testing.T) {
	processor := NewOutboxProcessor(newMemoryOutboxRepo(), NewInMemoryEventBus(zap.NewNop()),
		NewEventSerializer(), DefaultOutboxProcessorConfig(), zap.NewNop())

	require.NoError(t, processor.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, processor.Stop(ctx))
}

func TestDefaultOutboxProcessorConfig(t *testing.T) {
	config := DefaultOutboxProcessorConfig()

	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.True(t, config.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, config.CleanupRetention)
	assert.Equal(t, time.Hour, config.CleanupInterval)
}
