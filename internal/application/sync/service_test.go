package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/application/reconcile"
	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/infrastructure/lane"
)

// MockOrderSource is a mock implementation of integration.OrderSource
type MockOrderSource struct {
	mock.Mock
}

func (m *MockOrderSource) Code() order.SourceSystem {
	args := m.Called()
	return args.Get(0).(order.SourceSystem)
}

func (m *MockOrderSource) Configure(merchantID uuid.UUID, config integration.SourceConfig) error {
	args := m.Called(merchantID, config)
	return args.Error(0)
}

func (m *MockOrderSource) RemoveConfig(merchantID uuid.UUID) {
	m.Called(merchantID)
}

func (m *MockOrderSource) IsConfigured(merchantID uuid.UUID) bool {
	args := m.Called(merchantID)
	return args.Bool(0)
}

func (m *MockOrderSource) Identify(headers map[string]string, payload []byte) (string, string) {
	args := m.Called(headers, payload)
	return args.String(0), args.String(1)
}

func (m *MockOrderSource) Normalize(ctx context.Context, event integration.RawEvent) (*order.Draft, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Draft), args.Error(1)
}

func (m *MockOrderSource) PullOrders(ctx context.Context, req integration.PullRequest) (*integration.PullResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.PullResult), args.Error(1)
}

func (m *MockOrderSource) MapStatus(providerStatus string) order.Status {
	args := m.Called(providerStatus)
	return args.Get(0).(order.Status)
}

func (m *MockOrderSource) VerifySignature(merchantID uuid.UUID, body []byte, headers map[string]string) error {
	args := m.Called(merchantID, body, headers)
	return args.Error(0)
}

// MockSyncRunRepository is a mock implementation of integration.SyncRunRepository
type MockSyncRunRepository struct {
	mock.Mock
}

func (m *MockSyncRunRepository) Save(ctx context.Context, run *integration.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncRun), args.Error(1)
}

func (m *MockSyncRunRepository) FindForMerchant(ctx context.Context, merchantID uuid.UUID, filter shared.Filter) ([]integration.SyncRun, error) {
	args := m.Called(ctx, merchantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncRun), args.Error(1)
}

func (m *MockSyncRunRepository) LatestWatermark(ctx context.Context, merchantID uuid.UUID, source order.SourceSystem) (time.Time, error) {
	args := m.Called(ctx, merchantID, source)
	return args.Get(0).(time.Time), args.Error(1)
}

// stubOrderRepository backs the reconciler during sync tests
type stubOrderRepository struct {
	mock.Mock
}

func (m *stubOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *stubOrderRepository) FindByNaturalKey(ctx context.Context, merchantID uuid.UUID, source order.SourceSystem, sourceOrderID string) (*order.Order, error) {
	args := m.Called(ctx, merchantID, source, sourceOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *stubOrderRepository) FindAllForMerchant(ctx context.Context, merchantID uuid.UUID, filter shared.Filter) ([]order.Order, error) {
	args := m.Called(ctx, merchantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *stubOrderRepository) Save(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *stubOrderRepository) CountForMerchant(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, merchantID)
	return args.Get(0).(int64), args.Error(1)
}

type stubStatusEventRepository struct {
	mock.Mock
}

func (m *stubStatusEventRepository) Append(ctx context.Context, event *order.StatusEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *stubStatusEventRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]order.StatusEvent, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.StatusEvent), args.Error(1)
}

func (m *stubStatusEventRepository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

type syncFixture struct {
	svc     *Service
	adapter *MockOrderSource
	runs    *MockSyncRunRepository
	orders  *stubOrderRepository
}

func newSyncFixture() *syncFixture {
	adapter := new(MockOrderSource)
	runs := new(MockSyncRunRepository)
	orders := new(stubOrderRepository)
	statusEvents := new(stubStatusEventRepository)
	statusEvents.On("Append", mock.Anything, mock.Anything).Return(nil)
	reconciler := reconcile.NewService(orders, statusEvents, lane.NewManager(8), zap.NewNop())

	registry := &staticRegistry{adapter: adapter}
	return &syncFixture{
		svc:     NewService(registry, runs, reconciler, zap.NewNop()),
		adapter: adapter,
		runs:    runs,
		orders:  orders,
	}
}

// staticRegistry resolves every known source to a single adapter
type staticRegistry struct {
	adapter *MockOrderSource
}

func (r *staticRegistry) Register(integration.OrderSource) {}

func (r *staticRegistry) Get(code order.SourceSystem) (integration.OrderSource, error) {
	if !code.IsValid() {
		return nil, integration.ErrSourceNotRegistered
	}
	return r.adapter, nil
}

func (r *staticRegistry) List() []integration.OrderSource {
	return []integration.OrderSource{r.adapter}
}

func syncDraft(merchantID uuid.UUID, sourceOrderID string) order.Draft {
	return order.Draft{
		MerchantID:    merchantID,
		SourceSystem:  order.SourceZid,
		SourceOrderID: sourceOrderID,
		Status:        order.StatusProcessing,
		Origin:        order.ChangeSourcePullSync,
		OccurredAt:    time.Now(),
	}
}

func TestService_SyncOrders_TwoPages(t *testing.T) {
	f := newSyncFixture()
	merchantID := uuid.New()
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mark1 := since.Add(24 * time.Hour)
	mark2 := since.Add(48 * time.Hour)

	f.adapter.On("IsConfigured", merchantID).Return(true)
	f.runs.On("LatestWatermark", mock.Anything, merchantID, order.SourceZid).Return(since, nil)
	f.runs.On("Save", mock.Anything, mock.AnythingOfType("*integration.SyncRun")).Return(nil)

	f.adapter.On("PullOrders", mock.Anything, mock.MatchedBy(func(req integration.PullRequest) bool {
		return req.PageNo == 1 && req.Since.Equal(since)
	})).Return(&integration.PullResult{
		Drafts:     []order.Draft{syncDraft(merchantID, "9001")},
		HasMore:    true,
		NextPageNo: 2,
		Watermark:  mark1,
	}, nil)
	f.adapter.On("PullOrders", mock.Anything, mock.MatchedBy(func(req integration.PullRequest) bool {
		return req.PageNo == 2
	})).Return(&integration.PullResult{
		Drafts:    []order.Draft{syncDraft(merchantID, "9002")},
		HasMore:   false,
		Watermark: mark2,
	}, nil)

	f.orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceZid, mock.Anything).
		Return(nil, shared.ErrNotFound)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)

	run, err := f.svc.SyncOrders(context.Background(), merchantID, order.SourceZid)

	require.NoError(t, err)
	assert.Equal(t, integration.SyncRunCompleted, run.Status)
	assert.Equal(t, 2, run.CreatedCount)
	assert.Equal(t, 2, run.PagesFetched)
	assert.True(t, run.Watermark.Equal(mark2))
}

func TestService_SyncOrders_NotConfigured(t *testing.T) {
	f := newSyncFixture()
	merchantID := uuid.New()

	f.adapter.On("IsConfigured", merchantID).Return(false)

	_, err := f.svc.SyncOrders(context.Background(), merchantID, order.SourceZid)

	assert.ErrorIs(t, err, integration.ErrSourceNotConfigured)
	f.runs.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestService_SyncOrders_PageFailureAfterProgressIsPartial(t *testing.T) {
	f := newSyncFixture()
	merchantID := uuid.New()
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mark1 := since.Add(24 * time.Hour)

	f.adapter.On("IsConfigured", merchantID).Return(true)
	f.runs.On("LatestWatermark", mock.Anything, merchantID, order.SourceZid).Return(since, nil)
	f.runs.On("Save", mock.Anything, mock.Anything).Return(nil)

	f.adapter.On("PullOrders", mock.Anything, mock.MatchedBy(func(req integration.PullRequest) bool {
		return req.PageNo == 1
	})).Return(&integration.PullResult{
		Drafts:     []order.Draft{syncDraft(merchantID, "9001")},
		HasMore:    true,
		NextPageNo: 2,
		Watermark:  mark1,
	}, nil)
	f.adapter.On("PullOrders", mock.Anything, mock.MatchedBy(func(req integration.PullRequest) bool {
		return req.PageNo == 2
	})).Return(nil, integration.ErrProviderTransient)

	f.orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceZid, "9001").
		Return(nil, shared.ErrNotFound)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)

	run, err := f.svc.SyncOrders(context.Background(), merchantID, order.SourceZid)

	require.NoError(t, err)
	assert.Equal(t, integration.SyncRunPartial, run.Status)
	assert.Equal(t, 1, run.CreatedCount)
	assert.NotEmpty(t, run.Error)
	// Progress made before the failure keeps its watermark
	assert.True(t, run.Watermark.Equal(mark1))
}

func TestService_SyncOrders_FirstPageFailureIsFailed(t *testing.T) {
	f := newSyncFixture()
	merchantID := uuid.New()

	f.adapter.On("IsConfigured", merchantID).Return(true)
	f.runs.On("LatestWatermark", mock.Anything, merchantID, order.SourceZid).
		Return(time.Time{}, nil)
	f.runs.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.adapter.On("PullOrders", mock.Anything, mock.Anything).
		Return(nil, integration.ErrProviderAuthFailed)

	run, err := f.svc.SyncOrders(context.Background(), merchantID, order.SourceZid)

	require.NoError(t, err)
	assert.Equal(t, integration.SyncRunFailed, run.Status)
	assert.Zero(t, run.CreatedCount)
}

func TestService_SyncOrders_FirstRunUsesLookbackWindow(t *testing.T) {
	f := newSyncFixture()
	merchantID := uuid.New()

	f.adapter.On("IsConfigured", merchantID).Return(true)
	f.runs.On("LatestWatermark", mock.Anything, merchantID, order.SourceZid).
		Return(time.Time{}, nil)
	f.runs.On("Save", mock.Anything, mock.Anything).Return(nil)

	var gotSince time.Time
	f.adapter.On("PullOrders", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			gotSince = args.Get(1).(integration.PullRequest).Since
		}).
		Return(&integration.PullResult{}, nil)

	_, err := f.svc.SyncOrders(context.Background(), merchantID, order.SourceZid)

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(-defaultLookback), gotSince, time.Minute)
}

// Every draft reconciles on an order lane while the run lane is still held,
// so run lanes and order lanes must come from disjoint managers. A page with
// more drafts than either manager has lanes guarantees every lane index gets
// hit; the run has to finish anyway.
func TestService_SyncOrders_ManyOrdersOneRunCompletes(t *testing.T) {
	f := newSyncFixture()
	merchantID := uuid.New()
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	drafts := make([]order.Draft, 300)
	for i := range drafts {
		drafts[i] = syncDraft(merchantID, fmt.Sprintf("9%03d", i))
	}

	f.adapter.On("IsConfigured", merchantID).Return(true)
	f.runs.On("LatestWatermark", mock.Anything, merchantID, order.SourceZid).Return(since, nil)
	f.runs.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.adapter.On("PullOrders", mock.Anything, mock.Anything).Return(&integration.PullResult{
		Drafts:    drafts,
		Watermark: since.Add(time.Hour),
	}, nil)
	f.orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceZid, mock.Anything).
		Return(nil, shared.ErrNotFound)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)

	type outcome struct {
		run *integration.SyncRun
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		run, err := f.svc.SyncOrders(context.Background(), merchantID, order.SourceZid)
		done <- outcome{run: run, err: err}
	}()

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.Equal(t, integration.SyncRunCompleted, got.run.Status)
		assert.Equal(t, len(drafts), got.run.CreatedCount)
	case <-time.After(5 * time.Second):
		t.Fatal("sync run blocked on its own reconciliation")
	}
}

func TestService_SyncOrders_DraftFailuresAreCountedAndSkipped(t *testing.T) {
	f := newSyncFixture()
	merchantID := uuid.New()
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	bad := syncDraft(merchantID, "")
	good := syncDraft(merchantID, "9002")

	f.adapter.On("IsConfigured", merchantID).Return(true)
	f.runs.On("LatestWatermark", mock.Anything, merchantID, order.SourceZid).Return(since, nil)
	f.runs.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.adapter.On("PullOrders", mock.Anything, mock.Anything).Return(&integration.PullResult{
		Drafts:    []order.Draft{bad, good},
		Watermark: since.Add(time.Hour),
	}, nil)

	f.orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceZid, "9002").
		Return(nil, shared.ErrNotFound)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)

	run, err := f.svc.SyncOrders(context.Background(), merchantID, order.SourceZid)

	require.NoError(t, err)
	assert.Equal(t, integration.SyncRunPartial, run.Status)
	assert.Equal(t, 1, run.CreatedCount)
	assert.Equal(t, 1, run.FailedCount)
}
