package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/infrastructure/lane"
)

// MockOrderRepository is a mock implementation of order.Repository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByNaturalKey(ctx context.Context, merchantID uuid.UUID, source order.SourceSystem, sourceOrderID string) (*order.Order, error) {
	args := m.Called(ctx, merchantID, source, sourceOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAllForMerchant(ctx context.Context, merchantID uuid.UUID, filter shared.Filter) ([]order.Order, error) {
	args := m.Called(ctx, merchantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) CountForMerchant(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, merchantID)
	return args.Get(0).(int64), args.Error(1)
}

// MockStatusEventRepository is a mock implementation of order.StatusEventRepository
type MockStatusEventRepository struct {
	mock.Mock
}

func (m *MockStatusEventRepository) Append(ctx context.Context, event *order.StatusEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockStatusEventRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]order.StatusEvent, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.StatusEvent), args.Error(1)
}

func (m *MockStatusEventRepository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func newTestService(orders *MockOrderRepository, statusEvents *MockStatusEventRepository) *Service {
	return NewService(orders, statusEvents, lane.NewManager(8), zap.NewNop())
}

func newTestDraft(merchantID uuid.UUID, status order.Status) *order.Draft {
	return &order.Draft{
		MerchantID:    merchantID,
		SourceSystem:  order.SourceWooCommerce,
		SourceOrderID: "1234",
		OrderNumber:   "#1234",
		Kind:          order.KindOrder,
		Customer: order.Customer{
			Name:  "Sara Alotaibi",
			Phone: "+966551112222",
		},
		Amounts: order.Amounts{
			Total: decimal.NewFromFloat(249.50),
		},
		Currency:   "SAR",
		Status:     status,
		Origin:     order.ChangeSourceWebhook,
		OccurredAt: time.Now(),
	}
}

func TestService_Reconcile_FirstSightCreates(t *testing.T) {
	orders := new(MockOrderRepository)
	statusEvents := new(MockStatusEventRepository)
	svc := newTestService(orders, statusEvents)

	merchantID := uuid.New()
	draft := newTestDraft(merchantID, order.StatusPending)

	orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceWooCommerce, "1234").
		Return(nil, shared.ErrNotFound)
	orders.On("Save", mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil)

	result, err := svc.Reconcile(context.Background(), draft)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, result.Outcome)
	assert.Equal(t, order.StatusPending, result.Order.Status)
	assert.Equal(t, "#1234", result.Order.OrderNumber)
	assert.Equal(t, "Sara Alotaibi", result.Order.Customer.Name)

	// First sight raises exactly one created event
	events := result.Order.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, order.EventTypeOrderCreated, events[0].EventType())

	orders.AssertExpectations(t)
	statusEvents.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestService_Reconcile_FirstSightWithNonPendingStatus(t *testing.T) {
	orders := new(MockOrderRepository)
	statusEvents := new(MockStatusEventRepository)
	svc := newTestService(orders, statusEvents)

	merchantID := uuid.New()
	draft := newTestDraft(merchantID, order.StatusCompleted)

	orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceWooCommerce, "1234").
		Return(nil, shared.ErrNotFound)
	orders.On("Save", mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil)
	statusEvents.On("Append", mock.Anything, mock.MatchedBy(func(e *order.StatusEvent) bool {
		return e.FromStatus == order.StatusPending &&
			e.ToStatus == order.StatusCompleted &&
			e.Outcome == order.StatusEventApplied
	})).Return(nil)

	result, err := svc.Reconcile(context.Background(), draft)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, result.Outcome)
	assert.Equal(t, order.StatusCompleted, result.Order.Status)
	require.NotNil(t, result.Order.CompletedAt)
	statusEvents.AssertExpectations(t)
}

// Two deliveries for the same provider order, first at processing and then at
// completed, end with one canonical order, two audit rows, and one created
// plus one status-changed domain event rather than two created events.
func TestService_Reconcile_TwoDeliveriesSameOrder(t *testing.T) {
	orders := new(MockOrderRepository)
	statusEvents := new(MockStatusEventRepository)
	svc := newTestService(orders, statusEvents)

	merchantID := uuid.New()

	var stored *order.Order
	orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceWooCommerce, "1234").
		Return(nil, shared.ErrNotFound).Once()
	orders.On("Save", mock.Anything, mock.AnythingOfType("*order.Order")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*order.Order) }).
		Return(nil)
	statusEvents.On("Append", mock.Anything, mock.AnythingOfType("*order.StatusEvent")).Return(nil)

	first, err := svc.Reconcile(context.Background(), newTestDraft(merchantID, order.StatusProcessing))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, first.Outcome)

	firstEvents := first.Order.GetDomainEvents()
	require.Len(t, firstEvents, 1)
	assert.Equal(t, order.EventTypeOrderCreated, firstEvents[0].EventType())
	first.Order.ClearDomainEvents()

	orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceWooCommerce, "1234").
		Return(stored, nil)

	second, err := svc.Reconcile(context.Background(), newTestDraft(merchantID, order.StatusCompleted))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, second.Outcome)
	assert.Same(t, stored, second.Order)
	assert.Equal(t, order.StatusCompleted, stored.Status)

	secondEvents := second.Order.GetDomainEvents()
	require.Len(t, secondEvents, 1)
	assert.Equal(t, order.EventTypeStatusChanged, secondEvents[0].EventType())

	statusEvents.AssertNumberOfCalls(t, "Append", 2)
	orders.AssertExpectations(t)
}

func TestService_Reconcile_StatusTransitionApplied(t *testing.T) {
	orders := new(MockOrderRepository)
	statusEvents := new(MockStatusEventRepository)
	svc := newTestService(orders, statusEvents)

	merchantID := uuid.New()
	existing, err := order.NewOrder(merchantID, order.SourceWooCommerce, "1234")
	require.NoError(t, err)
	existing.ClearDomainEvents()

	draft := newTestDraft(merchantID, order.StatusProcessing)

	orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceWooCommerce, "1234").
		Return(existing, nil)
	orders.On("Save", mock.Anything, existing).Return(nil)
	statusEvents.On("Append", mock.Anything, mock.MatchedBy(func(e *order.StatusEvent) bool {
		return e.FromStatus == order.StatusPending &&
			e.ToStatus == order.StatusProcessing &&
			e.Outcome == order.StatusEventApplied
	})).Return(nil)

	result, err := svc.Reconcile(context.Background(), draft)

	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.Equal(t, order.StatusProcessing, existing.Status)
	assert.Equal(t, 2, existing.Version)

	orders.AssertExpectations(t)
	statusEvents.AssertExpectations(t)
}

func TestService_Reconcile_StatusEventCarriesDraftDetails(t *testing.T) {
	orders := new(MockOrderRepository)
	statusEvents := new(MockStatusEventRepository)
	svc := newTestService(orders, statusEvents)

	// The stored order predates the draft and knows neither the customer
	// phone nor the tracking number.
	merchantID := uuid.New()
	existing, err := order.NewOrder(merchantID, order.SourceWooCommerce, "1234")
	require.NoError(t, err)
	require.NoError(t, existing.ChangeStatus(order.StatusProcessing, order.ChangeSourcePullSync))
	existing.ClearDomainEvents()

	draft := newTestDraft(merchantID, order.StatusCompleted)
	draft.TrackingNumber = "SMSA-7788"

	orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceWooCommerce, "1234").
		Return(existing, nil)
	orders.On("Save", mock.Anything, existing).Return(nil)
	statusEvents.On("Append", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Reconcile(context.Background(), draft)

	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, result.Outcome)

	// The raised event feeds notification templates, so it must snapshot
	// the draft's details, not the pre-update order.
	events := result.Order.GetDomainEvents()
	require.Len(t, events, 1)
	changed, ok := events[0].(*order.StatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "+966551112222", changed.CustomerPhone)
	assert.Equal(t, "SMSA-7788", changed.TrackingNumber)
	assert.True(t, changed.Total.Equal(decimal.NewFromFloat(249.50)))
	assert.Equal(t, order.StatusProcessing, changed.FromStatus)
	assert.Equal(t, order.StatusCompleted, changed.ToStatus)
}

func TestService_Reconcile_RegressionRejected(t *testing.T) {
	orders := new(MockOrderRepository)
	statusEvents := new(MockStatusEventRepository)
	publisher := new(MockEventPublisher)
	svc := newTestService(orders, statusEvents)
	svc.SetEventPublisher(publisher)

	merchantID := uuid.New()
	existing, err := order.NewOrder(merchantID, order.SourceWooCommerce, "1234")
	require.NoError(t, err)
	require.NoError(t, existing.ChangeStatus(order.StatusCompleted, order.ChangeSourceWebhook))
	existing.ClearDomainEvents()
	versionBefore := existing.Version

	// A stale webhook delivered after completion must not move the order back
	draft := newTestDraft(merchantID, order.StatusProcessing)

	orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceWooCommerce, "1234").
		Return(existing, nil)
	statusEvents.On("Append", mock.Anything, mock.MatchedBy(func(e *order.StatusEvent) bool {
		return e.FromStatus == order.StatusCompleted &&
			e.ToStatus == order.StatusProcessing &&
			e.Outcome == order.StatusEventRejected
	})).Return(nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Reconcile(context.Background(), draft)

	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.Equal(t, order.StatusCompleted, existing.Status)
	assert.Equal(t, versionBefore, existing.Version)

	orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	statusEvents.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestService_Reconcile_SameStatusNoNewDetails(t *testing.T) {
	orders := new(MockOrderRepository)
	statusEvents := new(MockStatusEventRepository)
	svc := newTestService(orders, statusEvents)

	merchantID := uuid.New()
	draft := newTestDraft(merchantID, order.StatusPending)
	existing, err := order.NewOrderFromDraft(draft)
	require.NoError(t, err)
	existing.ClearDomainEvents()

	orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceWooCommerce, "1234").
		Return(existing, nil)

	result, err := svc.Reconcile(context.Background(), draft)

	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, result.Outcome)
	orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestService_Reconcile_DetailRefreshWithoutStatusChange(t *testing.T) {
	orders := new(MockOrderRepository)
	statusEvents := new(MockStatusEventRepository)
	svc := newTestService(orders, statusEvents)

	merchantID := uuid.New()
	existing, err := order.NewOrder(merchantID, order.SourceWooCommerce, "1234")
	require.NoError(t, err)
	existing.ClearDomainEvents()

	draft := newTestDraft(merchantID, order.StatusPending)
	draft.TrackingNumber = "SMSA-7788"

	orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceWooCommerce, "1234").
		Return(existing, nil)
	orders.On("Save", mock.Anything, existing).Return(nil)

	result, err := svc.Reconcile(context.Background(), draft)

	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.Equal(t, "SMSA-7788", existing.TrackingNumber)
	// Detail refreshes never raise status events
	statusEvents.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestService_Reconcile_InvalidDraft(t *testing.T) {
	orders := new(MockOrderRepository)
	statusEvents := new(MockStatusEventRepository)
	svc := newTestService(orders, statusEvents)

	draft := newTestDraft(uuid.New(), order.StatusPending)
	draft.SourceOrderID = ""

	_, err := svc.Reconcile(context.Background(), draft)

	assert.Error(t, err)
	orders.AssertNotCalled(t, "FindByNaturalKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
