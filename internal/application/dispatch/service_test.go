package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/application/pool"
	"github.com/wasla/backend/internal/domain/notification"
	"github.com/wasla/backend/internal/domain/whatsapp"
)

// MockNotificationRepository is a mock implementation of notification.Repository
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.Notification), args.Error(1)
}

func (m *MockNotificationRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]notification.Notification, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notification.Notification), args.Error(1)
}

func (m *MockNotificationRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]notification.Notification, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notification.Notification), args.Error(1)
}

func (m *MockNotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockInstanceRepository is a mock implementation of whatsapp.Repository
type MockInstanceRepository struct {
	mock.Mock
}

func (m *MockInstanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*whatsapp.Instance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*whatsapp.Instance), args.Error(1)
}

func (m *MockInstanceRepository) FindByInstanceID(ctx context.Context, merchantID uuid.UUID, instanceID string) (*whatsapp.Instance, error) {
	args := m.Called(ctx, merchantID, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*whatsapp.Instance), args.Error(1)
}

func (m *MockInstanceRepository) FindByProviderInstanceID(ctx context.Context, instanceID string) (*whatsapp.Instance, error) {
	args := m.Called(ctx, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*whatsapp.Instance), args.Error(1)
}

func (m *MockInstanceRepository) FindForMerchant(ctx context.Context, merchantID uuid.UUID) ([]whatsapp.Instance, error) {
	args := m.Called(ctx, merchantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]whatsapp.Instance), args.Error(1)
}

func (m *MockInstanceRepository) FindActiveForMerchant(ctx context.Context, merchantID uuid.UUID) ([]whatsapp.Instance, error) {
	args := m.Called(ctx, merchantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]whatsapp.Instance), args.Error(1)
}

func (m *MockInstanceRepository) FindExpiring(ctx context.Context, now time.Time, limit int) ([]whatsapp.Instance, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]whatsapp.Instance), args.Error(1)
}

func (m *MockInstanceRepository) Save(ctx context.Context, inst *whatsapp.Instance) error {
	args := m.Called(ctx, inst)
	return args.Error(0)
}

func (m *MockInstanceRepository) PromoteToPrimary(ctx context.Context, merchantID, id uuid.UUID) error {
	args := m.Called(ctx, merchantID, id)
	return args.Error(0)
}

// MockGateway is a mock implementation of whatsapp.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SendMessage(ctx context.Context, inst *whatsapp.Instance, phone, text string) (string, error) {
	args := m.Called(ctx, inst, phone, text)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) GetState(ctx context.Context, inst *whatsapp.Instance) (whatsapp.InstanceState, error) {
	args := m.Called(ctx, inst)
	return args.Get(0).(whatsapp.InstanceState), args.Error(1)
}

// MockQuota is a mock implementation of notification.Quota
type MockQuota struct {
	mock.Mock
}

func (m *MockQuota) Consume(ctx context.Context, merchantID uuid.UUID) error {
	args := m.Called(ctx, merchantID)
	return args.Error(0)
}

type dispatchFixture struct {
	svc       *Service
	notifs    *MockNotificationRepository
	instances *MockInstanceRepository
	gateway   *MockGateway
	quota     *MockQuota
}

func newDispatchFixture(policy RetryPolicy) *dispatchFixture {
	notifs := new(MockNotificationRepository)
	instances := new(MockInstanceRepository)
	gateway := new(MockGateway)
	quota := new(MockQuota)
	instancePool := pool.NewService(instances, gateway, zap.NewNop())
	return &dispatchFixture{
		svc:       NewService(notifs, instancePool, gateway, quota, policy, zap.NewNop()),
		notifs:    notifs,
		instances: instances,
		gateway:   gateway,
		quota:     quota,
	}
}

func activeInstance(t *testing.T, merchantID uuid.UUID, instanceID string, role whatsapp.Role) whatsapp.Instance {
	t.Helper()
	inst, err := whatsapp.NewInstance(merchantID, instanceID, "tok-"+instanceID)
	require.NoError(t, err)
	inst.Role = role
	inst.Status = whatsapp.InstanceActive
	inst.ClearDomainEvents()
	return *inst
}

func pendingNotification(t *testing.T, merchantID uuid.UUID) *notification.Notification {
	t.Helper()
	n, err := notification.New(merchantID, uuid.New(), "order.created",
		notification.TemplateOrderCreated, "+966551112222", "تم استلام طلبك رقم #1234")
	require.NoError(t, err)
	return n
}

func TestService_Dispatch_Sent(t *testing.T) {
	f := newDispatchFixture(DefaultRetryPolicy)
	merchantID := uuid.New()
	n := pendingNotification(t, merchantID)
	primary := activeInstance(t, merchantID, "primary", whatsapp.RolePrimary)

	f.quota.On("Consume", mock.Anything, merchantID).Return(nil)
	f.instances.On("FindActiveForMerchant", mock.Anything, merchantID).
		Return([]whatsapp.Instance{primary}, nil)
	f.gateway.On("SendMessage", mock.Anything, mock.Anything, n.CustomerPhone, n.Message).
		Return("BAE5F488", nil)
	f.notifs.On("Save", mock.Anything, n).Return(nil)

	err := f.svc.Dispatch(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, n.Status)
	require.Len(t, n.Attempts, 1)
	assert.Equal(t, notification.AttemptSent, n.Attempts[0].Result)
	assert.Equal(t, "primary", n.Attempts[0].InstanceID)
}

func TestService_Dispatch_QuotaExceeded(t *testing.T) {
	f := newDispatchFixture(DefaultRetryPolicy)
	merchantID := uuid.New()
	n := pendingNotification(t, merchantID)

	f.quota.On("Consume", mock.Anything, merchantID).
		Return(notification.ErrQuotaExceeded)
	f.notifs.On("Save", mock.Anything, n).Return(nil)

	err := f.svc.Dispatch(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, notification.StatusFailed, n.Status)
	require.Len(t, n.Attempts, 1)
	assert.Equal(t, notification.FailurePermanent, n.Attempts[0].FailureKind)
	f.gateway.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Dispatch_EmptyPoolFailsPermanently(t *testing.T) {
	f := newDispatchFixture(DefaultRetryPolicy)
	merchantID := uuid.New()
	n := pendingNotification(t, merchantID)

	f.quota.On("Consume", mock.Anything, merchantID).Return(nil)
	f.instances.On("FindActiveForMerchant", mock.Anything, merchantID).
		Return([]whatsapp.Instance{}, nil)
	f.notifs.On("Save", mock.Anything, n).Return(nil)

	err := f.svc.Dispatch(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, notification.StatusFailed, n.Status)
	assert.Nil(t, n.NextAttemptAt)
}

func TestService_Dispatch_TransientFailureSchedulesRetry(t *testing.T) {
	f := newDispatchFixture(RetryPolicy{MaxAttempts: 3, BackoffBase: 30 * time.Second, BackoffCap: 10 * time.Minute})
	merchantID := uuid.New()
	n := pendingNotification(t, merchantID)
	primary := activeInstance(t, merchantID, "primary", whatsapp.RolePrimary)

	f.quota.On("Consume", mock.Anything, merchantID).Return(nil)
	f.instances.On("FindActiveForMerchant", mock.Anything, merchantID).
		Return([]whatsapp.Instance{primary}, nil)
	f.gateway.On("SendMessage", mock.Anything, mock.Anything, n.CustomerPhone, n.Message).
		Return("", whatsapp.ErrGatewayTransient)
	f.notifs.On("Save", mock.Anything, n).Return(nil)

	err := f.svc.Dispatch(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, notification.StatusPending, n.Status)
	require.NotNil(t, n.NextAttemptAt)
	assert.True(t, n.NextAttemptAt.After(time.Now().Add(29*time.Second)))
	require.Len(t, n.Attempts, 1)
	assert.Equal(t, notification.FailureTransient, n.Attempts[0].FailureKind)
}

func TestService_Dispatch_RateLimitHonorsProviderWait(t *testing.T) {
	f := newDispatchFixture(RetryPolicy{MaxAttempts: 3, BackoffBase: 30 * time.Second, BackoffCap: 10 * time.Minute})
	merchantID := uuid.New()
	n := pendingNotification(t, merchantID)
	primary := activeInstance(t, merchantID, "primary", whatsapp.RolePrimary)

	f.quota.On("Consume", mock.Anything, merchantID).Return(nil)
	f.instances.On("FindActiveForMerchant", mock.Anything, merchantID).
		Return([]whatsapp.Instance{primary}, nil)
	// The provider asks for a wait far beyond the first backoff step
	f.gateway.On("SendMessage", mock.Anything, mock.Anything, n.CustomerPhone, n.Message).
		Return("", &whatsapp.RateLimitError{RetryAfter: 5 * time.Minute})
	f.notifs.On("Save", mock.Anything, n).Return(nil)

	err := f.svc.Dispatch(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, notification.StatusPending, n.Status)
	require.NotNil(t, n.NextAttemptAt)
	assert.True(t, n.NextAttemptAt.After(time.Now().Add(4*time.Minute)))
	require.Len(t, n.Attempts, 1)
	assert.Equal(t, notification.FailureTransient, n.Attempts[0].FailureKind)
	// No failover on a rate limit; the whole account is throttled
	f.instances.AssertNumberOfCalls(t, "FindActiveForMerchant", 1)
}

func TestService_Dispatch_ExhaustsAtConfiguredCap(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BackoffBase: time.Second, BackoffCap: time.Minute}
	f := newDispatchFixture(policy)
	merchantID := uuid.New()
	n := pendingNotification(t, merchantID)
	primary := activeInstance(t, merchantID, "primary", whatsapp.RolePrimary)

	f.quota.On("Consume", mock.Anything, merchantID).Return(nil)
	f.instances.On("FindActiveForMerchant", mock.Anything, merchantID).
		Return([]whatsapp.Instance{primary}, nil)
	f.gateway.On("SendMessage", mock.Anything, mock.Anything, n.CustomerPhone, n.Message).
		Return("", whatsapp.ErrGatewayTransient)
	f.notifs.On("Save", mock.Anything, n).Return(nil)

	for i := 0; i < policy.MaxAttempts; i++ {
		require.NoError(t, f.svc.Dispatch(context.Background(), n))
		n.NextAttemptAt = nil // simulate the due sweep picking it back up
		if !n.IsClosed() {
			n.Status = notification.StatusPending
		}
	}

	assert.Equal(t, notification.StatusFailed, n.Status)
	assert.Len(t, n.Attempts, policy.MaxAttempts)
	assert.Equal(t, notification.AttemptPermanentFailure, n.Attempts[policy.MaxAttempts-1].Result)

	// A closed notification never dispatches again
	require.NoError(t, f.svc.Dispatch(context.Background(), n))
	assert.Len(t, n.Attempts, policy.MaxAttempts)
}

func TestService_Dispatch_InstanceFailureFailsOver(t *testing.T) {
	f := newDispatchFixture(DefaultRetryPolicy)
	merchantID := uuid.New()
	n := pendingNotification(t, merchantID)
	primary := activeInstance(t, merchantID, "primary", whatsapp.RolePrimary)
	secondary := activeInstance(t, merchantID, "secondary", whatsapp.RoleSecondary)

	f.quota.On("Consume", mock.Anything, merchantID).Return(nil)
	f.instances.On("FindActiveForMerchant", mock.Anything, merchantID).
		Return([]whatsapp.Instance{primary, secondary}, nil)
	f.gateway.On("SendMessage", mock.Anything, mock.MatchedBy(func(i *whatsapp.Instance) bool {
		return i.InstanceID == "primary"
	}), n.CustomerPhone, n.Message).Return("", whatsapp.ErrInstanceNotAuthorized)
	f.gateway.On("SendMessage", mock.Anything, mock.MatchedBy(func(i *whatsapp.Instance) bool {
		return i.InstanceID == "secondary"
	}), n.CustomerPhone, n.Message).Return("BAE5F488", nil)
	f.notifs.On("Save", mock.Anything, n).Return(nil)

	err := f.svc.Dispatch(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, n.Status)
	require.Len(t, n.Attempts, 1)
	assert.Equal(t, "secondary", n.Attempts[0].InstanceID)
}

func TestService_Dispatch_InstanceFailureWithoutAlternativeRetriesLater(t *testing.T) {
	f := newDispatchFixture(DefaultRetryPolicy)
	merchantID := uuid.New()
	n := pendingNotification(t, merchantID)
	primary := activeInstance(t, merchantID, "primary", whatsapp.RolePrimary)

	f.quota.On("Consume", mock.Anything, merchantID).Return(nil)
	f.instances.On("FindActiveForMerchant", mock.Anything, merchantID).
		Return([]whatsapp.Instance{primary}, nil)
	f.gateway.On("SendMessage", mock.Anything, mock.Anything, n.CustomerPhone, n.Message).
		Return("", whatsapp.ErrInstanceNotAuthorized)
	f.notifs.On("Save", mock.Anything, n).Return(nil)

	err := f.svc.Dispatch(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, notification.StatusPending, n.Status)
	require.Len(t, n.Attempts, 1)
	assert.Equal(t, notification.FailureInstance, n.Attempts[0].FailureKind)
	assert.NotNil(t, n.NextAttemptAt)
}

func TestService_Dispatch_MessageRejectedIsPermanent(t *testing.T) {
	f := newDispatchFixture(DefaultRetryPolicy)
	merchantID := uuid.New()
	n := pendingNotification(t, merchantID)
	primary := activeInstance(t, merchantID, "primary", whatsapp.RolePrimary)

	f.quota.On("Consume", mock.Anything, merchantID).Return(nil)
	f.instances.On("FindActiveForMerchant", mock.Anything, merchantID).
		Return([]whatsapp.Instance{primary}, nil)
	f.gateway.On("SendMessage", mock.Anything, mock.Anything, n.CustomerPhone, n.Message).
		Return("", whatsapp.ErrMessageRejected)
	f.notifs.On("Save", mock.Anything, n).Return(nil)

	err := f.svc.Dispatch(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, notification.StatusFailed, n.Status)
	assert.Nil(t, n.NextAttemptAt)
}

func TestService_DispatchDue(t *testing.T) {
	f := newDispatchFixture(DefaultRetryPolicy)
	merchantID := uuid.New()
	n := pendingNotification(t, merchantID)
	primary := activeInstance(t, merchantID, "primary", whatsapp.RolePrimary)

	now := time.Now()
	f.notifs.On("FindDue", mock.Anything, now, 50).
		Return([]notification.Notification{*n}, nil)
	f.quota.On("Consume", mock.Anything, merchantID).Return(nil)
	f.instances.On("FindActiveForMerchant", mock.Anything, merchantID).
		Return([]whatsapp.Instance{primary}, nil)
	f.gateway.On("SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("BAE5F488", nil)
	f.notifs.On("Save", mock.Anything, mock.Anything).Return(nil)

	attempted, err := f.svc.DispatchDue(context.Background(), now, 50)

	require.NoError(t, err)
	assert.Equal(t, 1, attempted)
}

func TestRetryPolicy_NextDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BackoffBase: 30 * time.Second, BackoffCap: 2 * time.Minute}

	// Attempt n waits base*2^(n-1) plus up to 20% jitter
	d1 := p.NextDelay(1)
	assert.GreaterOrEqual(t, d1, 30*time.Second)
	assert.Less(t, d1, 37*time.Second)

	d2 := p.NextDelay(2)
	assert.GreaterOrEqual(t, d2, time.Minute)
	assert.Less(t, d2, 73*time.Second)

	// Growth stops at the cap
	d5 := p.NextDelay(5)
	assert.GreaterOrEqual(t, d5, 2*time.Minute)
	assert.Less(t, d5, 145*time.Second)
}
