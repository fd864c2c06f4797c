package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/application/gateway"
	"github.com/wasla/backend/internal/application/reconcile"
	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/domain/webhook"
	"github.com/wasla/backend/internal/infrastructure/lane"
)

// mockOrderSource is a mock implementation of integration.OrderSource
type mockOrderSource struct {
	mock.Mock
}

func (m *mockOrderSource) Code() order.SourceSystem {
	args := m.Called()
	return args.Get(0).(order.SourceSystem)
}

func (m *mockOrderSource) Configure(merchantID uuid.UUID, config integration.SourceConfig) error {
	args := m.Called(merchantID, config)
	return args.Error(0)
}

func (m *mockOrderSource) RemoveConfig(merchantID uuid.UUID) {
	m.Called(merchantID)
}

func (m *mockOrderSource) IsConfigured(merchantID uuid.UUID) bool {
	args := m.Called(merchantID)
	return args.Bool(0)
}

func (m *mockOrderSource) Identify(headers map[string]string, payload []byte) (string, string) {
	args := m.Called(headers, payload)
	return args.String(0), args.String(1)
}

func (m *mockOrderSource) Normalize(ctx context.Context, event integration.RawEvent) (*order.Draft, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Draft), args.Error(1)
}

func (m *mockOrderSource) PullOrders(ctx context.Context, req integration.PullRequest) (*integration.PullResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.PullResult), args.Error(1)
}

func (m *mockOrderSource) MapStatus(providerStatus string) order.Status {
	args := m.Called(providerStatus)
	return args.Get(0).(order.Status)
}

func (m *mockOrderSource) VerifySignature(merchantID uuid.UUID, body []byte, headers map[string]string) error {
	args := m.Called(merchantID, body, headers)
	return args.Error(0)
}

// mockSourceRegistry is a mock implementation of integration.SourceRegistry
type mockSourceRegistry struct {
	mock.Mock
}

func (m *mockSourceRegistry) Register(adapter integration.OrderSource) {
	m.Called(adapter)
}

func (m *mockSourceRegistry) Get(code order.SourceSystem) (integration.OrderSource, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(integration.OrderSource), args.Error(1)
}

func (m *mockSourceRegistry) List() []integration.OrderSource {
	args := m.Called()
	return args.Get(0).([]integration.OrderSource)
}

// mockWebhookLedger is a mock implementation of webhook.Repository
type mockWebhookLedger struct {
	mock.Mock
}

func (m *mockWebhookLedger) InsertIfAbsent(ctx context.Context, event *webhook.Event) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

func (m *mockWebhookLedger) FindByKey(ctx context.Context, provider order.SourceSystem, key string) (*webhook.Event, error) {
	args := m.Called(ctx, provider, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*webhook.Event), args.Error(1)
}

func (m *mockWebhookLedger) Update(ctx context.Context, event *webhook.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockWebhookLedger) FindReplayable(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]webhook.Event, error) {
	args := m.Called(ctx, olderThan, maxAttempts, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]webhook.Event), args.Error(1)
}

func (m *mockWebhookLedger) FindForMerchant(ctx context.Context, merchantID uuid.UUID, filter shared.Filter) ([]webhook.Event, error) {
	args := m.Called(ctx, merchantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]webhook.Event), args.Error(1)
}

// mockOrderRepository is a mock implementation of order.Repository
type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *mockOrderRepository) FindByNaturalKey(ctx context.Context, merchantID uuid.UUID, source order.SourceSystem, sourceOrderID string) (*order.Order, error) {
	args := m.Called(ctx, merchantID, source, sourceOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *mockOrderRepository) FindAllForMerchant(ctx context.Context, merchantID uuid.UUID, filter shared.Filter) ([]order.Order, error) {
	args := m.Called(ctx, merchantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *mockOrderRepository) Save(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderRepository) CountForMerchant(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, merchantID)
	return args.Get(0).(int64), args.Error(1)
}

// mockStatusEventRepository is a mock implementation of order.StatusEventRepository
type mockStatusEventRepository struct {
	mock.Mock
}

func (m *mockStatusEventRepository) Append(ctx context.Context, event *order.StatusEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockStatusEventRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]order.StatusEvent, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.StatusEvent), args.Error(1)
}

func (m *mockStatusEventRepository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

type webhookHandlerFixture struct {
	router   *gin.Engine
	registry *mockSourceRegistry
	adapter  *mockOrderSource
	ledger   *mockWebhookLedger
	orders   *mockOrderRepository
}

func newWebhookHandlerFixture(maxPayloadBytes int64) *webhookHandlerFixture {
	registry := new(mockSourceRegistry)
	adapter := new(mockOrderSource)
	ledger := new(mockWebhookLedger)
	orders := new(mockOrderRepository)
	statusEvents := new(mockStatusEventRepository)
	reconciler := reconcile.NewService(orders, statusEvents, lane.NewManager(4), zap.NewNop())
	service := gateway.NewWebhookService(registry, ledger, reconciler, zap.NewNop())

	h := NewWebhookHandler(service, maxPayloadBytes)
	router := gin.New()
	api := router.Group("/api")
	h.RegisterRoutes(api)

	return &webhookHandlerFixture{
		router:   router,
		registry: registry,
		adapter:  adapter,
		ledger:   ledger,
		orders:   orders,
	}
}

func postWebhook(router *gin.Engine, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_ProcessedDelivery(t *testing.T) {
	f := newWebhookHandlerFixture(0)
	merchantID := uuid.New()
	payload := []byte(`{"id":1234,"status":"processing"}`)

	draft := &order.Draft{
		MerchantID:    merchantID,
		SourceSystem:  order.SourceWooCommerce,
		SourceOrderID: "1234",
		OrderNumber:   "#1234",
		Status:        order.StatusPending,
		Origin:        order.ChangeSourceWebhook,
		OccurredAt:    time.Now(),
	}

	f.registry.On("Get", order.SourceWooCommerce).Return(f.adapter, nil)
	f.adapter.On("VerifySignature", merchantID, payload, mock.Anything).Return(nil)
	f.adapter.On("Identify", mock.Anything, payload).Return("d-1", "order.created")
	f.ledger.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(true, nil)
	f.adapter.On("Normalize", mock.Anything, mock.Anything).Return(draft, nil)
	f.orders.On("FindByNaturalKey", mock.Anything, merchantID, order.SourceWooCommerce, "1234").
		Return(nil, shared.ErrNotFound)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.ledger.On("Update", mock.Anything, mock.Anything).Return(nil)

	w := postWebhook(f.router, "/api/webhooks/woocommerce/"+merchantID.String(), payload,
		map[string]string{"X-WC-Webhook-Signature": "sig"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp WebhookAckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	assert.False(t, resp.Duplicate)
	assert.Equal(t, "created", resp.Outcome)
}

func TestWebhookHandler_DuplicateAcknowledged(t *testing.T) {
	f := newWebhookHandlerFixture(0)
	merchantID := uuid.New()
	payload := []byte(`{"id":1234}`)

	f.registry.On("Get", order.SourceZid).Return(f.adapter, nil)
	f.adapter.On("VerifySignature", merchantID, payload, mock.Anything).Return(nil)
	f.adapter.On("Identify", mock.Anything, payload).Return("d-1", "order.updated")
	f.ledger.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(false, nil)

	w := postWebhook(f.router, "/api/webhooks/zid/"+merchantID.String(), payload, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp WebhookAckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	assert.True(t, resp.Duplicate)
	f.adapter.AssertNotCalled(t, "Normalize", mock.Anything, mock.Anything)
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	f := newWebhookHandlerFixture(0)
	merchantID := uuid.New()
	payload := []byte(`{}`)

	f.registry.On("Get", order.SourceCalendly).Return(f.adapter, nil)
	f.adapter.On("VerifySignature", merchantID, payload, mock.Anything).
		Return(integration.ErrInvalidSignature)

	w := postWebhook(f.router, "/api/webhooks/calendly/"+merchantID.String(), payload, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.ledger.AssertNotCalled(t, "InsertIfAbsent", mock.Anything, mock.Anything)
}

func TestWebhookHandler_MalformedPayload(t *testing.T) {
	f := newWebhookHandlerFixture(0)
	merchantID := uuid.New()
	payload := []byte(`not json`)

	f.registry.On("Get", order.SourceWooCommerce).Return(f.adapter, nil)
	f.adapter.On("VerifySignature", merchantID, payload, mock.Anything).Return(nil)
	f.adapter.On("Identify", mock.Anything, payload).Return("", "")
	f.ledger.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(true, nil)
	f.adapter.On("Normalize", mock.Anything, mock.Anything).
		Return(nil, integration.ErrInvalidPayload)
	f.ledger.On("Update", mock.Anything, mock.Anything).Return(nil)

	w := postWebhook(f.router, "/api/webhooks/woocommerce/"+merchantID.String(), payload, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_InvalidMerchantID(t *testing.T) {
	f := newWebhookHandlerFixture(0)

	w := postWebhook(f.router, "/api/webhooks/woocommerce/not-a-uuid", []byte(`{}`), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_PayloadTooLarge(t *testing.T) {
	f := newWebhookHandlerFixture(64)
	merchantID := uuid.New()
	payload := []byte(strings.Repeat("x", 128))

	w := postWebhook(f.router, "/api/webhooks/zid/"+merchantID.String(), payload, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	f.registry.AssertNotCalled(t, "Get", mock.Anything)
}

func TestWebhookHandler_SourceNotConfigured(t *testing.T) {
	f := newWebhookHandlerFixture(0)
	merchantID := uuid.New()
	payload := []byte(`{}`)

	f.registry.On("Get", order.SourceZid).Return(f.adapter, nil)
	f.adapter.On("VerifySignature", merchantID, payload, mock.Anything).
		Return(integration.ErrSourceNotConfigured)

	w := postWebhook(f.router, "/api/webhooks/zid/"+merchantID.String(), payload, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
