package dispatch

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/domain/notification"
	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
)

// StoreNameResolver supplies the merchant's store display name for message
// templates. Merchant profiles live outside this service.
type StoreNameResolver func(ctx context.Context, merchantID uuid.UUID) string

// OrderEventHandler turns accepted order events into customer notifications.
// It subscribes to created and status-changed events; rejected regressions
// never reach customers.
type OrderEventHandler struct {
	notifications notification.Repository
	dispatcher    *Service
	templates     *notification.Registry
	storeName     StoreNameResolver
	logger        *zap.Logger
}

// NewOrderEventHandler creates the handler
func NewOrderEventHandler(notifications notification.Repository, dispatcher *Service, templates *notification.Registry, storeName StoreNameResolver, logger *zap.Logger) *OrderEventHandler {
	return &OrderEventHandler{
		notifications: notifications,
		dispatcher:    dispatcher,
		templates:     templates,
		storeName:     storeName,
		logger:        logger,
	}
}

// EventTypes returns the order events this handler consumes
func (h *OrderEventHandler) EventTypes() []string {
	return []string{order.EventTypeOrderCreated, order.EventTypeStatusChanged}
}

// Handle builds and dispatches the notification for one order event
func (h *OrderEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *order.CreatedEvent:
		templateID := notification.TemplateOrderCreated
		if e.SourceSystem == order.SourceCalendly {
			templateID = notification.TemplateBookingCreated
		}
		return h.notify(ctx, e.MerchantID(), e.AggregateID(), e.EventType(), templateID, e.CustomerPhone, map[string]string{
			"customerName":   e.CustomerName,
			"orderNumber":    orderNumberOrID(e.OrderNumber, e.SourceOrderID),
			"total":          e.Total.StringFixed(2),
			"currency":       e.Currency,
			"storeName":      h.storeName(ctx, e.MerchantID()),
			"trackingNumber": "",
		})

	case *order.StatusChangedEvent:
		templateID, ok := statusTemplate(e.ToStatus, e.TrackingNumber)
		if !ok {
			return nil
		}
		return h.notify(ctx, e.MerchantID(), e.AggregateID(), e.EventType(), templateID, e.CustomerPhone, map[string]string{
			"customerName":   e.CustomerName,
			"orderNumber":    orderNumberOrID(e.OrderNumber, e.SourceOrderID),
			"total":          e.Total.StringFixed(2),
			"currency":       e.Currency,
			"storeName":      h.storeName(ctx, e.MerchantID()),
			"trackingNumber": e.TrackingNumber,
		})
	}
	return nil
}

func (h *OrderEventHandler) notify(ctx context.Context, merchantID, orderID uuid.UUID, eventType, templateID, phone string, data map[string]string) error {
	if phone == "" {
		h.logger.Debug("Skipping notification without customer phone",
			zap.String("order_id", orderID.String()),
			zap.String("event_type", eventType))
		return nil
	}

	tmpl, err := h.templates.Get(templateID)
	if err != nil {
		return err
	}

	n, err := notification.New(merchantID, orderID, eventType, templateID, phone, tmpl.Render(data))
	if err != nil {
		return err
	}
	if err := h.notifications.Save(ctx, n); err != nil {
		return err
	}

	return h.dispatcher.Dispatch(ctx, n)
}

// statusTemplate maps a new status to its message template. Pending and
// failed transitions produce no customer message.
func statusTemplate(to order.Status, trackingNumber string) (string, bool) {
	switch to {
	case order.StatusProcessing:
		if trackingNumber != "" {
			return notification.TemplateOrderShipped, true
		}
		return notification.TemplateOrderProcessing, true
	case order.StatusCompleted:
		return notification.TemplateOrderCompleted, true
	case order.StatusCancelled:
		return notification.TemplateOrderCancelled, true
	case order.StatusRefunded:
		return notification.TemplateOrderRefunded, true
	default:
		return "", false
	}
}

func orderNumberOrID(orderNumber, sourceOrderID string) string {
	if orderNumber != "" {
		return orderNumber
	}
	return sourceOrderID
}
