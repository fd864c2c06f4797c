package order

import (
	"github.com/shopspring/decimal"

	"github.com/wasla/backend/internal/domain/shared"
)

// AggregateTypeOrder is the aggregate type identifier for orders
const AggregateTypeOrder = "Order"

// Order event types
const (
	EventTypeOrderCreated       = "order.created"
	EventTypeStatusChanged      = "order.status_changed"
	EventTypeRegressionRejected = "order.regression_rejected"
)

// CreatedEvent is raised exactly once, on first sight of a natural key
type CreatedEvent struct {
	shared.BaseDomainEvent
	SourceSystem  SourceSystem    `json:"source_system"`
	SourceOrderID string          `json:"source_order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	Status        Status          `json:"status"`
}

// NewCreatedEvent creates an order created event
func NewCreatedEvent(o *Order) *CreatedEvent {
	return &CreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeOrder, o.ID, o.MerchantID),
		SourceSystem:    o.SourceSystem,
		SourceOrderID:   o.SourceOrderID,
		OrderNumber:     o.OrderNumber,
		CustomerName:    o.Customer.Name,
		CustomerPhone:   o.Customer.Phone,
		Total:           o.Amounts.Total,
		Currency:        o.Currency,
		Status:          o.Status,
	}
}

// EventType returns the event type
func (e *CreatedEvent) EventType() string {
	return EventTypeOrderCreated
}

// StatusChangedEvent is raised on every accepted status transition
type StatusChangedEvent struct {
	shared.BaseDomainEvent
	SourceSystem   SourceSystem    `json:"source_system"`
	SourceOrderID  string          `json:"source_order_id"`
	OrderNumber    string          `json:"order_number"`
	CustomerName   string          `json:"customer_name"`
	CustomerPhone  string          `json:"customer_phone"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	FromStatus     Status          `json:"from_status"`
	ToStatus       Status          `json:"to_status"`
	Source         ChangeSource    `json:"source"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
}

// NewStatusChangedEvent creates a status changed event
func NewStatusChangedEvent(o *Order, from, to Status, source ChangeSource) *StatusChangedEvent {
	return &StatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatusChanged, AggregateTypeOrder, o.ID, o.MerchantID),
		SourceSystem:    o.SourceSystem,
		SourceOrderID:   o.SourceOrderID,
		OrderNumber:     o.OrderNumber,
		CustomerName:    o.Customer.Name,
		CustomerPhone:   o.Customer.Phone,
		Total:           o.Amounts.Total,
		Currency:        o.Currency,
		FromStatus:      from,
		ToStatus:        to,
		Source:          source,
		TrackingNumber:  o.TrackingNumber,
	}
}

// EventType returns the event type
func (e *StatusChangedEvent) EventType() string {
	return EventTypeStatusChanged
}

// RegressionRejectedEvent is raised when a stale update is refused. It is
// informational; nothing retries it.
type RegressionRejectedEvent struct {
	shared.BaseDomainEvent
	SourceSystem    SourceSystem `json:"source_system"`
	SourceOrderID   string       `json:"source_order_id"`
	CurrentStatus   Status       `json:"current_status"`
	AttemptedStatus Status       `json:"attempted_status"`
	Source          ChangeSource `json:"source"`
}

// NewRegressionRejectedEvent creates a regression rejected event
func NewRegressionRejectedEvent(o *Order, attempted Status, source ChangeSource) *RegressionRejectedEvent {
	return &RegressionRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRegressionRejected, AggregateTypeOrder, o.ID, o.MerchantID),
		SourceSystem:    o.SourceSystem,
		SourceOrderID:   o.SourceOrderID,
		CurrentStatus:   o.Status,
		AttemptedStatus: attempted,
		Source:          source,
	}
}

// EventType returns the event type
func (e *RegressionRejectedEvent) EventType() string {
	return EventTypeRegressionRejected
}
