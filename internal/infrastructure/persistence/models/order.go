package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wasla/backend/internal/domain/order"
)

// OrderModel is the persistence model for the canonical Order aggregate.
// The (merchant_id, source_system, source_order_id) unique index backs the
// natural key across processes.
type OrderModel struct {
	ID             uuid.UUID          `gorm:"type:uuid;primary_key"`
	MerchantID     uuid.UUID          `gorm:"type:uuid;not null;index:idx_orders_natural_key,unique,priority:1"`
	SourceSystem   order.SourceSystem `gorm:"type:varchar(20);not null;index:idx_orders_natural_key,unique,priority:2"`
	SourceOrderID  string             `gorm:"type:varchar(100);not null;index:idx_orders_natural_key,unique,priority:3"`
	OrderNumber    string             `gorm:"type:varchar(100)"`
	Kind           order.Kind         `gorm:"type:varchar(20);not null;default:'order'"`
	CustomerJSON   string             `gorm:"type:jsonb;column:customer"`
	LineItemsJSON  string             `gorm:"type:jsonb;column:line_items"`
	Subtotal       decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0"`
	Shipping       decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0"`
	Tax            decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0"`
	Discount       decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0"`
	Total          decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0;index"`
	Currency       string             `gorm:"type:varchar(3);not null;default:'SAR'"`
	Status         order.Status       `gorm:"type:varchar(20);not null;index:idx_orders_merchant_status,priority:2"`
	TrackingNumber string             `gorm:"type:varchar(100)"`
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	ArchivedAt     *time.Time `gorm:"index"`
	Version        int        `gorm:"not null;default:1"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		SourceSystem:  m.SourceSystem,
		SourceOrderID: m.SourceOrderID,
		OrderNumber:   m.OrderNumber,
		Kind:          m.Kind,
		Amounts: order.Amounts{
			Subtotal: m.Subtotal,
			Shipping: m.Shipping,
			Tax:      m.Tax,
			Discount: m.Discount,
			Total:    m.Total,
		},
		Currency:       m.Currency,
		Status:         m.Status,
		TrackingNumber: m.TrackingNumber,
		CompletedAt:    m.CompletedAt,
		CancelledAt:    m.CancelledAt,
		ArchivedAt:     m.ArchivedAt,
	}
	o.ID = m.ID
	o.MerchantID = m.MerchantID
	o.Version = m.Version
	o.CreatedAt = m.CreatedAt
	o.UpdatedAt = m.UpdatedAt

	if m.CustomerJSON != "" {
		_ = json.Unmarshal([]byte(m.CustomerJSON), &o.Customer)
	}
	if m.LineItemsJSON != "" {
		var items []order.LineItem
		if err := json.Unmarshal([]byte(m.LineItemsJSON), &items); err == nil {
			o.LineItems = items
		}
	}
	return o
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *order.Order) {
	m.ID = o.ID
	m.MerchantID = o.MerchantID
	m.SourceSystem = o.SourceSystem
	m.SourceOrderID = o.SourceOrderID
	m.OrderNumber = o.OrderNumber
	m.Kind = o.Kind
	m.Subtotal = o.Amounts.Subtotal
	m.Shipping = o.Amounts.Shipping
	m.Tax = o.Amounts.Tax
	m.Discount = o.Amounts.Discount
	m.Total = o.Amounts.Total
	m.Currency = o.Currency
	m.Status = o.Status
	m.TrackingNumber = o.TrackingNumber
	m.CompletedAt = o.CompletedAt
	m.CancelledAt = o.CancelledAt
	m.ArchivedAt = o.ArchivedAt
	m.Version = o.Version
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt

	if customer, err := json.Marshal(o.Customer); err == nil {
		m.CustomerJSON = string(customer)
	}
	if items, err := json.Marshal(o.LineItems); err == nil {
		m.LineItemsJSON = string(items)
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// StatusEventModel is the persistence model for the order status event
// ledger. Rows are append-only.
type StatusEventModel struct {
	ID         uuid.UUID                `gorm:"type:uuid;primary_key"`
	MerchantID uuid.UUID                `gorm:"type:uuid;not null;index"`
	OrderID    uuid.UUID                `gorm:"type:uuid;not null;index:idx_status_events_order,priority:1"`
	FromStatus order.Status             `gorm:"type:varchar(20);not null"`
	ToStatus   order.Status             `gorm:"type:varchar(20);not null"`
	Source     order.ChangeSource       `gorm:"type:varchar(20);not null"`
	Outcome    order.StatusEventOutcome `gorm:"type:varchar(30);not null"`
	OccurredAt time.Time                `gorm:"not null;index:idx_status_events_order,priority:2"`
	CreatedAt  time.Time                `gorm:"not null"`
	UpdatedAt  time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StatusEventModel) TableName() string {
	return "order_status_events"
}

// ToDomain converts the persistence model to a domain StatusEvent
func (m *StatusEventModel) ToDomain() *order.StatusEvent {
	e := &order.StatusEvent{
		MerchantID: m.MerchantID,
		OrderID:    m.OrderID,
		FromStatus: m.FromStatus,
		ToStatus:   m.ToStatus,
		Source:     m.Source,
		Outcome:    m.Outcome,
		OccurredAt: m.OccurredAt,
	}
	e.ID = m.ID
	e.CreatedAt = m.CreatedAt
	e.UpdatedAt = m.UpdatedAt
	return e
}

// StatusEventModelFromDomain creates a new persistence model from a domain
// StatusEvent
func StatusEventModelFromDomain(e *order.StatusEvent) *StatusEventModel {
	return &StatusEventModel{
		ID:         e.ID,
		MerchantID: e.MerchantID,
		OrderID:    e.OrderID,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		Source:     e.Source,
		Outcome:    e.Outcome,
		OccurredAt: e.OccurredAt,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}
