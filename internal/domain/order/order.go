package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wasla/backend/internal/domain/shared"
)

// SourceSystem identifies the platform an order originated from
type SourceSystem string

const (
	SourceNative      SourceSystem = "native"
	SourceWooCommerce SourceSystem = "woocommerce"
	SourceZid         SourceSystem = "zid"
	SourceCalendly    SourceSystem = "calendly"
)

// IsValid checks if the source system is valid
func (s SourceSystem) IsValid() bool {
	switch s {
	case SourceNative, SourceWooCommerce, SourceZid, SourceCalendly:
		return true
	}
	return false
}

// String returns the string representation
func (s SourceSystem) String() string {
	return string(s)
}

// Status represents the canonical order status
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted,
		StatusCancelled, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further status changes are allowed
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target status.
// Terminal states have no outgoing edges, so a late out-of-order update can
// never move an order backward.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusProcessing || target == StatusCompleted ||
			target == StatusCancelled || target == StatusFailed
	case StatusProcessing:
		return target == StatusCompleted || target == StatusCancelled ||
			target == StatusRefunded || target == StatusFailed
	default:
		return false
	}
}

// Customer holds the buyer contact details carried on an order
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// LineItem is one purchased item on an order.
// Stored as a structured embedded type, not an opaque JSON blob.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// Amounts holds the monetary breakdown of an order
type Amounts struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Order is the canonical, merchant-scoped order record. Exactly one exists
// per (merchant, source system, source order id); it is only mutated through
// reconciliation and never deleted.
type Order struct {
	shared.MerchantAggregateRoot
	SourceSystem   SourceSystem
	SourceOrderID  string
	OrderNumber    string
	Kind           Kind
	Customer       Customer
	LineItems      []LineItem
	Amounts        Amounts
	Currency       string
	Status         Status
	TrackingNumber string
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	ArchivedAt     *time.Time
}

// Kind distinguishes commerce orders from scheduling bookings
type Kind string

const (
	KindOrder   Kind = "order"
	KindBooking Kind = "booking"
)

// NewOrder creates a canonical order from a draft's identity fields
func NewOrder(merchantID uuid.UUID, source SourceSystem, sourceOrderID string) (*Order, error) {
	if merchantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MERCHANT", "Merchant ID is required")
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError("INVALID_SOURCE", fmt.Sprintf("Unknown source system: %s", source))
	}
	if sourceOrderID == "" {
		return nil, shared.NewDomainError("INVALID_SOURCE_ORDER_ID", "Source order ID is required")
	}

	o := &Order{
		MerchantAggregateRoot: shared.NewMerchantAggregateRoot(merchantID),
		SourceSystem:          source,
		SourceOrderID:         sourceOrderID,
		Kind:                  KindOrder,
		Status:                StatusPending,
		Currency:              "SAR",
	}
	return o, nil
}

// NaturalKey returns the dedup key for this order
func (o *Order) NaturalKey() string {
	return fmt.Sprintf("%s:%s:%s", o.MerchantID, o.SourceSystem, o.SourceOrderID)
}

// ChangeStatus transitions the order to a new status. A transition the
// graph forbids returns ErrRegressionRejected and leaves the order
// untouched; the caller records the rejection for audit.
func (o *Order) ChangeStatus(target Status, source ChangeSource) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown status: %s", target))
	}
	if target == o.Status {
		return nil
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.ErrRegressionRejected
	}

	from := o.Status
	o.Status = target
	now := time.Now()
	switch target {
	case StatusCompleted:
		o.CompletedAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}
	o.UpdatedAt = now

	o.AddDomainEvent(NewStatusChangedEvent(o, from, target, source))
	return nil
}

// RefreshDetails updates non-status fields from a newer draft snapshot.
// Detail refreshes never raise events; only status changes do.
func (o *Order) RefreshDetails(d *Draft) {
	if d.OrderNumber != "" {
		o.OrderNumber = d.OrderNumber
	}
	if d.Customer.Name != "" || d.Customer.Phone != "" || d.Customer.Email != "" {
		o.Customer = d.Customer
	}
	if len(d.LineItems) > 0 {
		o.LineItems = d.LineItems
	}
	if !d.Amounts.Total.IsZero() {
		o.Amounts = d.Amounts
	}
	if d.Currency != "" {
		o.Currency = d.Currency
	}
	if d.TrackingNumber != "" {
		o.TrackingNumber = d.TrackingNumber
	}
	o.UpdatedAt = time.Now()
}

// Archive soft-archives the order. Orders are never hard-deleted.
func (o *Order) Archive() {
	if o.ArchivedAt != nil {
		return
	}
	now := time.Now()
	o.ArchivedAt = &now
	o.UpdatedAt = now
}

// IsArchived returns true if the order has been soft-archived
func (o *Order) IsArchived() bool {
	return o.ArchivedAt != nil
}
