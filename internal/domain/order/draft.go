package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/shared"
)

// ChangeSource records which path produced a status change
type ChangeSource string

const (
	ChangeSourceWebhook  ChangeSource = "webhook"
	ChangeSourcePullSync ChangeSource = "pull-sync"
	ChangeSourceManual   ChangeSource = "manual"
)

// Draft is the canonical form an adapter produces from a provider payload
// or API response. Adapters never write orders directly; every draft goes
// through reconciliation.
type Draft struct {
	MerchantID     uuid.UUID
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
	Origin         ChangeSource
	OccurredAt     time.Time
	RawData        string
}

// NewOrderFromDraft creates the canonical order for a natural key seen for
// the first time. The draft's status becomes the initial status directly;
// there is no prior state to transition from, so no status-changed event is
// raised, only the created event.
func NewOrderFromDraft(d *Draft) (*Order, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	o, err := NewOrder(d.MerchantID, d.SourceSystem, d.SourceOrderID)
	if err != nil {
		return nil, err
	}
	if d.Kind != "" {
		o.Kind = d.Kind
	}
	o.RefreshDetails(d)

	o.Status = d.Status
	now := time.Now()
	switch d.Status {
	case StatusCompleted:
		o.CompletedAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}

	o.AddDomainEvent(NewCreatedEvent(o))
	return o, nil
}

// Validate checks the draft carries the identity and status fields
// reconciliation depends on
func (d *Draft) Validate() error {
	if d.MerchantID == uuid.Nil {
		return shared.NewDomainError("INVALID_MERCHANT", "Draft merchant ID is required")
	}
	if !d.SourceSystem.IsValid() {
		return shared.NewDomainError("INVALID_SOURCE", "Draft source system is invalid")
	}
	if d.SourceOrderID == "" {
		return shared.NewDomainError("INVALID_SOURCE_ORDER_ID", "Draft source order ID is required")
	}
	if !d.Status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Draft status is invalid")
	}
	if d.Origin == "" {
		return shared.NewDomainError("INVALID_ORIGIN", "Draft origin is required")
	}
	return nil
}
