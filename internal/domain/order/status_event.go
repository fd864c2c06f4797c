package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/shared"
)

// StatusEventOutcome records whether a status update was applied or rejected
type StatusEventOutcome string

const (
	StatusEventApplied  StatusEventOutcome = "applied"
	StatusEventRejected StatusEventOutcome = "rejected-regression"
)

// StatusEvent is an append-only record of one attempted status transition.
// Rejected regressions are recorded too, so out-of-order deliveries leave an
// audit trail even though they never change the order.
type StatusEvent struct {
	shared.BaseEntity
	MerchantID uuid.UUID
	OrderID    uuid.UUID
	FromStatus Status
	ToStatus   Status
	Source     ChangeSource
	Outcome    StatusEventOutcome
	OccurredAt time.Time
}

// NewStatusEvent records an applied transition
func NewStatusEvent(o *Order, from, to Status, source ChangeSource) *StatusEvent {
	return &StatusEvent{
		BaseEntity: shared.NewBaseEntity(),
		MerchantID: o.MerchantID,
		OrderID:    o.ID,
		FromStatus: from,
		ToStatus:   to,
		Source:     source,
		Outcome:    StatusEventApplied,
		OccurredAt: time.Now(),
	}
}

// NewRejectedStatusEvent records a transition the status graph refused
func NewRejectedStatusEvent(o *Order, attempted Status, source ChangeSource) *StatusEvent {
	return &StatusEvent{
		BaseEntity: shared.NewBaseEntity(),
		MerchantID: o.MerchantID,
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   attempted,
		Source:     source,
		Outcome:    StatusEventRejected,
		OccurredAt: time.Now(),
	}
}
