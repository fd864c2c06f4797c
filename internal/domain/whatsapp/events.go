package whatsapp

import (
	"github.com/wasla/backend/internal/domain/shared"
)

// AggregateTypeInstance is the aggregate type identifier for instances
const AggregateTypeInstance = "WhatsAppInstance"

// Instance event types
const (
	EventTypeInstanceStatusChanged = "instance.status_changed"
	EventTypeInstanceExpired       = "instance.expired"
)

// InstanceStatusEvent is raised on every instance state transition
type InstanceStatusEvent struct {
	shared.BaseDomainEvent
	InstanceID string         `json:"instance_id"`
	FromStatus InstanceStatus `json:"from_status"`
	ToStatus   InstanceStatus `json:"to_status"`
	LastError  string         `json:"last_error,omitempty"`
}

// NewInstanceStatusEvent creates an instance status changed event
func NewInstanceStatusEvent(i *Instance, from, to InstanceStatus) *InstanceStatusEvent {
	return &InstanceStatusEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstanceStatusChanged, AggregateTypeInstance, i.ID, i.MerchantID),
		InstanceID:      i.InstanceID,
		FromStatus:      from,
		ToStatus:        to,
		LastError:       i.LastError,
	}
}

// EventType returns the event type
func (e *InstanceStatusEvent) EventType() string {
	return EventTypeInstanceStatusChanged
}

// InstanceExpiredEvent is raised by the expiry sweep so the merchant can be
// told to reconnect
type InstanceExpiredEvent struct {
	shared.BaseDomainEvent
	InstanceID string         `json:"instance_id"`
	FromStatus InstanceStatus `json:"from_status"`
}

// NewInstanceExpiredEvent creates an instance expired event
func NewInstanceExpiredEvent(i *Instance, from InstanceStatus) *InstanceExpiredEvent {
	return &InstanceExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstanceExpired, AggregateTypeInstance, i.ID, i.MerchantID),
		InstanceID:      i.InstanceID,
		FromStatus:      from,
	}
}

// EventType returns the event type
func (e *InstanceExpiredEvent) EventType() string {
	return EventTypeInstanceExpired
}
