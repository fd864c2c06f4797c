package event

import (
	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/whatsapp"
)

// RegisterAllEvents registers all domain event types with the serializer.
// Required for the OutboxProcessor to deserialize events from the outbox table.
func RegisterAllEvents(serializer *EventSerializer) {
	// Order domain events
	serializer.Register(order.EventTypeOrderCreated, &order.CreatedEvent{})
	serializer.Register(order.EventTypeStatusChanged, &order.StatusChangedEvent{})
	serializer.Register(order.EventTypeRegressionRejected, &order.RegressionRejectedEvent{})

	// WhatsApp instance events
	serializer.Register(whatsapp.EventTypeInstanceStatusChanged, &whatsapp.InstanceStatusEvent{})
	serializer.Register(whatsapp.EventTypeInstanceExpired, &whatsapp.InstanceExpiredEvent{})
}
