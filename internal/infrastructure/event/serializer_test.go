package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasla/backend/internal/domain/shared"
)

func TestEventSerializerRegister(t *testing.T) {
	serializer := NewEventSerializer()

	serializer.Register("order.synced", &syncEvent{})

	assert.True(t, serializer.IsRegistered("order.synced"))
	assert.False(t, serializer.IsRegistered("order.status_changed"))
}

func TestEventSerializerRegisteredTypes(t *testing.T) {
	serializer := NewEventSerializer()

	serializer.Register("order.synced", &syncEvent{})
	serializer.Register("order.status_changed", &syncEvent{})

	types := serializer.RegisteredTypes()
	assert.ElementsMatch(t, []string{"order.synced", "order.status_changed"}, types)
}

func TestEventSerializerSerialize(t *testing.T) {
	serializer := NewEventSerializer()
	event := newSyncEvent("order.synced", uuid.New())

	data, err := serializer.Serialize(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"order_number":"SA-1001"`)
}

func TestEventSerializerRoundTrip(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("order.synced", &syncEvent{})

	merchantID := uuid.New()
	orderID := uuid.New()
	original := &syncEvent{
		BaseDomainEvent: shared.BaseDomainEvent{
			ID:              uuid.New(),
			Type:            "order.synced",
			Timestamp:       time.Now().Truncate(time.Second),
			AggID:           orderID,
			AggType:         "Order",
			MerchantIDValue: merchantID,
		},
		OrderNumber: "SA-2045",
	}

	data, err := serializer.Serialize(original)
	require.NoError(t, err)

	restored, err := serializer.Deserialize("order.synced", data)
	require.NoError(t, err)

	event, ok := restored.(*syncEvent)
	require.True(t, ok)
	assert.Equal(t, original.EventID(), event.EventID())
	assert.Equal(t, original.EventType(), event.EventType())
	assert.Equal(t, orderID, event.AggregateID())
	assert.Equal(t, "Order", event.AggregateType())
	assert.Equal(t, merchantID, event.MerchantID())
	assert.Equal(t, "SA-2045", event.OrderNumber)
}

func TestEventSerializerDeserializeUnknownType(t *testing.T) {
	serializer := NewEventSerializer()

	_, err := serializer.Deserialize("order.legacy", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestEventSerializerDeserializeBadPayload(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("order.synced", &syncEvent{})

	_, err := serializer.Deserialize("order.synced", []byte(`{"order_number":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode order.synced payload")
}
