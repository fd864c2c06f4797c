package whatsapp

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IncomingMessage is one inbound WhatsApp message relayed by the provider
// webhook
type IncomingMessage struct {
	// InstanceID is the provider instance that received the message
	InstanceID string
	// ChatID is the provider chat identifier, e.g. "9665xxxxxxx@c.us"
	ChatID string
	// SenderPhone is the sender's phone number in international format
	SenderPhone string
	// SenderName is the sender's display name, when the provider sends one
	SenderName string
	// Text is the message body; empty for non-text message types
	Text string
	// MessageType is the provider message type, e.g. "textMessage"
	MessageType string
	// ReceivedAt is when the provider recorded the message
	ReceivedAt time.Time
}

// Agent consumes inbound customer messages. The conversational reply flow
// lives behind this port.
type Agent interface {
	// HandleIncomingMessage hands one inbound message to the agent
	HandleIncomingMessage(ctx context.Context, merchantID uuid.UUID, msg IncomingMessage) error
}
