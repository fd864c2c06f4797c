package whatsapp

import (
	"context"
	"errors"
	"time"
)

// Gateway errors, classified so the dispatcher can pick a retry strategy
var (
	// ErrGatewayTransient covers timeouts, 5xx and 429 responses; the send
	// may succeed on a later attempt with the same instance
	ErrGatewayTransient = errors.New("whatsapp gateway transient failure")
	// ErrInstanceNotAuthorized covers 401/403 and unauthorized instance
	// state; the send should fail over to a different instance
	ErrInstanceNotAuthorized = errors.New("whatsapp instance not authorized")
	// ErrMessageRejected covers malformed requests the provider will never
	// accept; retrying is pointless
	ErrMessageRejected = errors.New("whatsapp message rejected")
)

// RateLimitError carries the wait the gateway asked for on a 429. It wraps
// ErrGatewayTransient so errors.Is classification still works.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	return "whatsapp gateway rate limited, retry after " + e.RetryAfter.String()
}

// Unwrap returns the transient sentinel
func (e *RateLimitError) Unwrap() error {
	return ErrGatewayTransient
}

// InstanceState is the raw connection state Green API reports
type InstanceState string

const (
	StateAuthorized    InstanceState = "authorized"
	StateNotAuthorized InstanceState = "notAuthorized"
	StateBlocked       InstanceState = "blocked"
	StateStarting      InstanceState = "starting"
)

// Gateway sends messages through a provisioned WhatsApp instance
type Gateway interface {
	// SendMessage delivers text to the phone number through the given
	// instance and returns the provider message ID
	SendMessage(ctx context.Context, inst *Instance, phone, text string) (string, error)
	// GetState reports the instance connection state
	GetState(ctx context.Context, inst *Instance) (InstanceState, error)
}
