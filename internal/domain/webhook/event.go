package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
)

// Outcome records what eventually happened to a delivery
type Outcome string

const (
	OutcomeReceived  Outcome = "received"
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// Event is one row in the idempotency ledger. It is written before any
// processing happens; a second delivery with the same key is acknowledged
// but never reprocessed.
type Event struct {
	shared.BaseEntity
	MerchantID     uuid.UUID
	Provider       order.SourceSystem
	IdempotencyKey string
	Topic          string
	// Payload is the raw delivery body, kept on the row so a failed
	// delivery can be replayed without the provider resending it
	Payload []byte
	// ArchiveKey is where the raw body was stored, if archiving succeeded
	ArchiveKey  string
	Outcome     Outcome
	Error       string
	Attempts    int
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}

// NewEvent creates a ledger row for a first-sight delivery
func NewEvent(merchantID uuid.UUID, provider order.SourceSystem, idempotencyKey, topic string, payload []byte) *Event {
	return &Event{
		BaseEntity:     shared.NewBaseEntity(),
		MerchantID:     merchantID,
		Provider:       provider,
		IdempotencyKey: idempotencyKey,
		Topic:          topic,
		Payload:        payload,
		Outcome:        OutcomeReceived,
		ReceivedAt:     time.Now(),
	}
}

// MarkProcessed records successful downstream processing
func (e *Event) MarkProcessed() {
	now := time.Now()
	e.Outcome = OutcomeProcessed
	e.Error = ""
	e.Attempts++
	e.ProcessedAt = &now
	e.UpdatedAt = now
}

// MarkFailed records a processing failure with enough context to replay
func (e *Event) MarkFailed(errMsg string) {
	now := time.Now()
	e.Outcome = OutcomeFailed
	e.Error = errMsg
	e.Attempts++
	e.ProcessedAt = &now
	e.UpdatedAt = now
}

// FallbackKey derives a stable idempotency key when the provider supplies
// no delivery ID: a hash over the merchant, provider, and raw payload.
func FallbackKey(merchantID uuid.UUID, provider order.SourceSystem, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(merchantID.String()))
	h.Write([]byte(":"))
	h.Write([]byte(provider))
	h.Write([]byte(":"))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Repository persists the idempotency ledger
type Repository interface {
	// InsertIfAbsent writes the event unless a row with the same
	// (provider, idempotency key) already exists. Returns true when the
	// row was inserted, false when it was a duplicate.
	InsertIfAbsent(ctx context.Context, event *Event) (bool, error)
	// FindByKey finds a ledger row by its idempotency key
	FindByKey(ctx context.Context, provider order.SourceSystem, key string) (*Event, error)
	// Update persists outcome changes
	Update(ctx context.Context, event *Event) error
	// FindReplayable lists rows that never finished processing: outcome
	// received or failed, last touched before olderThan, and under the
	// attempt cap. Oldest first.
	FindReplayable(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]Event, error)
	// FindForMerchant lists a merchant's ledger rows, newest first
	FindForMerchant(ctx context.Context, merchantID uuid.UUID, filter shared.Filter) ([]Event, error)
}
