package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/webhook"
)

// WebhookEventModel is the persistence model for the webhook delivery
// ledger. The (merchant_id, provider, idempotency_key) unique index makes
// insert-if-absent the deduplication primitive.
type WebhookEventModel struct {
	ID             uuid.UUID          `gorm:"type:uuid;primary_key"`
	MerchantID     uuid.UUID          `gorm:"type:uuid;not null;index:idx_webhook_events_dedup,unique,priority:1"`
	Provider       order.SourceSystem `gorm:"type:varchar(20);not null;index:idx_webhook_events_dedup,unique,priority:2"`
	IdempotencyKey string             `gorm:"type:varchar(255);not null;index:idx_webhook_events_dedup,unique,priority:3"`
	Topic          string             `gorm:"type:varchar(100)"`
	Payload        []byte             `gorm:"type:bytea"`
	ArchiveKey     string             `gorm:"type:varchar(512)"`
	Outcome        webhook.Outcome    `gorm:"type:varchar(20);not null;index"`
	Error          string             `gorm:"type:text"`
	Attempts       int                `gorm:"not null;default:0"`
	ReceivedAt     time.Time          `gorm:"not null;index"`
	ProcessedAt    *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain webhook Event
func (m *WebhookEventModel) ToDomain() *webhook.Event {
	e := &webhook.Event{
		MerchantID:     m.MerchantID,
		Provider:       m.Provider,
		IdempotencyKey: m.IdempotencyKey,
		Topic:          m.Topic,
		Payload:        m.Payload,
		ArchiveKey:     m.ArchiveKey,
		Outcome:        m.Outcome,
		Error:          m.Error,
		Attempts:       m.Attempts,
		ReceivedAt:     m.ReceivedAt,
		ProcessedAt:    m.ProcessedAt,
	}
	e.ID = m.ID
	e.CreatedAt = m.CreatedAt
	e.UpdatedAt = m.UpdatedAt
	return e
}

// FromDomain populates the persistence model from a domain webhook Event
func (m *WebhookEventModel) FromDomain(e *webhook.Event) {
	m.ID = e.ID
	m.MerchantID = e.MerchantID
	m.Provider = e.Provider
	m.IdempotencyKey = e.IdempotencyKey
	m.Topic = e.Topic
	m.Payload = e.Payload
	m.ArchiveKey = e.ArchiveKey
	m.Outcome = e.Outcome
	m.Error = e.Error
	m.Attempts = e.Attempts
	m.ReceivedAt = e.ReceivedAt
	m.ProcessedAt = e.ProcessedAt
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// WebhookEventModelFromDomain creates a new persistence model from a domain
// webhook Event
func WebhookEventModelFromDomain(e *webhook.Event) *WebhookEventModel {
	m := &WebhookEventModel{}
	m.FromDomain(e)
	return m
}
