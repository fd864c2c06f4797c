package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/notification"
)

// NotificationModel is the persistence model for outbound notifications
type NotificationModel struct {
	ID            uuid.UUID           `gorm:"type:uuid;primary_key"`
	MerchantID    uuid.UUID           `gorm:"type:uuid;not null;index"`
	OrderID       uuid.UUID           `gorm:"type:uuid;not null;index"`
	EventType     string              `gorm:"type:varchar(50);not null"`
	TemplateID    string              `gorm:"type:varchar(50)"`
	CustomerPhone string              `gorm:"type:varchar(30);not null"`
	Message       string              `gorm:"type:text;not null"`
	Status        notification.Status `gorm:"type:varchar(20);not null;index:idx_notifications_due,priority:1"`
	SentAt        *time.Time
	NextAttemptAt *time.Time     `gorm:"index:idx_notifications_due,priority:2"`
	LastError     string         `gorm:"type:text"`
	Attempts      []AttemptModel `gorm:"foreignKey:NotificationID;references:ID"`
	Version       int            `gorm:"not null;default:1"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// AttemptModel is the persistence model for one dispatch attempt
type AttemptModel struct {
	ID             uuid.UUID                  `gorm:"type:uuid;primary_key"`
	NotificationID uuid.UUID                  `gorm:"type:uuid;not null;index"`
	InstanceID     string                     `gorm:"type:varchar(50)"`
	AttemptNumber  int                        `gorm:"not null"`
	Result         notification.AttemptResult `gorm:"type:varchar(30);not null"`
	FailureKind    notification.FailureKind   `gorm:"type:varchar(20)"`
	FailureReason  string                     `gorm:"type:text"`
	ScheduledAt    time.Time                  `gorm:"not null"`
	ExecutedAt     *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AttemptModel) TableName() string {
	return "notification_attempts"
}

// ToDomain converts the persistence model to a domain Notification
func (m *NotificationModel) ToDomain() *notification.Notification {
	n := &notification.Notification{
		OrderID:       m.OrderID,
		EventType:     m.EventType,
		TemplateID:    m.TemplateID,
		CustomerPhone: m.CustomerPhone,
		Message:       m.Message,
		Status:        m.Status,
		SentAt:        m.SentAt,
		NextAttemptAt: m.NextAttemptAt,
		LastError:     m.LastError,
	}
	n.ID = m.ID
	n.MerchantID = m.MerchantID
	n.Version = m.Version
	n.CreatedAt = m.CreatedAt
	n.UpdatedAt = m.UpdatedAt

	n.Attempts = make([]notification.Attempt, 0, len(m.Attempts))
	for i := range m.Attempts {
		n.Attempts = append(n.Attempts, *m.Attempts[i].ToDomain())
	}
	return n
}

// FromDomain populates the persistence model from a domain Notification
func (m *NotificationModel) FromDomain(n *notification.Notification) {
	m.ID = n.ID
	m.MerchantID = n.MerchantID
	m.OrderID = n.OrderID
	m.EventType = n.EventType
	m.TemplateID = n.TemplateID
	m.CustomerPhone = n.CustomerPhone
	m.Message = n.Message
	m.Status = n.Status
	m.SentAt = n.SentAt
	m.NextAttemptAt = n.NextAttemptAt
	m.LastError = n.LastError
	m.Version = n.Version
	m.CreatedAt = n.CreatedAt
	m.UpdatedAt = n.UpdatedAt

	m.Attempts = make([]AttemptModel, 0, len(n.Attempts))
	for i := range n.Attempts {
		m.Attempts = append(m.Attempts, *AttemptModelFromDomain(&n.Attempts[i]))
	}
}

// NotificationModelFromDomain creates a new persistence model from a domain
// Notification
func NotificationModelFromDomain(n *notification.Notification) *NotificationModel {
	m := &NotificationModel{}
	m.FromDomain(n)
	return m
}

// ToDomain converts the persistence model to a domain Attempt
func (m *AttemptModel) ToDomain() *notification.Attempt {
	a := &notification.Attempt{
		NotificationID: m.NotificationID,
		InstanceID:     m.InstanceID,
		AttemptNumber:  m.AttemptNumber,
		Result:         m.Result,
		FailureKind:    m.FailureKind,
		FailureReason:  m.FailureReason,
		ScheduledAt:    m.ScheduledAt,
		ExecutedAt:     m.ExecutedAt,
	}
	a.ID = m.ID
	a.CreatedAt = m.CreatedAt
	a.UpdatedAt = m.UpdatedAt
	return a
}

// AttemptModelFromDomain creates a new persistence model from a domain
// Attempt
func AttemptModelFromDomain(a *notification.Attempt) *AttemptModel {
	return &AttemptModel{
		ID:             a.ID,
		NotificationID: a.NotificationID,
		InstanceID:     a.InstanceID,
		AttemptNumber:  a.AttemptNumber,
		Result:         a.Result,
		FailureKind:    a.FailureKind,
		FailureReason:  a.FailureReason,
		ScheduledAt:    a.ScheduledAt,
		ExecutedAt:     a.ExecutedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}
