package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/shared"
)

// Dispatch errors
var (
	// ErrQuotaExceeded indicates the merchant has no message quota left;
	// never retried
	ErrQuotaExceeded = errors.New("message quota exceeded")
	// ErrRetriesExhausted indicates the attempt cap was reached
	ErrRetriesExhausted = errors.New("notification retries exhausted")
)

// Status is the lifecycle of one logical notification
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "permanentFailure"
)

// AttemptResult classifies the outcome of one dispatch try
type AttemptResult string

const (
	AttemptSent             AttemptResult = "sent"
	AttemptTransientFailure AttemptResult = "transientFailure"
	AttemptPermanentFailure AttemptResult = "permanentFailure"
)

// FailureKind classifies why an attempt failed, which decides what the
// dispatcher does next
type FailureKind string

const (
	// FailureTransient covers timeouts, provider 5xx, and rate limits;
	// retried with backoff on the same instance
	FailureTransient FailureKind = "transient"
	// FailureInstance covers revoked tokens and disconnected instances;
	// the next attempt uses a different instance
	FailureInstance FailureKind = "instance"
	// FailurePermanent covers quota exhaustion and empty pools;
	// never retried
	FailurePermanent FailureKind = "permanent"
)

// Attempt is one dispatch try. Attempts are immutable and their numbers
// increase monotonically until the notification is sent or permanently
// failed.
type Attempt struct {
	shared.BaseEntity
	NotificationID uuid.UUID
	InstanceID     string
	AttemptNumber  int
	Result         AttemptResult
	FailureKind    FailureKind
	FailureReason  string
	ScheduledAt    time.Time
	ExecutedAt     *time.Time
}

// Notification is one logical outbound message tied to an order or booking.
// Its attempts record every dispatch try, successful or not.
type Notification struct {
	shared.MerchantAggregateRoot
	OrderID       uuid.UUID
	EventType     string
	TemplateID    string
	CustomerPhone string
	Message       string
	Status        Status
	Attempts      []Attempt
	SentAt        *time.Time
	// NextAttemptAt schedules the next retry; nil when no retry is due
	NextAttemptAt *time.Time
	LastError     string
}

// New creates a pending notification
func New(merchantID, orderID uuid.UUID, eventType, templateID, customerPhone, message string) (*Notification, error) {
	if merchantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MERCHANT", "Merchant ID is required")
	}
	if customerPhone == "" {
		return nil, shared.NewDomainError("INVALID_PHONE", "Customer phone is required")
	}
	if message == "" {
		return nil, shared.NewDomainError("INVALID_MESSAGE", "Message body is required")
	}

	n := &Notification{
		MerchantAggregateRoot: shared.NewMerchantAggregateRoot(merchantID),
		OrderID:               orderID,
		EventType:             eventType,
		TemplateID:            templateID,
		CustomerPhone:         customerPhone,
		Message:               message,
		Status:                StatusPending,
	}
	return n, nil
}

// NextAttemptNumber returns the number the next attempt will carry
func (n *Notification) NextAttemptNumber() int {
	return len(n.Attempts) + 1
}

// RecordSent appends a successful attempt and closes the retry chain
func (n *Notification) RecordSent(instanceID string, scheduledAt time.Time) {
	now := time.Now()
	n.Attempts = append(n.Attempts, Attempt{
		BaseEntity:     shared.NewBaseEntity(),
		NotificationID: n.ID,
		InstanceID:     instanceID,
		AttemptNumber:  n.NextAttemptNumber(),
		Result:         AttemptSent,
		ScheduledAt:    scheduledAt,
		ExecutedAt:     &now,
	})
	n.Status = StatusSent
	n.SentAt = &now
	n.NextAttemptAt = nil
	n.LastError = ""
	n.UpdatedAt = now
}

// RecordTransientFailure appends a failed attempt and schedules the next
// try, or permanently fails the notification when the cap is reached.
// Returns true while another retry is scheduled.
func (n *Notification) RecordTransientFailure(instanceID string, kind FailureKind, reason string, scheduledAt, nextAttemptAt time.Time, maxAttempts int) bool {
	now := time.Now()
	attemptNo := n.NextAttemptNumber()
	result := AttemptTransientFailure
	retrying := attemptNo < maxAttempts
	if !retrying {
		result = AttemptPermanentFailure
	}
	n.Attempts = append(n.Attempts, Attempt{
		BaseEntity:     shared.NewBaseEntity(),
		NotificationID: n.ID,
		InstanceID:     instanceID,
		AttemptNumber:  attemptNo,
		Result:         result,
		FailureKind:    kind,
		FailureReason:  reason,
		ScheduledAt:    scheduledAt,
		ExecutedAt:     &now,
	})
	n.LastError = reason
	n.UpdatedAt = now
	if retrying {
		n.NextAttemptAt = &nextAttemptAt
	} else {
		n.Status = StatusFailed
		n.NextAttemptAt = nil
	}
	return retrying
}

// RecordPermanentFailure appends a final attempt and stops the chain.
// Used for quota exhaustion and empty instance pools.
func (n *Notification) RecordPermanentFailure(instanceID string, kind FailureKind, reason string, scheduledAt time.Time) {
	now := time.Now()
	n.Attempts = append(n.Attempts, Attempt{
		BaseEntity:     shared.NewBaseEntity(),
		NotificationID: n.ID,
		InstanceID:     instanceID,
		AttemptNumber:  n.NextAttemptNumber(),
		Result:         AttemptPermanentFailure,
		FailureKind:    kind,
		FailureReason:  reason,
		ScheduledAt:    scheduledAt,
		ExecutedAt:     &now,
	})
	n.Status = StatusFailed
	n.NextAttemptAt = nil
	n.LastError = reason
	n.UpdatedAt = now
}

// IsClosed reports whether the retry chain has ended
func (n *Notification) IsClosed() bool {
	return n.Status == StatusSent || n.Status == StatusFailed
}

// Repository persists notifications with their attempts
type Repository interface {
	// FindByID finds a notification by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	// FindByOrder lists notifications for one order, newest first
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]Notification, error)
	// FindDue lists pending notifications whose NextAttemptAt has passed
	FindDue(ctx context.Context, now time.Time, limit int) ([]Notification, error)
	// Save persists the notification and any new attempts
	Save(ctx context.Context, n *Notification) error
}

// Quota is the billing collaborator port. Dispatch checks remaining quota
// before every send; exhaustion is a distinct non-retryable outcome.
type Quota interface {
	// Consume reserves one message from the merchant's quota.
	// Returns ErrQuotaExceeded when nothing is left.
	Consume(ctx context.Context, merchantID uuid.UUID) error
}
