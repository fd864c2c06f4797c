package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/shared"
)

// Pool errors
var (
	// ErrInstanceUnavailable indicates no active instance exists for the
	// merchant; dispatch records a permanent failure instead of retrying
	ErrInstanceUnavailable = errors.New("no active whatsapp instance available")
)

// Role distinguishes the preferred instance from failover candidates
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// InstanceStatus represents the connection state of a Green API instance
type InstanceStatus string

const (
	InstancePending  InstanceStatus = "pending"
	InstanceActive   InstanceStatus = "active"
	InstanceInactive InstanceStatus = "inactive"
	InstanceExpired  InstanceStatus = "expired"
)

// IsValid checks if the status is valid
func (s InstanceStatus) IsValid() bool {
	switch s {
	case InstancePending, InstanceActive, InstanceInactive, InstanceExpired:
		return true
	}
	return false
}

// CanTransitionTo checks the instance state machine. Inactive and expired
// instances return to active only through a fresh successful connection
// test; there is no direct pending to inactive edge.
func (s InstanceStatus) CanTransitionTo(target InstanceStatus) bool {
	switch s {
	case InstancePending:
		return target == InstanceActive || target == InstanceExpired
	case InstanceActive:
		return target == InstanceInactive || target == InstanceExpired
	case InstanceInactive, InstanceExpired:
		return target == InstanceActive
	default:
		return false
	}
}

// Instance is one Green API WhatsApp connection owned by a merchant.
// At most one active instance per merchant holds the primary role.
type Instance struct {
	shared.MerchantAggregateRoot
	// InstanceID is the Green API instance identifier, unique per merchant
	InstanceID  string
	Token       string
	APIURL      string
	PhoneNumber string
	Role        Role
	Status      InstanceStatus
	LastError   string
	ConnectedAt *time.Time
	ExpiresAt   *time.Time
}

// DefaultAPIURL is used when the merchant connection flow supplies none
const DefaultAPIURL = "https://api.green-api.com"

// NewInstance registers a pending instance for a merchant
func NewInstance(merchantID uuid.UUID, instanceID, token string) (*Instance, error) {
	if merchantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MERCHANT", "Merchant ID is required")
	}
	if instanceID == "" {
		return nil, shared.NewDomainError("INVALID_INSTANCE_ID", "Instance ID is required")
	}
	if token == "" {
		return nil, shared.NewDomainError("INVALID_TOKEN", "Instance token is required")
	}

	inst := &Instance{
		MerchantAggregateRoot: shared.NewMerchantAggregateRoot(merchantID),
		InstanceID:            instanceID,
		Token:                 token,
		APIURL:                DefaultAPIURL,
		Role:                  RoleSecondary,
		Status:                InstancePending,
	}
	return inst, nil
}

// Activate transitions the instance to active after a successful
// connection test
func (i *Instance) Activate(phoneNumber string) error {
	if !i.Status.CanTransitionTo(InstanceActive) && i.Status != InstanceActive {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot activate instance in status %s", i.Status))
	}
	now := time.Now()
	from := i.Status
	i.Status = InstanceActive
	i.LastError = ""
	i.ConnectedAt = &now
	if phoneNumber != "" {
		i.PhoneNumber = phoneNumber
	}
	i.UpdatedAt = now
	if from != InstanceActive {
		i.AddDomainEvent(NewInstanceStatusEvent(i, from, InstanceActive))
	}
	return nil
}

// Deactivate marks the instance deliberately inactive
func (i *Instance) Deactivate(reason string) error {
	if !i.Status.CanTransitionTo(InstanceInactive) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot deactivate instance in status %s", i.Status))
	}
	from := i.Status
	i.Status = InstanceInactive
	i.LastError = reason
	i.UpdatedAt = time.Now()
	i.AddDomainEvent(NewInstanceStatusEvent(i, from, InstanceInactive))
	return nil
}

// Expire marks the instance expired after its TTL passed
func (i *Instance) Expire() error {
	if !i.Status.CanTransitionTo(InstanceExpired) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot expire instance in status %s", i.Status))
	}
	from := i.Status
	i.Status = InstanceExpired
	i.UpdatedAt = time.Now()
	i.AddDomainEvent(NewInstanceExpiredEvent(i, from))
	return nil
}

// RecordFailure keeps the status unchanged and records why the last
// connection test failed
func (i *Instance) RecordFailure(reason string) {
	i.LastError = reason
	i.UpdatedAt = time.Now()
}

// IsExpiredAt reports whether the instance TTL has passed
func (i *Instance) IsExpiredAt(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}

// IsUsable reports whether the instance can carry outbound sends
func (i *Instance) IsUsable() bool {
	return i.Status == InstanceActive
}

// Repository persists WhatsApp instances
type Repository interface {
	// FindByID finds an instance by its entity ID
	FindByID(ctx context.Context, id uuid.UUID) (*Instance, error)
	// FindByInstanceID finds a merchant's instance by its Green API ID
	FindByInstanceID(ctx context.Context, merchantID uuid.UUID, instanceID string) (*Instance, error)
	// FindByProviderInstanceID resolves an instance across merchants, for
	// inbound Green API webhooks that carry only the instance ID
	FindByProviderInstanceID(ctx context.Context, instanceID string) (*Instance, error)
	// FindForMerchant lists a merchant's instances
	FindForMerchant(ctx context.Context, merchantID uuid.UUID) ([]Instance, error)
	// FindActiveForMerchant lists a merchant's active instances,
	// primary first, then secondaries in stable order
	FindActiveForMerchant(ctx context.Context, merchantID uuid.UUID) ([]Instance, error)
	// FindExpiring lists active instances whose TTL passed before now
	FindExpiring(ctx context.Context, now time.Time, limit int) ([]Instance, error)
	// Save persists the instance and its pending domain events
	Save(ctx context.Context, inst *Instance) error
	// PromoteToPrimary atomically demotes the current primary and promotes
	// the given instance within one transaction
	PromoteToPrimary(ctx context.Context, merchantID, id uuid.UUID) error
}
