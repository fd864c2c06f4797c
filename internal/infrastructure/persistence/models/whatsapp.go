package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/whatsapp"
)

// InstanceModel is the persistence model for WhatsApp instances. A partial
// unique index on (merchant_id) WHERE role = 'primary' AND status = 'active'
// enforces the single-primary invariant at the database level; see the
// migration files.
type InstanceModel struct {
	ID          uuid.UUID               `gorm:"type:uuid;primary_key"`
	MerchantID  uuid.UUID               `gorm:"type:uuid;not null;index:idx_instances_merchant_provider,unique,priority:1"`
	InstanceID  string                  `gorm:"type:varchar(50);not null;index:idx_instances_merchant_provider,unique,priority:2;index:idx_instances_provider"`
	Token       string                  `gorm:"type:varchar(255);not null"`
	APIURL      string                  `gorm:"type:varchar(255)"`
	PhoneNumber string                  `gorm:"type:varchar(30)"`
	Role        whatsapp.Role           `gorm:"type:varchar(10);not null;default:'secondary'"`
	Status      whatsapp.InstanceStatus `gorm:"type:varchar(10);not null;index:idx_instances_merchant_status,priority:2"`
	LastError   string                  `gorm:"type:text"`
	ConnectedAt *time.Time
	ExpiresAt   *time.Time `gorm:"index"`
	Version     int        `gorm:"not null;default:1"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InstanceModel) TableName() string {
	return "whatsapp_instances"
}

// ToDomain converts the persistence model to a domain Instance
func (m *InstanceModel) ToDomain() *whatsapp.Instance {
	inst := &whatsapp.Instance{
		InstanceID:  m.InstanceID,
		Token:       m.Token,
		APIURL:      m.APIURL,
		PhoneNumber: m.PhoneNumber,
		Role:        m.Role,
		Status:      m.Status,
		LastError:   m.LastError,
		ConnectedAt: m.ConnectedAt,
		ExpiresAt:   m.ExpiresAt,
	}
	inst.ID = m.ID
	inst.MerchantID = m.MerchantID
	inst.Version = m.Version
	inst.CreatedAt = m.CreatedAt
	inst.UpdatedAt = m.UpdatedAt
	return inst
}

// FromDomain populates the persistence model from a domain Instance
func (m *InstanceModel) FromDomain(inst *whatsapp.Instance) {
	m.ID = inst.ID
	m.MerchantID = inst.MerchantID
	m.InstanceID = inst.InstanceID
	m.Token = inst.Token
	m.APIURL = inst.APIURL
	m.PhoneNumber = inst.PhoneNumber
	m.Role = inst.Role
	m.Status = inst.Status
	m.LastError = inst.LastError
	m.ConnectedAt = inst.ConnectedAt
	m.ExpiresAt = inst.ExpiresAt
	m.Version = inst.Version
	m.CreatedAt = inst.CreatedAt
	m.UpdatedAt = inst.UpdatedAt
}

// InstanceModelFromDomain creates a new persistence model from a domain
// Instance
func InstanceModelFromDomain(inst *whatsapp.Instance) *InstanceModel {
	m := &InstanceModel{}
	m.FromDomain(inst)
	return m
}
