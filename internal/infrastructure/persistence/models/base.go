package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// MerchantAggregateModel provides common persistence fields for
// merchant-scoped aggregate roots.
type MerchantAggregateModel struct {
	AggregateModel
	MerchantID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// FromDomainMerchantAggregateRoot populates MerchantAggregateModel from
// domain MerchantAggregateRoot
func (m *MerchantAggregateModel) FromDomainMerchantAggregateRoot(a shared.MerchantAggregateRoot) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.MerchantID = a.MerchantID
}

// PopulateMerchantAggregateRoot populates a domain MerchantAggregateRoot
// from persistence model
func (m *MerchantAggregateModel) PopulateMerchantAggregateRoot(a *shared.MerchantAggregateRoot) {
	a.BaseAggregateRoot.BaseEntity.ID = m.ID
	a.BaseAggregateRoot.BaseEntity.CreatedAt = m.CreatedAt
	a.BaseAggregateRoot.BaseEntity.UpdatedAt = m.UpdatedAt
	a.BaseAggregateRoot.Version = m.Version
	a.MerchantID = m.MerchantID
}
