package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
)

// SyncRunModel is the persistence model for the pull synchronization run
// history
type SyncRunModel struct {
	ID           uuid.UUID                 `gorm:"type:uuid;primary_key"`
	MerchantID   uuid.UUID                 `gorm:"type:uuid;not null;index:idx_sync_runs_merchant_source,priority:1"`
	SourceSystem order.SourceSystem        `gorm:"type:varchar(20);not null;index:idx_sync_runs_merchant_source,priority:2"`
	Status       integration.SyncRunStatus `gorm:"type:varchar(20);not null;index"`
	Since        time.Time
	Watermark    time.Time `gorm:"index"`
	CreatedCount int       `gorm:"not null;default:0"`
	UpdatedCount int       `gorm:"not null;default:0"`
	SkippedCount int       `gorm:"not null;default:0"`
	FailedCount  int       `gorm:"not null;default:0"`
	PagesFetched int       `gorm:"not null;default:0"`
	Error        string    `gorm:"type:text"`
	StartedAt    *time.Time
	FinishedAt   *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the persistence model to a domain SyncRun
func (m *SyncRunModel) ToDomain() *integration.SyncRun {
	run := &integration.SyncRun{
		MerchantID:   m.MerchantID,
		SourceSystem: m.SourceSystem,
		Status:       m.Status,
		Since:        m.Since,
		Watermark:    m.Watermark,
		CreatedCount: m.CreatedCount,
		UpdatedCount: m.UpdatedCount,
		SkippedCount: m.SkippedCount,
		FailedCount:  m.FailedCount,
		PagesFetched: m.PagesFetched,
		Error:        m.Error,
		StartedAt:    m.StartedAt,
		FinishedAt:   m.FinishedAt,
	}
	run.ID = m.ID
	run.CreatedAt = m.CreatedAt
	run.UpdatedAt = m.UpdatedAt
	return run
}

// FromDomain populates the persistence model from a domain SyncRun
func (m *SyncRunModel) FromDomain(run *integration.SyncRun) {
	m.ID = run.ID
	m.MerchantID = run.MerchantID
	m.SourceSystem = run.SourceSystem
	m.Status = run.Status
	m.Since = run.Since
	m.Watermark = run.Watermark
	m.CreatedCount = run.CreatedCount
	m.UpdatedCount = run.UpdatedCount
	m.SkippedCount = run.SkippedCount
	m.FailedCount = run.FailedCount
	m.PagesFetched = run.PagesFetched
	m.Error = run.Error
	m.StartedAt = run.StartedAt
	m.FinishedAt = run.FinishedAt
	m.CreatedAt = run.CreatedAt
	m.UpdatedAt = run.UpdatedAt
}

// SyncRunModelFromDomain creates a new persistence model from a domain
// SyncRun
func SyncRunModelFromDomain(run *integration.SyncRun) *SyncRunModel {
	m := &SyncRunModel{}
	m.FromDomain(run)
	return m
}
