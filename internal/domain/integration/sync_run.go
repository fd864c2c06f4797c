package integration

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
)

// SyncRunStatus represents the lifecycle of one pull-sync run
type SyncRunStatus string

const (
	SyncRunPending   SyncRunStatus = "pending"
	SyncRunRunning   SyncRunStatus = "running"
	SyncRunCompleted SyncRunStatus = "completed"
	SyncRunPartial   SyncRunStatus = "partial"
	SyncRunFailed    SyncRunStatus = "failed"
	SyncRunCancelled SyncRunStatus = "cancelled"
)

// SyncRun records one pull-sync execution for a (merchant, source) pair.
// The dashboard reads these; a run is never silently lost.
type SyncRun struct {
	shared.BaseEntity
	MerchantID   uuid.UUID
	SourceSystem order.SourceSystem
	Status       SyncRunStatus
	// Since is the watermark this run started from
	Since time.Time
	// Watermark is the new watermark after the run
	Watermark    time.Time
	CreatedCount int
	UpdatedCount int
	SkippedCount int
	FailedCount  int
	PagesFetched int
	Error        string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// NewSyncRun creates a pending sync run
func NewSyncRun(merchantID uuid.UUID, source order.SourceSystem, since time.Time) *SyncRun {
	return &SyncRun{
		BaseEntity:   shared.NewBaseEntity(),
		MerchantID:   merchantID,
		SourceSystem: source,
		Status:       SyncRunPending,
		Since:        since,
	}
}

// Start marks the run as running
func (r *SyncRun) Start() {
	now := time.Now()
	r.Status = SyncRunRunning
	r.StartedAt = &now
	r.UpdatedAt = now
}

// Finish closes the run. A run with failures but some progress is partial,
// not failed.
func (r *SyncRun) Finish(watermark time.Time) {
	now := time.Now()
	r.Watermark = watermark
	r.FinishedAt = &now
	r.UpdatedAt = now
	switch {
	case r.FailedCount == 0:
		r.Status = SyncRunCompleted
	case r.CreatedCount+r.UpdatedCount > 0:
		r.Status = SyncRunPartial
	default:
		r.Status = SyncRunFailed
	}
}

// Fail closes the run with an error before any progress could be recorded
func (r *SyncRun) Fail(errMsg string) {
	now := time.Now()
	r.Status = SyncRunFailed
	r.Error = errMsg
	r.FinishedAt = &now
	r.UpdatedAt = now
}

// Cancel closes the run after a merchant disconnect. Work already
// reconciled stays.
func (r *SyncRun) Cancel() {
	now := time.Now()
	r.Status = SyncRunCancelled
	r.FinishedAt = &now
	r.UpdatedAt = now
}

// SyncRunRepository persists sync run records
type SyncRunRepository interface {
	// Save persists the run
	Save(ctx context.Context, run *SyncRun) error
	// FindByID finds a run by ID
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)
	// FindForMerchant lists a merchant's runs, newest first
	FindForMerchant(ctx context.Context, merchantID uuid.UUID, filter shared.Filter) ([]SyncRun, error)
	// LatestWatermark returns the most recent successful watermark for a
	// (merchant, source) pair, or the zero time when none exists
	LatestWatermark(ctx context.Context, merchantID uuid.UUID, source order.SourceSystem) (time.Time, error)
}
