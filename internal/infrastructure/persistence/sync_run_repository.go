package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/infrastructure/persistence/merchant"
	"github.com/wasla/backend/internal/infrastructure/persistence/models"
)

// GormSyncRunRepository implements integration.SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Save persists the run
func (r *GormSyncRunRepository) Save(ctx context.Context, run *integration.SyncRun) error {
	model := models.SyncRunModelFromDomain(run)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByID finds a run by ID
func (r *GormSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncRun, error) {
	var model models.SyncRunModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindForMerchant lists a merchant's runs, newest first
func (r *GormSyncRunRepository) FindForMerchant(ctx context.Context, merchantID uuid.UUID, filter shared.Filter) ([]integration.SyncRun, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncRunModel{}).
		Scopes(merchant.MerchantScope(merchantID))

	for key, value := range filter.Filters {
		switch key {
		case "source_system":
			query = query.Where("source_system = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		}
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	sortField := ValidateSortField(filter.OrderBy, SyncRunSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)

	var runModels []models.SyncRunModel
	if err := query.Order(sortField + " " + sortOrder).Find(&runModels).Error; err != nil {
		return nil, err
	}
	runs := make([]integration.SyncRun, len(runModels))
	for i, model := range runModels {
		runs[i] = *model.ToDomain()
	}
	return runs, nil
}

// LatestWatermark returns the most recent watermark a completed or partial
// run produced for the (merchant, source) pair, or the zero time
func (r *GormSyncRunRepository) LatestWatermark(ctx context.Context, merchantID uuid.UUID, source order.SourceSystem) (time.Time, error) {
	var model models.SyncRunModel
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND source_system = ? AND status IN ?",
			merchantID, source,
			[]integration.SyncRunStatus{integration.SyncRunCompleted, integration.SyncRunPartial}).
		Order("watermark DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return model.Watermark, nil
}

var _ integration.SyncRunRepository = (*GormSyncRunRepository)(nil)
