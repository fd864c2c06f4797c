package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/domain/webhook"
	"github.com/wasla/backend/internal/infrastructure/persistence/merchant"
	"github.com/wasla/backend/internal/infrastructure/persistence/models"
)

// GormWebhookEventRepository implements webhook.Repository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// InsertIfAbsent writes the ledger row unless the dedup key already exists.
// ON CONFLICT DO NOTHING makes the race between concurrent deliveries of
// the same event resolve to exactly one inserted row.
func (r *GormWebhookEventRepository) InsertIfAbsent(ctx context.Context, event *webhook.Event) (bool, error) {
	model := models.WebhookEventModelFromDomain(event)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "merchant_id"},
				{Name: "provider"},
				{Name: "idempotency_key"},
			},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByKey finds a ledger row by its idempotency key
func (r *GormWebhookEventRepository) FindByKey(ctx context.Context, provider order.SourceSystem, key string) (*webhook.Event, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND idempotency_key = ?", provider, key).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Update persists outcome changes
func (r *GormWebhookEventRepository) Update(ctx context.Context, event *webhook.Event) error {
	model := models.WebhookEventModelFromDomain(event)
	result := r.db.WithContext(ctx).Model(&models.WebhookEventModel{}).
		Where("id = ?", event.ID).
		Updates(map[string]interface{}{
			"archive_key":  model.ArchiveKey,
			"outcome":      model.Outcome,
			"error":        model.Error,
			"attempts":     model.Attempts,
			"processed_at": model.ProcessedAt,
			"updated_at":   model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindReplayable lists deliveries that never finished processing, oldest
// first, so crashed and failed rows get another pass from the stored payload
func (r *GormWebhookEventRepository) FindReplayable(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]webhook.Event, error) {
	var eventModels []models.WebhookEventModel
	if err := r.db.WithContext(ctx).
		Where("outcome IN ?", []webhook.Outcome{webhook.OutcomeReceived, webhook.OutcomeFailed}).
		Where("attempts < ?", maxAttempts).
		Where("updated_at < ?", olderThan).
		Order("received_at ASC").
		Limit(limit).
		Find(&eventModels).Error; err != nil {
		return nil, err
	}

	events := make([]webhook.Event, 0, len(eventModels))
	for i := range eventModels {
		events = append(events, *eventModels[i].ToDomain())
	}
	return events, nil
}

// FindForMerchant lists a merchant's ledger rows, newest first
func (r *GormWebhookEventRepository) FindForMerchant(ctx context.Context, merchantID uuid.UUID, filter shared.Filter) ([]webhook.Event, error) {
	query := r.db.WithContext(ctx).Model(&models.WebhookEventModel{}).
		Scopes(merchant.MerchantScope(merchantID))

	for key, value := range filter.Filters {
		switch key {
		case "provider":
			query = query.Where("provider = ?", value)
		case "outcome":
			query = query.Where("outcome = ?", value)
		}
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	sortField := ValidateSortField(filter.OrderBy, WebhookEventSortFields, "received_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)

	var eventModels []models.WebhookEventModel
	if err := query.Order(sortField + " " + sortOrder).Find(&eventModels).Error; err != nil {
		return nil, err
	}
	events := make([]webhook.Event, len(eventModels))
	for i, model := range eventModels {
		events[i] = *model.ToDomain()
	}
	return events, nil
}

var _ webhook.Repository = (*GormWebhookEventRepository)(nil)
