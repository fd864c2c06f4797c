package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/infrastructure/persistence/merchant"
	"github.com/wasla/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// NewGormOrderRepositoryWithOutbox creates a repository that writes pending
// domain events to the outbox in the same transaction as the order row
func NewGormOrderRepositoryWithOutbox(db *gorm.DB, outboxSaver shared.OutboxEventSaver) *GormOrderRepository {
	return &GormOrderRepository{db: db, outboxSaver: outboxSaver}
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNaturalKey finds an order by (merchant, source system, source order id)
func (r *GormOrderRepository) FindByNaturalKey(ctx context.Context, merchantID uuid.UUID, source order.SourceSystem, sourceOrderID string) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND source_system = ? AND source_order_id = ?",
			merchantID, source, sourceOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForMerchant lists a merchant's orders with filtering
func (r *GormOrderRepository) FindAllForMerchant(ctx context.Context, merchantID uuid.UUID, filter shared.Filter) ([]order.Order, error) {
	var orderModels []models.OrderModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.OrderModel{}).Scopes(merchant.MerchantScope(merchantID)),
		filter,
	)

	if err := query.Find(&orderModels).Error; err != nil {
		return nil, err
	}
	orders := make([]order.Order, len(orderModels))
	for i, model := range orderModels {
		orders[i] = *model.ToDomain()
	}
	return orders, nil
}

// Save persists the order with an optimistic version check and writes its
// pending domain events to the outbox in the same transaction
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	events := o.GetDomainEvents()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.OrderModelFromDomain(o)

		if o.Version == 1 {
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		} else {
			result := tx.Model(&models.OrderModel{}).
				Where("id = ? AND version = ?", o.ID, o.Version-1).
				Updates(map[string]interface{}{
					"order_number":    model.OrderNumber,
					"customer":        model.CustomerJSON,
					"line_items":      model.LineItemsJSON,
					"subtotal":        model.Subtotal,
					"shipping":        model.Shipping,
					"tax":             model.Tax,
					"discount":        model.Discount,
					"total":           model.Total,
					"currency":        model.Currency,
					"status":          model.Status,
					"tracking_number": model.TrackingNumber,
					"completed_at":    model.CompletedAt,
					"cancelled_at":    model.CancelledAt,
					"archived_at":     model.ArchivedAt,
					"version":         model.Version,
					"updated_at":      time.Now(),
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return shared.ErrConcurrencyConflict
			}
		}

		// Save events to outbox within the same transaction
		if r.outboxSaver != nil && len(events) > 0 {
			if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
				return fmt.Errorf("failed to save events to outbox: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.ClearDomainEvents()
	return nil
}

// CountForMerchant counts a merchant's orders
func (r *GormOrderRepository) CountForMerchant(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Scopes(merchant.MerchantScope(merchantID)).
		Count(&count).Error
	return count, err
}

func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	// Apply search
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("order_number ILIKE ? OR source_order_id ILIKE ?",
			searchPattern, searchPattern)
	}

	// Apply additional filters
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "source_system":
			query = query.Where("source_system = ?", value)
		case "kind":
			query = query.Where("kind = ?", value)
		case "archived":
			if archived, ok := value.(bool); ok {
				if archived {
					query = query.Where("archived_at IS NOT NULL")
				} else {
					query = query.Where("archived_at IS NULL")
				}
			}
		case "start_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("created_at >= ?", t)
			}
		case "end_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("created_at <= ?", t)
			}
		}
	}

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	// Apply ordering with whitelist validation to prevent SQL injection
	sortField := ValidateSortField(filter.OrderBy, OrderSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	return query.Order(sortField + " " + sortOrder)
}

// GormStatusEventRepository implements order.StatusEventRepository using GORM
type GormStatusEventRepository struct {
	db *gorm.DB
}

// NewGormStatusEventRepository creates a new GormStatusEventRepository
func NewGormStatusEventRepository(db *gorm.DB) *GormStatusEventRepository {
	return &GormStatusEventRepository{db: db}
}

// Append records one status event
func (r *GormStatusEventRepository) Append(ctx context.Context, event *order.StatusEvent) error {
	model := models.StatusEventModelFromDomain(event)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByOrder returns the status history for one order, oldest first
func (r *GormStatusEventRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]order.StatusEvent, error) {
	var eventModels []models.StatusEventModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("occurred_at ASC").
		Find(&eventModels).Error; err != nil {
		return nil, err
	}
	events := make([]order.StatusEvent, len(eventModels))
	for i, model := range eventModels {
		events[i] = *model.ToDomain()
	}
	return events, nil
}

// CountByOrder counts status events for one order
func (r *GormStatusEventRepository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.StatusEventModel{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count, err
}

var (
	_ order.Repository            = (*GormOrderRepository)(nil)
	_ order.StatusEventRepository = (*GormStatusEventRepository)(nil)
)
