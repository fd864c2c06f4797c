package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wasla/backend/internal/domain/notification"
	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/infrastructure/persistence/models"
)

// GormNotificationRepository implements notification.Repository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// FindByID finds a notification by ID, attempts included
func (r *GormNotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	var model models.NotificationModel
	if err := r.db.WithContext(ctx).
		Preload("Attempts", func(db *gorm.DB) *gorm.DB {
			return db.Order("attempt_number ASC")
		}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrder lists notifications for one order, newest first
func (r *GormNotificationRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]notification.Notification, error) {
	var notificationModels []models.NotificationModel
	if err := r.db.WithContext(ctx).
		Preload("Attempts", func(db *gorm.DB) *gorm.DB {
			return db.Order("attempt_number ASC")
		}).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&notificationModels).Error; err != nil {
		return nil, err
	}
	return toDomainNotifications(notificationModels), nil
}

// FindDue lists pending notifications whose NextAttemptAt has passed,
// oldest due first
func (r *GormNotificationRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]notification.Notification, error) {
	var notificationModels []models.NotificationModel
	query := r.db.WithContext(ctx).
		Preload("Attempts", func(db *gorm.DB) *gorm.DB {
			return db.Order("attempt_number ASC")
		}).
		Where("status = ? AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?",
			notification.StatusPending, now).
		Order("next_attempt_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&notificationModels).Error; err != nil {
		return nil, err
	}
	return toDomainNotifications(notificationModels), nil
}

// Save persists the notification and any new attempts
func (r *GormNotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.NotificationModelFromDomain(n)

		if err := tx.Omit("Attempts").Save(model).Error; err != nil {
			return err
		}

		// Attempts are append-only; upsert keeps retried saves idempotent
		for i := range model.Attempts {
			attempt := model.Attempts[i]
			if err := tx.Save(&attempt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func toDomainNotifications(notificationModels []models.NotificationModel) []notification.Notification {
	notifications := make([]notification.Notification, len(notificationModels))
	for i, model := range notificationModels {
		notifications[i] = *model.ToDomain()
	}
	return notifications
}

var _ notification.Repository = (*GormNotificationRepository)(nil)
