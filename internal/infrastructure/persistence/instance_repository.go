package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/domain/whatsapp"
	"github.com/wasla/backend/internal/infrastructure/persistence/merchant"
	"github.com/wasla/backend/internal/infrastructure/persistence/models"
)

// GormInstanceRepository implements whatsapp.Repository using GORM
type GormInstanceRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
}

// NewGormInstanceRepository creates a new GormInstanceRepository
func NewGormInstanceRepository(db *gorm.DB) *GormInstanceRepository {
	return &GormInstanceRepository{db: db}
}

// NewGormInstanceRepositoryWithOutbox creates a repository that writes
// pending domain events to the outbox in the same transaction
func NewGormInstanceRepositoryWithOutbox(db *gorm.DB, outboxSaver shared.OutboxEventSaver) *GormInstanceRepository {
	return &GormInstanceRepository{db: db, outboxSaver: outboxSaver}
}

// FindByID finds an instance by its entity ID
func (r *GormInstanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*whatsapp.Instance, error) {
	var model models.InstanceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInstanceID finds a merchant's instance by its Green API ID
func (r *GormInstanceRepository) FindByInstanceID(ctx context.Context, merchantID uuid.UUID, instanceID string) (*whatsapp.Instance, error) {
	var model models.InstanceModel
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND instance_id = ?", merchantID, instanceID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProviderInstanceID resolves an instance across merchants
func (r *GormInstanceRepository) FindByProviderInstanceID(ctx context.Context, instanceID string) (*whatsapp.Instance, error) {
	var model models.InstanceModel
	if err := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindForMerchant lists a merchant's instances
func (r *GormInstanceRepository) FindForMerchant(ctx context.Context, merchantID uuid.UUID) ([]whatsapp.Instance, error) {
	var instanceModels []models.InstanceModel
	if err := r.db.WithContext(ctx).
		Scopes(merchant.MerchantScope(merchantID)).
		Order("created_at ASC").
		Find(&instanceModels).Error; err != nil {
		return nil, err
	}
	return toDomainInstances(instanceModels), nil
}

// FindActiveForMerchant lists a merchant's active instances, primary first,
// then secondaries in stable creation order
func (r *GormInstanceRepository) FindActiveForMerchant(ctx context.Context, merchantID uuid.UUID) ([]whatsapp.Instance, error) {
	var instanceModels []models.InstanceModel
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND status = ?", merchantID, whatsapp.InstanceActive).
		Order("CASE WHEN role = 'primary' THEN 0 ELSE 1 END, created_at ASC").
		Find(&instanceModels).Error; err != nil {
		return nil, err
	}
	return toDomainInstances(instanceModels), nil
}

// FindExpiring lists active instances whose TTL passed before now
func (r *GormInstanceRepository) FindExpiring(ctx context.Context, now time.Time, limit int) ([]whatsapp.Instance, error) {
	var instanceModels []models.InstanceModel
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", whatsapp.InstanceActive, now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&instanceModels).Error; err != nil {
		return nil, err
	}
	return toDomainInstances(instanceModels), nil
}

// Save persists the instance and its pending domain events atomically
func (r *GormInstanceRepository) Save(ctx context.Context, inst *whatsapp.Instance) error {
	events := inst.GetDomainEvents()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.InstanceModelFromDomain(inst)
		if err := tx.Save(model).Error; err != nil {
			return err
		}

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

	inst.ClearDomainEvents()
	return nil
}

// PromoteToPrimary atomically demotes the current primary and promotes the
// given instance. The partial unique index on active primaries backs this
// against racing promotions from other processes.
func (r *GormInstanceRepository) PromoteToPrimary(ctx context.Context, merchantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.InstanceModel
		if err := tx.Where("merchant_id = ? AND id = ?", merchantID, id).
			First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if model.Status != whatsapp.InstanceActive {
			return shared.NewDomainError("INVALID_STATE",
				"Only an active instance can be promoted to primary")
		}

		if err := tx.Model(&models.InstanceModel{}).
			Where("merchant_id = ? AND role = ? AND id <> ?", merchantID, whatsapp.RolePrimary, id).
			Updates(map[string]interface{}{
				"role":       whatsapp.RoleSecondary,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		return tx.Model(&models.InstanceModel{}).
			Where("merchant_id = ? AND id = ?", merchantID, id).
			Updates(map[string]interface{}{
				"role":       whatsapp.RolePrimary,
				"updated_at": time.Now(),
			}).Error
	})
}

func toDomainInstances(instanceModels []models.InstanceModel) []whatsapp.Instance {
	instances := make([]whatsapp.Instance, len(instanceModels))
	for i, model := range instanceModels {
		instances[i] = *model.ToDomain()
	}
	return instances
}

var _ whatsapp.Repository = (*GormInstanceRepository)(nil)
