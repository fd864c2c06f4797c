package telemetry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPoolMetricsProvider implements PoolMetricsProvider using GORM queries
// against the WhatsApp instance pool and notification tables.
type GormPoolMetricsProvider struct {
	db *gorm.DB
}

// NewGormPoolMetricsProvider creates a provider backed by the given database.
func NewGormPoolMetricsProvider(db *gorm.DB) *GormPoolMetricsProvider {
	return &GormPoolMetricsProvider{db: db}
}

// GetActiveInstanceCounts returns the number of active WhatsApp instances
// grouped by merchant.
func (p *GormPoolMetricsProvider) GetActiveInstanceCounts(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []struct {
		MerchantID uuid.UUID
		Count      int64
	}

	err := p.db.WithContext(ctx).
		Table("whatsapp_instances").
		Select("merchant_id, COUNT(*) as count").
		Where("status = ?", "active").
		Group("merchant_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query active instance counts: %w", err)
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.MerchantID] = row.Count
	}

	return counts, nil
}

// GetPendingNotificationCount returns the number of notifications still
// waiting for dispatch or a retry.
func (p *GormPoolMetricsProvider) GetPendingNotificationCount(ctx context.Context) (int64, error) {
	var count int64

	err := p.db.WithContext(ctx).
		Table("notifications").
		Where("status = ?", "pending").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("query pending notification count: %w", err)
	}

	return count, nil
}

// Verify interface compliance at compile time.
var _ PoolMetricsProvider = (*GormPoolMetricsProvider)(nil)
