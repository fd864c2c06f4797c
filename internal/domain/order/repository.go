package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/shared"
)

// Repository persists canonical orders
type Repository interface {
	// FindByID finds an order by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindByNaturalKey finds an order by its dedup key
	FindByNaturalKey(ctx context.Context, merchantID uuid.UUID, source SourceSystem, sourceOrderID string) (*Order, error)
	// FindAllForMerchant lists a merchant's orders
	FindAllForMerchant(ctx context.Context, merchantID uuid.UUID, filter shared.Filter) ([]Order, error)
	// Save persists the order and its pending domain events atomically
	Save(ctx context.Context, o *Order) error
	// CountForMerchant counts a merchant's orders
	CountForMerchant(ctx context.Context, merchantID uuid.UUID) (int64, error)
}

// StatusEventRepository persists the append-only status transition log
type StatusEventRepository interface {
	// Append records one status event. Events are immutable once written.
	Append(ctx context.Context, event *StatusEvent) error
	// FindByOrder returns the status history for one order, oldest first
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]StatusEvent, error)
	// CountByOrder counts status events for one order
	CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
}
