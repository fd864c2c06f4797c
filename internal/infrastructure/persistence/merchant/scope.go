// Package merchant provides merchant-scoped database access for GORM.
//
// Repositories apply MerchantScope to queries that operate on a single
// merchant's rows, and the callbacks registered by EnableAutoMerchantFilter
// add a merchant_id condition from the request context to any query that
// forgot to filter.
package merchant

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrMerchantIDRequired is returned when merchant_id is required but not found
var ErrMerchantIDRequired = errors.New("merchant_id is required but not found in context")

// ErrInvalidMerchantID is returned when merchant_id format is invalid
var ErrInvalidMerchantID = errors.New("invalid merchant_id format")

// MerchantScope applies merchant filtering to GORM queries
func MerchantScope(merchantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("merchant_id = ?", merchantID)
	}
}
