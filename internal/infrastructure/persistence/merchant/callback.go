package merchant

import (
	"strings"

	"github.com/google/uuid"
	"github.com/wasla/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MerchantCallback provides GORM callback hooks for automatic merchant filtering
type MerchantCallback struct {
	merchantColumn string
	required       bool
}

// NewMerchantCallback creates a new merchant callback handler
func NewMerchantCallback(merchantColumn string, required bool) *MerchantCallback {
	if merchantColumn == "" {
		merchantColumn = "merchant_id"
	}
	return &MerchantCallback{
		merchantColumn: merchantColumn,
		required:       required,
	}
}

// RegisterCallbacks registers merchant callbacks with GORM
func (tc *MerchantCallback) RegisterCallbacks(db *gorm.DB) {
	// Register query callback - add merchant filter
	_ = db.Callback().Query().Before("gorm:query").Register("merchant:before_query", tc.beforeQuery)

	// Register update callback - ensure merchant filter
	_ = db.Callback().Update().Before("gorm:update").Register("merchant:before_update", tc.beforeUpdate)

	// Register delete callback - ensure merchant filter
	_ = db.Callback().Delete().Before("gorm:delete").Register("merchant:before_delete", tc.beforeDelete)

	// Register row query callback - add merchant filter
	_ = db.Callback().Row().Before("gorm:row").Register("merchant:before_row", tc.beforeQuery)

	// Note: Create callback is not registered because merchant_id should be set
	// explicitly by the application when creating entities
}

// beforeQuery adds merchant filter to SELECT queries
func (tc *MerchantCallback) beforeQuery(db *gorm.DB) {
	tc.addMerchantFilter(db)
}

// beforeUpdate adds merchant filter to UPDATE queries
func (tc *MerchantCallback) beforeUpdate(db *gorm.DB) {
	tc.addMerchantFilter(db)
}

// beforeDelete adds merchant filter to DELETE queries
func (tc *MerchantCallback) beforeDelete(db *gorm.DB) {
	tc.addMerchantFilter(db)
}

// addMerchantFilter adds merchant filtering to the query
func (tc *MerchantCallback) addMerchantFilter(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}

	// Skip if unscoped
	if db.Statement.Unscoped {
		return
	}

	// Skip if already has merchant condition
	if tc.hasMerchantCondition(db) {
		return
	}

	// Get merchant ID from context
	merchantID := logger.GetMerchantID(db.Statement.Context)
	if merchantID == "" {
		if tc.required {
			_ = db.AddError(ErrMerchantIDRequired)
		}
		return
	}

	// Validate UUID format
	if _, err := uuid.Parse(merchantID); err != nil {
		_ = db.AddError(ErrInvalidMerchantID)
		return
	}

	// Add merchant filter using GORM's clause
	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: tc.merchantColumn},
				Value:  merchantID,
			},
		},
	})
}

// hasMerchantCondition checks if merchant_id condition is already present
func (tc *MerchantCallback) hasMerchantCondition(db *gorm.DB) bool {
	// Check if there's a manual scope applied via Unscoped
	if db.Statement.Unscoped {
		return true
	}

	// Check existing where clauses for merchant_id
	if whereClause, ok := db.Statement.Clauses["WHERE"]; ok {
		if where, ok := whereClause.Expression.(clause.Where); ok {
			for _, expr := range where.Exprs {
				if tc.exprContainsMerchant(expr) {
					return true
				}
			}
		}
	}

	// Also check the built SQL if available
	sql := db.Statement.SQL.String()
	if sql != "" && strings.Contains(sql, tc.merchantColumn) {
		return true
	}

	return false
}

// exprContainsMerchant checks if an expression contains merchant_id column
func (tc *MerchantCallback) exprContainsMerchant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == tc.merchantColumn
		}
	case clause.IN:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == tc.merchantColumn
		}
	case clause.Expr:
		return strings.Contains(e.SQL, tc.merchantColumn)
	case clause.NamedExpr:
		return strings.Contains(e.SQL, tc.merchantColumn)
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if tc.exprContainsMerchant(cond) {
				return true
			}
		}
	case clause.OrConditions:
		for _, cond := range e.Exprs {
			if tc.exprContainsMerchant(cond) {
				return true
			}
		}
	}
	return false
}

// EnableAutoMerchantFilter enables automatic merchant filtering on a GORM DB instance
// This registers callbacks that automatically add merchant_id filtering to all queries
func EnableAutoMerchantFilter(db *gorm.DB, required bool) {
	tc := NewMerchantCallback("merchant_id", required)
	tc.RegisterCallbacks(db)
}

// DisableAutoMerchantFilter removes the merchant callbacks (not recommended in production)
func DisableAutoMerchantFilter(db *gorm.DB) {
	// Note: GORM doesn't provide a clean way to remove callbacks
	// This is mainly for testing purposes
	_ = db.Callback().Query().Remove("merchant:before_query")
	_ = db.Callback().Update().Remove("merchant:before_update")
	_ = db.Callback().Delete().Remove("merchant:before_delete")
	_ = db.Callback().Row().Remove("merchant:before_row")
}
