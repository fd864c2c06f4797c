package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/infrastructure/logger"
)

// Context keys for merchant scoping
const (
	MerchantIDKey     = "merchant_id"
	MerchantParamKey  = "merchantId"
	MerchantHeaderKey = "X-Merchant-ID"
)

// MerchantMiddlewareConfig holds configuration for merchant middleware
type MerchantMiddlewareConfig struct {
	// HeaderEnabled allows the X-Merchant-ID header as a fallback when the
	// route carries no merchant parameter
	HeaderEnabled bool
	// Required rejects requests without merchant context
	Required bool
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultMerchantConfig returns default merchant middleware configuration
func DefaultMerchantConfig() MerchantMiddlewareConfig {
	return MerchantMiddlewareConfig{
		HeaderEnabled: true,
		Required:      true,
	}
}

// MerchantMiddleware extracts the merchant ID from the route parameter,
// validates its format, and scopes the request logger to the merchant.
func MerchantMiddleware() gin.HandlerFunc {
	return MerchantMiddlewareWithConfig(DefaultMerchantConfig())
}

// MerchantMiddlewareWithConfig returns merchant middleware with custom
// configuration
func MerchantMiddlewareWithConfig(cfg MerchantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		merchantID := c.Param(MerchantParamKey)

		if merchantID == "" && cfg.HeaderEnabled {
			merchantID = c.GetHeader(MerchantHeaderKey)
		}

		if merchantID == "" {
			if cfg.Required {
				respondMerchantError(c, "Merchant identification required")
				return
			}
			c.Next()
			return
		}

		if _, err := uuid.Parse(merchantID); err != nil {
			respondMerchantError(c, "Invalid merchant ID format")
			return
		}

		c.Set(MerchantIDKey, merchantID)

		// Scope the request logger so downstream log lines carry the merchant
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		ctx, _ = logger.WithMerchantID(ctx, log, merchantID)
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil {
			cfg.Logger.Debug("Merchant identified",
				zap.String("merchant_id", merchantID))
		}

		c.Next()
	}
}

func respondMerchantError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "ERR_BAD_REQUEST",
			"message": message,
		},
	})
}

// GetMerchantID retrieves the merchant ID from gin.Context
func GetMerchantID(c *gin.Context) string {
	if merchantID, exists := c.Get(MerchantIDKey); exists {
		if id, ok := merchantID.(string); ok {
			return id
		}
	}
	return ""
}

// GetMerchantUUID retrieves the merchant ID as UUID from gin.Context
func GetMerchantUUID(c *gin.Context) (uuid.UUID, error) {
	merchantID := GetMerchantID(c)
	if merchantID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(merchantID)
}

// OptionalMerchantMiddleware creates middleware that doesn't require a
// merchant
func OptionalMerchantMiddleware() gin.HandlerFunc {
	cfg := DefaultMerchantConfig()
	cfg.Required = false
	return MerchantMiddlewareWithConfig(cfg)
}
