// Package middleware provides HTTP middleware for the Wasla backend.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Caps on header-sourced trace attributes. Unbounded header values
// would otherwise flow straight into span storage.
const (
	MaxRequestIDLength  = 128
	MaxMerchantIDLength = 64
)

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "wasla-backend",
		Enabled:     true,
	}
}

// Tracing returns the request tracing middleware with defaults.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig wraps otelgin and tags each span with request_id
// and merchant_id. otelgin runs the rest of the chain before
// returning, so enrichment sees whatever downstream middleware put in
// the context.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	otelHandler := otelgin.Middleware(cfg.ServiceName)

	return func(c *gin.Context) {
		otelHandler(c)

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		if requestID := getRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if merchantID := getMerchantID(c); merchantID != "" {
			span.SetAttributes(attribute.String("merchant_id", merchantID))
		}
	}
}

func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}

	headerID := c.GetHeader("X-Request-ID")
	if len(headerID) > MaxRequestIDLength {
		return headerID[:MaxRequestIDLength]
	}
	return headerID
}

// getMerchantID prefers the route parameter over the merchant context
// over the header. Header values must look like a UUID so arbitrary
// caller strings never become trace attributes.
func getMerchantID(c *gin.Context) string {
	if id := c.Param(MerchantParamKey); id != "" {
		return id
	}
	if id := c.GetString(MerchantIDKey); id != "" {
		return id
	}
	if headerID := c.GetHeader(MerchantHeaderKey); isValidMerchantID(headerID) {
		return headerID
	}
	return ""
}

func isValidMerchantID(merchantID string) bool {
	return len(merchantID) <= MaxMerchantIDLength && uuidRegex.MatchString(merchantID)
}

// SpanErrorMarker flags spans for 4xx and 5xx responses. Place it
// after Tracing in the chain.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}

		message := http.StatusText(statusCode)
		if message == "" {
			message = "Client Error"
		}
		span.SetStatus(codes.Error, message)
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}
