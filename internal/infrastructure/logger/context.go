package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	// LoggerKey carries the request-scoped logger.
	LoggerKey contextKey = "logger"
	// RequestIDKey carries the request correlation id.
	RequestIDKey contextKey = "request_id"
	// MerchantIDKey carries the tenant owning the request. The repository
	// layer reads it to scope queries.
	MerchantIDKey contextKey = "merchant_id"
)

// WithContext attaches a logger to the context.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext returns the context's logger, or a no-op logger when none was
// attached. Callers never need a nil check.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request id and returns a logger that stamps it
// on every entry.
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithMerchantID stores the merchant id and returns a logger that stamps it
// on every entry.
func WithMerchantID(ctx context.Context, logger *zap.Logger, merchantID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, MerchantIDKey, merchantID)
	enriched := logger.With(zap.String("merchant_id", merchantID))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID returns the context's request id, or "".
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetMerchantID returns the context's merchant id, or "".
func GetMerchantID(ctx context.Context) string {
	if merchantID, ok := ctx.Value(MerchantIDKey).(string); ok {
		return merchantID
	}
	return ""
}

// GetTraceID returns the active span's trace id, or "" outside a sampled
// trace. Useful for sending a correlation handle back to API clients.
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// GetSpanID returns the active span's id, or "".
func GetSpanID(ctx context.Context) string {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.SpanID().String()
}

// WithTraceContext stamps trace_id and span_id onto the logger so log lines
// can be joined with traces in the collector. Without a valid span the
// logger comes back unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}
