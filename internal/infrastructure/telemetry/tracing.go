package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used for application-level spans.
const TracerName = "wasla-backend"

// Span attribute keys shared by the application services. Metric attribute
// keys live in metrics.go as attribute.Key values; these are plain strings
// because trace attributes are built ad hoc.
const (
	SpanAttrOrderID        = "order_id"
	SpanAttrOrderNumber    = "order_number"
	SpanAttrOrderStatus    = "order_status"
	SpanAttrMerchantID     = "merchant_id"
	SpanAttrSource         = "source"
	SpanAttrExternalID     = "external_id"
	SpanAttrSyncRunID      = "sync_run_id"
	SpanAttrNotificationID = "notification_id"
	SpanAttrInstanceID     = "instance_id"
	SpanAttrTemplate       = "template"
	SpanAttrAttempt        = "attempt"
)

// SpanOption configures StartSpan.
type SpanOption func(*spanOptions)

type spanOptions struct {
	attributes []attribute.KeyValue
	kind       trace.SpanKind
}

// WithAttribute attaches an initial attribute to the span.
func WithAttribute(key string, value any) SpanOption {
	return func(o *spanOptions) {
		o.attributes = append(o.attributes, toAttribute(key, value))
	}
}

// WithSpanKind overrides the default internal span kind.
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(o *spanOptions) { o.kind = kind }
}

// StartSpan opens a span named after the operation, using whatever tracer
// provider is registered globally. Callers own span.End.
//
//	ctx, span := telemetry.StartSpan(ctx, "order_sync.run")
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	options := spanOptions{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&options)
	}

	startOpts := []trace.SpanStartOption{trace.WithSpanKind(options.kind)}
	if len(options.attributes) > 0 {
		startOpts = append(startOpts, trace.WithAttributes(options.attributes...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, startOpts...)
}

// SetAttributes adds alternating key/value pairs to a span. Non-string keys
// and trailing unpaired values are skipped rather than panicking.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil {
		return
	}
	span.SetAttributes(pairAttributes(keyValues)...)
}

// AddEvent records a timestamped annotation with optional key/value pairs.
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(pairAttributes(keyValues)...))
}

// RecordError marks the span failed and records the error event.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span explicitly successful. Spans default to unset, which
// backends already treat as success, so this is for emphasis only.
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

func pairAttributes(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
