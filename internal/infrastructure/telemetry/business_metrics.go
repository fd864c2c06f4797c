// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics tracks the platform's core flows: webhook ingestion,
// order reconciliation, notification dispatch, and WhatsApp pool health.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	webhookReceivedTotal    *Counter
	orderReconciledTotal    *Counter
	regressionRejectedTotal *Counter
	notificationTotal       *Counter

	// Gauge metrics (point-in-time values)
	activeInstanceCount      *Gauge
	pendingNotificationCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	poolProvider PoolMetricsProvider
}

// PoolMetricsProvider provides pool and dispatch backlog data for periodic
// metrics collection. This interface allows the telemetry layer to query
// state without depending on the domain repositories directly.
type PoolMetricsProvider interface {
	// GetActiveInstanceCounts returns the number of active WhatsApp
	// instances per merchant
	GetActiveInstanceCounts(ctx context.Context) (map[uuid.UUID]int64, error)

	// GetPendingNotificationCount returns the number of notifications
	// waiting for dispatch or retry
	GetPendingNotificationCount(ctx context.Context) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	PoolProvider    PoolMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:        cfg.Meter,
		logger:       logger,
		stopChan:     make(chan struct{}),
		poolProvider: cfg.PoolProvider,
	}

	var err error
	counter := func(name, desc, unit string) *Counter {
		if err != nil {
			return nil
		}
		var c *Counter
		c, err = NewCounter(cfg.Meter, name, desc, unit)
		return c
	}
	gauge := func(name, desc, unit string) *Gauge {
		if err != nil {
			return nil
		}
		var g *Gauge
		g, err = NewGauge(cfg.Meter, name, desc, unit)
		return g
	}

	bm.webhookReceivedTotal = counter("wasla_webhook_received_total",
		"Total number of webhook deliveries received", "{deliveries}")
	bm.orderReconciledTotal = counter("wasla_order_reconciled_total",
		"Total number of order drafts reconciled", "{orders}")
	bm.regressionRejectedTotal = counter("wasla_order_regression_rejected_total",
		"Total number of stale status transitions rejected", "{transitions}")
	bm.notificationTotal = counter("wasla_notification_dispatch_total",
		"Total number of notification dispatch attempts", "{attempts}")
	bm.activeInstanceCount = gauge("wasla_whatsapp_active_instances",
		"Current number of active WhatsApp instances", "{instances}")
	bm.pendingNotificationCount = gauge("wasla_notification_pending",
		"Current number of notifications awaiting dispatch or retry", "{notifications}")
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Webhook Metrics
// =============================================================================

// WebhookOutcome labels how a webhook delivery ended.
type WebhookOutcome string

const (
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeRejected  WebhookOutcome = "rejected"
	WebhookOutcomeFailed    WebhookOutcome = "failed"
)

// RecordWebhookReceived records one webhook delivery and its outcome.
func (bm *BusinessMetrics) RecordWebhookReceived(ctx context.Context, provider string, outcome WebhookOutcome) {
	bm.webhookReceivedTotal.Inc(ctx,
		AttrProvider.String(provider),
		AttrOutcome.String(string(outcome)),
	)
}

// =============================================================================
// Reconciliation Metrics
// =============================================================================

// RecordOrderReconciled records one reconciled draft with its outcome
// (created, updated, unchanged, rejected).
func (bm *BusinessMetrics) RecordOrderReconciled(ctx context.Context, merchantID uuid.UUID, source, outcome string) {
	bm.orderReconciledTotal.Inc(ctx,
		AttrMerchantID.String(merchantID.String()),
		AttrSource.String(source),
		AttrOutcome.String(outcome),
	)
}

// RecordRegressionRejected records one rejected stale status transition.
func (bm *BusinessMetrics) RecordRegressionRejected(ctx context.Context, merchantID uuid.UUID, source string) {
	bm.regressionRejectedTotal.Inc(ctx,
		AttrMerchantID.String(merchantID.String()),
		AttrSource.String(source),
	)
}

// =============================================================================
// Notification Metrics
// =============================================================================

// RecordNotificationDispatch records one dispatch attempt and its outcome
// (sent, transient_failure, instance_failure, permanent_failure).
func (bm *BusinessMetrics) RecordNotificationDispatch(ctx context.Context, merchantID uuid.UUID, outcome string) {
	bm.notificationTotal.Inc(ctx,
		AttrMerchantID.String(merchantID.String()),
		AttrOutcome.String(outcome),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectPoolMetrics(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectPoolMetrics(ctx)
		}
	}
}

func (bm *BusinessMetrics) collectPoolMetrics(ctx context.Context) {
	if bm.poolProvider == nil {
		bm.logger.Debug("No pool provider configured, skipping gauge collection")
		return
	}

	counts, err := bm.poolProvider.GetActiveInstanceCounts(ctx)
	if err != nil {
		bm.logger.Warn("Failed to collect active instance counts", zap.Error(err))
	} else {
		for merchantID, count := range counts {
			bm.activeInstanceCount.Record(ctx, count,
				AttrMerchantID.String(merchantID.String()),
			)
		}
	}

	pending, err := bm.poolProvider.GetPendingNotificationCount(ctx)
	if err != nil {
		bm.logger.Warn("Failed to collect pending notification count", zap.Error(err))
	} else {
		bm.pendingNotificationCount.Record(ctx, pending)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
