// Package sync runs incremental pull-sync against source providers and
// records every run for the merchant dashboard.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/application/reconcile"
	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/infrastructure/lane"
	"github.com/wasla/backend/internal/infrastructure/telemetry"
)

// maxPagesPerRun bounds one run so a huge backlog cannot starve other
// merchants; the next run resumes from the advanced watermark
const maxPagesPerRun = 50

// defaultLookback seeds the watermark for a merchant's very first run
const defaultLookback = 30 * 24 * time.Hour

// runLaneCount sizes the run-lane set. (merchant, source) pairs are few
// compared to orders, so a small set keeps distinct pairs apart.
const runLaneCount = 64

// Service executes pull-sync runs. Runs for the same (merchant, source)
// pair are serialized on a lane so two triggers never interleave pages.
type Service struct {
	registry   integration.SourceRegistry
	runs       integration.SyncRunRepository
	reconciler *reconcile.Service
	lanes      *lane.Manager
	logger     *zap.Logger
}

// NewService creates a sync service. The service owns its run lanes; they
// must never be shared with the reconciler, whose per-order lanes are taken
// while a run lane is held.
func NewService(registry integration.SourceRegistry, runs integration.SyncRunRepository, reconciler *reconcile.Service, logger *zap.Logger) *Service {
	return &Service{
		registry:   registry,
		runs:       runs,
		reconciler: reconciler,
		lanes:      lane.NewManager(runLaneCount),
		logger:     logger,
	}
}

// SyncOrders pulls every order modified since the last successful watermark
// and reconciles each draft. Page fetch failures close the run as failed or
// partial; individual draft failures are counted and skipped.
func (s *Service) SyncOrders(ctx context.Context, merchantID uuid.UUID, source order.SourceSystem) (*integration.SyncRun, error) {
	ctx, span := telemetry.StartSpan(ctx, "order_sync.run",
		telemetry.WithAttribute(telemetry.SpanAttrMerchantID, merchantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrSource, source.String()))
	defer span.End()

	adapter, err := s.registry.Get(source)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !adapter.IsConfigured(merchantID) {
		telemetry.RecordError(span, integration.ErrSourceNotConfigured)
		return nil, integration.ErrSourceNotConfigured
	}

	var run *integration.SyncRun
	key := fmt.Sprintf("sync:%s:%s", merchantID, source)
	err = s.lanes.Run(ctx, key, func() error {
		var laneErr error
		run, laneErr = s.runLocked(ctx, adapter, merchantID, source)
		return laneErr
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSyncRunID, run.ID.String(),
		"pages_fetched", run.PagesFetched,
		"orders_created", run.CreatedCount,
		"orders_updated", run.UpdatedCount,
		"orders_failed", run.FailedCount)
	return run, nil
}

func (s *Service) runLocked(ctx context.Context, adapter integration.OrderSource, merchantID uuid.UUID, source order.SourceSystem) (*integration.SyncRun, error) {
	since, err := s.runs.LatestWatermark(ctx, merchantID, source)
	if err != nil {
		return nil, err
	}
	if since.IsZero() {
		since = time.Now().Add(-defaultLookback)
	}

	run := integration.NewSyncRun(merchantID, source, since)
	run.Start()
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info("Pull sync started",
		zap.String("merchant_id", merchantID.String()),
		zap.String("source", source.String()),
		zap.Time("since", since))

	run.Watermark = since
	pageNo := 1
	for run.PagesFetched < maxPagesPerRun {
		if ctx.Err() != nil {
			run.Cancel()
			break
		}

		result, err := adapter.PullOrders(ctx, integration.PullRequest{
			MerchantID: merchantID,
			Since:      since,
			PageNo:     pageNo,
		})
		if err != nil {
			s.waitOrFail(ctx, run, err)
			break
		}
		run.PagesFetched++

		for i := range result.Drafts {
			s.reconcileDraft(ctx, run, &result.Drafts[i])
		}
		if result.Watermark.After(run.Watermark) {
			run.Watermark = result.Watermark
		}

		if !result.HasMore {
			break
		}
		pageNo = result.NextPageNo
	}

	if run.FinishedAt == nil {
		run.Finish(run.Watermark)
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info("Pull sync finished",
		zap.String("merchant_id", merchantID.String()),
		zap.String("source", source.String()),
		zap.String("status", string(run.Status)),
		zap.Int("created", run.CreatedCount),
		zap.Int("updated", run.UpdatedCount),
		zap.Int("skipped", run.SkippedCount),
		zap.Int("failed", run.FailedCount),
		zap.Int("pages", run.PagesFetched))
	return run, nil
}

func (s *Service) reconcileDraft(ctx context.Context, run *integration.SyncRun, draft *order.Draft) {
	result, err := s.reconciler.Reconcile(ctx, draft)
	if err != nil {
		run.FailedCount++
		s.logger.Warn("Draft failed to reconcile during sync",
			zap.String("source_order_id", draft.SourceOrderID),
			zap.Error(err))
		return
	}
	switch result.Outcome {
	case reconcile.OutcomeCreated:
		run.CreatedCount++
	case reconcile.OutcomeUpdated:
		run.UpdatedCount++
	default:
		run.SkippedCount++
	}
}

// waitOrFail closes the run after a page fetch error. A rate limit sleeps
// out the provider's requested wait first so the next run starts clean.
func (s *Service) waitOrFail(ctx context.Context, run *integration.SyncRun, err error) {
	var rateErr *integration.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
		select {
		case <-time.After(rateErr.RetryAfter):
		case <-ctx.Done():
		}
	}
	run.Error = err.Error()
	run.Finish(run.Watermark)
	if run.CreatedCount+run.UpdatedCount+run.SkippedCount > 0 {
		run.Status = integration.SyncRunPartial
	} else {
		run.Status = integration.SyncRunFailed
	}
}

// ListRuns returns a merchant's sync history, newest first
func (s *Service) ListRuns(ctx context.Context, merchantID uuid.UUID, filter shared.Filter) ([]integration.SyncRun, error) {
	return s.runs.FindForMerchant(ctx, merchantID, filter)
}
