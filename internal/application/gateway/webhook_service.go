// Package gateway receives provider webhook deliveries, deduplicates them,
// and hands verified payloads to reconciliation.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/application/reconcile"
	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/webhook"
)

// maxProcessAttempts caps how often one delivery is processed before the
// replay sweep gives up on it
const maxProcessAttempts = 5

// replayCooldown keeps the sweep off rows the workers may still be on
const replayCooldown = time.Minute

// defaultWorkerCount sizes the async processing pool
const defaultWorkerCount = 4

// defaultQueueSize bounds deliveries waiting for a worker; overflow is
// processed inline on the request
const defaultQueueSize = 256

// PayloadArchive stores raw webhook bodies for replay and audit. Archiving
// is best effort; a storage outage never blocks ingestion.
type PayloadArchive interface {
	// Store writes the raw payload under the given key
	Store(ctx context.Context, key string, payload []byte) error
}

// IngestResult reports what happened to one delivery
type IngestResult struct {
	// Event is the ledger row for this delivery
	Event *webhook.Event
	// Duplicate means the delivery was already in the ledger and was
	// acknowledged without reprocessing
	Duplicate bool
	// Queued means the delivery was acknowledged and handed to the
	// processing pool; the ledger row records the eventual outcome
	Queued bool
	// Outcome is the reconciliation outcome when processing ran inline,
	// empty for duplicates and queued deliveries
	Outcome reconcile.Outcome
}

type processJob struct {
	event *webhook.Event
	draft *order.Draft
}

// WebhookService ingests webhook deliveries from all source providers.
// Verification, deduplication, and normalization run on the request;
// reconciliation runs on a worker pool once the row is in the ledger. Rows
// the pool never finished are picked up by the replay sweep.
type WebhookService struct {
	registry   integration.SourceRegistry
	ledger     webhook.Repository
	reconciler *reconcile.Service
	archive    PayloadArchive
	logger     *zap.Logger

	jobs   chan processJob
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebhookService creates a webhook ingestion service
func NewWebhookService(registry integration.SourceRegistry, ledger webhook.Repository, reconciler *reconcile.Service, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		registry:   registry,
		ledger:     ledger,
		reconciler: reconciler,
		logger:     logger,
	}
}

// SetPayloadArchive enables raw payload archiving
func (s *WebhookService) SetPayloadArchive(archive PayloadArchive) {
	s.archive = archive
}

// Start launches the processing pool. Without Start, deliveries are
// processed inline on the ingesting request.
func (s *WebhookService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.jobs = make(chan processJob, defaultQueueSize)

	for i := 0; i < defaultWorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	s.logger.Info("Webhook processing pool started",
		zap.Int("workers", defaultWorkerCount),
		zap.Int("queue_size", defaultQueueSize))
	return nil
}

// Stop shuts the pool down. Jobs still queued stay ledgered as received
// and are picked up by the replay sweep after restart.
func (s *WebhookService) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Webhook processing pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ingest accepts one webhook delivery: verify the signature, record the
// delivery with its raw body in the idempotency ledger, archive the body,
// and normalize it. The delivery is acknowledged once the ledger row is
// committed; reconciliation runs on the pool. A delivery already in the
// ledger is acknowledged without reprocessing.
func (s *WebhookService) Ingest(ctx context.Context, provider order.SourceSystem, merchantID uuid.UUID, payload []byte, headers map[string]string) (*IngestResult, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	if err := adapter.VerifySignature(merchantID, payload, headers); err != nil {
		s.logger.Warn("Webhook signature rejected",
			zap.String("provider", provider.String()),
			zap.String("merchant_id", merchantID.String()),
			zap.Error(err))
		return nil, err
	}

	key, topic := adapter.Identify(headers, payload)
	if key == "" {
		key = webhook.FallbackKey(merchantID, provider, payload)
	}

	event := webhook.NewEvent(merchantID, provider, key, topic, payload)
	inserted, err := s.ledger.InsertIfAbsent(ctx, event)
	if err != nil {
		return nil, err
	}
	if !inserted {
		s.logger.Debug("Duplicate webhook delivery acknowledged",
			zap.String("provider", provider.String()),
			zap.String("idempotency_key", key))
		return &IngestResult{Event: event, Duplicate: true}, nil
	}

	s.archivePayload(ctx, event, payload)

	draft, err := s.normalize(ctx, adapter, event)
	if err != nil {
		return nil, s.failEvent(ctx, event, err)
	}

	if s.enqueue(processJob{event: event, draft: draft}) {
		return &IngestResult{Event: event, Queued: true}, nil
	}

	// Pool not running or saturated; finish on the request
	outcome, err := s.processDraft(ctx, event, draft)
	if err != nil {
		return nil, err
	}
	return &IngestResult{Event: event, Outcome: outcome}, nil
}

// ReplayPending reprocesses ledger rows that never finished, from the
// stored payload. Covers crashes between ledger insert and processing as
// well as transient reconciliation failures.
func (s *WebhookService) ReplayPending(ctx context.Context, now time.Time, limit int) (int, error) {
	events, err := s.ledger.FindReplayable(ctx, now.Add(-replayCooldown), maxProcessAttempts, limit)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for i := range events {
		if ctx.Err() != nil {
			return replayed, ctx.Err()
		}
		event := &events[i]
		if err := s.replay(ctx, event); err != nil {
			s.logger.Warn("Webhook replay failed",
				zap.String("provider", event.Provider.String()),
				zap.String("idempotency_key", event.IdempotencyKey),
				zap.Int("attempts", event.Attempts),
				zap.Error(err))
			continue
		}
		replayed++
	}
	return replayed, nil
}

func (s *WebhookService) replay(ctx context.Context, event *webhook.Event) error {
	adapter, err := s.registry.Get(event.Provider)
	if err != nil {
		return s.failEvent(ctx, event, err)
	}
	if len(event.Payload) == 0 {
		return s.failEvent(ctx, event, fmt.Errorf("no stored payload"))
	}
	draft, err := s.normalize(ctx, adapter, event)
	if err != nil {
		return s.failEvent(ctx, event, err)
	}
	_, err = s.processDraft(ctx, event, draft)
	return err
}

func (s *WebhookService) normalize(ctx context.Context, adapter integration.OrderSource, event *webhook.Event) (*order.Draft, error) {
	return adapter.Normalize(ctx, integration.RawEvent{
		MerchantID: event.MerchantID,
		Provider:   event.Provider,
		Topic:      event.Topic,
		Payload:    event.Payload,
		ReceivedAt: event.ReceivedAt,
	})
}

// processDraft reconciles the draft and records the outcome on the ledger
// row. Reconciliation is idempotent, so replaying an already processed
// delivery is harmless.
func (s *WebhookService) processDraft(ctx context.Context, event *webhook.Event, draft *order.Draft) (reconcile.Outcome, error) {
	result, err := s.reconciler.Reconcile(ctx, draft)
	if err != nil {
		return "", s.failEvent(ctx, event, err)
	}

	event.MarkProcessed()
	if err := s.ledger.Update(ctx, event); err != nil {
		s.logger.Error("Failed to mark webhook processed", zap.Error(err))
	}
	return result.Outcome, nil
}

func (s *WebhookService) failEvent(ctx context.Context, event *webhook.Event, cause error) error {
	event.MarkFailed(cause.Error())
	if err := s.ledger.Update(ctx, event); err != nil {
		s.logger.Error("Failed to record webhook failure", zap.Error(err))
	}
	return cause
}

func (s *WebhookService) enqueue(j processJob) bool {
	if s.jobs == nil {
		return false
	}
	select {
	case s.jobs <- j:
		return true
	default:
		return false
	}
}

func (s *WebhookService) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			if _, err := s.processDraft(ctx, j.event, j.draft); err != nil {
				s.logger.Warn("Webhook processing failed, left for replay",
					zap.String("provider", j.event.Provider.String()),
					zap.String("idempotency_key", j.event.IdempotencyKey),
					zap.Error(err))
			}
		}
	}
}

func (s *WebhookService) archivePayload(ctx context.Context, event *webhook.Event, payload []byte) {
	if s.archive == nil {
		return
	}
	key := fmt.Sprintf("webhooks/%s/%s/%s", event.Provider, event.MerchantID, event.IdempotencyKey)
	if err := s.archive.Store(ctx, key, payload); err != nil {
		s.logger.Warn("Failed to archive webhook payload",
			zap.String("archive_key", key),
			zap.Error(err))
		return
	}
	event.ArchiveKey = key
}
