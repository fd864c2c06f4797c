package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
)

// MerchantSource identifies one (merchant, source) pair due for syncing
type MerchantSource struct {
	MerchantID uuid.UUID
	Source     order.SourceSystem
}

// MerchantSourceProvider enumerates the pairs that have credentials and
// should be pulled on the periodic schedule
type MerchantSourceProvider interface {
	ListConfigured(ctx context.Context) ([]MerchantSource, error)
}

// merchantEnumerator is implemented by adapters that can list the merchants
// holding credentials for them
type merchantEnumerator interface {
	ConfiguredMerchants() []uuid.UUID
}

// RegistrySourceProvider enumerates configured pairs straight from the
// adapter registry
type RegistrySourceProvider struct {
	registry integration.SourceRegistry
}

// NewRegistrySourceProvider creates a registry-backed provider
func NewRegistrySourceProvider(registry integration.SourceRegistry) *RegistrySourceProvider {
	return &RegistrySourceProvider{registry: registry}
}

// ListConfigured returns every (merchant, source) pair with credentials
func (p *RegistrySourceProvider) ListConfigured(_ context.Context) ([]MerchantSource, error) {
	var out []MerchantSource
	for _, adapter := range p.registry.List() {
		enum, ok := adapter.(merchantEnumerator)
		if !ok {
			continue
		}
		for _, merchantID := range enum.ConfiguredMerchants() {
			out = append(out, MerchantSource{MerchantID: merchantID, Source: adapter.Code()})
		}
	}
	return out, nil
}

var _ MerchantSourceProvider = (*RegistrySourceProvider)(nil)

// SyncTriggerConfig holds configuration for the periodic sync trigger
type SyncTriggerConfig struct {
	// Interval is how often each configured pair is scheduled
	Interval time.Duration
	// CheckInterval is how often the trigger looks for due pairs
	CheckInterval time.Duration
}

// DefaultSyncTriggerConfig returns default configuration
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{
		Interval:      15 * time.Minute,
		CheckInterval: time.Minute,
	}
}

// SyncTrigger schedules a sync job for every configured (merchant, source)
// pair on a fixed interval. Webhooks remain the primary path; this is the
// safety net behind them.
type SyncTrigger struct {
	config    SyncTriggerConfig
	scheduler *SyncScheduler
	provider  MerchantSourceProvider
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// lastScheduled tracks when each pair was last queued so a slow run
	// doesn't get double-scheduled
	lastScheduledMu sync.Mutex
	lastScheduled   map[string]time.Time
}

// NewSyncTrigger creates a periodic sync trigger
func NewSyncTrigger(config SyncTriggerConfig, scheduler *SyncScheduler, provider MerchantSourceProvider, logger *zap.Logger) *SyncTrigger {
	return &SyncTrigger{
		config:        config,
		scheduler:     scheduler,
		provider:      provider,
		logger:        logger,
		lastScheduled: make(map[string]time.Time),
	}
}

// Start starts the trigger loop
func (t *SyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Sync trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Duration("check_interval", t.config.CheckInterval),
	)

	return nil
}

// Stop stops the trigger loop
func (t *SyncTrigger) Stop() {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	t.logger.Info("Sync trigger stopped")
}

func (t *SyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.scheduleDue(ctx)
		}
	}
}

// ScheduleNow queues every configured pair immediately, ignoring the
// interval. Used on startup to close the gap since the last shutdown.
func (t *SyncTrigger) ScheduleNow(ctx context.Context) {
	pairs, err := t.provider.ListConfigured(ctx)
	if err != nil {
		t.logger.Error("Failed to enumerate configured sources", zap.Error(err))
		return
	}
	for _, pair := range pairs {
		t.schedule(pair)
	}
}

func (t *SyncTrigger) scheduleDue(ctx context.Context) {
	pairs, err := t.provider.ListConfigured(ctx)
	if err != nil {
		t.logger.Error("Failed to enumerate configured sources", zap.Error(err))
		return
	}

	now := time.Now()
	for _, pair := range pairs {
		key := pairKey(pair)

		t.lastScheduledMu.Lock()
		last, seen := t.lastScheduled[key]
		due := !seen || now.Sub(last) >= t.config.Interval
		t.lastScheduledMu.Unlock()

		if due {
			t.schedule(pair)
		}
	}
}

func (t *SyncTrigger) schedule(pair MerchantSource) {
	if err := t.scheduler.ScheduleSync(pair.MerchantID, pair.Source); err != nil {
		t.logger.Warn("Failed to schedule sync job",
			zap.String("merchant_id", pair.MerchantID.String()),
			zap.String("source", string(pair.Source)),
			zap.Error(err),
		)
		return
	}

	t.lastScheduledMu.Lock()
	t.lastScheduled[pairKey(pair)] = time.Now()
	t.lastScheduledMu.Unlock()
}

func pairKey(pair MerchantSource) string {
	return fmt.Sprintf("%s:%s", pair.MerchantID, pair.Source)
}
