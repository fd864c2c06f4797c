// Package scheduler runs the background work the platform depends on:
// periodic order pulls per merchant and source, notification retry sweeps,
// and WhatsApp instance expiry.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
)

// SyncJob is one unit of pull-sync work for a (merchant, source) pair
type SyncJob struct {
	ID         uuid.UUID
	MerchantID uuid.UUID
	Source     order.SourceSystem
	EnqueuedAt time.Time

	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewSyncJob creates a sync job
func NewSyncJob(merchantID uuid.UUID, source order.SourceSystem, maxRetries int) *SyncJob {
	return &SyncJob{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Source:     source,
		EnqueuedAt: time.Now(),
		MaxRetries: maxRetries,
	}
}

// ShouldRetry reports whether the job has retry budget left
func (j *SyncJob) ShouldRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry with exponential backoff
func (j *SyncJob) ScheduleRetry(baseDelay time.Duration) {
	j.RetryCount++
	// Exponential backoff: baseDelay * 2^(retryCount-1)
	delay := baseDelay * time.Duration(1<<(j.RetryCount-1))
	if delay > 30*time.Minute {
		delay = 30 * time.Minute
	}
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
}

// SyncExecutor runs one pull-sync for a (merchant, source) pair
type SyncExecutor interface {
	SyncOrders(ctx context.Context, merchantID uuid.UUID, source order.SourceSystem) (*integration.SyncRun, error)
}

// SyncSchedulerConfig holds configuration for the sync worker pool
type SyncSchedulerConfig struct {
	// Workers is the number of concurrent sync workers
	Workers int
	// QueueSize is the job queue capacity
	QueueSize int
	// JobTimeout is the maximum time a single sync job can run
	JobTimeout time.Duration
	// RetryAttempts is the number of retry attempts for failed jobs
	RetryAttempts int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Workers:       4,
		QueueSize:     64,
		JobTimeout:    10 * time.Minute,
		RetryAttempts: 2,
		RetryDelay:    time.Minute,
	}
}

// Validate validates the configuration
func (c *SyncSchedulerConfig) Validate() error {
	if c.Workers <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SyncScheduler runs pull-sync jobs on a bounded worker pool. Per-pair
// serialization happens inside the executor, so two jobs for the same
// (merchant, source) pair queue rather than race.
type SyncScheduler struct {
	config   SyncSchedulerConfig
	executor SyncExecutor
	logger   *zap.Logger

	jobs      chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSyncScheduler creates a sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, executor SyncExecutor, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SyncScheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *SyncJob, config.QueueSize),
	}, nil
}

// Start starts the worker pool
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	close(s.jobs)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a job for execution
func (s *SyncScheduler) Submit(job *SyncJob) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	select {
	case s.jobs <- job:
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("merchant_id", job.MerchantID.String()),
			zap.String("source", string(job.Source)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// ScheduleSync creates and queues a sync job for a (merchant, source) pair
func (s *SyncScheduler) ScheduleSync(merchantID uuid.UUID, source order.SourceSystem) error {
	return s.Submit(NewSyncJob(merchantID, source, s.config.RetryAttempts))
}

func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *SyncScheduler) processJob(ctx context.Context, job *SyncJob, workerID int) {
	// A retrying job that isn't due yet goes back on the queue after a
	// bounded pause so the pool doesn't spin on it
	if job.NextRetryAt != nil && time.Now().Before(*job.NextRetryAt) {
		wait := time.Until(*job.NextRetryAt)
		if wait > time.Second {
			wait = time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		select {
		case s.jobs <- job:
		default:
			s.logger.Warn("Failed to re-queue sync job for retry",
				zap.String("job_id", job.ID.String()),
			)
		}
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	run, err := s.executor.SyncOrders(jobCtx, job.MerchantID, job.Source)
	if err != nil {
		// A merchant that disconnected between scheduling and execution
		// is not an error worth retrying
		if errors.Is(err, integration.ErrSourceNotConfigured) {
			s.logger.Debug("Sync job dropped, source no longer configured",
				zap.String("merchant_id", job.MerchantID.String()),
				zap.String("source", string(job.Source)),
			)
			return
		}

		s.logger.Error("Sync job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("merchant_id", job.MerchantID.String()),
			zap.String("source", string(job.Source)),
			zap.Error(err),
		)

		if job.ShouldRetry() {
			job.ScheduleRetry(s.config.RetryDelay)
			select {
			case s.jobs <- job:
				s.logger.Info("Sync job scheduled for retry",
					zap.String("job_id", job.ID.String()),
					zap.Int("retry_count", job.RetryCount),
					zap.Time("next_retry_at", *job.NextRetryAt),
				)
			default:
				s.logger.Warn("Failed to re-queue sync job for retry",
					zap.String("job_id", job.ID.String()),
				)
			}
		}
		return
	}

	s.logger.Info("Sync job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("merchant_id", job.MerchantID.String()),
		zap.String("source", string(job.Source)),
		zap.String("status", string(run.Status)),
		zap.Int("created", run.CreatedCount),
		zap.Int("updated", run.UpdatedCount),
		zap.Int("skipped", run.SkippedCount),
		zap.Int("failed", run.FailedCount),
	)
}
