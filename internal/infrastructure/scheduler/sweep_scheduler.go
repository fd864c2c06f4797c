package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper is one batch of periodic maintenance work. Implementations are
// the notification retry sweep and the WhatsApp instance expiry sweep.
type Sweeper interface {
	// Sweep processes up to limit items due at now and returns how many
	// it touched
	Sweep(ctx context.Context, now time.Time, limit int) (int, error)
}

// SweeperFunc adapts a function to the Sweeper interface
type SweeperFunc func(ctx context.Context, now time.Time, limit int) (int, error)

// Sweep calls the wrapped function
func (f SweeperFunc) Sweep(ctx context.Context, now time.Time, limit int) (int, error) {
	return f(ctx, now, limit)
}

// sweepTask is one registered sweep with its own cadence
type sweepTask struct {
	name     string
	sweeper  Sweeper
	interval time.Duration
	batch    int
}

// SweepScheduler runs registered sweeps on independent tickers. Each sweep
// drains its batch every interval until the backlog is empty.
type SweepScheduler struct {
	logger *zap.Logger
	tasks  []sweepTask

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSweepScheduler creates an empty sweep scheduler
func NewSweepScheduler(logger *zap.Logger) *SweepScheduler {
	return &SweepScheduler{logger: logger}
}

// Register adds a named sweep. Must be called before Start.
func (s *SweepScheduler) Register(name string, sweeper Sweeper, interval time.Duration, batch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, sweepTask{
		name:     name,
		sweeper:  sweeper,
		interval: interval,
		batch:    batch,
	})
}

// Start launches one goroutine per registered sweep
func (s *SweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return ErrInvalidConfig
	}
	s.isRunning = true
	tasks := s.tasks
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, task := range tasks {
		s.wg.Add(1)
		go s.runLoop(ctx, task)
	}

	s.logger.Info("Sweep scheduler started", zap.Int("sweeps", len(tasks)))
	return nil
}

// Stop stops all sweep loops and waits for in-flight batches
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Sweep scheduler stopped")
}

func (s *SweepScheduler) runLoop(ctx context.Context, task sweepTask) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep(ctx, task)
		}
	}
}

func (s *SweepScheduler) runSweep(ctx context.Context, task sweepTask) {
	total := 0
	for {
		n, err := task.sweeper.Sweep(ctx, time.Now(), task.batch)
		if err != nil {
			s.logger.Error("Sweep failed",
				zap.String("sweep", task.name),
				zap.Int("processed", total),
				zap.Error(err),
			)
			return
		}
		total += n
		// A short batch means the backlog is drained
		if n < task.batch {
			break
		}
		if ctx.Err() != nil {
			return
		}
	}

	if total > 0 {
		s.logger.Info("Sweep completed",
			zap.String("sweep", task.name),
			zap.Int("processed", total),
		)
	}
}
