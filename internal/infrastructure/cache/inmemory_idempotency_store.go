package cache

import (
	"context"
	"sync"
	"time"

	"github.com/wasla/backend/internal/domain/shared"
)

const sweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore deduplicates event IDs in process memory.
// Suited to single-instance deployments and tests; multi-instance
// setups use the Redis store so duplicates are seen across replicas.
type InMemoryIdempotencyStore struct {
	mu     sync.RWMutex
	expiry map[string]time.Time

	done      chan struct{}
	sweeper   sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore builds the store and starts a background
// sweep that evicts expired IDs. Call Close to stop the sweep.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		expiry: make(map[string]time.Time),
		done:   make(chan struct{}),
	}

	s.sweeper.Add(1)
	go s.sweepLoop()

	return s
}

// MarkProcessed records the event ID for ttl. The first caller for a
// live ID gets true; everyone else gets false until the ID expires.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, ok := s.expiry[eventID]; ok && now.Before(deadline) {
		return false, nil
	}

	s.expiry[eventID] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether the event ID is live. Expired IDs count
// as unprocessed even if the sweep has not evicted them yet.
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deadline, ok := s.expiry[eventID]
	return ok && time.Now().Before(deadline), nil
}

// Close stops the sweep goroutine. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.sweeper.Wait()
	})
	return nil
}

// Size reports the number of stored IDs, expired ones included.
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expiry)
}

func (s *InMemoryIdempotencyStore) sweepLoop() {
	defer s.sweeper.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for eventID, deadline := range s.expiry {
		if now.After(deadline) {
			delete(s.expiry, eventID)
		}
	}
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
