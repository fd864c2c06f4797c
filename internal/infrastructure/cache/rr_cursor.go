package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RoundRobinCursor hands out a monotonically increasing counter per merchant,
// used to rotate outbound sends across secondary WhatsApp instances. The
// counter only has to be advisory; a reset after restart just restarts the
// rotation.
type RoundRobinCursor interface {
	// Next returns the next cursor value for a merchant
	Next(ctx context.Context, merchantID uuid.UUID) (uint64, error)
}

// RedisRoundRobinCursor shares the rotation across processes
type RedisRoundRobinCursor struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRoundRobinCursor creates a Redis-backed cursor
func NewRedisRoundRobinCursor(client *redis.Client) *RedisRoundRobinCursor {
	return &RedisRoundRobinCursor{
		client:    client,
		keyPrefix: "instance:rr:",
	}
}

// Next increments and returns the merchant's cursor
func (c *RedisRoundRobinCursor) Next(ctx context.Context, merchantID uuid.UUID) (uint64, error) {
	n, err := c.client.Incr(ctx, c.keyPrefix+merchantID.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance round-robin cursor: %w", err)
	}
	return uint64(n), nil
}

var _ RoundRobinCursor = (*RedisRoundRobinCursor)(nil)

// InMemoryRoundRobinCursor is the single-node fallback
type InMemoryRoundRobinCursor struct {
	mu       sync.Mutex
	counters map[uuid.UUID]uint64
}

// NewInMemoryRoundRobinCursor creates an in-memory cursor
func NewInMemoryRoundRobinCursor() *InMemoryRoundRobinCursor {
	return &InMemoryRoundRobinCursor{counters: make(map[uuid.UUID]uint64)}
}

// Next increments and returns the merchant's cursor
func (c *InMemoryRoundRobinCursor) Next(_ context.Context, merchantID uuid.UUID) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[merchantID]++
	return c.counters[merchantID], nil
}

var _ RoundRobinCursor = (*InMemoryRoundRobinCursor)(nil)
