package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wasla/backend/internal/domain/notification"
)

// RedisQuota counts outbound messages per merchant per calendar month and
// refuses sends past the configured limit. A limit of zero or less means
// unlimited.
type RedisQuota struct {
	client    *redis.Client
	limit     int64
	keyPrefix string
}

// NewRedisQuota creates a Redis-backed message quota
func NewRedisQuota(client *redis.Client, limit int64) *RedisQuota {
	return &RedisQuota{
		client:    client,
		limit:     limit,
		keyPrefix: "quota:msg:",
	}
}

func (q *RedisQuota) key(merchantID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("%s%s:%s", q.keyPrefix, merchantID.String(), now.UTC().Format("2006-01"))
}

// Consume reserves one message from the merchant's monthly quota
func (q *RedisQuota) Consume(ctx context.Context, merchantID uuid.UUID) error {
	if q.limit <= 0 {
		return nil
	}
	key := q.key(merchantID, time.Now())
	n, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to consume message quota: %w", err)
	}
	if n == 1 {
		// Keep the counter a little past the month boundary so late
		// retries still count against the right window
		q.client.Expire(ctx, key, 40*24*time.Hour)
	}
	if n > q.limit {
		q.client.Decr(ctx, key)
		return notification.ErrQuotaExceeded
	}
	return nil
}

var _ notification.Quota = (*RedisQuota)(nil)

// InMemoryQuota is the single-node fallback when Redis is disabled
type InMemoryQuota struct {
	mu     sync.Mutex
	limit  int64
	month  string
	counts map[uuid.UUID]int64
}

// NewInMemoryQuota creates an in-memory message quota
func NewInMemoryQuota(limit int64) *InMemoryQuota {
	return &InMemoryQuota{
		limit:  limit,
		counts: make(map[uuid.UUID]int64),
	}
}

// Consume reserves one message from the merchant's monthly quota
func (q *InMemoryQuota) Consume(_ context.Context, merchantID uuid.UUID) error {
	if q.limit <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	month := time.Now().UTC().Format("2006-01")
	if month != q.month {
		q.month = month
		q.counts = make(map[uuid.UUID]int64)
	}
	if q.counts[merchantID] >= q.limit {
		return notification.ErrQuotaExceeded
	}
	q.counts[merchantID]++
	return nil
}

var _ notification.Quota = (*InMemoryQuota)(nil)
