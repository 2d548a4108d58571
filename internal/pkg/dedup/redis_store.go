// internal/pkg/dedup/redis_store.go
package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "webhook:transmission:"
	defaultTTL = 72 * time.Hour
)

// RedisStore remembers webhook transmission ids so duplicate deliveries
// can be suppressed cheaply. The TTL covers the provider's redelivery
// window; after that the idempotent transition apply is the safety net.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: defaultTTL}
}

// Seen reports whether the transmission id was already recorded. Read
// only; callers record the id with Mark once the delivery is fully
// applied, so a failed apply stays eligible for redelivery.
func (s *RedisStore) Seen(ctx context.Context, transmissionID string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+transmissionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records the transmission id for the redelivery window.
func (s *RedisStore) Mark(ctx context.Context, transmissionID string) error {
	return s.client.Set(ctx, keyPrefix+transmissionID, 1, s.ttl).Err()
}
