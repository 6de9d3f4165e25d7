package subscriber

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultMarkerPrefix = "subscriber-processed-check:"
	DefaultMarkerTTL    = 60 * time.Second
)

// ProcessMarker guards a message id against being processed twice.
type ProcessMarker interface {
	// Acquire is true when the caller got the right to process msgID.
	Acquire(ctx context.Context, msgID string) (bool, error)
	// Release gives msgID back so that a redelivery can be processed.
	Release(ctx context.Context, msgID string) error
}

var _ ProcessMarker = (*LocalMarker)(nil)

// LocalMarker remembers ids in process memory. Only dedupes within one process.
type LocalMarker struct {
	cache *cache.Cache
}

func NewLocalMarker(ttl time.Duration) *LocalMarker {
	return &LocalMarker{cache: cache.New(ttl, ttl)}
}

func (m *LocalMarker) Acquire(ctx context.Context, msgID string) (bool, error) {
	err := m.cache.Add(msgID, struct{}{}, cache.DefaultExpiration)
	return err == nil, nil
}

func (m *LocalMarker) Release(ctx context.Context, msgID string) error {
	m.cache.Delete(msgID)
	return nil
}

var _ ProcessMarker = (*RedisMarker)(nil)

// RedisMarker shares marks between subscriber processes through SETNX.
type RedisMarker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisMarker(client redis.UniversalClient, ttl time.Duration) *RedisMarker {
	return &RedisMarker{client: client, prefix: DefaultMarkerPrefix, ttl: ttl}
}

func (m *RedisMarker) Acquire(ctx context.Context, msgID string) (bool, error) {
	return m.client.SetNX(ctx, m.prefix+msgID, "v", m.ttl).Result()
}

func (m *RedisMarker) Release(ctx context.Context, msgID string) error {
	return m.client.Del(ctx, m.prefix+msgID).Err()
}
