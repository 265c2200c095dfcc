package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
)

// Cache stores tenant projections keyed by identifier. Implementations
// must be safe for concurrent use from many request-handling goroutines.
// A Cache error never fails a lookup; the directory falls back to the
// durable store.
type Cache interface {
	Get(ctx context.Context, key string) (*Info, bool, error)
	Set(ctx context.Context, key string, info *Info, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// memoryCache is an in-process L1 cache backed by ristretto.
type memoryCache struct {
	c *ristretto.Cache[string, []byte]
}

// NewMemoryCache creates the in-process cache. maxCostBytes bounds the
// total size of cached projections.
func NewMemoryCache(maxCostBytes int64) (Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected entries
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &memoryCache{c: c}, nil
}

func (m *memoryCache) Get(_ context.Context, key string) (*Info, bool, error) {
	raw, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		m.c.Del(key)
		return nil, false, nil
	}
	return &info, true, nil
}

func (m *memoryCache) Set(_ context.Context, key string, info *Info, ttl time.Duration) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	m.c.SetWithTTL(key, raw, int64(len(raw)), ttl)
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.c.Del(key)
	return nil
}

// redisCache is the shared L2 cache, surviving process restarts and
// visible to all replicas.
type redisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache creates a redis-backed tenant cache. All keys are
// namespaced under the given prefix (default "tenant").
func NewRedisCache(client redis.UniversalClient, prefix string) Cache {
	if prefix == "" {
		prefix = "tenant"
	}
	return &redisCache{client: client, prefix: prefix}
}

func (r *redisCache) key(k string) string { return r.prefix + ":" + k }

func (r *redisCache) Get(ctx context.Context, key string) (*Info, bool, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		// Corrupted entry; drop it rather than serving garbage.
		_ = r.client.Del(ctx, r.key(key)).Err()
		return nil, false, nil
	}
	return &info, true, nil
}

func (r *redisCache) Set(ctx context.Context, key string, info *Info, ttl time.Duration) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), raw, ttl).Err()
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// layeredCache reads through L1 then L2, promoting L2 hits into L1.
// Writes and invalidations go to both layers.
type layeredCache struct {
	l1 Cache
	l2 Cache
}

// NewLayeredCache combines an in-process L1 with a shared L2.
func NewLayeredCache(l1, l2 Cache) Cache {
	return &layeredCache{l1: l1, l2: l2}
}

func (l *layeredCache) Get(ctx context.Context, key string) (*Info, bool, error) {
	if info, ok, err := l.l1.Get(ctx, key); err == nil && ok {
		return info, true, nil
	}
	info, ok, err := l.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	// Promotion is best-effort; an L1 write failure is not a miss.
	_ = l.l1.Set(ctx, key, info, time.Minute)
	return info, true, nil
}

func (l *layeredCache) Set(ctx context.Context, key string, info *Info, ttl time.Duration) error {
	err1 := l.l1.Set(ctx, key, info, ttl)
	err2 := l.l2.Set(ctx, key, info, ttl)
	return errors.Join(err1, err2)
}

func (l *layeredCache) Delete(ctx context.Context, key string) error {
	err1 := l.l1.Delete(ctx, key)
	err2 := l.l2.Delete(ctx, key)
	return errors.Join(err1, err2)
}

// NoOpCache disables caching, useful for tests or when caching is unwanted.
type NoOpCache struct{}

func (NoOpCache) Get(context.Context, string) (*Info, bool, error) { return nil, false, nil }

func (NoOpCache) Set(context.Context, string, *Info, time.Duration) error { return nil }

func (NoOpCache) Delete(context.Context, string) error { return nil }
