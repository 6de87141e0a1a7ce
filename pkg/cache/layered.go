package cache

import (
	"context"
	"time"
)

// LayeredCache reads through an in-process layer before Redis, and writes
// through to both. A Redis hit is copied into memory with a short TTL so the
// local copy cannot outlive the Redis entry by much.
type LayeredCache struct {
	local  *MemoryCache
	shared *RedisCache
}

const localCopyTTL = time.Minute

func NewLayeredCache(shared *RedisCache) *LayeredCache {
	return &LayeredCache{local: NewMemoryCache(), shared: shared}
}

func (lc *LayeredCache) Get(ctx context.Context, key string) (string, error) {
	if val, err := lc.local.Get(ctx, key); err == nil {
		return val, nil
	}
	val, err := lc.shared.Get(ctx, key)
	if err != nil {
		return "", err
	}
	_ = lc.local.Set(ctx, key, val, localCopyTTL)
	return val, nil
}

func (lc *LayeredCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := lc.shared.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return lc.local.Set(ctx, key, value, ttl)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.local.Delete(ctx, keys...)
	return lc.shared.Delete(ctx, keys...)
}

func (lc *LayeredCache) Close() error {
	_ = lc.local.Close()
	return lc.shared.Close()
}
