package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value    string
	expireAt time.Time
	lastUsed time.Time
}

// MemoryCache is a bounded in-process cache. When full it evicts the least
// recently used entry. Expired entries are dropped on read and by a
// background sweep.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	maxSize int
	done    chan struct{}
}

const (
	memoryDefaultMaxSize = 1000
	memoryDefaultTTL     = time.Hour
	memorySweepInterval  = 5 * time.Minute
)

func NewMemoryCache() *MemoryCache {
	mc := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		maxSize: memoryDefaultMaxSize,
		done:    make(chan struct{}),
	}
	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Get(_ context.Context, key string) (string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	e, ok := mc.entries[key]
	if !ok {
		return "", ErrCacheMiss
	}
	if time.Now().After(e.expireAt) {
		delete(mc.entries, key)
		return "", ErrCacheMiss
	}
	e.lastUsed = time.Now()
	return e.value, nil
}

func (mc *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = memoryDefaultTTL
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, ok := mc.entries[key]; !ok && len(mc.entries) >= mc.maxSize {
		mc.evictOldest()
	}
	now := time.Now()
	mc.entries[key] = &memoryEntry{value: value, expireAt: now.Add(ttl), lastUsed: now}
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		delete(mc.entries, k)
	}
	return nil
}

// Close stops the background sweep.
func (mc *MemoryCache) Close() error {
	close(mc.done)
	return nil
}

// evictOldest is called with mc.mu held.
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range mc.entries {
		if oldestKey == "" || e.lastUsed.Before(oldestAt) {
			oldestKey, oldestAt = k, e.lastUsed
		}
	}
	if oldestKey != "" {
		delete(mc.entries, oldestKey)
	}
}

func (mc *MemoryCache) sweep() {
	t := time.NewTicker(memorySweepInterval)
	defer t.Stop()
	for {
		select {
		case <-mc.done:
			return
		case now := <-t.C:
			mc.mu.Lock()
			for k, e := range mc.entries {
				if now.After(e.expireAt) {
					delete(mc.entries, k)
				}
			}
			mc.mu.Unlock()
		}
	}
}
