package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mmlens/internal/domain/models"
	domrepo "mmlens/internal/domain/repository"
)

const (
	universeKeyPrefix = "mmlens:universe:"
	universeLatestKey = "mmlens:universe:latest"
)

// RedisUniverseStore persists the versioned daily universe snapshot so FOCUS
// tracking survives restarts. Snapshots are small and read once per cycle, so
// plain JSON values are enough.
type RedisUniverseStore struct {
	cli *redis.Client
	ttl time.Duration
}

// NewRedisUniverseStore creates the store. A non-positive ttl keeps snapshots
// forever.
func NewRedisUniverseStore(cli *redis.Client, ttl time.Duration) *RedisUniverseStore {
	return &RedisUniverseStore{cli: cli, ttl: ttl}
}

var _ domrepo.UniverseStore = (*RedisUniverseStore)(nil)

func (s *RedisUniverseStore) Save(ctx context.Context, snap models.UniverseSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := universeKeyPrefix + snap.Date
	pipe := s.cli.TxPipeline()
	pipe.Set(ctx, key, b, s.ttl)
	pipe.Set(ctx, universeLatestKey, b, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisUniverseStore) Load(ctx context.Context, date time.Time) (models.UniverseSnapshot, bool, error) {
	return s.load(ctx, universeKeyPrefix+date.Format("2006-01-02"))
}

func (s *RedisUniverseStore) LoadLatest(ctx context.Context) (models.UniverseSnapshot, bool, error) {
	return s.load(ctx, universeLatestKey)
}

func (s *RedisUniverseStore) load(ctx context.Context, key string) (models.UniverseSnapshot, bool, error) {
	var snap models.UniverseSnapshot
	b, err := s.cli.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, fmt.Errorf("load snapshot: %w", err)
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		return snap, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}
