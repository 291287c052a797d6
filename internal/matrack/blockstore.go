package matrack

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/edgetensor/fleetdash/internal/db"
	"github.com/redis/go-redis/v9"
)

const (
	serviceBlockedKey = "matrack:service_blocked"
	blockedUntilKey   = "matrack:blocked_until"
)

// RedisBlockStore keeps upstream blocks in Redis so all replicas share them.
type RedisBlockStore struct {
	redis *db.RedisClient
}

func NewRedisBlockStore(redis *db.RedisClient) *RedisBlockStore {
	return &RedisBlockStore{redis: redis}
}

func (s *RedisBlockStore) MarkServiceBlocked(ctx context.Context) {
	// No expiry: the block is lifted by deleting the key by hand.
	if err := s.redis.Set(ctx, serviceBlockedKey, time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
		slog.Error("matrack.blockstore.mark_failed",
			"component", "matrack_api",
			"event", "blockstore.error",
			"error", err,
		)
	}
}

func (s *RedisBlockStore) IsServiceBlocked(ctx context.Context) bool {
	err := s.redis.Get(ctx, serviceBlockedKey).Err()
	if err == nil {
		return true
	}
	if !errors.Is(err, redis.Nil) {
		slog.Warn("matrack.blockstore.read_failed",
			"component", "matrack_api",
			"event", "blockstore.error",
			"error", err,
		)
	}
	return false
}

func (s *RedisBlockStore) MarkTemporarilyBlocked(ctx context.Context, blockedUntil time.Time) {
	ttl := time.Until(blockedUntil)
	if ttl <= 0 {
		return
	}
	if err := s.redis.Set(ctx, blockedUntilKey, blockedUntil.Unix(), ttl).Err(); err != nil {
		slog.Error("matrack.blockstore.mark_failed",
			"component", "matrack_api",
			"event", "blockstore.error",
			"error", err,
		)
	}
}

func (s *RedisBlockStore) BlockedUntil(ctx context.Context) time.Time {
	unix, err := s.redis.Get(ctx, blockedUntilKey).Int64()
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}
