package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wagateway/core/internal/core/ports"
)

var _ ports.FloodStore = (*RedisFloodStore)(nil)

// RedisFloodStore implements the atomic INCR+EXPIRE form of the flood
// counter spec.md §4.4 prefers over the timestamp-list fallback.
type RedisFloodStore struct {
	client *redis.Client
}

// NewRedisFloodStore wires a go-redis client as the flood counter backend.
func NewRedisFloodStore(client *redis.Client) *RedisFloodStore {
	return &RedisFloodStore{client: client}
}

// RecordAndCount increments the per-session-id counter and (on first
// increment within the window) sets its expiry to window, returning the
// resulting count. Later increments leave the expiry untouched, so the
// counter resets one window after the first event.
func (s *RedisFloodStore) RecordAndCount(ctx context.Context, sessionID string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("flood:%s", sessionID)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		slog.Error("flood counter backend unavailable", "error", err, "session_id", sessionID)
		return 0, fmt.Errorf("record and count flood: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			slog.Error("flood counter backend unavailable", "error", err, "session_id", sessionID)
			return 0, fmt.Errorf("record and count flood: %w", err)
		}
	}

	return count, nil
}
