// Package repository implements data persistence adapters
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/ports"
)

var _ ports.DedupeStore = (*RedisDedupeStore)(nil)

// redisDedupeValue is the JSON document stored at each dedupe key,
// generalizing redis_repo.go's bare timestamp value into the full
// pending/sent/failed lifecycle spec.md §4.2 requires for outbound keys.
type redisDedupeValue struct {
	Status     domain.DedupeStatus `json:"status"`
	OriginalID string              `json:"original_id,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// RedisDedupeStore implements C2's "kv" backend using native SET EX /
// SETNX, grounded on repository/redis_repo.go's IsDuplicate/MarkProcessed.
type RedisDedupeStore struct {
	client *redis.Client
}

// NewRedisDedupeStore wires a go-redis client as the production dedupe
// backend (both inbound and outbound; callers distinguish by key
// namespace via services.DedupeKey).
func NewRedisDedupeStore(client *redis.Client) *RedisDedupeStore {
	return &RedisDedupeStore{client: client}
}

// MarkIfNew uses SETNX semantics via SetNX so only the first caller for
// key observes isNew=true, satisfying the dedupe-idempotence invariant
// under concurrent callers.
func (s *RedisDedupeStore) MarkIfNew(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		slog.Error("redis dedupe backend unavailable", "error", err, "key", key)
		return false, fmt.Errorf("mark if new: %w", err)
	}
	return ok, nil
}

// CheckAndMarkOutbound uses SetNX to atomically create a pending entry;
// a failed SetNX means a prior entry exists, which is then read back.
func (s *RedisDedupeStore) CheckAndMarkOutbound(ctx context.Context, key string, ttl time.Duration) (domain.DedupeResult, error) {
	pending := redisDedupeValue{Status: domain.DedupeStatusPending}
	raw, err := json.Marshal(pending)
	if err != nil {
		return domain.DedupeResult{}, fmt.Errorf("marshal pending dedupe value: %w", err)
	}

	created, err := s.client.SetNX(ctx, key, raw, ttl).Result()
	if err != nil {
		return domain.DedupeResult{}, fmt.Errorf("check and mark outbound: %w", err)
	}
	if created {
		return domain.DedupeResult{IsDuplicate: false, Status: domain.DedupeStatusPending}, nil
	}

	existing, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			// Raced with the entry's TTL expiry between SetNX and Get;
			// treat as a fresh, already-pending entry.
			return domain.DedupeResult{IsDuplicate: false, Status: domain.DedupeStatusPending}, nil
		}
		return domain.DedupeResult{}, fmt.Errorf("read existing dedupe entry: %w", err)
	}

	var val redisDedupeValue
	if err := json.Unmarshal([]byte(existing), &val); err != nil {
		return domain.DedupeResult{}, fmt.Errorf("parse existing dedupe entry: %w", err)
	}
	return domain.DedupeResult{IsDuplicate: true, Status: val.Status, OriginalID: val.OriginalID, Error: val.Error}, nil
}

func (s *RedisDedupeStore) MarkSent(ctx context.Context, key, providerMessageID string) error {
	return s.updateStatus(ctx, key, domain.DedupeStatusSent, providerMessageID, "")
}

func (s *RedisDedupeStore) MarkFailed(ctx context.Context, key, errMsg string) error {
	existing, err := s.client.Get(ctx, key).Result()
	if err == nil {
		var val redisDedupeValue
		if json.Unmarshal([]byte(existing), &val) == nil && val.Status == domain.DedupeStatusSent {
			return nil
		}
	}
	return s.updateStatus(ctx, key, domain.DedupeStatusFailed, "", errMsg)
}

// updateStatus preserves key's remaining TTL via KEEPTTL so a late
// status update never resets the idempotency window.
func (s *RedisDedupeStore) updateStatus(ctx context.Context, key string, status domain.DedupeStatus, originalID, errMsg string) error {
	val := redisDedupeValue{Status: status, OriginalID: originalID, Error: errMsg}
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("marshal dedupe value: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, redis.KeepTTL).Err(); err != nil {
		slog.Error("failed to update dedupe status", "error", err, "key", key, "status", status)
		return fmt.Errorf("update dedupe status: %w", err)
	}
	return nil
}
