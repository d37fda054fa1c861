package repository

import (
	"context"
	"sync"
	"time"

	"github.com/wagateway/core/internal/core/ports"
)

var _ ports.FloodStore = (*MemoryFloodStore)(nil)

// MemoryFloodStore is the timestamp-list form of the flood counter named
// in spec.md §4.4, used for development and for any backend lacking
// atomic counters. Each RecordAndCount prunes entries outside window.
type MemoryFloodStore struct {
	mu         sync.Mutex
	timestamps map[string][]time.Time
}

// NewMemoryFloodStore constructs an empty in-process flood counter.
func NewMemoryFloodStore() *MemoryFloodStore {
	return &MemoryFloodStore{timestamps: make(map[string][]time.Time)}
}

func (s *MemoryFloodStore) RecordAndCount(ctx context.Context, sessionID string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)

	stamps := s.timestamps[sessionID]
	pruned := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	pruned = append(pruned, now)
	s.timestamps[sessionID] = pruned

	return int64(len(pruned)), nil
}
