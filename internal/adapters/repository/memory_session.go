// Package repository implements data persistence adapters
package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/ports"
)

var _ ports.SessionStore = (*MemorySessionStore)(nil)

// MemorySessionStore is the development-only SessionStore backend named by
// SESSION_STORE_BACKEND=memory. Boot-time config validation rejects it
// outside ENVIRONMENT=development, mirroring MemoryDedupeStore.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.SessionState
}

// NewMemorySessionStore constructs an empty in-process session map.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domain.SessionState)}
}

func (s *MemorySessionStore) Load(ctx context.Context, chatID string) (*domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[chatID]
	if !ok {
		return nil, nil
	}
	cp := state
	cp.IntentQueue = append([]domain.IntentEntry(nil), state.IntentQueue...)
	cp.MessageHistory = append([]domain.HistoryEntry(nil), state.MessageHistory...)
	return &cp, nil
}

// Save enforces the same optimistic-concurrency contract as
// MariaDBSessionStore.Save: version=0 means insert, otherwise the stored
// version must match state.Version before the write is accepted.
func (s *MemorySessionStore) Save(ctx context.Context, state *domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[state.ChatID]
	if state.Version == 0 {
		if ok {
			return fmt.Errorf("session %s: concurrent writer already created this session", state.ChatID)
		}
		state.Version = 1
		s.sessions[state.ChatID] = *state
		return nil
	}

	if !ok || existing.Version != state.Version {
		return fmt.Errorf("session %s: concurrent writer updated version %d first", state.ChatID, state.Version)
	}
	state.Version++
	s.sessions[state.ChatID] = *state
	return nil
}
