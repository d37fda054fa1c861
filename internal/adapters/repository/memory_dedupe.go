// Package repository implements data persistence adapters
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/ports"
)

var _ ports.DedupeStore = (*MemoryDedupeStore)(nil)

// memoryDedupeEntry mirrors domain.DedupeEntry plus a provider message id
// slot, since the in-memory backend has no separate document shape.
type memoryDedupeEntry struct {
	status     domain.DedupeStatus
	expiresAt  time.Time
	originalID string
	errMsg     string
}

// MemoryDedupeStore is the development-only DedupeStore backend named in
// spec.md §4.2 ("in-memory map, development only"). Boot-time config
// validation rejects it outside ENVIRONMENT=development.
type MemoryDedupeStore struct {
	mu      sync.Mutex
	entries map[string]memoryDedupeEntry
}

// NewMemoryDedupeStore constructs an empty in-process dedupe map.
func NewMemoryDedupeStore() *MemoryDedupeStore {
	return &MemoryDedupeStore{entries: make(map[string]memoryDedupeEntry)}
}

func (s *MemoryDedupeStore) MarkIfNew(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	s.entries[key] = memoryDedupeEntry{status: domain.DedupeStatusSent, expiresAt: now.Add(ttl)}
	return true, nil
}

func (s *MemoryDedupeStore) CheckAndMarkOutbound(ctx context.Context, key string, ttl time.Duration) (domain.DedupeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return domain.DedupeResult{IsDuplicate: true, Status: e.status, OriginalID: e.originalID, Error: e.errMsg}, nil
	}
	s.entries[key] = memoryDedupeEntry{status: domain.DedupeStatusPending, expiresAt: now.Add(ttl)}
	return domain.DedupeResult{IsDuplicate: false, Status: domain.DedupeStatusPending}, nil
}

func (s *MemoryDedupeStore) MarkSent(ctx context.Context, key, providerMessageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[key]
	e.status = domain.DedupeStatusSent
	e.originalID = providerMessageID
	s.entries[key] = e
	return nil
}

func (s *MemoryDedupeStore) MarkFailed(ctx context.Context, key, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[key]
	if e.status == domain.DedupeStatusSent {
		return nil
	}
	e.status = domain.DedupeStatusFailed
	e.errMsg = errMsg
	s.entries[key] = e
	return nil
}
