package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/ports"
)

// ErrAuditConflict is returned when the observed latest hash for a
// user_key does not match the caller's expected_prev_hash — a concurrent
// writer appended first.
var ErrAuditConflict = errors.New("audit chain conflict: latest hash changed concurrently")

// GenesisHash seeds the chain for a user_key with no prior events.
const GenesisHash = "genesis"

// AuditChain implements C9: an append-only, hash-linked event log with
// optimistic concurrency on append.
type AuditChain struct {
	store     ports.AuditStore
	export    ports.ExportStore
	publisher ports.AuditPublisher
}

// NewAuditChain wires the document store backing the chain, the blob
// store backing compliance exports, and an optional live-stream
// publisher (pass nil to skip operator broadcasting).
func NewAuditChain(store ports.AuditStore, export ports.ExportStore, publisher ports.AuditPublisher) *AuditChain {
	return &AuditChain{store: store, export: export, publisher: publisher}
}

// Append computes event's hash from the current latest event for
// event.UserKey and writes it under optimistic concurrency. On
// ErrAuditConflict the caller should re-read the latest hash and retry
// once, per spec.md §7's AUDIT_CHAIN_CONFLICT policy.
func (c *AuditChain) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	latest, err := c.store.GetLatestEvent(ctx, event.UserKey)
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("read latest audit event: %w", err)
	}

	prevHash := GenesisHash
	if latest != nil {
		prevHash = latest.Hash
	}

	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.PrevHash = prevHash
	event.Hash = computeHash(event, prevHash)

	if err := c.store.AppendEvent(ctx, event, prevHash); err != nil {
		if errors.Is(err, ErrAuditConflict) {
			return domain.AuditEvent{}, ErrAuditConflict
		}
		return domain.AuditEvent{}, fmt.Errorf("append audit event: %w", err)
	}
	if c.publisher != nil {
		c.publisher.Publish(event)
	}
	return event, nil
}

// AppendWithRetry retries Append once on ErrAuditConflict, matching
// spec.md §7's "read-latest, recompute prev_hash, retry once; otherwise
// surface" policy.
func (c *AuditChain) AppendWithRetry(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	result, err := c.Append(ctx, event)
	if errors.Is(err, ErrAuditConflict) {
		result, err = c.Append(ctx, event)
	}
	return result, err
}

func (c *AuditChain) ListEvents(ctx context.Context, userKey string, limit int) ([]domain.AuditEvent, error) {
	events, err := c.store.ListEvents(ctx, userKey, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// ExportEvents streams a user's full event list to the blob store as a
// compliance/export artifact (spec.md §1's "blob store for exports").
func (c *AuditChain) ExportEvents(ctx context.Context, userKey string) (objectRef string, err error) {
	events, err := c.store.ListEvents(ctx, userKey, 0)
	if err != nil {
		return "", fmt.Errorf("list events for export: %w", err)
	}

	data, err := marshalExport(events)
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}

	objectKey := fmt.Sprintf("audit-exports/%s/%s.json", userKey, uuid.NewString())
	ref, err := c.export.PutExport(ctx, objectKey, data, "application/json")
	if err != nil {
		return "", fmt.Errorf("put export: %w", err)
	}
	return ref, nil
}

// computeHash implements hash = SHA256(canonical_fields || prev_hash).
func computeHash(event domain.AuditEvent, prevHash string) string {
	sum := sha256.Sum256(append(canonicalEvent(event), []byte(prevHash)...))
	return hex.EncodeToString(sum[:])
}
