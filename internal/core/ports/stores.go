// Package ports defines the interfaces core services depend on.
// Following Hexagonal Architecture: core defines contracts, adapters
// implement them. Capability sets are closed — concrete variants are
// chosen at boot from configuration, never through open extension.
package ports

import (
	"context"
	"time"

	"github.com/wagateway/core/internal/core/domain"
)

// DedupeStore provides at-most-once marking of message ids (C2). The same
// interface backs both the inbound store (presence-only) and the
// outbound store (full lifecycle) — callers distinguish by key
// namespace, not by type.
type DedupeStore interface {
	// MarkIfNew atomically marks key as seen. Returns true if this call
	// was the first to see key (the caller should proceed), false if a
	// prior call already marked it (the caller should treat this as a
	// duplicate).
	MarkIfNew(ctx context.Context, key string, ttl time.Duration) (isNew bool, err error)

	// CheckAndMarkOutbound implements the send-lifecycle half of C2: if no
	// prior entry exists for key, creates one with status=pending and
	// returns IsDuplicate=false; if one exists and has not expired,
	// returns it unmodified with IsDuplicate=true.
	CheckAndMarkOutbound(ctx context.Context, key string, ttl time.Duration) (domain.DedupeResult, error)

	// MarkSent upgrades an outbound entry to DedupeStatusSent. Sent is
	// terminal and must never be overwritten by a later MarkFailed.
	MarkSent(ctx context.Context, key, providerMessageID string) error

	// MarkFailed upgrades an outbound entry to DedupeStatusFailed. Last
	// writer wins under concurrent callers; this call is a no-op if the
	// entry is already DedupeStatusSent.
	MarkFailed(ctx context.Context, key, errMsg string) error
}

// SessionStore persists SessionState, keyed by ChatID (C3). Writes are
// serialized per session via Version (optimistic concurrency) so the
// Session Manager can guarantee single-writer semantics regardless of
// whether the task queue provides per-key FIFO.
type SessionStore interface {
	Load(ctx context.Context, chatID string) (*domain.SessionState, error)
	// Save persists state, rejecting the write if state.Version no longer
	// matches the stored version (a concurrent writer updated it first).
	// Implementations bump state.Version on a successful save.
	Save(ctx context.Context, state *domain.SessionState) error
}

// FloodStore implements the sliding-window count behind the Abuse Guard's
// flood check (C4).
type FloodStore interface {
	// RecordAndCount records one event for sessionID and returns the
	// count of events within the trailing window. On backend error the
	// caller must treat the result as fail-safe (not flooded).
	RecordAndCount(ctx context.Context, sessionID string, window time.Duration) (count int64, err error)
}

// AuditStore is the append-only hash chain backend (C9).
type AuditStore interface {
	// AppendEvent writes event if the stored latest event for
	// event.UserKey currently has hash == expectedPrevHash; otherwise it
	// returns ErrAuditConflict so the caller can recompute and retry.
	AppendEvent(ctx context.Context, event domain.AuditEvent, expectedPrevHash string) error
	GetLatestEvent(ctx context.Context, userKey string) (*domain.AuditEvent, error)
	ListEvents(ctx context.Context, userKey string, limit int) ([]domain.AuditEvent, error)
}

// ExportStore is the blob store backing audit/compliance exports.
type ExportStore interface {
	// PutExport writes data under a service-chosen object key and returns
	// a reference the caller can hand back to an operator (a signed URL
	// or a bucket-relative path, depending on the backend).
	PutExport(ctx context.Context, objectKey string, data []byte, contentType string) (ref string, err error)
}

// AuditPublisher fans out appended audit events to live operator
// dashboards (the websocket audit stream). It is optional: callers that
// construct an AuditChain with a nil AuditPublisher simply skip
// broadcasting.
type AuditPublisher interface {
	Publish(event domain.AuditEvent)
}

// InboundLogStore persists the observability log named in spec.md §6:
// inbound_processing_logs/{inbound_event_id}, TTL-bounded.
type InboundLogStore interface {
	RecordProcessing(ctx context.Context, inboundEventID string, status string, detail string, ttl time.Duration) error
}
