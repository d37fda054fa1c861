package domain

import "time"

// Actor identifies who caused an AuditEvent.
type Actor string

const (
	ActorSystem Actor = "SYSTEM"
	ActorUser   Actor = "USER"
	ActorAdmin  Actor = "ADMIN"
)

// AuditEvent is one append-only, hash-linked entry in a user's audit
// chain (C9). Hash = SHA256(canonical_fields || prev_hash); the chain is
// validated on append by comparing the observed latest hash to PrevHash
// under a transaction.
type AuditEvent struct {
	EventID       string    `json:"event_id"`
	UserKey       string    `json:"user_key"`
	TenantID      string    `json:"tenant_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Actor         Actor     `json:"actor"`
	Action        string    `json:"action"`
	Reason        string    `json:"reason"`
	PrevHash      string    `json:"prev_hash"`
	Hash          string    `json:"hash"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}
