// Package repository implements data persistence adapters
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/ports"
	"github.com/wagateway/core/internal/core/services"
)

var _ ports.AuditStore = (*MariaDBAuditStore)(nil)

// MariaDBAuditStore persists the append-only hash chain (C9) as one row
// per event, keyed by (user_key, event_id), generalizing the teacher's
// webhook_logs append-only table (mariadb_repo.go's SaveLog/UpdateStatus)
// from a flat status log into a hash-linked chain with per-user_key
// latest-hash lookups.
type MariaDBAuditStore struct {
	db *sql.DB
}

// NewMariaDBAuditStore wires a *sql.DB as the audit chain backend.
func NewMariaDBAuditStore(db *sql.DB) *MariaDBAuditStore {
	return &MariaDBAuditStore{db: db}
}

// AppendEvent inserts event under a transaction that re-checks the
// latest hash for event.UserKey against expectedPrevHash, returning
// services.ErrAuditConflict if a concurrent writer appended first.
func (r *MariaDBAuditStore) AppendEvent(ctx context.Context, event domain.AuditEvent, expectedPrevHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit append tx: %w", err)
	}
	defer tx.Rollback()

	var currentHash sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT hash FROM audit_events WHERE user_key = ? ORDER BY id DESC LIMIT 1 FOR UPDATE`,
		event.UserKey,
	).Scan(&currentHash)

	observed := services.GenesisHash
	switch {
	case err == sql.ErrNoRows:
		// no prior event, genesis stands
	case err != nil:
		return fmt.Errorf("read latest audit hash: %w", err)
	default:
		observed = currentHash.String
	}

	if observed != expectedPrevHash {
		return services.ErrAuditConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_events (
			event_id, user_key, tenant_id, event_timestamp, actor, action,
			reason, prev_hash, hash, correlation_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.EventID, event.UserKey, event.TenantID, event.Timestamp,
		string(event.Actor), event.Action, event.Reason,
		event.PrevHash, event.Hash, event.CorrelationID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit append: %w", err)
	}

	slog.Debug("audit event appended", "user_key", event.UserKey, "event_id", event.EventID, "action", event.Action)
	return nil
}

// GetLatestEvent returns the most recently appended event for userKey,
// or nil if none exists.
func (r *MariaDBAuditStore) GetLatestEvent(ctx context.Context, userKey string) (*domain.AuditEvent, error) {
	events, err := r.scanEvents(ctx, `
		SELECT event_id, user_key, tenant_id, event_timestamp, actor, action, reason, prev_hash, hash, correlation_id
		FROM audit_events WHERE user_key = ? ORDER BY id DESC LIMIT 1
	`, userKey)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// ListEvents returns up to limit events for userKey, newest first; a
// limit of 0 or less returns every event.
func (r *MariaDBAuditStore) ListEvents(ctx context.Context, userKey string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		return r.scanEvents(ctx, `
		SELECT event_id, user_key, tenant_id, event_timestamp, actor, action, reason, prev_hash, hash, correlation_id
		FROM audit_events WHERE user_key = ? ORDER BY id DESC
	`, userKey)
	}
	return r.scanEvents(ctx, `
		SELECT event_id, user_key, tenant_id, event_timestamp, actor, action, reason, prev_hash, hash, correlation_id
		FROM audit_events WHERE user_key = ? ORDER BY id DESC LIMIT ?
	`, userKey, limit)
}

func (r *MariaDBAuditStore) scanEvents(ctx context.Context, query string, args ...interface{}) ([]domain.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		var actor string
		var tenantID sql.NullString
		var correlationID sql.NullString
		if err := rows.Scan(&e.EventID, &e.UserKey, &tenantID, &e.Timestamp, &actor, &e.Action, &e.Reason, &e.PrevHash, &e.Hash, &correlationID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Actor = domain.Actor(actor)
		e.TenantID = tenantID.String
		e.CorrelationID = correlationID.String
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ ports.InboundLogStore = (*MariaDBInboundLogStore)(nil)

// MariaDBInboundLogStore persists the observability log spec.md §6 names
// at inbound_processing_logs/{inbound_event_id}, an upsert-on-conflict
// table in the teacher's ON DUPLICATE KEY idiom
// (mariadb_repo.go's SaveMessage).
type MariaDBInboundLogStore struct {
	db *sql.DB
}

// NewMariaDBInboundLogStore wires a *sql.DB as the inbound log backend.
func NewMariaDBInboundLogStore(db *sql.DB) *MariaDBInboundLogStore {
	return &MariaDBInboundLogStore{db: db}
}

// RecordProcessing upserts one row per inboundEventID, overwriting status
// and detail on every call so the log reflects the latest outcome for a
// task that was retried. ttl sets ttl_expire_at; the watchdog's purge
// sweep does not read that column and deletes rows by created_at against
// its own retention window.
func (r *MariaDBInboundLogStore) RecordProcessing(ctx context.Context, inboundEventID string, status string, detail string, ttl time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inbound_processing_logs (inbound_event_id, status, detail, created_at, ttl_expire_at)
		VALUES (?, ?, ?, NOW(), ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), detail = VALUES(detail), ttl_expire_at = VALUES(ttl_expire_at)
	`, inboundEventID, status, detail, time.Now().Add(ttl))
	if err != nil {
		slog.Error("failed to record inbound processing log", "error", err, "inbound_event_id", inboundEventID)
		return fmt.Errorf("record inbound processing: %w", err)
	}
	return nil
}
