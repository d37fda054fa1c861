// Package repository implements data persistence adapters
// Following Hexagonal Architecture: Adapters implement ports defined in core
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/ports"
)

var _ ports.SessionStore = (*MariaDBSessionStore)(nil)

// MariaDBSessionStore persists SessionState as a JSON document column
// (spec.md §6's logical `sessions/{session_id}`), generalizing
// mariadb_repo.go's ConversationRepository JSON-column approach
// (`tagsJSON, _ := json.Marshal(...)`). Optimistic concurrency on
// Version is enforced with `UPDATE ... WHERE chat_id = ? AND version = ?`.
type MariaDBSessionStore struct {
	db *sql.DB
}

// NewMariaDBSessionStore wires a *sql.DB as the session backend.
func NewMariaDBSessionStore(db *sql.DB) *MariaDBSessionStore {
	return &MariaDBSessionStore{db: db}
}

// Load returns the session for chatID, or nil if none exists.
func (r *MariaDBSessionStore) Load(ctx context.Context, chatID string) (*domain.SessionState, error) {
	const query = `
		SELECT session_id, chat_id, version, current_state, intent_queue,
		       outcome, message_history, created_at, updated_at, expires_at
		FROM sessions
		WHERE chat_id = ?
	`

	var (
		session      domain.SessionState
		outcome      sql.NullString
		intentQueue  []byte
		msgHistory   []byte
	)

	err := r.db.QueryRowContext(ctx, query, chatID).Scan(
		&session.SessionID,
		&session.ChatID,
		&session.Version,
		&session.CurrentState,
		&intentQueue,
		&outcome,
		&msgHistory,
		&session.CreatedAt,
		&session.UpdatedAt,
		&session.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("failed to load session", "error", err, "chat_id", chatID)
		return nil, fmt.Errorf("load session: %w", err)
	}

	if len(intentQueue) > 0 {
		if err := json.Unmarshal(intentQueue, &session.IntentQueue); err != nil {
			return nil, fmt.Errorf("unmarshal intent_queue: %w", err)
		}
	}
	if len(msgHistory) > 0 {
		if err := json.Unmarshal(msgHistory, &session.MessageHistory); err != nil {
			return nil, fmt.Errorf("unmarshal message_history: %w", err)
		}
	}
	if outcome.Valid && outcome.String != "" {
		o := domain.Outcome(outcome.String)
		session.Outcome = &o
	}

	return &session, nil
}

// Save inserts a new session row (version=1) or, for an existing one,
// updates it under `WHERE chat_id = ? AND version = ?`, rejecting the
// write and bumping nothing if a concurrent writer already advanced the
// version — the per-session write-serialization primitive spec.md §5
// requires when the queue lacks per-key FIFO.
func (r *MariaDBSessionStore) Save(ctx context.Context, state *domain.SessionState) error {
	intentQueue, err := json.Marshal(state.IntentQueue)
	if err != nil {
		return fmt.Errorf("marshal intent_queue: %w", err)
	}
	msgHistory, err := json.Marshal(state.MessageHistory)
	if err != nil {
		return fmt.Errorf("marshal message_history: %w", err)
	}
	var outcome sql.NullString
	if state.Outcome != nil {
		outcome = sql.NullString{String: string(*state.Outcome), Valid: true}
	}

	if state.Version == 0 {
		const insert = `
			INSERT INTO sessions (
				session_id, chat_id, version, current_state, intent_queue,
				outcome, message_history, created_at, updated_at, expires_at
			)
			VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := r.db.ExecContext(ctx, insert,
			state.SessionID, state.ChatID, state.CurrentState, intentQueue,
			outcome, msgHistory, state.CreatedAt, state.UpdatedAt, state.ExpiresAt,
		)
		if err != nil {
			slog.Error("failed to insert session", "error", err, "chat_id", state.ChatID)
			return fmt.Errorf("insert session: %w", err)
		}
		state.Version = 1
		return nil
	}

	const update = `
		UPDATE sessions
		SET version = version + 1, current_state = ?, intent_queue = ?,
		    outcome = ?, message_history = ?, updated_at = ?, expires_at = ?
		WHERE chat_id = ? AND version = ?
	`
	result, err := r.db.ExecContext(ctx, update,
		state.CurrentState, intentQueue, outcome, msgHistory,
		state.UpdatedAt, state.ExpiresAt, state.ChatID, state.Version,
	)
	if err != nil {
		slog.Error("failed to update session", "error", err, "chat_id", state.ChatID)
		return fmt.Errorf("update session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: concurrent writer updated version %d first", state.ChatID, state.Version)
	}
	state.Version++
	return nil
}
