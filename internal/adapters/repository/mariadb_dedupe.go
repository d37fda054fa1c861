// Package repository implements data persistence adapters
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/ports"
)

var _ ports.DedupeStore = (*MariaDBDedupeStore)(nil)

// MariaDBDedupeStore implements C2's "document" backend named in spec.md
// §4.2/§6: a document-store collection with a ttl_expire_at column
// pruned periodically rather than a native-TTL kv store. Both the
// inbound (dedupe_inbound) and outbound (dedupe_outbound) stores use
// this same table shape, selected by table name at construction,
// following mariadb_session.go's JSON-document-row approach generalized
// from the teacher's mariadb_repo.go upsert idiom.
type MariaDBDedupeStore struct {
	db    *sql.DB
	table string
}

// NewMariaDBDedupeStore wires a *sql.DB against the named dedupe table
// ("dedupe_inbound" or "dedupe_outbound").
func NewMariaDBDedupeStore(db *sql.DB, table string) *MariaDBDedupeStore {
	return &MariaDBDedupeStore{db: db, table: table}
}

// MarkIfNew atomically inserts a presence-only row for key, relying on
// the table's PRIMARY KEY(dedupe_key) to make a second concurrent
// INSERT fail with a duplicate-key error rather than racing a
// SELECT-then-INSERT. A prior entry that has already expired is
// collected and treated as absent.
func (s *MariaDBDedupeStore) MarkIfNew(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := s.reapExpired(ctx, key); err != nil {
		return false, err
	}

	now := time.Now()
	query := fmt.Sprintf(`
		INSERT INTO %s (dedupe_key, status, created_at, ttl_expire_at)
		VALUES (?, ?, ?, ?)
	`, s.table)
	_, err := s.db.ExecContext(ctx, query, key, domain.DedupeStatusSent, now, now.Add(ttl))
	if err != nil {
		if isDuplicateKeyErr(err) {
			return false, nil
		}
		slog.Error("mariadb dedupe backend unavailable", "error", err, "key", key, "table", s.table)
		return false, fmt.Errorf("mark if new: %w", err)
	}
	return true, nil
}

// CheckAndMarkOutbound mirrors MarkIfNew's insert-or-read shape but
// carries the full pending/sent/failed lifecycle an outbound entry
// needs.
func (s *MariaDBDedupeStore) CheckAndMarkOutbound(ctx context.Context, key string, ttl time.Duration) (domain.DedupeResult, error) {
	if err := s.reapExpired(ctx, key); err != nil {
		return domain.DedupeResult{}, err
	}

	now := time.Now()
	insert := fmt.Sprintf(`
		INSERT INTO %s (dedupe_key, status, created_at, ttl_expire_at)
		VALUES (?, ?, ?, ?)
	`, s.table)
	_, err := s.db.ExecContext(ctx, insert, key, domain.DedupeStatusPending, now, now.Add(ttl))
	if err == nil {
		return domain.DedupeResult{IsDuplicate: false, Status: domain.DedupeStatusPending}, nil
	}
	if !isDuplicateKeyErr(err) {
		return domain.DedupeResult{}, fmt.Errorf("check and mark outbound: %w", err)
	}

	entry, err := s.read(ctx, key)
	if err != nil {
		return domain.DedupeResult{}, err
	}
	if entry == nil {
		// Raced with the entry's TTL reaper between insert and read;
		// treat as a fresh, already-pending entry.
		return domain.DedupeResult{IsDuplicate: false, Status: domain.DedupeStatusPending}, nil
	}
	return domain.DedupeResult{
		IsDuplicate: true,
		Status:      entry.Status,
		OriginalID:  entry.OriginalMessageID,
		Error:       entry.Error,
	}, nil
}

func (s *MariaDBDedupeStore) MarkSent(ctx context.Context, key, providerMessageID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, original_message_id = ?, error = NULL
		WHERE dedupe_key = ?
	`, s.table)
	_, err := s.db.ExecContext(ctx, query, domain.DedupeStatusSent, providerMessageID, key)
	if err != nil {
		slog.Error("failed to mark dedupe entry sent", "error", err, "key", key, "table", s.table)
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// MarkFailed never overwrites a terminal "sent" row: the UPDATE's WHERE
// clause excludes it, so the write becomes a no-op (rows affected 0)
// rather than a racing status flip.
func (s *MariaDBDedupeStore) MarkFailed(ctx context.Context, key, errMsg string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, error = ?
		WHERE dedupe_key = ? AND status != ?
	`, s.table)
	_, err := s.db.ExecContext(ctx, query, domain.DedupeStatusFailed, errMsg, key, domain.DedupeStatusSent)
	if err != nil {
		slog.Error("failed to mark dedupe entry failed", "error", err, "key", key, "table", s.table)
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (s *MariaDBDedupeStore) read(ctx context.Context, key string) (*domain.DedupeEntry, error) {
	query := fmt.Sprintf(`
		SELECT dedupe_key, status, created_at, ttl_expire_at, original_message_id, error
		FROM %s WHERE dedupe_key = ?
	`, s.table)
	var (
		entry      domain.DedupeEntry
		status     string
		originalID sql.NullString
		errMsg     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&entry.Key, &status, &entry.CreatedAt, &entry.ExpiresAt, &originalID, &errMsg,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dedupe entry: %w", err)
	}
	entry.Status = domain.DedupeStatus(status)
	entry.OriginalMessageID = originalID.String
	entry.Error = errMsg.String
	return &entry, nil
}

// reapExpired deletes key's row once its ttl_expire_at has passed,
// standing in for the document store's periodic TTL collection sweep
// spec.md §4.2 describes for this backend (no native per-key expiry).
func (s *MariaDBDedupeStore) reapExpired(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE dedupe_key = ? AND ttl_expire_at <= ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key, time.Now()); err != nil {
		return fmt.Errorf("reap expired dedupe entry: %w", err)
	}
	return nil
}

// isDuplicateKeyErr recognizes MariaDB's duplicate-primary-key error
// (1062), the signal that a concurrent MarkIfNew/CheckAndMarkOutbound
// lost the race and should read back the winner's row instead.
func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
