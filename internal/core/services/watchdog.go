// Package services contains core business logic services
// Following Hexagonal Architecture: Core layer is independent of infrastructure
package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

// WatchdogConfig governs the self-healing sweep's cadence and safety
// thresholds, generalizing the teacher's hardcoded 10-minute/70%
// constants into operator-tunable values.
type WatchdogConfig struct {
	Interval        time.Duration
	DiskPath        string
	DiskWarnPercent float64
	Retention       time.Duration
}

// DefaultWatchdogConfig mirrors the teacher's original tuning.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		Interval:        10 * time.Minute,
		DiskPath:        ".",
		DiskWarnPercent: 70.0,
		Retention:       7 * 24 * time.Hour,
	}
}

// RunWatchdog starts the auto-purge background service. Disk sampling is
// real (gopsutil, the dependency the teacher declared but never
// imported — dashboard.go's GetSystemMetrics is the only place it was
// actually wired). Each tick samples disk usage; only when it is at or
// above DiskWarnPercent does the tick purge this system's own TTL-bearing
// tables (sessions past expires_at, dedupe_inbound/dedupe_outbound rows
// past their ttl_expire_at column, inbound_processing_logs older than
// Retention) rather than the teacher's Facebook-schema
// webhook_logs/messages, and engage EmergencyMode as a load-shedding
// brake on LLM calls until disk pressure recedes.
func RunWatchdog(ctx context.Context, db *sql.DB, emergency *EmergencyMode, cfg WatchdogConfig) {
	ticker := time.NewTicker(cfg.Interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runWatchdogTick(ctx, db, emergency, cfg)
			}
		}
	}()

	slog.Info("watchdog service started", "interval", cfg.Interval, "disk_warn_percent", cfg.DiskWarnPercent)
}

func runWatchdogTick(ctx context.Context, db *sql.DB, emergency *EmergencyMode, cfg WatchdogConfig) {
	usage, err := disk.UsageWithContext(ctx, cfg.DiskPath)
	if err != nil {
		slog.Error("watchdog: disk usage check failed", "error", err)
		return
	}

	slog.Info("watchdog: resource check", "disk_percent", usage.UsedPercent)

	if usage.UsedPercent >= cfg.DiskWarnPercent {
		if !emergency.IsActive() {
			emergency.Enable("disk_usage_threshold_exceeded", "watchdog")
		}
		purgeExpired(ctx, db, cfg.Retention)
	} else if emergency.IsActive() {
		emergency.Disable("watchdog")
	}
}

// purgeExpired deletes rows past their TTL/retention window, bounded to
// 1000 rows per table per tick, same safety cap the teacher applied to
// its own purge queries.
func purgeExpired(ctx context.Context, db *sql.DB, retention time.Duration) {
	cutoff := time.Now().Add(-retention)

	if res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ? LIMIT 1000`, time.Now()); err != nil {
		slog.Error("watchdog: session purge failed", "error", err)
	} else if rows, _ := res.RowsAffected(); rows > 0 {
		slog.Info("watchdog: purged expired sessions", "rows", rows)
	}

	for _, table := range []string{"dedupe_inbound", "dedupe_outbound"} {
		if res, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE ttl_expire_at < ? LIMIT 1000`, table), time.Now()); err != nil {
			slog.Error("watchdog: dedupe document purge failed", "error", err, "table", table)
		} else if rows, _ := res.RowsAffected(); rows > 0 {
			slog.Info("watchdog: purged expired dedupe documents", "rows", rows, "table", table)
		}
	}

	if res, err := db.ExecContext(ctx, `DELETE FROM inbound_processing_logs WHERE created_at < ? LIMIT 1000`, cutoff); err != nil {
		slog.Error("watchdog: inbound log purge failed", "error", err)
	} else if rows, _ := res.RowsAffected(); rows > 0 {
		slog.Info("watchdog: purged old inbound processing logs", "rows", rows)
	}
}
