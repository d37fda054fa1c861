package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/ports"
)

// AbuseGuardVerdict is the outcome of the three-check pass (C4). Exactly
// one of Flooded/Spam/FollowupScheduled is true when Blocked is true.
type AbuseGuardVerdict struct {
	Blocked           bool
	Flooded           bool
	Spam              bool
	FollowupScheduled bool
	Outcome           domain.Outcome
}

// AbuseGuard implements C4: flood counter, content-spam heuristic, and
// intent-capacity check, evaluated in that order, first hit wins.
type AbuseGuard struct {
	flood              ports.FloodStore
	floodThreshold     int64
	floodWindow        time.Duration
	repeatedCharRatio  float64
	minSpamCheckLength int
	sessions           *SessionManager
}

// NewAbuseGuard wires the thresholds named in spec.md §6
// (FLOOD_THRESHOLD, FLOOD_WINDOW_SECONDS). The repeated-character ratio
// (0.8) and minimum check length (2) are the fixed, deterministic
// heuristic spec.md §4.4 specifies; they are not environment-configurable.
func NewAbuseGuard(flood ports.FloodStore, floodThreshold int64, floodWindow time.Duration, sessions *SessionManager) *AbuseGuard {
	return &AbuseGuard{
		flood:              flood,
		floodThreshold:     floodThreshold,
		floodWindow:        floodWindow,
		repeatedCharRatio:  0.8,
		minSpamCheckLength: 2,
		sessions:           sessions,
	}
}

// Check runs the three independent checks in order. On backend error the
// flood check is fail-safe (treated as not flooded) and the error is
// logged, per spec.md §4.4.
func (g *AbuseGuard) Check(ctx context.Context, sessionID string, text string, session *domain.SessionState) AbuseGuardVerdict {
	flooded := g.checkFlood(ctx, sessionID)
	if flooded {
		return AbuseGuardVerdict{Blocked: true, Flooded: true, Outcome: domain.OutcomeDuplicateOrSpam}
	}

	if isRepeatedCharSpam(text, g.repeatedCharRatio, g.minSpamCheckLength) {
		return AbuseGuardVerdict{Blocked: true, Spam: true, Outcome: domain.OutcomeDuplicateOrSpam}
	}

	if g.sessions.IntentQueueFull(session) {
		return AbuseGuardVerdict{Blocked: true, FollowupScheduled: true, Outcome: domain.OutcomeScheduledFollow}
	}

	return AbuseGuardVerdict{}
}

func (g *AbuseGuard) checkFlood(ctx context.Context, sessionID string) bool {
	count, err := g.flood.RecordAndCount(ctx, sessionID, g.floodWindow)
	if err != nil {
		slog.Error("flood store unavailable, failing safe", "error", err, "session_id", sessionID)
		return false
	}
	return count >= g.floodThreshold
}

// isRepeatedCharSpam rejects text whose distinct-character ratio is too
// low — i.e. 1 - unique_chars/len(text) exceeds ratio — but only at or
// above minLen bytes. Short replies with all-distinct runes, like "ok" or
// "sim", score 0 and never trip the heuristic. A message built from very
// few distinct runes, repeated
// or alternating, is flagged regardless of which rune dominates.
func isRepeatedCharSpam(text string, ratio float64, minLen int) bool {
	if len(text) < minLen {
		return false
	}

	counts := make(map[rune]int)
	total := 0
	for _, r := range text {
		counts[r]++
		total++
	}
	if total == 0 {
		return false
	}

	unique := len(counts)
	return 1-float64(unique)/float64(total) > ratio
}
