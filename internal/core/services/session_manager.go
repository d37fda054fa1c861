package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/ports"
)

// SessionManager implements C3: load/get_or_create/append_user_message/
// normalize_current_state/persist over a chat_id-keyed SessionState.
type SessionManager struct {
	store           ports.SessionStore
	sessionTimeout  time.Duration
	maxIntentQueue  int
	maxHistoryItems int
}

// NewSessionManager wires the bounds named in spec.md §6
// (SESSION_TIMEOUT_MINUTES, SESSION_MAX_INTENTS, SESSION_HISTORY_MAX_ENTRIES).
func NewSessionManager(store ports.SessionStore, sessionTimeout time.Duration, maxIntentQueue, maxHistoryItems int) *SessionManager {
	if maxIntentQueue <= 0 {
		maxIntentQueue = domain.MaxIntentQueue
	}
	if maxHistoryItems <= 0 {
		maxHistoryItems = domain.MaxMessageHistory
	}
	return &SessionManager{
		store:           store,
		sessionTimeout:  sessionTimeout,
		maxIntentQueue:  maxIntentQueue,
		maxHistoryItems: maxHistoryItems,
	}
}

// GetOrCreate loads the session for chatID, discarding it if expired, and
// creates a fresh INITIAL-state session when none exists or it expired.
func (m *SessionManager) GetOrCreate(ctx context.Context, chatID string) (*domain.SessionState, error) {
	existing, err := m.store.Load(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	now := time.Now().UTC()
	if existing != nil && !existing.Expired(now) {
		return m.NormalizeCurrentState(existing), nil
	}

	session := &domain.SessionState{
		SessionID:    uuid.NewString(),
		ChatID:       chatID,
		CurrentState: domain.StateInitial,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(m.sessionTimeout),
	}
	return session, nil
}

// NormalizeCurrentState coerces any unrecognized stored state to INITIAL,
// logging a structured invalid_state_normalized event. The caller is
// responsible for persisting the change; normalization alone does not
// write to the store, keeping this a pure function of its input.
func (m *SessionManager) NormalizeCurrentState(session *domain.SessionState) *domain.SessionState {
	if domain.IsValidState(session.CurrentState) {
		return session
	}
	slog.Warn("invalid_state_normalized",
		"session_id", session.SessionID,
		"chat_id", session.ChatID,
		"observed_state", session.CurrentState,
	)
	session.CurrentState = domain.StateInitial
	return session
}

// AppendUserMessage is idempotent by message_id: a message already
// present in MessageHistory is a no-op. Returns isFirstOfDay, true when
// this is the first message recorded for the session's UTC calendar day,
// used by downstream policy (abuse/intent heuristics).
func (m *SessionManager) AppendUserMessage(session *domain.SessionState, messageID, correlationID string, receivedAt time.Time) (isFirstOfDay bool, added bool) {
	if session.HasMessage(messageID) {
		return false, false
	}

	isFirstOfDay = true
	for _, h := range session.MessageHistory {
		if sameUTCDay(h.ReceivedAt, receivedAt) {
			isFirstOfDay = false
			break
		}
	}

	session.MessageHistory = append(session.MessageHistory, domain.HistoryEntry{
		MessageID:     messageID,
		ReceivedAt:    receivedAt,
		CorrelationID: correlationID,
	})
	if over := len(session.MessageHistory) - m.maxHistoryItems; over > 0 {
		session.MessageHistory = session.MessageHistory[over:]
	}

	return isFirstOfDay, true
}

// PushIntent appends an intent entry, evicting the oldest when the bound
// is exceeded (FIFO, matching MessageHistory's eviction policy).
func (m *SessionManager) PushIntent(session *domain.SessionState, intent string, confidence float64, arrivedAt time.Time) {
	session.IntentQueue = append(session.IntentQueue, domain.IntentEntry{
		Intent:     intent,
		Confidence: confidence,
		ArrivedAt:  arrivedAt,
	})
	if over := len(session.IntentQueue) - m.maxIntentQueue; over > 0 {
		session.IntentQueue = session.IntentQueue[over:]
	}
}

// IntentQueueFull reports whether the intent queue is already at the
// configured capacity (used by the Abuse Guard's intent-capacity check).
func (m *SessionManager) IntentQueueFull(session *domain.SessionState) bool {
	return len(session.IntentQueue) >= m.maxIntentQueue
}

// Persist refreshes expires_at to now + session timeout and saves via the
// store, which enforces optimistic-concurrency serialization on Version.
func (m *SessionManager) Persist(ctx context.Context, session *domain.SessionState) error {
	now := time.Now().UTC()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(m.sessionTimeout)

	if err := m.store.Save(ctx, session); err != nil {
		return fmt.Errorf("persist session %s: %w", session.ChatID, err)
	}
	return nil
}

func sameUTCDay(a, b time.Time) bool {
	au, bu := a.UTC(), b.UTC()
	ay, am, ad := au.Date()
	by, bm, bd := bu.Date()
	return ay == by && am == bm && ad == bd
}
