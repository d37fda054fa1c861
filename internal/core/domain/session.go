package domain

import "time"

// FSMState is one node of the conversation state machine (C5).
type FSMState string

const (
	StateInitial              FSMState = "INITIAL"
	StateTriage                FSMState = "TRIAGE"
	StateCollectingInfo        FSMState = "COLLECTING_INFO"
	StateGeneratingResponse    FSMState = "GENERATING_RESPONSE"
	StateSelectingMessageType  FSMState = "SELECTING_MESSAGE_TYPE"
	StateAwaitingUser          FSMState = "AWAITING_USER"
	StateEscalating            FSMState = "ESCALATING"
	StateHandoffHuman          FSMState = "HANDOFF_HUMAN"
	StateCompleted             FSMState = "COMPLETED"
	StateFailed                FSMState = "FAILED"
	StateSpam                  FSMState = "SPAM"
)

// TerminalStates have no outgoing transitions.
var TerminalStates = map[FSMState]bool{
	StateHandoffHuman: true,
	StateCompleted:    true,
	StateFailed:       true,
	StateSpam:         true,
}

// IsValidState reports whether s is a recognized FSM state.
func IsValidState(s FSMState) bool {
	switch s {
	case StateInitial, StateTriage, StateCollectingInfo, StateGeneratingResponse,
		StateSelectingMessageType, StateAwaitingUser, StateEscalating,
		StateHandoffHuman, StateCompleted, StateFailed, StateSpam:
		return true
	default:
		return false
	}
}

// FSMEvent is an input to Dispatch (C5).
type FSMEvent string

const (
	EventUserSentText          FSMEvent = "USER_SENT_TEXT"
	EventDetected              FSMEvent = "EVENT_DETECTED"
	EventResponseGenerated     FSMEvent = "RESPONSE_GENERATED"
	EventMessageTypeSelected   FSMEvent = "MESSAGE_TYPE_SELECTED"
	EventInternalError         FSMEvent = "INTERNAL_ERROR"
	EventAbuseDetected         FSMEvent = "ABUSE_DETECTED"
	EventTimeout               FSMEvent = "TIMEOUT"
)

// FSMAction is a side-effect tag emitted by a valid transition. The FSM
// itself never performs these; the worker does, in response to the tags.
type FSMAction string

const (
	ActionDetectEvent       FSMAction = "DETECT_EVENT"
	ActionValidateInput     FSMAction = "VALIDATE_INPUT"
	ActionGenerateResponse  FSMAction = "GENERATE_RESPONSE"
	ActionSelectMessageType FSMAction = "SELECT_MESSAGE_TYPE"
	ActionPersistSession    FSMAction = "PERSIST_SESSION"
	ActionEmitOutcome       FSMAction = "EMIT_OUTCOME"
)

// Outcome is the terminal classification of how a session ended.
type Outcome string

const (
	OutcomeHandoffHuman    Outcome = "HANDOFF_HUMAN"
	OutcomeSelfServeInfo   Outcome = "SELF_SERVE_INFO"
	OutcomeRouteExternal   Outcome = "ROUTE_EXTERNAL"
	OutcomeScheduledFollow Outcome = "SCHEDULED_FOLLOWUP"
	OutcomeAwaitingUser    Outcome = "AWAITING_USER"
	OutcomeDuplicateOrSpam Outcome = "DUPLICATE_OR_SPAM"
	OutcomeUnsupported     Outcome = "UNSUPPORTED"
	OutcomeFailedInternal  Outcome = "FAILED_INTERNAL"
)

// IntentEntry is one bounded slot of SessionState.IntentQueue.
type IntentEntry struct {
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	ArrivedAt  time.Time `json:"arrived_at"`
}

// HistoryEntry is one bounded slot of SessionState.MessageHistory.
type HistoryEntry struct {
	MessageID     string    `json:"message_id"`
	ReceivedAt    time.Time `json:"received_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// MaxIntentQueue and MaxMessageHistory are the session bounds spec.md §3
// requires (N=3, M=200). Configurable overrides are read from
// SESSION_MAX_INTENTS / SESSION_HISTORY_MAX_ENTRIES and passed into
// SessionManager rather than changing these package defaults.
const (
	MaxIntentQueue    = 3
	MaxMessageHistory = 200
)

// SessionState is the mutable, per-chat_id record owned by the Session
// Manager (C3). It is always passed by reference into the pipeline and
// returned updated — never a global.
type SessionState struct {
	SessionID      string         `json:"session_id"`
	ChatID         string         `json:"chat_id"`
	Version        int64          `json:"version"`
	CurrentState   FSMState       `json:"current_state"`
	IntentQueue    []IntentEntry  `json:"intent_queue"`
	Outcome        *Outcome       `json:"outcome,omitempty"`
	MessageHistory []HistoryEntry `json:"message_history"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

// Expired reports whether the session should be discarded on load.
func (s *SessionState) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// HasMessage reports whether messageID already appears in MessageHistory,
// used by SessionManager.AppendUserMessage to enforce idempotency.
func (s *SessionState) HasMessage(messageID string) bool {
	for _, h := range s.MessageHistory {
		if h.MessageID == messageID {
			return true
		}
	}
	return false
}
