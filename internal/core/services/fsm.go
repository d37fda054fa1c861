package services

import (
	"fmt"

	"github.com/wagateway/core/internal/core/domain"
)

// DispatchResult is the outcome of one FSM transition attempt.
type DispatchResult struct {
	Valid     bool
	NextState domain.FSMState
	Actions   []domain.FSMAction
	Err       string
}

type transitionKey struct {
	state domain.FSMState
	event domain.FSMEvent
}

type transition struct {
	next    domain.FSMState
	actions []domain.FSMAction
}

// transitionTable is the closed set of valid (state, event) -> (next,
// actions) moves. It is a package-level literal with no mutable state,
// which is what makes Dispatch pure: there is nothing for it to close
// over or mutate.
var transitionTable = map[transitionKey]transition{
	{domain.StateInitial, domain.EventUserSentText}: {
		domain.StateTriage, []domain.FSMAction{domain.ActionValidateInput, domain.ActionDetectEvent},
	},
	{domain.StateInitial, domain.EventAbuseDetected}: {
		domain.StateSpam, []domain.FSMAction{domain.ActionPersistSession, domain.ActionEmitOutcome},
	},
	{domain.StateTriage, domain.EventDetected}: {
		domain.StateCollectingInfo, []domain.FSMAction{domain.ActionGenerateResponse},
	},
	{domain.StateTriage, domain.EventAbuseDetected}: {
		domain.StateSpam, []domain.FSMAction{domain.ActionPersistSession, domain.ActionEmitOutcome},
	},
	{domain.StateTriage, domain.EventInternalError}: {
		domain.StateEscalating, []domain.FSMAction{domain.ActionPersistSession},
	},
	{domain.StateCollectingInfo, domain.EventResponseGenerated}: {
		domain.StateGeneratingResponse, []domain.FSMAction{domain.ActionGenerateResponse},
	},
	{domain.StateCollectingInfo, domain.EventInternalError}: {
		domain.StateFailed, []domain.FSMAction{domain.ActionPersistSession, domain.ActionEmitOutcome},
	},
	{domain.StateGeneratingResponse, domain.EventResponseGenerated}: {
		domain.StateSelectingMessageType, []domain.FSMAction{domain.ActionSelectMessageType},
	},
	{domain.StateGeneratingResponse, domain.EventInternalError}: {
		domain.StateFailed, []domain.FSMAction{domain.ActionPersistSession, domain.ActionEmitOutcome},
	},
	{domain.StateSelectingMessageType, domain.EventMessageTypeSelected}: {
		domain.StateAwaitingUser, []domain.FSMAction{domain.ActionPersistSession, domain.ActionEmitOutcome},
	},
	{domain.StateSelectingMessageType, domain.EventInternalError}: {
		domain.StateFailed, []domain.FSMAction{domain.ActionPersistSession, domain.ActionEmitOutcome},
	},
	{domain.StateAwaitingUser, domain.EventUserSentText}: {
		domain.StateTriage, []domain.FSMAction{domain.ActionValidateInput, domain.ActionDetectEvent},
	},
	{domain.StateAwaitingUser, domain.EventTimeout}: {
		domain.StateCompleted, []domain.FSMAction{domain.ActionPersistSession, domain.ActionEmitOutcome},
	},
	{domain.StateEscalating, domain.EventResponseGenerated}: {
		domain.StateHandoffHuman, []domain.FSMAction{domain.ActionPersistSession, domain.ActionEmitOutcome},
	},
	{domain.StateEscalating, domain.EventInternalError}: {
		domain.StateFailed, []domain.FSMAction{domain.ActionPersistSession, domain.ActionEmitOutcome},
	},
}

// Dispatch is the pure FSM engine (C5). For any (state, event) its result
// is identical across invocations: no I/O, no global state mutation, no
// exceptions. An unknown event for the current state, or any event on a
// terminal state, yields Valid=false with a non-empty Err.
func Dispatch(state domain.FSMState, event domain.FSMEvent) DispatchResult {
	if domain.TerminalStates[state] {
		return DispatchResult{
			Valid: false,
			Err:   fmt.Sprintf("state %s is terminal: no outgoing transitions", state),
		}
	}

	t, ok := transitionTable[transitionKey{state, event}]
	if !ok {
		return DispatchResult{
			Valid: false,
			Err:   fmt.Sprintf("no transition for state=%s event=%s", state, event),
		}
	}

	actions := make([]domain.FSMAction, len(t.actions))
	copy(actions, t.actions)

	return DispatchResult{
		Valid:     true,
		NextState: t.next,
		Actions:   actions,
	}
}
