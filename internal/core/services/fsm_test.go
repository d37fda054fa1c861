package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wagateway/core/internal/core/domain"
)

func TestDispatch_ValidTransition(t *testing.T) {
	result := Dispatch(domain.StateInitial, domain.EventUserSentText)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Err)
	assert.Equal(t, domain.StateTriage, result.NextState)
	assert.Equal(t, []domain.FSMAction{domain.ActionValidateInput, domain.ActionDetectEvent}, result.Actions)
}

func TestDispatch_AbuseDetectedShortCircuitsToSpam(t *testing.T) {
	result := Dispatch(domain.StateTriage, domain.EventAbuseDetected)

	assert.True(t, result.Valid)
	assert.Equal(t, domain.StateSpam, result.NextState)
	assert.Contains(t, result.Actions, domain.ActionEmitOutcome)
}

func TestDispatch_UnknownEventForState(t *testing.T) {
	result := Dispatch(domain.StateInitial, domain.EventTimeout)

	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Err)
	assert.Empty(t, result.NextState)
}

func TestDispatch_TerminalStateRejectsEveryEvent(t *testing.T) {
	for state := range domain.TerminalStates {
		for _, event := range []domain.FSMEvent{
			domain.EventUserSentText, domain.EventDetected, domain.EventResponseGenerated,
			domain.EventMessageTypeSelected, domain.EventInternalError, domain.EventAbuseDetected,
			domain.EventTimeout,
		} {
			result := Dispatch(state, event)
			assert.False(t, result.Valid, "state %s should reject event %s", state, event)
			assert.Contains(t, result.Err, "terminal")
		}
	}
}

func TestDispatch_IsPure(t *testing.T) {
	first := Dispatch(domain.StateTriage, domain.EventDetected)
	second := Dispatch(domain.StateTriage, domain.EventDetected)

	assert.Equal(t, first, second)
}

func TestDispatch_ActionsSliceIsNotSharedTableStorage(t *testing.T) {
	result := Dispatch(domain.StateInitial, domain.EventUserSentText)
	result.Actions[0] = "MUTATED"

	again := Dispatch(domain.StateInitial, domain.EventUserSentText)
	assert.Equal(t, domain.ActionValidateInput, again.Actions[0], "mutating a returned Actions slice must not corrupt the transition table")
}

func TestDispatch_InternalErrorRoutesToFailedFromMostStates(t *testing.T) {
	cases := []domain.FSMState{
		domain.StateCollectingInfo, domain.StateGeneratingResponse, domain.StateSelectingMessageType,
	}
	for _, state := range cases {
		result := Dispatch(state, domain.EventInternalError)
		assert.True(t, result.Valid)
		assert.Equal(t, domain.StateFailed, result.NextState)
	}
}

func TestDispatch_EscalatingInternalErrorAlsoRoutesToFailed(t *testing.T) {
	result := Dispatch(domain.StateEscalating, domain.EventInternalError)
	assert.True(t, result.Valid)
	assert.Equal(t, domain.StateFailed, result.NextState)
}

func TestDispatch_AwaitingUserAcceptsNewTextOrTimeout(t *testing.T) {
	loop := Dispatch(domain.StateAwaitingUser, domain.EventUserSentText)
	assert.True(t, loop.Valid)
	assert.Equal(t, domain.StateTriage, loop.NextState)

	timeout := Dispatch(domain.StateAwaitingUser, domain.EventTimeout)
	assert.True(t, timeout.Valid)
	assert.Equal(t, domain.StateCompleted, timeout.NextState)
}
