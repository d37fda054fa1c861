package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wagateway/core/internal/core/domain"
)

type mockFloodStore struct{ mock.Mock }

func (m *mockFloodStore) RecordAndCount(ctx context.Context, sessionID string, window time.Duration) (int64, error) {
	args := m.Called(ctx, sessionID, window)
	return int64(args.Int(0)), args.Error(1)
}

func newTestAbuseGuard() (*AbuseGuard, *mockFloodStore) {
	store := new(mockFloodStore)
	sessions := NewSessionManager(new(mockSessionStore), time.Hour, 3, 200)
	return NewAbuseGuard(store, 5, time.Minute, sessions), store
}

func TestAbuseGuard_Check_FloodedWhenCountAtOrAboveThreshold(t *testing.T) {
	guard, flood := newTestAbuseGuard()
	flood.On("RecordAndCount", mock.Anything, "session-1", time.Minute).Return(5, nil)

	verdict := guard.Check(context.Background(), "session-1", "hi", &domain.SessionState{})

	assert.True(t, verdict.Blocked)
	assert.True(t, verdict.Flooded)
	assert.Equal(t, domain.OutcomeDuplicateOrSpam, verdict.Outcome)
}

func TestAbuseGuard_Check_NotFloodedBelowThreshold(t *testing.T) {
	guard, flood := newTestAbuseGuard()
	flood.On("RecordAndCount", mock.Anything, "session-1", time.Minute).Return(4, nil)

	verdict := guard.Check(context.Background(), "session-1", "hi", &domain.SessionState{})

	assert.False(t, verdict.Flooded)
}

func TestAbuseGuard_Check_FloodStoreErrorFailsSafe(t *testing.T) {
	guard, flood := newTestAbuseGuard()
	flood.On("RecordAndCount", mock.Anything, mock.Anything, mock.Anything).Return(0, errors.New("redis down"))

	verdict := guard.Check(context.Background(), "session-1", "hi", &domain.SessionState{})

	assert.False(t, verdict.Blocked, "a flood-store error must never itself block a user")
}

func TestAbuseGuard_Check_RepeatedCharSpamDetected(t *testing.T) {
	guard, flood := newTestAbuseGuard()
	flood.On("RecordAndCount", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)

	verdict := guard.Check(context.Background(), "session-1", strings.Repeat("a", 20), &domain.SessionState{})

	assert.True(t, verdict.Blocked)
	assert.True(t, verdict.Spam)
	assert.Equal(t, domain.OutcomeDuplicateOrSpam, verdict.Outcome)
}

func TestAbuseGuard_Check_ShortTextIsNotSpam(t *testing.T) {
	guard, flood := newTestAbuseGuard()
	flood.On("RecordAndCount", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)

	verdict := guard.Check(context.Background(), "session-1", "ok", &domain.SessionState{})

	assert.False(t, verdict.Blocked)
}

func TestAbuseGuard_Check_OrdinaryMessageIsNotSpam(t *testing.T) {
	guard, flood := newTestAbuseGuard()
	flood.On("RecordAndCount", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)

	verdict := guard.Check(context.Background(), "session-1", "I would like to know my order status please", &domain.SessionState{})

	assert.False(t, verdict.Blocked)
}

func TestAbuseGuard_Check_IntentQueueFullSchedulesFollowup(t *testing.T) {
	store := new(mockFloodStore)
	store.On("RecordAndCount", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)

	sessions := NewSessionManager(new(mockSessionStore), time.Hour, 1, 200)
	guard := NewAbuseGuard(store, 5, time.Minute, sessions)

	session := &domain.SessionState{}
	sessions.PushIntent(session, "intent-a", 0.9, time.Now())

	verdict := guard.Check(context.Background(), "session-1", "ordinary text", session)

	assert.True(t, verdict.Blocked)
	assert.True(t, verdict.FollowupScheduled)
	assert.Equal(t, domain.OutcomeScheduledFollow, verdict.Outcome)
}

func TestAbuseGuard_Check_ChecksRunFloodFirst(t *testing.T) {
	store := new(mockFloodStore)
	store.On("RecordAndCount", mock.Anything, mock.Anything, mock.Anything).Return(10, nil)

	sessions := NewSessionManager(new(mockSessionStore), time.Hour, 1, 200)
	guard := NewAbuseGuard(store, 5, time.Minute, sessions)

	session := &domain.SessionState{}
	sessions.PushIntent(session, "intent-a", 0.9, time.Now())

	verdict := guard.Check(context.Background(), "session-1", strings.Repeat("z", 20), session)

	assert.True(t, verdict.Flooded, "flood check must win over spam/followup when all three would trip")
}

func TestIsRepeatedCharSpam_BoundaryRatio(t *testing.T) {
	assert.False(t, isRepeatedCharSpam("aaaaaaaaab", 0.8, 10)) // 1 - 2/10 = 0.8, not > 0.8
	assert.True(t, isRepeatedCharSpam("aaaaaaaaaa", 0.8, 10))  // 1 - 1/10 = 0.9 > 0.8
}

func TestIsRepeatedCharSpam_AlternatingCharsDetected(t *testing.T) {
	assert.True(t, isRepeatedCharSpam("abababababab", 0.8, 2)) // 1 - 2/12 = 0.833 > 0.8
}

func TestIsRepeatedCharSpam_ShortSpamCaughtAtMinLengthTwo(t *testing.T) {
	assert.True(t, isRepeatedCharSpam("aaaaaa", 0.8, 2)) // 1 - 1/6 = 0.833 > 0.8
}
