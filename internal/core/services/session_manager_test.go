package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wagateway/core/internal/core/domain"
)

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Load(ctx context.Context, chatID string) (*domain.SessionState, error) {
	args := m.Called(ctx, chatID)
	if result := args.Get(0); result != nil {
		return result.(*domain.SessionState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionStore) Save(ctx context.Context, state *domain.SessionState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func TestSessionManager_GetOrCreate_CreatesFreshSessionWhenNoneExists(t *testing.T) {
	store := new(mockSessionStore)
	store.On("Load", mock.Anything, "chat-1").Return(nil, nil)

	mgr := NewSessionManager(store, time.Hour, 3, 200)
	session, err := mgr.GetOrCreate(context.Background(), "chat-1")

	assert.NoError(t, err)
	assert.Equal(t, domain.StateInitial, session.CurrentState)
	assert.Equal(t, "chat-1", session.ChatID)
	assert.NotEmpty(t, session.SessionID)
}

func TestSessionManager_GetOrCreate_DiscardsExpiredSession(t *testing.T) {
	store := new(mockSessionStore)
	expired := &domain.SessionState{
		ChatID:       "chat-1",
		SessionID:    "old-session",
		CurrentState: domain.StateAwaitingUser,
		ExpiresAt:    time.Now().Add(-time.Hour),
	}
	store.On("Load", mock.Anything, "chat-1").Return(expired, nil)

	mgr := NewSessionManager(store, time.Hour, 3, 200)
	session, err := mgr.GetOrCreate(context.Background(), "chat-1")

	assert.NoError(t, err)
	assert.NotEqual(t, "old-session", session.SessionID)
	assert.Equal(t, domain.StateInitial, session.CurrentState)
}

func TestSessionManager_GetOrCreate_ReturnsLiveSessionNormalized(t *testing.T) {
	store := new(mockSessionStore)
	live := &domain.SessionState{
		ChatID:       "chat-1",
		SessionID:    "live-session",
		CurrentState: domain.FSMState("BOGUS_STATE"),
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	store.On("Load", mock.Anything, "chat-1").Return(live, nil)

	mgr := NewSessionManager(store, time.Hour, 3, 200)
	session, err := mgr.GetOrCreate(context.Background(), "chat-1")

	assert.NoError(t, err)
	assert.Equal(t, "live-session", session.SessionID)
	assert.Equal(t, domain.StateInitial, session.CurrentState, "invalid stored state must normalize to INITIAL")
}

func TestSessionManager_NewSessionManager_DefaultsBoundsWhenNonPositive(t *testing.T) {
	store := new(mockSessionStore)
	mgr := NewSessionManager(store, time.Hour, 0, -1)

	assert.Equal(t, domain.MaxIntentQueue, mgr.maxIntentQueue)
	assert.Equal(t, domain.MaxMessageHistory, mgr.maxHistoryItems)
}

func TestSessionManager_AppendUserMessage_IsIdempotentByMessageID(t *testing.T) {
	store := new(mockSessionStore)
	mgr := NewSessionManager(store, time.Hour, 3, 200)
	session := &domain.SessionState{}

	_, added := mgr.AppendUserMessage(session, "msg-1", "corr-1", time.Now())
	assert.True(t, added)

	_, addedAgain := mgr.AppendUserMessage(session, "msg-1", "corr-1", time.Now())
	assert.False(t, addedAgain)
	assert.Len(t, session.MessageHistory, 1)
}

func TestSessionManager_AppendUserMessage_FirstOfDayDetection(t *testing.T) {
	store := new(mockSessionStore)
	mgr := NewSessionManager(store, time.Hour, 3, 200)
	session := &domain.SessionState{}

	day1 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	isFirst, _ := mgr.AppendUserMessage(session, "msg-1", "", day1)
	assert.True(t, isFirst)

	sameDayLater := time.Date(2026, 1, 1, 15, 0, 0, 0, time.UTC)
	isFirst, _ = mgr.AppendUserMessage(session, "msg-2", "", sameDayLater)
	assert.False(t, isFirst)

	nextDay := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	isFirst, _ = mgr.AppendUserMessage(session, "msg-3", "", nextDay)
	assert.True(t, isFirst)
}

func TestSessionManager_AppendUserMessage_EvictsOldestBeyondBound(t *testing.T) {
	store := new(mockSessionStore)
	mgr := NewSessionManager(store, time.Hour, 3, 2)
	session := &domain.SessionState{}

	mgr.AppendUserMessage(session, "msg-1", "", time.Now())
	mgr.AppendUserMessage(session, "msg-2", "", time.Now())
	mgr.AppendUserMessage(session, "msg-3", "", time.Now())

	assert.Len(t, session.MessageHistory, 2)
	assert.Equal(t, "msg-2", session.MessageHistory[0].MessageID)
	assert.Equal(t, "msg-3", session.MessageHistory[1].MessageID)
}

func TestSessionManager_PushIntent_EvictsOldestBeyondBound(t *testing.T) {
	store := new(mockSessionStore)
	mgr := NewSessionManager(store, time.Hour, 2, 200)
	session := &domain.SessionState{}

	mgr.PushIntent(session, "intent-a", 0.9, time.Now())
	mgr.PushIntent(session, "intent-b", 0.8, time.Now())
	mgr.PushIntent(session, "intent-c", 0.7, time.Now())

	assert.Len(t, session.IntentQueue, 2)
	assert.Equal(t, "intent-b", session.IntentQueue[0].Intent)
	assert.Equal(t, "intent-c", session.IntentQueue[1].Intent)
}

func TestSessionManager_IntentQueueFull(t *testing.T) {
	store := new(mockSessionStore)
	mgr := NewSessionManager(store, time.Hour, 2, 200)
	session := &domain.SessionState{}

	assert.False(t, mgr.IntentQueueFull(session))
	mgr.PushIntent(session, "a", 0.5, time.Now())
	assert.False(t, mgr.IntentQueueFull(session))
	mgr.PushIntent(session, "b", 0.5, time.Now())
	assert.True(t, mgr.IntentQueueFull(session))
}

func TestSessionManager_Persist_RefreshesExpiryAndSaves(t *testing.T) {
	store := new(mockSessionStore)
	store.On("Save", mock.Anything, mock.MatchedBy(func(s *domain.SessionState) bool {
		return s.ChatID == "chat-1" && s.ExpiresAt.After(time.Now())
	})).Return(nil)

	mgr := NewSessionManager(store, time.Hour, 3, 200)
	session := &domain.SessionState{ChatID: "chat-1"}

	err := mgr.Persist(context.Background(), session)
	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestSessionManager_Persist_PropagatesStoreError(t *testing.T) {
	store := new(mockSessionStore)
	store.On("Save", mock.Anything, mock.Anything).Return(assert.AnError)

	mgr := NewSessionManager(store, time.Hour, 3, 200)
	err := mgr.Persist(context.Background(), &domain.SessionState{ChatID: "chat-1"})

	assert.Error(t, err)
}
