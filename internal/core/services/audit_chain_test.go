package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wagateway/core/internal/core/domain"
)

var errAuditStoreUnavailable = errors.New("audit store unavailable")

type mockAuditStore struct{ mock.Mock }

func (m *mockAuditStore) AppendEvent(ctx context.Context, event domain.AuditEvent, expectedPrevHash string) error {
	args := m.Called(ctx, event, expectedPrevHash)
	return args.Error(0)
}

func (m *mockAuditStore) GetLatestEvent(ctx context.Context, userKey string) (*domain.AuditEvent, error) {
	args := m.Called(ctx, userKey)
	if result := args.Get(0); result != nil {
		return result.(*domain.AuditEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuditStore) ListEvents(ctx context.Context, userKey string, limit int) ([]domain.AuditEvent, error) {
	args := m.Called(ctx, userKey, limit)
	if result := args.Get(0); result != nil {
		return result.([]domain.AuditEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockExportStore struct{ mock.Mock }

func (m *mockExportStore) PutExport(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, objectKey, data, contentType)
	return args.String(0), args.Error(1)
}

type mockAuditPublisher struct{ mock.Mock }

func (m *mockAuditPublisher) Publish(event domain.AuditEvent) {
	m.Called(event)
}

func TestAuditChain_Append_SeedsGenesisHashForFirstEvent(t *testing.T) {
	store := new(mockAuditStore)
	store.On("GetLatestEvent", mock.Anything, "user-1").Return(nil, nil)
	store.On("AppendEvent", mock.Anything, mock.Anything, GenesisHash).Return(nil)

	chain := NewAuditChain(store, nil, nil)
	event, err := chain.Append(context.Background(), domain.AuditEvent{UserKey: "user-1", Action: "INBOUND_RECEIVED"})

	assert.NoError(t, err)
	assert.Equal(t, GenesisHash, event.PrevHash)
	assert.NotEmpty(t, event.Hash)
	assert.NotEmpty(t, event.EventID)
	store.AssertExpectations(t)
}

func TestAuditChain_Append_ChainsFromLatestHash(t *testing.T) {
	store := new(mockAuditStore)
	latest := &domain.AuditEvent{Hash: "prior-hash-abc"}
	store.On("GetLatestEvent", mock.Anything, "user-1").Return(latest, nil)
	store.On("AppendEvent", mock.Anything, mock.Anything, "prior-hash-abc").Return(nil)

	chain := NewAuditChain(store, nil, nil)
	event, err := chain.Append(context.Background(), domain.AuditEvent{UserKey: "user-1", Action: "OUTBOUND_SENT"})

	assert.NoError(t, err)
	assert.Equal(t, "prior-hash-abc", event.PrevHash)
}

func TestAuditChain_Append_DifferentFieldsProduceDifferentHashes(t *testing.T) {
	store := new(mockAuditStore)
	store.On("GetLatestEvent", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	chain := NewAuditChain(store, nil, nil)
	first, err := chain.Append(context.Background(), domain.AuditEvent{UserKey: "u", Action: "A"})
	assert.NoError(t, err)
	second, err := chain.Append(context.Background(), domain.AuditEvent{UserKey: "u", Action: "B"})
	assert.NoError(t, err)

	assert.NotEqual(t, first.Hash, second.Hash)
}

func TestAuditChain_Append_PublishesOnSuccess(t *testing.T) {
	store := new(mockAuditStore)
	store.On("GetLatestEvent", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	publisher := new(mockAuditPublisher)
	publisher.On("Publish", mock.AnythingOfType("domain.AuditEvent")).Return()

	chain := NewAuditChain(store, nil, publisher)
	_, err := chain.Append(context.Background(), domain.AuditEvent{UserKey: "u", Action: "A"})

	assert.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestAuditChain_Append_NilPublisherIsSkippedSilently(t *testing.T) {
	store := new(mockAuditStore)
	store.On("GetLatestEvent", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	chain := NewAuditChain(store, nil, nil)
	assert.NotPanics(t, func() {
		_, err := chain.Append(context.Background(), domain.AuditEvent{UserKey: "u", Action: "A"})
		assert.NoError(t, err)
	})
}

func TestAuditChain_Append_ConflictDoesNotPublish(t *testing.T) {
	store := new(mockAuditStore)
	store.On("GetLatestEvent", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(ErrAuditConflict)

	publisher := new(mockAuditPublisher)

	chain := NewAuditChain(store, nil, publisher)
	_, err := chain.Append(context.Background(), domain.AuditEvent{UserKey: "u", Action: "A"})

	assert.ErrorIs(t, err, ErrAuditConflict)
	publisher.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestAuditChain_AppendWithRetry_RetriesOnceOnConflict(t *testing.T) {
	store := new(mockAuditStore)
	store.On("GetLatestEvent", mock.Anything, mock.Anything).Return(nil, nil).Once()
	store.On("AppendEvent", mock.Anything, mock.Anything, GenesisHash).Return(ErrAuditConflict).Once()

	latest := &domain.AuditEvent{Hash: "concurrent-writer-hash"}
	store.On("GetLatestEvent", mock.Anything, mock.Anything).Return(latest, nil).Once()
	store.On("AppendEvent", mock.Anything, mock.Anything, "concurrent-writer-hash").Return(nil).Once()

	chain := NewAuditChain(store, nil, nil)
	event, err := chain.AppendWithRetry(context.Background(), domain.AuditEvent{UserKey: "u", Action: "A"})

	assert.NoError(t, err)
	assert.Equal(t, "concurrent-writer-hash", event.PrevHash)
	store.AssertExpectations(t)
}

func TestAuditChain_AppendWithRetry_SurfacesSecondConflict(t *testing.T) {
	store := new(mockAuditStore)
	store.On("GetLatestEvent", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(ErrAuditConflict)

	chain := NewAuditChain(store, nil, nil)
	_, err := chain.AppendWithRetry(context.Background(), domain.AuditEvent{UserKey: "u", Action: "A"})

	assert.ErrorIs(t, err, ErrAuditConflict)
}

func TestAuditChain_ExportEvents_WritesToBlobStore(t *testing.T) {
	store := new(mockAuditStore)
	events := []domain.AuditEvent{{EventID: "e1", UserKey: "u"}}
	store.On("ListEvents", mock.Anything, "u", 0).Return(events, nil)

	export := new(mockExportStore)
	export.On("PutExport", mock.Anything, mock.MatchedBy(func(key string) bool {
		return key != ""
	}), mock.Anything, "application/json").Return("gs://bucket/audit-exports/u/x.json", nil)

	chain := NewAuditChain(store, export, nil)
	ref, err := chain.ExportEvents(context.Background(), "u")

	assert.NoError(t, err)
	assert.Equal(t, "gs://bucket/audit-exports/u/x.json", ref)
}

func TestAuditChain_ListEvents_PropagatesStoreError(t *testing.T) {
	store := new(mockAuditStore)
	store.On("ListEvents", mock.Anything, "u", 10).Return(nil, errAuditStoreUnavailable)

	chain := NewAuditChain(store, nil, nil)
	_, err := chain.ListEvents(context.Background(), "u", 10)

	assert.Error(t, err)
}
