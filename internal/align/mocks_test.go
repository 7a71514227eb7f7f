package align

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/alignkit/attribution-service/internal/domain"
	"github.com/alignkit/attribution-service/internal/store"
)

// MockEventStore is a mock implementation of store.EventStore
type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) InsertRawEvents(ctx context.Context, events []*domain.RawEvent) (int, error) {
	args := m.Called(ctx, events)
	return args.Int(0), args.Error(1)
}

func (m *MockEventStore) FetchTrackerEvents(ctx context.Context, window domain.TimeWindow) ([]domain.RawEvent, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawEvent), args.Error(1)
}

func (m *MockEventStore) FetchAdPlatformEvents(ctx context.Context, window domain.TimeWindow) ([]domain.AdPlatformEvent, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AdPlatformEvent), args.Error(1)
}

func (m *MockEventStore) FetchLatestAttributionTouch(ctx context.Context, identity string) (*domain.AttributionTouch, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AttributionTouch), args.Error(1)
}

func (m *MockEventStore) FetchPriorEvents(ctx context.Context, identity string, before time.Time, names []string) ([]domain.RawEvent, error) {
	args := m.Called(ctx, identity, before, names)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawEvent), args.Error(1)
}

func (m *MockEventStore) FetchEventsWithAdMarker(ctx context.Context, identity string) ([]domain.RawEvent, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawEvent), args.Error(1)
}

func (m *MockEventStore) UpsertAlignedEvent(ctx context.Context, event *domain.AlignedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEventStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockCrmStore is a mock implementation of store.CrmStore
type MockCrmStore struct {
	mock.Mock
}

func (m *MockCrmStore) FetchRecordsUpdatedIn(ctx context.Context, window domain.TimeWindow) ([]domain.CrmRecord, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CrmRecord), args.Error(1)
}

func (m *MockCrmStore) UpsertAttribution(ctx context.Context, contactID string, fragment domain.AttributionFragment) error {
	args := m.Called(ctx, contactID, fragment)
	return args.Error(0)
}

func (m *MockCrmStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCrmStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ store.EventStore = (*MockEventStore)(nil)
var _ store.CrmStore = (*MockCrmStore)(nil)
