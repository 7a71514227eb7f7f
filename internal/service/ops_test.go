package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/align"
	"github.com/alignkit/attribution-service/internal/cache"
	"github.com/alignkit/attribution-service/internal/domain"
)

// MockAlignmentRunner is a mock implementation of AlignmentRunner
type MockAlignmentRunner struct {
	mock.Mock
}

func (m *MockAlignmentRunner) Run(ctx context.Context, window domain.TimeWindow) (*align.Report, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*align.Report), args.Error(1)
}

// MockTruthRunner is a mock implementation of TruthRunner
type MockTruthRunner struct {
	mock.Mock
}

func (m *MockTruthRunner) Run(ctx context.Context, window domain.TimeWindow) ([]domain.TruthCheck, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TruthCheck), args.Error(1)
}

// MockTruthSink is a mock implementation of store.TruthSink
type MockTruthSink struct {
	mock.Mock
}

func (m *MockTruthSink) InsertTruthChecks(ctx context.Context, checks []domain.TruthCheck) error {
	args := m.Called(ctx, checks)
	return args.Error(0)
}

func (m *MockTruthSink) FetchLatestTruthChecks(ctx context.Context, limit int) ([]domain.TruthCheck, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TruthCheck), args.Error(1)
}

func TestOpsService_RunAlignment_UsesConfiguredWindow(t *testing.T) {
	mockRunner := new(MockAlignmentRunner)
	mockRunner.On("Run", mock.Anything, mock.MatchedBy(func(w domain.TimeWindow) bool {
		return w.To.Sub(w.From) == 48*time.Hour
	})).Return(&align.Report{Aligned: 3}, nil)

	service := NewOpsService(mockRunner, nil, nil, cache.NewMemoryLocker(), OpsConfig{AlignWindowHours: 48}, zap.NewNop())

	report, err := service.RunAlignment(context.Background(), 0)

	assert.NoError(t, err)
	assert.Equal(t, 3, report.Aligned)
	mockRunner.AssertExpectations(t)
}

func TestOpsService_RunAlignment_RequestWindowOverrides(t *testing.T) {
	mockRunner := new(MockAlignmentRunner)
	mockRunner.On("Run", mock.Anything, mock.MatchedBy(func(w domain.TimeWindow) bool {
		return w.To.Sub(w.From) == 24*time.Hour
	})).Return(&align.Report{}, nil)

	service := NewOpsService(mockRunner, nil, nil, cache.NewMemoryLocker(), OpsConfig{AlignWindowHours: 168}, zap.NewNop())

	_, err := service.RunAlignment(context.Background(), 24)

	assert.NoError(t, err)
	mockRunner.AssertExpectations(t)
}

func TestOpsService_RunAlignment_RejectsOverlappingRun(t *testing.T) {
	locker := cache.NewMemoryLocker()
	held, err := locker.TryLock(context.Background(), "alignment", time.Minute)
	assert.NoError(t, err)
	assert.True(t, held)

	mockRunner := new(MockAlignmentRunner)
	service := NewOpsService(mockRunner, nil, nil, locker, OpsConfig{}, zap.NewNop())

	_, err = service.RunAlignment(context.Background(), 0)

	assert.ErrorIs(t, err, ErrRunInProgress)
	mockRunner.AssertNotCalled(t, "Run")
}

func TestOpsService_RunAlignment_ReleasesLockAfterRun(t *testing.T) {
	locker := cache.NewMemoryLocker()
	mockRunner := new(MockAlignmentRunner)
	mockRunner.On("Run", mock.Anything, mock.AnythingOfType("domain.TimeWindow")).Return(&align.Report{}, nil)

	service := NewOpsService(mockRunner, nil, nil, locker, OpsConfig{}, zap.NewNop())

	_, err := service.RunAlignment(context.Background(), 0)
	assert.NoError(t, err)

	_, err = service.RunAlignment(context.Background(), 0)
	assert.NoError(t, err)
}

func TestOpsService_RunTruth(t *testing.T) {
	mockReconciler := new(MockTruthRunner)
	mockReconciler.On("Run", mock.Anything, mock.MatchedBy(func(w domain.TimeWindow) bool {
		return w.To.Sub(w.From) == 7*24*time.Hour
	})).Return([]domain.TruthCheck{{CheckName: "ad_spend_alignment", Verdict: domain.VerdictAligned}}, nil)

	service := NewOpsService(nil, mockReconciler, nil, cache.NewMemoryLocker(), OpsConfig{TruthWindowDays: 7}, zap.NewNop())

	checks, err := service.RunTruth(context.Background(), 0)

	assert.NoError(t, err)
	assert.Len(t, checks, 1)
	mockReconciler.AssertExpectations(t)
}

func TestOpsService_GetTruthReport(t *testing.T) {
	mockSink := new(MockTruthSink)
	mockSink.On("FetchLatestTruthChecks", mock.Anything, 20).
		Return([]domain.TruthCheck{{CheckName: "lead_count_alignment"}}, nil)

	service := NewOpsService(nil, nil, mockSink, cache.NewMemoryLocker(), OpsConfig{}, zap.NewNop())

	checks, err := service.GetTruthReport(context.Background(), 0)

	assert.NoError(t, err)
	assert.Len(t, checks, 1)
	mockSink.AssertExpectations(t)
}

func TestOpsService_GetTruthReport_SinkError(t *testing.T) {
	mockSink := new(MockTruthSink)
	mockSink.On("FetchLatestTruthChecks", mock.Anything, 5).
		Return(nil, errors.New("clickhouse unavailable"))

	service := NewOpsService(nil, nil, mockSink, cache.NewMemoryLocker(), OpsConfig{}, zap.NewNop())

	_, err := service.GetTruthReport(context.Background(), 5)

	assert.Error(t, err)
}
