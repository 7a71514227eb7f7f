package truth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/domain"
)

var testWindow = domain.TimeWindow{
	From: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	To:   time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC),
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

func fixedMetric(v float64) MetricFn {
	return func(ctx context.Context, window domain.TimeWindow) (float64, error) {
		return v, nil
	}
}

func failingMetric(msg string) MetricFn {
	return func(ctx context.Context, window domain.TimeWindow) (float64, error) {
		return 0, errors.New(msg)
	}
}

func spendCheck(a, b MetricFn) Check {
	return Check{
		Name:       "ad_spend_alignment",
		Thresholds: SpendThresholds,
		Sources: []MetricSource{
			{Label: "ad_spend:insights", Fetch: a},
			{Label: "ad_spend:campaign_performance", Fetch: b},
		},
	}
}

func TestPctDelta(t *testing.T) {
	assert.Equal(t, float64(4), PctDelta([]float64{100, 96}))
	assert.Equal(t, float64(50), PctDelta([]float64{100, 50, 75}))
	assert.Equal(t, float64(0), PctDelta([]float64{0, 0}))
	assert.Equal(t, float64(0), PctDelta(nil))
	assert.Equal(t, float64(100), PctDelta([]float64{0, 120}))
}

func TestThresholds_Verdict_BoundariesAreStrict(t *testing.T) {
	assert.Equal(t, domain.VerdictAligned, SpendThresholds.Verdict(4.9))
	assert.Equal(t, domain.VerdictDrifting, SpendThresholds.Verdict(5.0))
	assert.Equal(t, domain.VerdictDrifting, SpendThresholds.Verdict(14.9))
	assert.Equal(t, domain.VerdictBroken, SpendThresholds.Verdict(15.0))
}

func TestReconciler_Run_SpendAligned(t *testing.T) {
	mockSink := new(MockTruthSink)
	mockSink.On("InsertTruthChecks", mock.Anything, mock.AnythingOfType("[]domain.TruthCheck")).Return(nil)

	reconciler := NewReconciler([]Check{spendCheck(fixedMetric(100), fixedMetric(96))}, mockSink, nil, nil, zap.NewNop())

	results, err := reconciler.Run(context.Background(), testWindow)

	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, float64(4), results[0].PctDelta)
	assert.Equal(t, 96.0, results[0].MatchRatePct)
	assert.Equal(t, domain.VerdictAligned, results[0].Verdict)
	assert.Equal(t, testWindow.From, results[0].WindowFrom)
	mockSink.AssertExpectations(t)
}

func TestReconciler_Run_RecordsRawValues(t *testing.T) {
	reconciler := NewReconciler([]Check{spendCheck(fixedMetric(100), fixedMetric(80))}, nil, nil, nil, zap.NewNop())

	results, err := reconciler.Run(context.Background(), testWindow)

	assert.NoError(t, err)
	assert.Equal(t, domain.VerdictBroken, results[0].Verdict)
	assert.Equal(t, []domain.MetricValue{
		{Label: "ad_spend:insights", Value: 100},
		{Label: "ad_spend:campaign_performance", Value: 80},
	}, results[0].Values)
}

func TestReconciler_Run_ThreeWayUsesWidestSpread(t *testing.T) {
	check := Check{
		Name:       "lead_count_alignment",
		Thresholds: CountThresholds,
		Sources: []MetricSource{
			{Label: "raw_events:tracker_leads", Fetch: fixedMetric(200)},
			{Label: "raw_events:qualified_attribution", Fetch: fixedMetric(190)},
			{Label: "contacts:created", Fetch: fixedMetric(160)},
		},
	}

	reconciler := NewReconciler([]Check{check}, nil, nil, nil, zap.NewNop())

	results, err := reconciler.Run(context.Background(), testWindow)

	assert.NoError(t, err)
	assert.Equal(t, float64(20), results[0].PctDelta)
	assert.Equal(t, domain.VerdictDrifting, results[0].Verdict)
}

func TestReconciler_Run_FailedCheckSkippedOthersRun(t *testing.T) {
	broken := spendCheck(failingMetric("clickhouse unavailable"), fixedMetric(96))
	healthy := Check{
		Name:       "lead_count_alignment",
		Thresholds: CountThresholds,
		Sources: []MetricSource{
			{Label: "a", Fetch: fixedMetric(10)},
			{Label: "b", Fetch: fixedMetric(10)},
		},
	}

	reconciler := NewReconciler([]Check{broken, healthy}, nil, nil, nil, zap.NewNop())

	results, err := reconciler.Run(context.Background(), testWindow)

	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "lead_count_alignment", results[0].CheckName)
	assert.Equal(t, domain.VerdictAligned, results[0].Verdict)
}

func TestReconciler_Run_SingleSourceCheckIsRejected(t *testing.T) {
	check := Check{
		Name:       "lonely",
		Thresholds: SpendThresholds,
		Sources:    []MetricSource{{Label: "only", Fetch: fixedMetric(1)}},
	}

	reconciler := NewReconciler([]Check{check}, nil, nil, nil, zap.NewNop())

	results, err := reconciler.Run(context.Background(), testWindow)

	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestReconciler_Run_SinkFailureReturnsResultsAndError(t *testing.T) {
	mockSink := new(MockTruthSink)
	mockSink.On("InsertTruthChecks", mock.Anything, mock.AnythingOfType("[]domain.TruthCheck")).
		Return(errors.New("insert failed"))

	reconciler := NewReconciler([]Check{spendCheck(fixedMetric(100), fixedMetric(100))}, mockSink, nil, nil, zap.NewNop())

	results, err := reconciler.Run(context.Background(), testWindow)

	assert.Error(t, err)
	assert.Len(t, results, 1)
}

func TestReconciler_Run_MatchRateRoundsToOneDecimal(t *testing.T) {
	// 100 vs 97.33 gives a 2.67% delta and a 97.3% match rate.
	reconciler := NewReconciler([]Check{spendCheck(fixedMetric(100), fixedMetric(97.33))}, nil, nil, nil, zap.NewNop())

	results, err := reconciler.Run(context.Background(), testWindow)

	assert.NoError(t, err)
	assert.InDelta(t, 97.3, results[0].MatchRatePct, 0.001)
}
