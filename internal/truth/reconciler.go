package truth

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/domain"
	"github.com/alignkit/attribution-service/internal/metrics"
	"github.com/alignkit/attribution-service/internal/store"
)

// Thresholds classify a percentage delta into a verdict. Both boundaries
// are strict less-than: a delta exactly at Aligned is DRIFTING and a
// delta exactly at Drifting is BROKEN. Different metric types get their
// own thresholds because they have different natural noise floors.
type Thresholds struct {
	Aligned  float64
	Drifting float64
}

// Per-metric-type thresholds.
var (
	SpendThresholds   = Thresholds{Aligned: 5, Drifting: 15}
	RevenueThresholds = Thresholds{Aligned: 5, Drifting: 20}
	CountThresholds   = Thresholds{Aligned: 10, Drifting: 25}
)

// Verdict classifies the delta against the thresholds.
func (t Thresholds) Verdict(pctDelta float64) domain.Verdict {
	switch {
	case pctDelta < t.Aligned:
		return domain.VerdictAligned
	case pctDelta < t.Drifting:
		return domain.VerdictDrifting
	default:
		return domain.VerdictBroken
	}
}

// MetricFn computes one source's value of a metric over a window.
type MetricFn func(ctx context.Context, window domain.TimeWindow) (float64, error)

// MetricSource is one labelled leg of a truth check.
type MetricSource struct {
	Label string
	Fetch MetricFn
}

// Check compares the same metric as computed by two or more sources.
type Check struct {
	Name       string
	Thresholds Thresholds
	Sources    []MetricSource
}

// Reconciler runs a fixed set of truth checks over a window. Each check
// is stateless per run; the higher-level rollup of check results into an
// overall verdict belongs to an external consumer.
type Reconciler struct {
	checks []Check
	sink   store.TruthSink
	runLog store.RunLogger
	met    *metrics.Metrics
	log    *zap.Logger
	now    func() time.Time
}

// NewReconciler creates a new truth reconciler.
func NewReconciler(checks []Check, sink store.TruthSink, runLog store.RunLogger, met *metrics.Metrics, log *zap.Logger) *Reconciler {
	return &Reconciler{
		checks: checks,
		sink:   sink,
		runLog: runLog,
		met:    met,
		log:    log,
		now:    time.Now,
	}
}

// PctDelta is the spread of the values relative to the largest:
// |max - min| / max * 100. All-zero values have zero spread.
func PctDelta(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	max, min := values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	if max == 0 {
		return 0
	}
	return math.Abs(max-min) / max * 100
}

// Run executes every check against the window and persists the results.
// A failed metric fetch skips that one check; the others still run.
func (r *Reconciler) Run(ctx context.Context, window domain.TimeWindow) ([]domain.TruthCheck, error) {
	started := r.now()
	runID := uuid.NewString()
	results := make([]domain.TruthCheck, 0, len(r.checks))
	failed := 0

	for _, check := range r.checks {
		record, err := r.runCheck(ctx, runID, check, window)
		if err != nil {
			failed++
			r.log.Warn("Truth check unavailable",
				zap.String("check", check.Name),
				zap.Error(err))
			continue
		}
		results = append(results, *record)

		if r.met != nil {
			r.met.TruthVerdicts.WithLabelValues(check.Name, string(record.Verdict)).Inc()
		}
		r.log.Info("Truth check complete",
			zap.String("check", check.Name),
			zap.Float64("pct_delta", record.PctDelta),
			zap.String("verdict", string(record.Verdict)))
	}

	if r.sink != nil && len(results) > 0 {
		if err := r.sink.InsertTruthChecks(ctx, results); err != nil {
			return results, fmt.Errorf("failed to persist truth checks: %w", err)
		}
	}

	r.logRun(ctx, runID, started, len(results), failed)
	return results, nil
}

// runCheck fetches every source value and classifies the spread. The raw
// values ride along on the record for audit; a verdict alone is useless
// when sources disagree.
func (r *Reconciler) runCheck(ctx context.Context, runID string, check Check, window domain.TimeWindow) (*domain.TruthCheck, error) {
	if len(check.Sources) < 2 {
		return nil, fmt.Errorf("check %s needs at least two sources", check.Name)
	}

	values := make([]domain.MetricValue, 0, len(check.Sources))
	raw := make([]float64, 0, len(check.Sources))
	for _, src := range check.Sources {
		v, err := src.Fetch(ctx, window)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Label, err)
		}
		values = append(values, domain.MetricValue{Label: src.Label, Value: v})
		raw = append(raw, v)
	}

	delta := PctDelta(raw)

	return &domain.TruthCheck{
		RunID:        runID,
		CheckName:    check.Name,
		Values:       values,
		PctDelta:     delta,
		MatchRatePct: math.Round((100-delta)*10) / 10,
		Verdict:      check.Thresholds.Verdict(delta),
		WindowFrom:   window.From,
		WindowTo:     window.To,
		CheckedAt:    r.now(),
	}, nil
}

func (r *Reconciler) logRun(ctx context.Context, runID string, started time.Time, completed, failed int) {
	if r.runLog == nil {
		return
	}

	status := "completed"
	if failed > 0 {
		status = "partial"
	}

	err := r.runLog.InsertRunLog(ctx, store.RunLog{
		RunID:      runID,
		Kind:       "truth",
		Status:     status,
		Processed:  completed,
		Message:    fmt.Sprintf("ran %d truth checks (%d unavailable)", completed+failed, failed),
		StartedAt:  started,
		DurationMS: time.Since(started).Milliseconds(),
	})
	if err != nil {
		r.log.Warn("Failed to persist run log", zap.Error(err))
	}
}
