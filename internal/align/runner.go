package align

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alignkit/attribution-service/internal/domain"
	"github.com/alignkit/attribution-service/internal/identity"
	"github.com/alignkit/attribution-service/internal/metrics"
	"github.com/alignkit/attribution-service/internal/store"
)

// IdentityFailure records one identity whose alignment could not be
// persisted. The rest of the batch is unaffected.
type IdentityFailure struct {
	Identity string `json:"identity"`
	Error    string `json:"error"`
}

// Report summarizes one alignment run.
type Report struct {
	RunID             string            `json:"run_id"`
	WindowFrom        time.Time         `json:"window_from"`
	WindowTo          time.Time         `json:"window_to"`
	TrackerEvents     int               `json:"tracker_events"`
	CrmRecords        int               `json:"crm_records"`
	AdPlatformEvents  int               `json:"ad_platform_events"`
	Aligned           int               `json:"aligned"`
	Skipped           int               `json:"skipped"`
	Unprocessed       int               `json:"unprocessed"`
	LookupsDegraded   int               `json:"lookups_degraded"`
	AverageConfidence int               `json:"average_confidence"`
	Failures          []IdentityFailure `json:"failures,omitempty"`
	DurationMS        int64             `json:"duration_ms"`
}

// Runner drives one bounded alignment batch to completion. Identities
// are aligned independently on a bounded worker pool; the batch dedup
// guarantees each canonical identity appears exactly once per run, so
// writes for one identity are never racing.
type Runner struct {
	events    store.EventStore
	crm       store.CrmStore
	matcher   *Matcher
	inheritor *Inheritor
	cfg       Config
	met       *metrics.Metrics
	runLog    store.RunLogger
	log       *zap.Logger
}

// NewRunner creates a new alignment batch runner.
func NewRunner(events store.EventStore, crm store.CrmStore, cfg Config, met *metrics.Metrics, runLog store.RunLogger, log *zap.Logger) *Runner {
	cfg = cfg.withDefaults()
	return &Runner{
		events:    events,
		crm:       crm,
		matcher:   NewMatcher(events, cfg, log),
		inheritor: NewInheritor(events, crm, cfg, met, log),
		cfg:       cfg,
		met:       met,
		runLog:    runLog,
		log:       log,
	}
}

type workItem struct {
	identity string
	event    domain.RawEvent
}

// Run aligns every unique identity observed by the tracker in the
// window. Collaborator fetch failures degrade the affected fields;
// per-identity persistence failures are collected, not fatal.
func (r *Runner) Run(ctx context.Context, window domain.TimeWindow) (*Report, error) {
	started := time.Now()
	report := &Report{
		RunID:      uuid.NewString(),
		WindowFrom: window.From,
		WindowTo:   window.To,
	}

	trackerEvents, err := r.events.FetchTrackerEvents(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tracker events: %w", err)
	}
	report.TrackerEvents = len(trackerEvents)

	crmRecords := r.fetchCrmRecords(ctx, window, report)
	adEvents := r.fetchAdPlatformEvents(ctx, window, report)

	crmByEmail := make(map[string]domain.CrmRecord, len(crmRecords))
	for _, rec := range crmRecords {
		if email := identity.NormalizeEmail(rec.Email); email != "" {
			if _, seen := crmByEmail[email]; !seen {
				crmByEmail[email] = rec
			}
		}
	}

	// Dedup policy: first-seen tracker event in the batch wins as the
	// anchor for its identity.
	items := make([]workItem, 0, len(trackerEvents))
	seen := make(map[string]bool, len(trackerEvents))
	for _, event := range trackerEvents {
		canonical := identity.Canonical(event.Identity.Email, event.Identity.Phone, r.cfg.CountryCode)
		if canonical == "" {
			report.Skipped++
			if r.met != nil {
				r.met.IdentitiesSkipped.Inc()
			}
			continue
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		items = append(items, workItem{identity: canonical, event: event})
	}

	var deadline time.Time
	if r.cfg.RunDeadline > 0 {
		deadline = started.Add(r.cfg.RunDeadline)
	}

	var (
		mu         sync.Mutex
		confidence int
	)

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for i, item := range items {
		if !deadline.IsZero() && time.Now().After(deadline) {
			report.Unprocessed = len(items) - i
			if r.met != nil {
				r.met.IdentitiesUnprocessed.Add(float64(report.Unprocessed))
			}
			r.log.Warn("Run deadline reached, returning partial results",
				zap.Int("unprocessed", report.Unprocessed))
			break
		}

		item := item
		g.Go(func() error {
			aligned, err := r.alignOne(groupCtx, item, crmByEmail, adEvents)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, IdentityFailure{
					Identity: item.identity,
					Error:    err.Error(),
				})
				if r.met != nil {
					r.met.IdentitiesFailed.Inc()
				}
				return nil
			}
			report.Aligned++
			confidence += aligned.ConfidenceScore
			if r.met != nil {
				r.met.IdentitiesAligned.Inc()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("alignment pool failed: %w", err)
	}

	if report.Aligned > 0 {
		report.AverageConfidence = confidence / report.Aligned
	}
	report.DurationMS = time.Since(started).Milliseconds()

	r.log.Info("Alignment run complete",
		zap.String("run_id", report.RunID),
		zap.Int("tracker_events", report.TrackerEvents),
		zap.Int("aligned", report.Aligned),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failures)),
		zap.Int("unprocessed", report.Unprocessed),
		zap.Int("average_confidence", report.AverageConfidence))

	r.logRun(ctx, report, started)
	return report, nil
}

// alignOne matches, inherits, scores and persists a single identity.
func (r *Runner) alignOne(ctx context.Context, item workItem, crmByEmail map[string]domain.CrmRecord, adEvents []domain.AdPlatformEvent) (*domain.AlignedEvent, error) {
	aligned, sig := r.matcher.Match(ctx, item.identity, item.event, crmByEmail, adEvents)
	r.inheritor.Resolve(ctx, aligned)
	aligned.ConfidenceScore = Score(sig)

	upsertCtx, cancel := context.WithTimeout(ctx, r.cfg.LookupTimeout)
	defer cancel()

	if err := r.events.UpsertAlignedEvent(upsertCtx, aligned); err != nil {
		return nil, fmt.Errorf("failed to upsert aligned event: %w", err)
	}
	return aligned, nil
}

// fetchCrmRecords fetches the window's CRM snapshot; a failure degrades
// every CRM field in the run instead of aborting it.
func (r *Runner) fetchCrmRecords(ctx context.Context, window domain.TimeWindow, report *Report) []domain.CrmRecord {
	if r.crm == nil {
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.cfg.LookupTimeout)
	defer cancel()

	records, err := r.crm.FetchRecordsUpdatedIn(lookupCtx, window)
	if err != nil {
		report.LookupsDegraded++
		r.log.Warn("CRM record fetch unavailable, continuing without CRM fields", zap.Error(err))
		return nil
	}
	report.CrmRecords = len(records)
	return records
}

// fetchAdPlatformEvents fetches the window's ad-platform snapshot with
// the same degradation semantics.
func (r *Runner) fetchAdPlatformEvents(ctx context.Context, window domain.TimeWindow, report *Report) []domain.AdPlatformEvent {
	lookupCtx, cancel := context.WithTimeout(ctx, r.cfg.LookupTimeout)
	defer cancel()

	events, err := r.events.FetchAdPlatformEvents(lookupCtx, window)
	if err != nil {
		report.LookupsDegraded++
		r.log.Warn("Ad platform fetch unavailable, continuing without ad-platform fields", zap.Error(err))
		return nil
	}
	report.AdPlatformEvents = len(events)
	return events
}

func (r *Runner) logRun(ctx context.Context, report *Report, started time.Time) {
	if r.runLog == nil {
		return
	}

	status := "completed"
	if len(report.Failures) > 0 || report.Unprocessed > 0 {
		status = "partial"
	}

	err := r.runLog.InsertRunLog(ctx, store.RunLog{
		RunID:     report.RunID,
		Kind:      "alignment",
		Status:    status,
		Processed: report.Aligned,
		Message: fmt.Sprintf("aligned %d of %d tracker events (%d skipped, %d failed, %d unprocessed)",
			report.Aligned, report.TrackerEvents, report.Skipped, len(report.Failures), report.Unprocessed),
		StartedAt:  started,
		DurationMS: report.DurationMS,
	})
	if err != nil {
		r.log.Warn("Failed to persist run log", zap.Error(err))
	}
}
