package store

import (
	"context"
	"time"

	"github.com/alignkit/attribution-service/internal/domain"
)

// EventStore is the read/write contract the alignment engine has against
// the event storage backend. Prior-event queries return results ordered
// descending by event time.
type EventStore interface {
	// InsertRawEvents inserts a batch of raw events idempotently, keyed
	// by (event_id, source).
	InsertRawEvents(ctx context.Context, events []*domain.RawEvent) (int, error)

	// FetchTrackerEvents returns tracker-source events in the window.
	FetchTrackerEvents(ctx context.Context, window domain.TimeWindow) ([]domain.RawEvent, error)

	// FetchAdPlatformEvents returns ad-platform conversions in the window.
	FetchAdPlatformEvents(ctx context.Context, window domain.TimeWindow) ([]domain.AdPlatformEvent, error)

	// FetchLatestAttributionTouch returns the most recent stored
	// attribution record for the identity, or nil when none exists.
	FetchLatestAttributionTouch(ctx context.Context, identity string) (*domain.AttributionTouch, error)

	// FetchPriorEvents returns events for the identity strictly before
	// the given time whose event name is in names, newest first.
	FetchPriorEvents(ctx context.Context, identity string, before time.Time, names []string) ([]domain.RawEvent, error)

	// FetchEventsWithAdMarker returns events for the identity whose
	// landing URL carries an ad-id query marker, newest first.
	FetchEventsWithAdMarker(ctx context.Context, identity string) ([]domain.RawEvent, error)

	// UpsertAlignedEvent writes an aligned event keyed by its stable
	// ultimate event id; a duplicate run is a no-op.
	UpsertAlignedEvent(ctx context.Context, event *domain.AlignedEvent) error

	// Ping checks if the backend connection is alive.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// CrmStore is the contract against the CRM record backend.
type CrmStore interface {
	// FetchRecordsUpdatedIn returns CRM contacts updated in the window.
	FetchRecordsUpdatedIn(ctx context.Context, window domain.TimeWindow) ([]domain.CrmRecord, error)

	// UpsertAttribution writes inherited attribution back onto the
	// contact's stored attribution fields. Best-effort: callers log
	// failures and move on.
	UpsertAttribution(ctx context.Context, contactID string, fragment domain.AttributionFragment) error

	// Ping checks if the backend connection is alive.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// MetricStore exposes the independently-computed aggregates the truth
// reconciler compares across sources.
type MetricStore interface {
	// CountEventsByName counts raw events with any of the names in the
	// window, scoped to one source.
	CountEventsByName(ctx context.Context, source domain.Source, names []string, window domain.TimeWindow) (float64, error)

	// SumSpend sums recorded ad spend for one ledger in the window.
	SumSpend(ctx context.Context, ledger string, window domain.TimeWindow) (float64, error)

	// SumAlignedRevenue sums conversion value across aligned events in
	// the window.
	SumAlignedRevenue(ctx context.Context, window domain.TimeWindow) (float64, error)

	// CountQualifiedAttributionEvents counts events in the window that
	// carry a qualifying attribution fragment.
	CountQualifiedAttributionEvents(ctx context.Context, window domain.TimeWindow) (float64, error)
}

// CrmMetricStore exposes the CRM-side aggregates used as truth check
// legs.
type CrmMetricStore interface {
	// CountContactsCreatedIn counts contacts created in the window.
	CountContactsCreatedIn(ctx context.Context, window domain.TimeWindow) (float64, error)

	// SumClosedDealValue sums deal value for deals closed in the window.
	SumClosedDealValue(ctx context.Context, window domain.TimeWindow) (float64, error)
}

// TruthSink persists and retrieves truth check records.
type TruthSink interface {
	InsertTruthChecks(ctx context.Context, checks []domain.TruthCheck) error
	FetchLatestTruthChecks(ctx context.Context, limit int) ([]domain.TruthCheck, error)
}

// RunLog records one alignment or truth run for audit.
type RunLog struct {
	RunID      string
	Kind       string
	Status     string
	Processed  int
	Message    string
	StartedAt  time.Time
	DurationMS int64
}

// RunLogger persists run summaries.
type RunLogger interface {
	InsertRunLog(ctx context.Context, log RunLog) error
}
