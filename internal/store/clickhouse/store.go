package clickhouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/domain"
	"github.com/alignkit/attribution-service/internal/store"
)

// Store implements the event-side storage contracts (EventStore,
// MetricStore, TruthSink, RunLogger) on ClickHouse.
type Store struct {
	client *Client
	log    *zap.Logger
}

// NewStore creates a new ClickHouse-backed store
func NewStore(client *Client, log *zap.Logger) *Store {
	return &Store{
		client: client,
		log:    log,
	}
}

const rawEventColumns = `event_id, source, event_name, event_time,
	email, phone, external_id,
	ad_id, adset_id, campaign_id, campaign_name, medium, source_attribution, landing_url,
	value, currency,
	click_id, user_agent, first_name, last_name,
	contact_id, deal_id, deal_stage,
	hashed_email, browser_id, click_browser_id`

// InsertRawEvents inserts a batch of raw events. Events carrying an email
// and a qualifying attribution fragment also land in attribution_touches
// so later merges can find the latest touch without scanning raw_events.
func (s *Store) InsertRawEvents(ctx context.Context, events []*domain.RawEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := s.client.Conn().PrepareBatch(ctx, "INSERT INTO raw_events ("+rawEventColumns+", version)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	version := uint64(time.Now().UnixNano())
	inserted := 0
	var touches []*domain.RawEvent

	for _, event := range events {
		tracker := event.Tracker
		if tracker == nil {
			tracker = &domain.TrackerFields{}
		}
		crm := event.CRM
		if crm == nil {
			crm = &domain.CrmEventFields{}
		}
		ad := event.AdPlatform
		if ad == nil {
			ad = &domain.AdPlatformFields{}
		}

		err := batch.Append(
			event.EventID,
			string(event.Source),
			event.EventName,
			event.EventTime,
			event.Identity.Email,
			event.Identity.Phone,
			event.Identity.ExternalID,
			event.Attribution.AdID,
			event.Attribution.AdsetID,
			event.Attribution.CampaignID,
			event.Attribution.CampaignName,
			event.Attribution.Medium,
			event.Attribution.Source,
			event.Attribution.LandingURL,
			event.Value,
			event.Currency,
			tracker.ClickID,
			tracker.UserAgent,
			tracker.FirstName,
			tracker.LastName,
			crm.ContactID,
			crm.DealID,
			crm.DealStage,
			ad.HashedEmail,
			ad.BrowserID,
			ad.ClickBrowserID,
			version,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append event to batch: %w", err)
		}
		inserted++

		if event.Identity.Email != "" && event.Attribution.Qualifying() {
			touches = append(touches, event)
		}
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}

	if len(touches) > 0 {
		if err := s.insertAttributionTouches(ctx, touches, version); err != nil {
			// Touches are a lookup accelerator; raw events are already
			// durable, so a failure here is not an insert failure.
			s.log.Warn("Failed to insert attribution touches", zap.Error(err))
		}
	}

	return inserted, nil
}

func (s *Store) insertAttributionTouches(ctx context.Context, events []*domain.RawEvent, version uint64) error {
	batch, err := s.client.Conn().PrepareBatch(ctx,
		"INSERT INTO attribution_touches (email, event_time, ad_id, adset_id, campaign_id, campaign_name, medium, source_attribution, value, version)")
	if err != nil {
		return fmt.Errorf("failed to prepare touches batch: %w", err)
	}

	for _, event := range events {
		err := batch.Append(
			event.Identity.Email,
			event.EventTime,
			event.Attribution.AdID,
			event.Attribution.AdsetID,
			event.Attribution.CampaignID,
			event.Attribution.CampaignName,
			event.Attribution.Medium,
			event.Attribution.Source,
			event.Value,
			version,
		)
		if err != nil {
			return fmt.Errorf("failed to append touch to batch: %w", err)
		}
	}

	return batch.Send()
}

// FetchTrackerEvents returns tracker-source events in the window.
func (s *Store) FetchTrackerEvents(ctx context.Context, window domain.TimeWindow) ([]domain.RawEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM raw_events FINAL
		WHERE source = ? AND event_time >= ? AND event_time < ?
		ORDER BY event_time ASC
	`, rawEventColumns)

	rows, err := s.client.Conn().Query(ctx, query, string(domain.SourceTracker), window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracker events: %w", err)
	}
	return s.scanRawEvents(rows)
}

// FetchAdPlatformEvents returns ad-platform conversions in the window.
func (s *Store) FetchAdPlatformEvents(ctx context.Context, window domain.TimeWindow) ([]domain.AdPlatformEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM raw_events FINAL
		WHERE source = ? AND event_time >= ? AND event_time < ?
		ORDER BY event_time ASC
	`, rawEventColumns)

	rows, err := s.client.Conn().Query(ctx, query, string(domain.SourceAdPlatform), window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query ad platform events: %w", err)
	}

	raw, err := s.scanRawEvents(rows)
	if err != nil {
		return nil, err
	}

	events := make([]domain.AdPlatformEvent, 0, len(raw))
	for _, e := range raw {
		ad := e.AdPlatform
		if ad == nil {
			ad = &domain.AdPlatformFields{}
		}
		events = append(events, domain.AdPlatformEvent{
			EventID:        e.EventID,
			EventName:      e.EventName,
			EventTime:      e.EventTime,
			Email:          e.Identity.Email,
			HashedEmail:    ad.HashedEmail,
			BrowserID:      ad.BrowserID,
			ClickBrowserID: ad.ClickBrowserID,
			Attribution:    e.Attribution,
			Value:          e.Value,
		})
	}
	return events, nil
}

// FetchLatestAttributionTouch returns the most recent attribution record
// for the identity, or nil when none exists.
func (s *Store) FetchLatestAttributionTouch(ctx context.Context, identity string) (*domain.AttributionTouch, error) {
	query := `
		SELECT email, event_time, ad_id, adset_id, campaign_id, campaign_name, medium, source_attribution, value
		FROM attribution_touches FINAL
		WHERE email = ?
		ORDER BY event_time DESC
		LIMIT 1
	`

	var touch domain.AttributionTouch
	row := s.client.Conn().QueryRow(ctx, query, identity)
	err := row.Scan(
		&touch.Email,
		&touch.EventTime,
		&touch.Attribution.AdID,
		&touch.Attribution.AdsetID,
		&touch.Attribution.CampaignID,
		&touch.Attribution.CampaignName,
		&touch.Attribution.Medium,
		&touch.Attribution.Source,
		&touch.Value,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query attribution touch: %w", err)
	}
	return &touch, nil
}

// FetchPriorEvents returns events for the identity strictly before the
// given time whose event name is in names, newest first.
func (s *Store) FetchPriorEvents(ctx context.Context, identity string, before time.Time, names []string) ([]domain.RawEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM raw_events FINAL
		WHERE (email = ? OR phone = ?) AND event_time < ? AND event_name IN (?)
		ORDER BY event_time DESC
	`, rawEventColumns)

	rows, err := s.client.Conn().Query(ctx, query, identity, identity, before, names)
	if err != nil {
		return nil, fmt.Errorf("failed to query prior events: %w", err)
	}
	return s.scanRawEvents(rows)
}

// FetchEventsWithAdMarker returns events for the identity whose landing
// URL carries an ad_id query marker, newest first.
func (s *Store) FetchEventsWithAdMarker(ctx context.Context, identity string) ([]domain.RawEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM raw_events FINAL
		WHERE (email = ? OR phone = ?) AND landing_url LIKE '%%ad_id=%%'
		ORDER BY event_time DESC
	`, rawEventColumns)

	rows, err := s.client.Conn().Query(ctx, query, identity, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to query ad marker events: %w", err)
	}
	return s.scanRawEvents(rows)
}

func (s *Store) scanRawEvents(rows driver.Rows) ([]domain.RawEvent, error) {
	defer func(rows driver.Rows) {
		if err := rows.Close(); err != nil {
			s.log.Error("Failed to close raw event rows", zap.Error(err))
		}
	}(rows)

	var events []domain.RawEvent
	for rows.Next() {
		var (
			e       domain.RawEvent
			source  string
			tracker domain.TrackerFields
			crm     domain.CrmEventFields
			ad      domain.AdPlatformFields
		)

		err := rows.Scan(
			&e.EventID,
			&source,
			&e.EventName,
			&e.EventTime,
			&e.Identity.Email,
			&e.Identity.Phone,
			&e.Identity.ExternalID,
			&e.Attribution.AdID,
			&e.Attribution.AdsetID,
			&e.Attribution.CampaignID,
			&e.Attribution.CampaignName,
			&e.Attribution.Medium,
			&e.Attribution.Source,
			&e.Attribution.LandingURL,
			&e.Value,
			&e.Currency,
			&tracker.ClickID,
			&tracker.UserAgent,
			&tracker.FirstName,
			&tracker.LastName,
			&crm.ContactID,
			&crm.DealID,
			&crm.DealStage,
			&ad.HashedEmail,
			&ad.BrowserID,
			&ad.ClickBrowserID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raw event row: %w", err)
		}

		e.Source = domain.Source(source)
		switch e.Source {
		case domain.SourceTracker:
			e.Tracker = &tracker
		case domain.SourceCRM:
			e.CRM = &crm
		case domain.SourceAdPlatform:
			e.AdPlatform = &ad
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw event rows: %w", err)
	}
	return events, nil
}

// UpsertAlignedEvent writes an aligned event keyed by its stable ultimate
// event id; ReplacingMergeTree collapses duplicate runs.
func (s *Store) UpsertAlignedEvent(ctx context.Context, event *domain.AlignedEvent) error {
	batch, err := s.client.Conn().PrepareBatch(ctx, `INSERT INTO aligned_events (
		ultimate_event_id, canonical_identity, event_name, event_time,
		email, phone, first_name, last_name,
		ad_id, adset_id, campaign_id, campaign_name, medium, source_attribution,
		attribution_origin, conversion_value, conversion_currency, deal_closed_at,
		tracker_event_id, crm_contact_id, crm_deal_id, ad_platform_event_id,
		has_tracker, has_crm, has_ad_platform, confidence_score, alignment_notes, version)`)
	if err != nil {
		return fmt.Errorf("failed to prepare aligned event batch: %w", err)
	}

	err = batch.Append(
		event.UltimateEventID,
		event.CanonicalIdentity,
		event.EventName,
		event.EventTime,
		event.Email,
		event.Phone,
		event.FirstName,
		event.LastName,
		event.Attribution.AdID,
		event.Attribution.AdsetID,
		event.Attribution.CampaignID,
		event.Attribution.CampaignName,
		event.Attribution.Medium,
		event.Attribution.Source,
		string(event.AttributionOrigin),
		event.ConversionValue,
		event.ConversionCurrency,
		event.DealClosedAt,
		event.TrackerEventID,
		event.CrmContactID,
		event.CrmDealID,
		event.AdPlatformEventID,
		boolToUInt8(event.Flags.HasTracker),
		boolToUInt8(event.Flags.HasCRM),
		boolToUInt8(event.Flags.HasAdPlatform),
		int32(event.ConfidenceScore),
		event.AlignmentNotes,
		uint64(time.Now().UnixNano()),
	)
	if err != nil {
		return fmt.Errorf("failed to append aligned event: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to upsert aligned event: %w", err)
	}
	return nil
}

// CountEventsByName counts raw events with any of the names in the
// window, scoped to one source.
func (s *Store) CountEventsByName(ctx context.Context, source domain.Source, names []string, window domain.TimeWindow) (float64, error) {
	query := `
		SELECT count() FROM raw_events FINAL
		WHERE source = ? AND event_name IN (?) AND event_time >= ? AND event_time < ?
	`

	var count uint64
	row := s.client.Conn().QueryRow(ctx, query, string(source), names, window.From, window.To)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return float64(count), nil
}

// SumSpend sums recorded ad spend for one ledger in the window.
func (s *Store) SumSpend(ctx context.Context, ledger string, window domain.TimeWindow) (float64, error) {
	query := `
		SELECT sum(spend) FROM ad_spend FINAL
		WHERE ledger = ? AND spend_date >= toDate(?) AND spend_date < toDate(?)
	`

	var total float64
	row := s.client.Conn().QueryRow(ctx, query, ledger, window.From, window.To)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum spend: %w", err)
	}
	return total, nil
}

// SumAlignedRevenue sums conversion value across aligned events in the
// window.
func (s *Store) SumAlignedRevenue(ctx context.Context, window domain.TimeWindow) (float64, error) {
	query := `
		SELECT sum(conversion_value) FROM aligned_events FINAL
		WHERE event_time >= ? AND event_time < ?
	`

	var total float64
	row := s.client.Conn().QueryRow(ctx, query, window.From, window.To)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum aligned revenue: %w", err)
	}
	return total, nil
}

// CountQualifiedAttributionEvents counts events in the window that carry
// a qualifying attribution fragment.
func (s *Store) CountQualifiedAttributionEvents(ctx context.Context, window domain.TimeWindow) (float64, error) {
	query := `
		SELECT count() FROM raw_events FINAL
		WHERE ad_id != '' AND event_time >= ? AND event_time < ?
	`

	var count uint64
	row := s.client.Conn().QueryRow(ctx, query, window.From, window.To)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count qualified events: %w", err)
	}
	return float64(count), nil
}

// InsertTruthChecks persists a batch of truth check records.
func (s *Store) InsertTruthChecks(ctx context.Context, checks []domain.TruthCheck) error {
	if len(checks) == 0 {
		return nil
	}

	batch, err := s.client.Conn().PrepareBatch(ctx,
		"INSERT INTO truth_checks (run_id, check_name, values_json, pct_delta, match_rate_pct, verdict, window_from, window_to, checked_at)")
	if err != nil {
		return fmt.Errorf("failed to prepare truth checks batch: %w", err)
	}

	for _, check := range checks {
		valuesJSON, err := json.Marshal(check.Values)
		if err != nil {
			return fmt.Errorf("failed to marshal check values: %w", err)
		}

		err = batch.Append(
			check.RunID,
			check.CheckName,
			string(valuesJSON),
			check.PctDelta,
			check.MatchRatePct,
			string(check.Verdict),
			check.WindowFrom,
			check.WindowTo,
			check.CheckedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append truth check: %w", err)
		}
	}

	return batch.Send()
}

// FetchLatestTruthChecks returns the most recent truth check records.
func (s *Store) FetchLatestTruthChecks(ctx context.Context, limit int) ([]domain.TruthCheck, error) {
	query := `
		SELECT run_id, check_name, values_json, pct_delta, match_rate_pct, verdict, window_from, window_to, checked_at
		FROM truth_checks
		ORDER BY checked_at DESC
		LIMIT ?
	`

	rows, err := s.client.Conn().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query truth checks: %w", err)
	}
	defer func(rows driver.Rows) {
		if err := rows.Close(); err != nil {
			s.log.Error("Failed to close truth check rows", zap.Error(err))
		}
	}(rows)

	var checks []domain.TruthCheck
	for rows.Next() {
		var (
			check      domain.TruthCheck
			valuesJSON string
			verdict    string
		)
		err := rows.Scan(
			&check.RunID,
			&check.CheckName,
			&valuesJSON,
			&check.PctDelta,
			&check.MatchRatePct,
			&verdict,
			&check.WindowFrom,
			&check.WindowTo,
			&check.CheckedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan truth check row: %w", err)
		}

		check.Verdict = domain.Verdict(verdict)
		if err := json.Unmarshal([]byte(valuesJSON), &check.Values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal check values: %w", err)
		}
		checks = append(checks, check)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating truth check rows: %w", err)
	}
	return checks, nil
}

// InsertRunLog persists one run summary.
func (s *Store) InsertRunLog(ctx context.Context, log store.RunLog) error {
	batch, err := s.client.Conn().PrepareBatch(ctx,
		"INSERT INTO run_logs (run_id, kind, status, processed, message, started_at, duration_ms)")
	if err != nil {
		return fmt.Errorf("failed to prepare run log batch: %w", err)
	}

	err = batch.Append(
		log.RunID,
		log.Kind,
		log.Status,
		int32(log.Processed),
		log.Message,
		log.StartedAt,
		log.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to append run log: %w", err)
	}

	return batch.Send()
}

// Ping checks if the ClickHouse connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
