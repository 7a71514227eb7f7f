package clickhouse

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	// Raw events are immutable; ReplacingMergeTree keyed by
	// (event_id, source) makes re-delivery of the same event a no-op.
	`
	CREATE TABLE IF NOT EXISTS raw_events (
		event_id String,
		source LowCardinality(String),
		event_name LowCardinality(String),
		event_time DateTime64(3),
		email String,
		phone String,
		external_id String,
		ad_id String,
		adset_id String,
		campaign_id String,
		campaign_name String,
		medium String,
		source_attribution String,
		landing_url String,
		value Float64,
		currency LowCardinality(String),
		click_id String,
		user_agent String,
		first_name String,
		last_name String,
		contact_id String,
		deal_id String,
		deal_stage String,
		hashed_email String,
		browser_id String,
		click_browser_id String,
		ingested_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (event_id, source)
	ORDER BY (event_id, source, event_time)
	PARTITION BY toYYYYMM(event_time)
	SETTINGS index_granularity = 8192
	`,
	// Curated attribution touches, written at ingestion for events that
	// carry both an email and a qualifying fragment.
	`
	CREATE TABLE IF NOT EXISTS attribution_touches (
		email String,
		event_time DateTime64(3),
		ad_id String,
		adset_id String,
		campaign_id String,
		campaign_name String,
		medium String,
		source_attribution String,
		value Float64,
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (email, event_time)
	ORDER BY (email, event_time)
	`,
	// Aligned events are keyed by the stable ultimate_event_id so
	// overlapping runs upsert in place instead of duplicating rows.
	`
	CREATE TABLE IF NOT EXISTS aligned_events (
		ultimate_event_id String,
		canonical_identity String,
		event_name LowCardinality(String),
		event_time DateTime64(3),
		email String,
		phone String,
		first_name String,
		last_name String,
		ad_id String,
		adset_id String,
		campaign_id String,
		campaign_name String,
		medium String,
		source_attribution String,
		attribution_origin LowCardinality(String),
		conversion_value Float64,
		conversion_currency LowCardinality(String),
		deal_closed_at Nullable(DateTime64(3)),
		tracker_event_id String,
		crm_contact_id String,
		crm_deal_id String,
		ad_platform_event_id String,
		has_tracker UInt8,
		has_crm UInt8,
		has_ad_platform UInt8,
		confidence_score Int32,
		alignment_notes String,
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (ultimate_event_id)
	ORDER BY (ultimate_event_id)
	`,
	`
	CREATE TABLE IF NOT EXISTS ad_spend (
		ledger LowCardinality(String),
		spend_date Date,
		campaign_id String,
		spend Float64,
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (ledger, spend_date, campaign_id)
	ORDER BY (ledger, spend_date, campaign_id)
	`,
	`
	CREATE TABLE IF NOT EXISTS truth_checks (
		run_id String,
		check_name LowCardinality(String),
		values_json String,
		pct_delta Float64,
		match_rate_pct Float64,
		verdict LowCardinality(String),
		window_from DateTime64(3),
		window_to DateTime64(3),
		checked_at DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (checked_at, check_name)
	`,
	`
	CREATE TABLE IF NOT EXISTS run_logs (
		run_id String,
		kind LowCardinality(String),
		status LowCardinality(String),
		processed Int32,
		message String,
		started_at DateTime64(3),
		duration_ms Int64
	) ENGINE = MergeTree()
	ORDER BY (started_at)
	`,
}

// InitSchema initializes the ClickHouse schema
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := s.client.Conn().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	s.log.Info("ClickHouse schema initialized successfully")
	return nil
}
