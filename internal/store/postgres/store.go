package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/config"
	"github.com/alignkit/attribution-service/internal/domain"
)

// Store implements the CRM record contract on Postgres. The contacts
// table mirrors what the CRM sync collaborator maintains; this store only
// reads contacts and writes back inherited attribution fields.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewStore creates a new Postgres-backed CRM store
func NewStore(ctx context.Context, cfg *config.Postgres, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	log.Info("Postgres connection established successfully")

	return &Store{pool: pool, log: log}, nil
}

// FetchRecordsUpdatedIn returns CRM contacts updated in the window, each
// joined with its highest-value deal when one exists.
func (s *Store) FetchRecordsUpdatedIn(ctx context.Context, window domain.TimeWindow) ([]domain.CrmRecord, error) {
	query := `
		SELECT
			c.contact_id,
			COALESCE(c.email, ''),
			COALESCE(c.phone, ''),
			COALESCE(c.first_name, ''),
			COALESCE(c.last_name, ''),
			COALESCE(c.first_touch_source, ''),
			COALESCE(c.attributed_ad_id, ''),
			COALESCE(c.attributed_adset_id, ''),
			COALESCE(c.attributed_campaign_id, ''),
			COALESCE(c.attribution_source, ''),
			COALESCE(d.deal_id, ''),
			COALESCE(d.deal_value, 0),
			d.closed_at,
			c.updated_at
		FROM contacts c
		LEFT JOIN LATERAL (
			SELECT deal_id, deal_value, closed_at
			FROM deals
			WHERE deals.contact_id = c.contact_id
			ORDER BY deal_value DESC
			LIMIT 1
		) d ON true
		WHERE c.updated_at >= $1 AND c.updated_at < $2
	`

	rows, err := s.pool.Query(ctx, query, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var records []domain.CrmRecord
	for rows.Next() {
		var (
			r        domain.CrmRecord
			closedAt *time.Time
		)
		err := rows.Scan(
			&r.ContactID,
			&r.Email,
			&r.Phone,
			&r.FirstName,
			&r.LastName,
			&r.FirstTouchSource,
			&r.Attribution.AdID,
			&r.Attribution.AdsetID,
			&r.Attribution.CampaignID,
			&r.Attribution.Source,
			&r.DealID,
			&r.DealValue,
			&closedAt,
			&r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact row: %w", err)
		}
		r.DealClosedAt = closedAt
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contact rows: %w", err)
	}
	return records, nil
}

// UpsertAttribution writes inherited attribution back onto a contact so
// future lookups do not need to repeat inheritance.
func (s *Store) UpsertAttribution(ctx context.Context, contactID string, fragment domain.AttributionFragment) error {
	query := `
		UPDATE contacts
		SET attributed_ad_id = $2,
			attributed_adset_id = $3,
			attributed_campaign_id = $4,
			attribution_source = $5,
			updated_at = now()
		WHERE contact_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		contactID,
		fragment.AdID,
		fragment.AdsetID,
		fragment.CampaignID,
		fragment.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to write back attribution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no contact with id %s", contactID)
	}
	return nil
}

// CountContactsCreatedIn counts contacts created in the window. Used as
// one leg of the lead count truth check.
func (s *Store) CountContactsCreatedIn(ctx context.Context, window domain.TimeWindow) (float64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM contacts WHERE created_at >= $1 AND created_at < $2`,
		window.From, window.To).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return float64(count), nil
}

// SumClosedDealValue sums deal value for deals closed in the window.
func (s *Store) SumClosedDealValue(ctx context.Context, window domain.TimeWindow) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(sum(deal_value), 0) FROM deals WHERE status = 'closed' AND closed_at >= $1 AND closed_at < $2`,
		window.From, window.To).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum closed deals: %w", err)
	}
	return total, nil
}

// Ping checks if the Postgres connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the Postgres pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
