package truth

import (
	"context"

	"github.com/alignkit/attribution-service/internal/domain"
	"github.com/alignkit/attribution-service/internal/store"
)

// Lead-class event names counted by the lead alignment check.
var leadEventNames = []string{"Lead", "CompleteRegistration"}

// DefaultChecks binds the standard check set to the metric stores:
// ad spend across the two spend ledgers, lead counts across three
// independent tables, and revenue from closed deals against aligned
// conversion value.
func DefaultChecks(events store.MetricStore, crm store.CrmMetricStore) []Check {
	checks := []Check{
		{
			Name:       "ad_spend_alignment",
			Thresholds: SpendThresholds,
			Sources: []MetricSource{
				{Label: "ad_spend:insights", Fetch: spendFetcher(events, "insights")},
				{Label: "ad_spend:campaign_performance", Fetch: spendFetcher(events, "campaign_performance")},
			},
		},
	}

	leadCheck := Check{
		Name:       "lead_count_alignment",
		Thresholds: CountThresholds,
		Sources: []MetricSource{
			{Label: "raw_events:tracker_leads", Fetch: leadCounter(events)},
			{Label: "raw_events:qualified_attribution", Fetch: events.CountQualifiedAttributionEvents},
		},
	}

	if crm != nil {
		leadCheck.Sources = append(leadCheck.Sources,
			MetricSource{Label: "contacts:created", Fetch: crm.CountContactsCreatedIn})
		checks = append(checks, Check{
			Name:       "aligned_revenue_vs_closed_deals",
			Thresholds: RevenueThresholds,
			Sources: []MetricSource{
				{Label: "aligned_events:conversion_value", Fetch: events.SumAlignedRevenue},
				{Label: "deals:closed_value", Fetch: crm.SumClosedDealValue},
			},
		})
	}

	return append(checks, leadCheck)
}

func spendFetcher(events store.MetricStore, ledger string) MetricFn {
	return func(ctx context.Context, window domain.TimeWindow) (float64, error) {
		return events.SumSpend(ctx, ledger, window)
	}
}

func leadCounter(events store.MetricStore) MetricFn {
	return func(ctx context.Context, window domain.TimeWindow) (float64, error) {
		return events.CountEventsByName(ctx, domain.SourceTracker, leadEventNames, window)
	}
}
