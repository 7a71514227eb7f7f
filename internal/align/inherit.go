package align

import (
	"context"

	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/domain"
	"github.com/alignkit/attribution-service/internal/metrics"
	"github.com/alignkit/attribution-service/internal/store"
)

// Inheritor backfills ad-level attribution on conversions that need it.
// Tier 1 inherits from the most recent qualifying touch event for the
// same identity; Tier 2 falls back to mining ad ids out of any landing
// URL the identity ever arrived on. Finding nothing is success with zero
// attribution, not an error.
type Inheritor struct {
	events store.EventStore
	crm    store.CrmStore
	cfg    Config
	met    *metrics.Metrics
	log    *zap.Logger
}

// NewInheritor creates a new attribution inheritance resolver.
func NewInheritor(events store.EventStore, crm store.CrmStore, cfg Config, met *metrics.Metrics, log *zap.Logger) *Inheritor {
	return &Inheritor{
		events: events,
		crm:    crm,
		cfg:    cfg.withDefaults(),
		met:    met,
		log:    log,
	}
}

// Resolve applies inheritance to the aligned event in place. It only
// acts when the event has no ad id yet and its name is designated
// attribution-required.
func (r *Inheritor) Resolve(ctx context.Context, event *domain.AlignedEvent) {
	if event.Attribution.Qualifying() {
		return
	}
	if !r.cfg.requiresAttribution(event.EventName) {
		return
	}

	if r.resolveTier1(ctx, event) {
		r.writeBack(ctx, event)
		return
	}
	if r.resolveTier2(ctx, event) {
		r.writeBack(ctx, event)
		return
	}

	if event.Attribution.Empty() {
		event.AttributionOrigin = domain.OriginNone
	}
}

// resolveTier1 inherits from the most recent qualifying touch. The store
// returns prior events newest first, so the first qualifying fragment
// wins.
func (r *Inheritor) resolveTier1(ctx context.Context, event *domain.AlignedEvent) bool {
	lookupCtx, cancel := context.WithTimeout(ctx, r.cfg.LookupTimeout)
	defer cancel()

	prior, err := r.events.FetchPriorEvents(lookupCtx, event.CanonicalIdentity, event.EventTime, r.cfg.QualifyingTouchEvents)
	if err != nil {
		r.log.Warn("Prior touch lookup unavailable",
			zap.String("identity", event.CanonicalIdentity),
			zap.Error(err))
		return false
	}

	for _, touch := range prior {
		if !touch.Attribution.Qualifying() {
			continue
		}
		inheritFragment(event, touch.Attribution)
		event.AttributionOrigin = domain.OriginInheritedSameSource
		if r.met != nil {
			r.met.AttributionInherited.WithLabelValues("same_source").Inc()
		}
		r.log.Info("Inherited attribution from prior touch",
			zap.String("identity", event.CanonicalIdentity),
			zap.String("ad_id", touch.Attribution.AdID),
			zap.String("touch_event", touch.EventName))
		return true
	}
	return false
}

// resolveTier2 mines ad ids out of landing URLs recorded for the
// identity anywhere in the raw event store.
func (r *Inheritor) resolveTier2(ctx context.Context, event *domain.AlignedEvent) bool {
	lookupCtx, cancel := context.WithTimeout(ctx, r.cfg.LookupTimeout)
	defer cancel()

	candidates, err := r.events.FetchEventsWithAdMarker(lookupCtx, event.CanonicalIdentity)
	if err != nil {
		r.log.Warn("Ad marker lookup unavailable",
			zap.String("identity", event.CanonicalIdentity),
			zap.Error(err))
		return false
	}

	for _, candidate := range candidates {
		fragment, ok := ExtractAdParams(candidate.Attribution.LandingURL)
		if !ok {
			continue
		}
		inheritFragment(event, fragment)
		event.AttributionOrigin = domain.OriginInheritedCrossSource
		if r.met != nil {
			r.met.AttributionInherited.WithLabelValues("cross_source").Inc()
		}
		r.log.Info("Inherited attribution from landing URL",
			zap.String("identity", event.CanonicalIdentity),
			zap.String("ad_id", fragment.AdID))
		return true
	}
	return false
}

// writeBack propagates inherited attribution onto the matched CRM record
// so future lookups do not need to repeat inheritance. Best-effort: a
// failure is logged and never fails the alignment.
func (r *Inheritor) writeBack(ctx context.Context, event *domain.AlignedEvent) {
	if event.CrmContactID == "" || r.crm == nil {
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.cfg.LookupTimeout)
	defer cancel()

	if err := r.crm.UpsertAttribution(lookupCtx, event.CrmContactID, event.Attribution); err != nil {
		r.log.Warn("CRM attribution write-back failed",
			zap.String("identity", event.CanonicalIdentity),
			zap.String("contact_id", event.CrmContactID),
			zap.Error(err))
	}
}

// inheritFragment copies the ad-level identifiers onto the event without
// clobbering medium/source fields the direct merge may have set.
func inheritFragment(event *domain.AlignedEvent, fragment domain.AttributionFragment) {
	event.Attribution.AdID = fragment.AdID
	if fragment.AdsetID != "" {
		event.Attribution.AdsetID = fragment.AdsetID
	}
	if fragment.CampaignID != "" {
		event.Attribution.CampaignID = fragment.CampaignID
	}
	if fragment.CampaignName != "" {
		event.Attribution.CampaignName = fragment.CampaignName
	}
}
