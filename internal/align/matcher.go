package align

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/domain"
	"github.com/alignkit/attribution-service/internal/identity"
	"github.com/alignkit/attribution-service/internal/store"
)

// Matcher joins one tracker conversion against the CRM and ad-platform
// sources for its canonical identity and merges the fields with explicit
// precedence: identity fields prefer CRM over tracker, attribution
// prefers the stored attribution touch over the tracker's own fragment
// over the CRM's first-touch fields, and monetary value prefers the CRM
// deal over the touch over the tracker.
type Matcher struct {
	events store.EventStore
	cfg    Config
	log    *zap.Logger
}

// NewMatcher creates a new matcher.
func NewMatcher(events store.EventStore, cfg Config, log *zap.Logger) *Matcher {
	return &Matcher{
		events: events,
		cfg:    cfg.withDefaults(),
		log:    log,
	}
}

// UltimateEventID derives the stable aligned-event id from the tracker
// event id. Re-running alignment on the same input produces the same id,
// making the upsert idempotent.
func UltimateEventID(trackerEventID string) string {
	sum := sha256.Sum256([]byte("ultimate|" + trackerEventID))
	return "ultimate_" + hex.EncodeToString(sum[:16])
}

// Match builds the aligned event for one tracker conversion. CRM records
// and ad-platform events are the batch's pre-fetched snapshots; a missing
// match is normal, not an error. The returned signals feed the
// confidence score.
func (m *Matcher) Match(ctx context.Context, canonical string, tracker domain.RawEvent, crmByEmail map[string]domain.CrmRecord, adEvents []domain.AdPlatformEvent) (*domain.AlignedEvent, Signals) {
	var (
		crm *domain.CrmRecord
		ad  *domain.AdPlatformEvent
	)

	// CRM and ad-platform matching is email-keyed; a phone-only
	// identity aligns from tracker data alone.
	if strings.Contains(canonical, "@") {
		if rec, ok := crmByEmail[canonical]; ok {
			crm = &rec
		}
		ad = matchAdEvent(canonical, adEvents)
	}

	touch := m.fetchAttributionTouch(ctx, canonical)

	event := &domain.AlignedEvent{
		UltimateEventID:   UltimateEventID(tracker.EventID),
		CanonicalIdentity: canonical,
		EventName:         tracker.EventName,
		EventTime:         tracker.EventTime,
		TrackerEventID:    tracker.EventID,
		Flags: domain.SourceFlags{
			HasTracker:    true,
			HasCRM:        crm != nil,
			HasAdPlatform: ad != nil,
		},
		ConversionCurrency: tracker.Currency,
		AlignmentNotes:     fmt.Sprintf("matched by identity: %s", canonical),
	}

	// Identity fields: CRM wins over tracker.
	event.Email = identity.NormalizeEmail(tracker.Identity.Email)
	event.Phone = identity.NormalizePhone(tracker.Identity.Phone, m.cfg.CountryCode)
	if tracker.Tracker != nil {
		event.FirstName = tracker.Tracker.FirstName
		event.LastName = tracker.Tracker.LastName
	}
	if crm != nil {
		if crm.Email != "" {
			event.Email = identity.NormalizeEmail(crm.Email)
		}
		if crm.Phone != "" {
			event.Phone = identity.NormalizePhone(crm.Phone, m.cfg.CountryCode)
		}
		if crm.FirstName != "" {
			event.FirstName = crm.FirstName
		}
		if crm.LastName != "" {
			event.LastName = crm.LastName
		}
		event.CrmContactID = crm.ContactID
		event.CrmDealID = crm.DealID
		event.DealClosedAt = crm.DealClosedAt
	}
	if ad != nil {
		event.AdPlatformEventID = ad.EventID
	}

	// Attribution: touch > tracker fragment > CRM first-touch fields.
	switch {
	case touch != nil && !touch.Attribution.Empty():
		event.Attribution = touch.Attribution
	case !tracker.Attribution.Empty():
		event.Attribution = tracker.Attribution
	case crm != nil && !crm.Attribution.Empty():
		event.Attribution = crm.Attribution
		if event.Attribution.Source == "" {
			event.Attribution.Source = crm.FirstTouchSource
		}
	case crm != nil && crm.FirstTouchSource != "":
		event.Attribution.Source = crm.FirstTouchSource
	}

	// Monetary value: CRM deal > touch > tracker, defaulting to 0.
	switch {
	case crm != nil && crm.DealValue > 0:
		event.ConversionValue = crm.DealValue
	case touch != nil && touch.Value > 0:
		event.ConversionValue = touch.Value
	default:
		event.ConversionValue = tracker.Value
	}

	if event.Attribution.Empty() {
		event.AttributionOrigin = domain.OriginNone
	} else {
		event.AttributionOrigin = domain.OriginDirect
	}

	sig := Signals{
		HasEmail:      event.Email != "",
		HasPhone:      event.Phone != "",
		HasDevice:     hasDeviceSignal(tracker, ad),
		HasExternalID: event.CrmContactID != "" || tracker.Identity.ExternalID != "",
		SourceCount:   event.Flags.Count(),
		TimeAligned:   timeAligned(tracker.EventTime, matchedTimes(crm, ad), m.cfg.TimeWindow),
	}

	return event, sig
}

// fetchAttributionTouch looks up the latest stored attribution record for
// the identity. Failures degrade to no touch; the batch never aborts on a
// single lookup.
func (m *Matcher) fetchAttributionTouch(ctx context.Context, canonical string) *domain.AttributionTouch {
	lookupCtx, cancel := context.WithTimeout(ctx, m.cfg.LookupTimeout)
	defer cancel()

	touch, err := m.events.FetchLatestAttributionTouch(lookupCtx, canonical)
	if err != nil {
		m.log.Warn("Attribution touch lookup unavailable",
			zap.String("identity", canonical),
			zap.Error(err))
		return nil
	}
	return touch
}

// matchAdEvent finds the ad-platform conversion for an email identity,
// either by direct normalized-email equality or by SHA-256 digest
// equality when the feed only carries a hashed identity.
func matchAdEvent(email string, adEvents []domain.AdPlatformEvent) *domain.AdPlatformEvent {
	var emailHash string
	for i := range adEvents {
		e := &adEvents[i]
		if e.Email != "" && identity.NormalizeEmail(e.Email) == email {
			return e
		}
		if len(e.HashedEmail) == 64 {
			if emailHash == "" {
				emailHash = identity.HashEmail(email)
			}
			if e.HashedEmail == emailHash {
				return e
			}
		}
	}
	return nil
}

func hasDeviceSignal(tracker domain.RawEvent, ad *domain.AdPlatformEvent) bool {
	if tracker.Tracker != nil && tracker.Tracker.ClickID != "" {
		return true
	}
	if ad != nil && (ad.BrowserID != "" || ad.ClickBrowserID != "") {
		return true
	}
	return false
}

func matchedTimes(crm *domain.CrmRecord, ad *domain.AdPlatformEvent) []time.Time {
	var times []time.Time
	if crm != nil {
		times = append(times, crm.UpdatedAt)
	}
	if ad != nil {
		times = append(times, ad.EventTime)
	}
	return times
}
