package domain

import "time"

// Source identifies which upstream system produced an event.
type Source string

const (
	SourceTracker    Source = "tracker"
	SourceCRM        Source = "crm"
	SourceAdPlatform Source = "ad_platform"
)

// IdentityFragments holds the raw identity signals carried on an event.
// Empty string means the fragment was absent at the source.
type IdentityFragments struct {
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

// AttributionFragment carries ad-level attribution. Every field is
// independently optional; a fragment is only usable for inheritance when
// it has an ad id.
type AttributionFragment struct {
	AdID         string `json:"ad_id,omitempty"`
	AdsetID      string `json:"adset_id,omitempty"`
	CampaignID   string `json:"campaign_id,omitempty"`
	CampaignName string `json:"campaign_name,omitempty"`
	Medium       string `json:"medium,omitempty"`
	Source       string `json:"source_attribution,omitempty"`
	LandingURL   string `json:"landing_url,omitempty"`
}

// Qualifying reports whether the fragment carries ad-level attribution
// that a later conversion may inherit.
func (f AttributionFragment) Qualifying() bool {
	return f.AdID != ""
}

// Empty reports whether no attribution field is set at all.
func (f AttributionFragment) Empty() bool {
	return f == AttributionFragment{}
}

// TrackerFields are the signals only the client-side tracker produces.
type TrackerFields struct {
	ClickID   string `json:"click_id,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// CrmEventFields are the signals only the CRM webhook stream produces.
type CrmEventFields struct {
	ContactID string `json:"contact_id,omitempty"`
	DealID    string `json:"deal_id,omitempty"`
	DealStage string `json:"deal_stage,omitempty"`
}

// AdPlatformFields are the signals only the ad-platform conversions feed
// produces. HashedEmail is a SHA-256 hex digest of the lower-cased,
// trimmed email.
type AdPlatformFields struct {
	HashedEmail    string `json:"hashed_email,omitempty"`
	BrowserID      string `json:"browser_id,omitempty"`
	ClickBrowserID string `json:"click_browser_id,omitempty"`
}

// RawEvent is one observation from one source. (EventID, Source) is the
// idempotency key for storage; events are immutable once created and are
// never deleted by this service. At most one of the per-source field
// groups is non-nil, matching Source.
type RawEvent struct {
	EventID     string
	Source      Source
	EventName   string
	EventTime   time.Time
	Identity    IdentityFragments
	Attribution AttributionFragment
	Value       float64
	Currency    string

	Tracker    *TrackerFields
	CRM        *CrmEventFields
	AdPlatform *AdPlatformFields
}

// AdPlatformEvent is a conversion observed by the ad platform. It may
// carry the email only in hashed form.
type AdPlatformEvent struct {
	EventID        string
	EventName      string
	EventTime      time.Time
	Email          string
	HashedEmail    string
	BrowserID      string
	ClickBrowserID string
	Attribution    AttributionFragment
	Value          float64
}

// AttributionTouch is the most recent attribution-carrying record stored
// for an identity, used as the secondary attribution source when merging.
type AttributionTouch struct {
	Email       string
	EventTime   time.Time
	Attribution AttributionFragment
	Value       float64
}

// TimeWindow is a half-open interval [From, To) over event time.
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}
