package domain

import "time"

// AttributionOrigin records how the resolved attribution on an aligned
// event was obtained, for auditability.
type AttributionOrigin string

const (
	OriginDirect               AttributionOrigin = "direct"
	OriginInheritedSameSource  AttributionOrigin = "inherited_same_source"
	OriginInheritedCrossSource AttributionOrigin = "inherited_cross_source"
	OriginNone                 AttributionOrigin = "none"
)

// SourceFlags records which sources contributed to an aligned event.
type SourceFlags struct {
	HasTracker    bool `json:"has_tracker"`
	HasCRM        bool `json:"has_crm"`
	HasAdPlatform bool `json:"has_ad_platform"`
}

// Count returns the number of contributing sources.
func (f SourceFlags) Count() int {
	n := 0
	if f.HasTracker {
		n++
	}
	if f.HasCRM {
		n++
	}
	if f.HasAdPlatform {
		n++
	}
	return n
}

// AlignedEvent is the canonical, confidence-scored record produced by one
// alignment of a tracker conversion against the CRM and ad-platform
// sources. UltimateEventID is derived deterministically from the tracker
// event id so re-running alignment upserts in place instead of creating
// duplicate rows.
type AlignedEvent struct {
	UltimateEventID   string
	CanonicalIdentity string
	EventName         string
	EventTime         time.Time

	Email     string
	Phone     string
	FirstName string
	LastName  string

	Attribution       AttributionFragment
	AttributionOrigin AttributionOrigin

	ConversionValue    float64
	ConversionCurrency string
	DealClosedAt       *time.Time

	TrackerEventID    string
	CrmContactID      string
	CrmDealID         string
	AdPlatformEventID string

	Flags           SourceFlags
	ConfidenceScore int
	AlignmentNotes  string
}
