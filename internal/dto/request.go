package dto

// IngestEventRequest represents a raw event submission from one of the
// upstream sources. Identity and attribution fields are all optional at
// the wire level; identityless events are stored but never aligned.
type IngestEventRequest struct {
	Source    string `json:"source" binding:"required,oneof=tracker crm ad_platform" example:"tracker"`
	EventName string `json:"event_name" binding:"required" example:"Lead"`
	Timestamp int64  `json:"timestamp" binding:"required" example:"1766702551"`

	Email      string `json:"email,omitempty" example:"foo@bar.com"`
	Phone      string `json:"phone,omitempty" example:"0501234567"`
	ExternalID string `json:"external_id,omitempty" example:"usr_42"`

	AdID         string `json:"ad_id,omitempty" example:"120211234567890"`
	AdsetID      string `json:"adset_id,omitempty" example:"120210987654321"`
	CampaignID   string `json:"campaign_id,omitempty" example:"120209876543210"`
	CampaignName string `json:"campaign_name,omitempty" example:"summer_leads"`
	Medium       string `json:"medium,omitempty" example:"paid_social"`
	UtmSource    string `json:"utm_source,omitempty" example:"facebook"`
	LandingURL   string `json:"landing_url,omitempty" example:"https://example.com/lp?ad_id=120211234567890"`

	Value    float64 `json:"value,omitempty" example:"150"`
	Currency string  `json:"currency,omitempty" example:"AED"`

	// Tracker-only fields.
	ClickID   string `json:"click_id,omitempty" example:"fbclid_abc123"`
	UserAgent string `json:"user_agent,omitempty"`
	FirstName string `json:"first_name,omitempty" example:"Foo"`
	LastName  string `json:"last_name,omitempty" example:"Bar"`

	// CRM-only fields.
	ContactID string `json:"contact_id,omitempty" example:"hs_19001"`
	DealID    string `json:"deal_id,omitempty" example:"deal_551"`
	DealStage string `json:"deal_stage,omitempty" example:"closedwon"`

	// Ad-platform-only fields.
	HashedEmail    string `json:"hashed_email,omitempty"`
	BrowserID      string `json:"browser_id,omitempty" example:"fb.1.1723475612.123"`
	ClickBrowserID string `json:"click_browser_id,omitempty"`
}

// IngestEventsBulkRequest represents a bulk raw event submission.
type IngestEventsBulkRequest struct {
	Events []IngestEventRequest `json:"events" binding:"required,min=1,max=1000,dive"`
}

// RunAlignmentRequest optionally narrows the alignment window.
type RunAlignmentRequest struct {
	WindowHours int `json:"window_hours" binding:"omitempty,min=1,max=8760" example:"168"`
}

// RunTruthRequest optionally narrows the reconciliation window.
type RunTruthRequest struct {
	WindowDays int `json:"window_days" binding:"omitempty,min=1,max=365" example:"7"`
}

// TruthReportRequest bounds the latest-checks report.
type TruthReportRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100" example:"20"`
}
