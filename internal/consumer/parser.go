package consumer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alignkit/attribution-service/internal/domain"
	"github.com/alignkit/attribution-service/internal/identity"
)

// rawEventMessage is the wire shape the publisher sends. It mirrors the
// ingest request plus the event id computed at the edge.
type rawEventMessage struct {
	EventID   string `json:"event_id"`
	Source    string `json:"source"`
	EventName string `json:"event_name"`
	Timestamp int64  `json:"timestamp"`

	Email      string `json:"email"`
	Phone      string `json:"phone"`
	ExternalID string `json:"external_id"`

	AdID         string `json:"ad_id"`
	AdsetID      string `json:"adset_id"`
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	Medium       string `json:"medium"`
	UtmSource    string `json:"utm_source"`
	LandingURL   string `json:"landing_url"`

	Value    float64 `json:"value"`
	Currency string  `json:"currency"`

	ClickID   string `json:"click_id"`
	UserAgent string `json:"user_agent"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	ContactID string `json:"contact_id"`
	DealID    string `json:"deal_id"`
	DealStage string `json:"deal_stage"`

	HashedEmail    string `json:"hashed_email"`
	BrowserID      string `json:"browser_id"`
	ClickBrowserID string `json:"click_browser_id"`
}

// JSONEventParser implements MessageParser for JSON-formatted raw event
// messages. Identity fragments are normalized here, once, so every
// downstream lookup joins on the same canonical forms.
type JSONEventParser struct {
	countryCode string
}

// NewJSONEventParser creates a new JSON event parser.
func NewJSONEventParser(countryCode string) *JSONEventParser {
	return &JSONEventParser{countryCode: countryCode}
}

// Parse parses a JSON message body into a RawEvent
func (p *JSONEventParser) Parse(body []byte) (*domain.RawEvent, error) {
	var msg rawEventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message body: %w", err)
	}

	source := domain.Source(msg.Source)
	switch source {
	case domain.SourceTracker, domain.SourceCRM, domain.SourceAdPlatform:
	default:
		return nil, fmt.Errorf("unknown event source: %q", msg.Source)
	}

	if msg.EventID == "" {
		return nil, fmt.Errorf("message has no event_id")
	}
	if msg.EventName == "" {
		return nil, fmt.Errorf("message has no event_name")
	}

	event := &domain.RawEvent{
		EventID:   msg.EventID,
		Source:    source,
		EventName: msg.EventName,
		EventTime: time.Unix(msg.Timestamp, 0).UTC(),
		Identity: domain.IdentityFragments{
			Email:      identity.NormalizeEmail(msg.Email),
			Phone:      identity.NormalizePhone(msg.Phone, p.countryCode),
			ExternalID: msg.ExternalID,
		},
		Attribution: domain.AttributionFragment{
			AdID:         msg.AdID,
			AdsetID:      msg.AdsetID,
			CampaignID:   msg.CampaignID,
			CampaignName: msg.CampaignName,
			Medium:       msg.Medium,
			Source:       msg.UtmSource,
			LandingURL:   msg.LandingURL,
		},
		Value:    msg.Value,
		Currency: msg.Currency,
	}

	switch source {
	case domain.SourceTracker:
		event.Tracker = &domain.TrackerFields{
			ClickID:   msg.ClickID,
			UserAgent: msg.UserAgent,
			FirstName: msg.FirstName,
			LastName:  msg.LastName,
		}
	case domain.SourceCRM:
		event.CRM = &domain.CrmEventFields{
			ContactID: msg.ContactID,
			DealID:    msg.DealID,
			DealStage: msg.DealStage,
		}
	case domain.SourceAdPlatform:
		event.AdPlatform = &domain.AdPlatformFields{
			HashedEmail:    msg.HashedEmail,
			BrowserID:      msg.BrowserID,
			ClickBrowserID: msg.ClickBrowserID,
		}
	}

	return event, nil
}
