package align

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/domain"
)

func alignedLead(identity string) *domain.AlignedEvent {
	return &domain.AlignedEvent{
		UltimateEventID:   UltimateEventID("evt_1"),
		CanonicalIdentity: identity,
		EventName:         "Lead",
		EventTime:         testEventTime,
	}
}

func TestInheritor_Resolve_Tier1InheritsFromPriorTouch(t *testing.T) {
	mockEvents := new(MockEventStore)
	prior := []domain.RawEvent{
		{
			EventID:     "click_2",
			EventName:   "OutboundClick",
			Attribution: domain.AttributionFragment{AdID: "ad_9", CampaignID: "camp_9"},
		},
		{
			EventID:     "click_1",
			EventName:   "OutboundClick",
			Attribution: domain.AttributionFragment{AdID: "ad_old"},
		},
	}
	mockEvents.On("FetchPriorEvents", mock.Anything, "foo@bar.com", testEventTime, []string{"OutboundClick"}).
		Return(prior, nil)

	inheritor := NewInheritor(mockEvents, nil, Config{}, nil, zap.NewNop())

	event := alignedLead("foo@bar.com")
	inheritor.Resolve(context.Background(), event)

	// Prior events come back newest first; the first qualifying one wins.
	assert.Equal(t, "ad_9", event.Attribution.AdID)
	assert.Equal(t, "camp_9", event.Attribution.CampaignID)
	assert.Equal(t, domain.OriginInheritedSameSource, event.AttributionOrigin)
	mockEvents.AssertNotCalled(t, "FetchEventsWithAdMarker")
}

func TestInheritor_Resolve_Tier2MinesLandingURL(t *testing.T) {
	mockEvents := new(MockEventStore)
	mockEvents.On("FetchPriorEvents", mock.Anything, "foo@bar.com", testEventTime, []string{"OutboundClick"}).
		Return([]domain.RawEvent{}, nil)
	mockEvents.On("FetchEventsWithAdMarker", mock.Anything, "foo@bar.com").
		Return([]domain.RawEvent{
			{
				EventID:     "pv_1",
				EventName:   "PageView",
				Attribution: domain.AttributionFragment{LandingURL: "https://example.com/lp?ad_id=777&adset_id=888"},
			},
		}, nil)

	inheritor := NewInheritor(mockEvents, nil, Config{}, nil, zap.NewNop())

	event := alignedLead("foo@bar.com")
	inheritor.Resolve(context.Background(), event)

	assert.Equal(t, "777", event.Attribution.AdID)
	assert.Equal(t, "888", event.Attribution.AdsetID)
	assert.Equal(t, domain.OriginInheritedCrossSource, event.AttributionOrigin)
	mockEvents.AssertExpectations(t)
}

func TestInheritor_Resolve_SkipsEventWithDirectAttribution(t *testing.T) {
	mockEvents := new(MockEventStore)
	inheritor := NewInheritor(mockEvents, nil, Config{}, nil, zap.NewNop())

	event := alignedLead("foo@bar.com")
	event.Attribution = domain.AttributionFragment{AdID: "direct_ad"}
	event.AttributionOrigin = domain.OriginDirect

	inheritor.Resolve(context.Background(), event)

	assert.Equal(t, "direct_ad", event.Attribution.AdID)
	assert.Equal(t, domain.OriginDirect, event.AttributionOrigin)
	mockEvents.AssertNotCalled(t, "FetchPriorEvents")
}

func TestInheritor_Resolve_SkipsNonRequiredEvent(t *testing.T) {
	mockEvents := new(MockEventStore)
	inheritor := NewInheritor(mockEvents, nil, Config{}, nil, zap.NewNop())

	event := alignedLead("foo@bar.com")
	event.EventName = "PageView"

	inheritor.Resolve(context.Background(), event)

	assert.Empty(t, event.Attribution.AdID)
	mockEvents.AssertNotCalled(t, "FetchPriorEvents")
}

func TestInheritor_Resolve_BothTiersEmptyIsNone(t *testing.T) {
	mockEvents := new(MockEventStore)
	mockEvents.On("FetchPriorEvents", mock.Anything, "foo@bar.com", testEventTime, []string{"OutboundClick"}).
		Return([]domain.RawEvent{}, nil)
	mockEvents.On("FetchEventsWithAdMarker", mock.Anything, "foo@bar.com").
		Return([]domain.RawEvent{}, nil)

	inheritor := NewInheritor(mockEvents, nil, Config{}, nil, zap.NewNop())

	event := alignedLead("foo@bar.com")
	inheritor.Resolve(context.Background(), event)

	assert.Empty(t, event.Attribution.AdID)
	assert.Equal(t, domain.OriginNone, event.AttributionOrigin)
}

func TestInheritor_Resolve_LookupFailuresFallThrough(t *testing.T) {
	mockEvents := new(MockEventStore)
	mockEvents.On("FetchPriorEvents", mock.Anything, "foo@bar.com", testEventTime, []string{"OutboundClick"}).
		Return(nil, errors.New("timeout"))
	mockEvents.On("FetchEventsWithAdMarker", mock.Anything, "foo@bar.com").
		Return(nil, errors.New("timeout"))

	inheritor := NewInheritor(mockEvents, nil, Config{}, nil, zap.NewNop())

	event := alignedLead("foo@bar.com")
	inheritor.Resolve(context.Background(), event)

	assert.Equal(t, domain.OriginNone, event.AttributionOrigin)
}

func TestInheritor_Resolve_WritesBackToCrm(t *testing.T) {
	mockEvents := new(MockEventStore)
	mockCrm := new(MockCrmStore)
	mockEvents.On("FetchPriorEvents", mock.Anything, "foo@bar.com", testEventTime, []string{"OutboundClick"}).
		Return([]domain.RawEvent{
			{EventName: "OutboundClick", Attribution: domain.AttributionFragment{AdID: "ad_9"}},
		}, nil)
	mockCrm.On("UpsertAttribution", mock.Anything, "c_1", mock.AnythingOfType("domain.AttributionFragment")).
		Return(nil)

	inheritor := NewInheritor(mockEvents, mockCrm, Config{}, nil, zap.NewNop())

	event := alignedLead("foo@bar.com")
	event.CrmContactID = "c_1"
	inheritor.Resolve(context.Background(), event)

	assert.Equal(t, "ad_9", event.Attribution.AdID)
	mockCrm.AssertExpectations(t)
}

func TestInheritor_Resolve_WriteBackFailureIsNonFatal(t *testing.T) {
	mockEvents := new(MockEventStore)
	mockCrm := new(MockCrmStore)
	mockEvents.On("FetchPriorEvents", mock.Anything, "foo@bar.com", testEventTime, []string{"OutboundClick"}).
		Return([]domain.RawEvent{
			{EventName: "OutboundClick", Attribution: domain.AttributionFragment{AdID: "ad_9"}},
		}, nil)
	mockCrm.On("UpsertAttribution", mock.Anything, "c_1", mock.AnythingOfType("domain.AttributionFragment")).
		Return(errors.New("contact not found"))

	inheritor := NewInheritor(mockEvents, mockCrm, Config{}, nil, zap.NewNop())

	event := alignedLead("foo@bar.com")
	event.CrmContactID = "c_1"
	inheritor.Resolve(context.Background(), event)

	assert.Equal(t, "ad_9", event.Attribution.AdID)
	assert.Equal(t, domain.OriginInheritedSameSource, event.AttributionOrigin)
}
