package align

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/domain"
	"github.com/alignkit/attribution-service/internal/identity"
)

var testEventTime = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

func trackerLead(eventID, email string) domain.RawEvent {
	return domain.RawEvent{
		EventID:   eventID,
		Source:    domain.SourceTracker,
		EventName: "Lead",
		EventTime: testEventTime,
		Identity:  domain.IdentityFragments{Email: email},
		Tracker:   &domain.TrackerFields{},
	}
}

func TestUltimateEventID_Deterministic(t *testing.T) {
	first := UltimateEventID("evt_1")
	second := UltimateEventID("evt_1")
	other := UltimateEventID("evt_2")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Contains(t, first, "ultimate_")
}

func TestMatcher_Match_TrackerOnly(t *testing.T) {
	mockEvents := new(MockEventStore)
	mockEvents.On("FetchLatestAttributionTouch", mock.Anything, "foo@bar.com").Return(nil, nil)

	matcher := NewMatcher(mockEvents, Config{}, zap.NewNop())

	aligned, sig := matcher.Match(context.Background(), "foo@bar.com", trackerLead("evt_1", "Foo@Bar.com"), nil, nil)

	assert.Equal(t, "foo@bar.com", aligned.CanonicalIdentity)
	assert.Equal(t, "foo@bar.com", aligned.Email)
	assert.True(t, aligned.Flags.HasTracker)
	assert.False(t, aligned.Flags.HasCRM)
	assert.False(t, aligned.Flags.HasAdPlatform)
	assert.Equal(t, domain.OriginNone, aligned.AttributionOrigin)
	assert.Equal(t, 1, sig.SourceCount)
	assert.True(t, sig.HasEmail)
	mockEvents.AssertExpectations(t)
}

func TestMatcher_Match_CrmFieldsWinOverTracker(t *testing.T) {
	mockEvents := new(MockEventStore)
	mockEvents.On("FetchLatestAttributionTouch", mock.Anything, "foo@bar.com").Return(nil, nil)

	matcher := NewMatcher(mockEvents, Config{}, zap.NewNop())

	tracker := trackerLead("evt_1", "foo@bar.com")
	tracker.Tracker.FirstName = "F"
	tracker.Value = 10

	crmByEmail := map[string]domain.CrmRecord{
		"foo@bar.com": {
			ContactID: "c_1",
			Email:     "foo@bar.com",
			Phone:     "0501234567",
			FirstName: "Foo",
			LastName:  "Bar",
			DealID:    "d_1",
			DealValue: 5000,
		},
	}

	aligned, sig := matcher.Match(context.Background(), "foo@bar.com", tracker, crmByEmail, nil)

	assert.Equal(t, "Foo", aligned.FirstName)
	assert.Equal(t, "+971501234567", aligned.Phone)
	assert.Equal(t, "c_1", aligned.CrmContactID)
	assert.Equal(t, float64(5000), aligned.ConversionValue)
	assert.True(t, aligned.Flags.HasCRM)
	assert.Equal(t, 2, sig.SourceCount)
	assert.True(t, sig.HasExternalID)
}

func TestMatcher_Match_HashedEmailMatchesAdPlatform(t *testing.T) {
	mockEvents := new(MockEventStore)
	mockEvents.On("FetchLatestAttributionTouch", mock.Anything, "foo@bar.com").Return(nil, nil)

	matcher := NewMatcher(mockEvents, Config{}, zap.NewNop())

	adEvents := []domain.AdPlatformEvent{
		{EventID: "ad_other", HashedEmail: identity.HashEmail("other@bar.com")},
		{EventID: "ad_1", HashedEmail: identity.HashEmail("foo@bar.com"), BrowserID: "fb.1.123"},
	}

	aligned, sig := matcher.Match(context.Background(), "foo@bar.com", trackerLead("evt_1", "foo@bar.com"), nil, adEvents)

	assert.Equal(t, "ad_1", aligned.AdPlatformEventID)
	assert.True(t, aligned.Flags.HasAdPlatform)
	assert.True(t, sig.HasDevice)
}

func TestMatcher_Match_PhoneIdentitySkipsEmailKeyedSources(t *testing.T) {
	mockEvents := new(MockEventStore)
	mockEvents.On("FetchLatestAttributionTouch", mock.Anything, "+971501234567").Return(nil, nil)

	matcher := NewMatcher(mockEvents, Config{}, zap.NewNop())

	tracker := domain.RawEvent{
		EventID:   "evt_p",
		Source:    domain.SourceTracker,
		EventName: "Lead",
		EventTime: testEventTime,
		Identity:  domain.IdentityFragments{Phone: "0501234567"},
	}
	adEvents := []domain.AdPlatformEvent{{EventID: "ad_1", Email: "foo@bar.com"}}

	aligned, _ := matcher.Match(context.Background(), "+971501234567", tracker, nil, adEvents)

	assert.False(t, aligned.Flags.HasAdPlatform)
	assert.False(t, aligned.Flags.HasCRM)
	assert.Equal(t, "+971501234567", aligned.Phone)
}

func TestMatcher_Match_TouchAttributionWinsOverTracker(t *testing.T) {
	mockEvents := new(MockEventStore)
	touch := &domain.AttributionTouch{
		Email:       "foo@bar.com",
		Attribution: domain.AttributionFragment{AdID: "touch_ad", CampaignID: "touch_camp"},
	}
	mockEvents.On("FetchLatestAttributionTouch", mock.Anything, "foo@bar.com").Return(touch, nil)

	matcher := NewMatcher(mockEvents, Config{}, zap.NewNop())

	tracker := trackerLead("evt_1", "foo@bar.com")
	tracker.Attribution = domain.AttributionFragment{AdID: "tracker_ad"}

	aligned, _ := matcher.Match(context.Background(), "foo@bar.com", tracker, nil, nil)

	assert.Equal(t, "touch_ad", aligned.Attribution.AdID)
	assert.Equal(t, domain.OriginDirect, aligned.AttributionOrigin)
}

func TestMatcher_Match_TouchLookupFailureDegrades(t *testing.T) {
	mockEvents := new(MockEventStore)
	mockEvents.On("FetchLatestAttributionTouch", mock.Anything, "foo@bar.com").
		Return(nil, errors.New("connection refused"))

	matcher := NewMatcher(mockEvents, Config{}, zap.NewNop())

	tracker := trackerLead("evt_1", "foo@bar.com")
	tracker.Attribution = domain.AttributionFragment{AdID: "tracker_ad"}

	aligned, _ := matcher.Match(context.Background(), "foo@bar.com", tracker, nil, nil)

	assert.Equal(t, "tracker_ad", aligned.Attribution.AdID)
	assert.Equal(t, domain.OriginDirect, aligned.AttributionOrigin)
}

func TestMatcher_Match_CrmFirstTouchSourceFallback(t *testing.T) {
	mockEvents := new(MockEventStore)
	mockEvents.On("FetchLatestAttributionTouch", mock.Anything, "foo@bar.com").Return(nil, nil)

	matcher := NewMatcher(mockEvents, Config{}, zap.NewNop())

	crmByEmail := map[string]domain.CrmRecord{
		"foo@bar.com": {ContactID: "c_1", Email: "foo@bar.com", FirstTouchSource: "PAID_SOCIAL"},
	}

	aligned, _ := matcher.Match(context.Background(), "foo@bar.com", trackerLead("evt_1", "foo@bar.com"), crmByEmail, nil)

	assert.Equal(t, "PAID_SOCIAL", aligned.Attribution.Source)
	assert.Equal(t, domain.OriginDirect, aligned.AttributionOrigin)
}
