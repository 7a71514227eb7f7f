package align

import (
	"net/url"
	"regexp"

	"github.com/alignkit/attribution-service/internal/domain"
)

// Positional fallbacks for URLs that do not parse cleanly. Mirrors the
// extraction applied at ingestion.
var (
	adIDPattern       = regexp.MustCompile(`[?&]ad_id=([^&#\s]+)`)
	adsetIDPattern    = regexp.MustCompile(`[?&]adset_id=([^&#\s]+)`)
	campaignIDPattern = regexp.MustCompile(`[?&](?:campaign_id|utm_id)=([^&#\s]+)`)
)

// ExtractAdParams pulls ad-level attribution out of a landing URL.
// Structured URL-parameter parsing is tried first, then the positional
// patterns. The second return is false when no ad id could be found.
func ExtractAdParams(raw string) (domain.AttributionFragment, bool) {
	var frag domain.AttributionFragment

	if u, err := url.Parse(raw); err == nil {
		q := u.Query()
		frag.AdID = q.Get("ad_id")
		frag.AdsetID = q.Get("adset_id")
		frag.CampaignID = q.Get("campaign_id")
		if frag.CampaignID == "" {
			frag.CampaignID = q.Get("utm_id")
		}
	}

	if frag.AdID == "" {
		if m := adIDPattern.FindStringSubmatch(raw); m != nil {
			frag.AdID = m[1]
		}
		if m := adsetIDPattern.FindStringSubmatch(raw); m != nil && frag.AdsetID == "" {
			frag.AdsetID = m[1]
		}
		if m := campaignIDPattern.FindStringSubmatch(raw); m != nil && frag.CampaignID == "" {
			frag.CampaignID = m[1]
		}
	}

	return frag, frag.AdID != ""
}
