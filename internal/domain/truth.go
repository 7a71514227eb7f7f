package domain

import "time"

// Verdict classifies how closely independent sources agree on a metric.
type Verdict string

const (
	VerdictAligned  Verdict = "ALIGNED"
	VerdictDrifting Verdict = "DRIFTING"
	VerdictBroken   Verdict = "BROKEN"
)

// MetricValue is one labelled observation of a metric, kept on the check
// record so every verdict can be audited against the raw numbers.
type MetricValue struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// TruthCheck is one comparison of the same real-world metric as computed
// by two or more independent sources over the same time window.
type TruthCheck struct {
	RunID        string        `json:"run_id"`
	CheckName    string        `json:"check_name"`
	Values       []MetricValue `json:"values"`
	PctDelta     float64       `json:"pct_delta"`
	MatchRatePct float64       `json:"match_rate_pct"`
	Verdict      Verdict       `json:"verdict"`
	WindowFrom   time.Time     `json:"window_from"`
	WindowTo     time.Time     `json:"window_to"`
	CheckedAt    time.Time     `json:"checked_at"`
}
