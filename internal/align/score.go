package align

import "time"

// Confidence points. Email is the strongest signal, multi-source
// corroboration next, then device/external-id signals, then time
// alignment. The absolute values are a calibration choice; the relative
// ordering is the contract.
const (
	pointsEmail       = 30
	pointsPhone       = 15
	pointsDevice      = 15
	pointsExternalID  = 15
	pointsMultiSource = 20
	pointsTimeAligned = 5
)

// Signals are the inputs to the confidence score, computed once per
// aligned event.
type Signals struct {
	HasEmail      bool
	HasPhone      bool
	HasDevice     bool
	HasExternalID bool
	SourceCount   int
	TimeAligned   bool
}

// Score computes the 0-100 alignment confidence. It is a pure function
// of the signals: the same aligned inputs always score the same.
func Score(sig Signals) int {
	score := 0
	if sig.HasEmail {
		score += pointsEmail
	}
	if sig.HasPhone {
		score += pointsPhone
	}
	if sig.HasDevice {
		score += pointsDevice
	}
	if sig.HasExternalID {
		score += pointsExternalID
	}
	if sig.SourceCount >= 2 {
		score += pointsMultiSource
	}
	if sig.TimeAligned {
		score += pointsTimeAligned
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// timeAligned reports whether every matched source time falls within
// window of the anchor time. A zero window disables the check.
func timeAligned(anchor time.Time, matched []time.Time, window time.Duration) bool {
	if window <= 0 {
		return true
	}
	for _, t := range matched {
		if t.IsZero() {
			continue
		}
		delta := anchor.Sub(t)
		if delta < 0 {
			delta = -delta
		}
		if delta > window {
			return false
		}
	}
	return true
}
