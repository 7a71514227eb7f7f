package align

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScore_NoSignals(t *testing.T) {
	assert.Equal(t, 0, Score(Signals{}))
}

func TestScore_AllSignalsCappedAt100(t *testing.T) {
	score := Score(Signals{
		HasEmail:      true,
		HasPhone:      true,
		HasDevice:     true,
		HasExternalID: true,
		SourceCount:   3,
		TimeAligned:   true,
	})

	assert.Equal(t, 100, score)
}

func TestScore_AddingSignalsNeverLowersScore(t *testing.T) {
	base := Signals{HasEmail: true, SourceCount: 1, TimeAligned: true}
	baseScore := Score(base)

	richer := []Signals{
		{HasEmail: true, HasPhone: true, SourceCount: 1, TimeAligned: true},
		{HasEmail: true, HasDevice: true, SourceCount: 1, TimeAligned: true},
		{HasEmail: true, HasExternalID: true, SourceCount: 1, TimeAligned: true},
		{HasEmail: true, SourceCount: 2, TimeAligned: true},
	}
	for _, sig := range richer {
		assert.GreaterOrEqual(t, Score(sig), baseScore)
	}
}

func TestScore_Deterministic(t *testing.T) {
	sig := Signals{HasEmail: true, HasPhone: true, SourceCount: 2}
	assert.Equal(t, Score(sig), Score(sig))
}

func TestScore_MultiSourceRequiresTwo(t *testing.T) {
	one := Score(Signals{HasEmail: true, SourceCount: 1})
	two := Score(Signals{HasEmail: true, SourceCount: 2})

	assert.Equal(t, pointsMultiSource, two-one)
}

func TestTimeAligned_ZeroWindowAlwaysTrue(t *testing.T) {
	anchor := time.Now()
	farAway := []time.Time{anchor.Add(-90 * 24 * time.Hour)}

	assert.True(t, timeAligned(anchor, farAway, 0))
}

func TestTimeAligned_WithinWindow(t *testing.T) {
	anchor := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	matched := []time.Time{anchor.Add(-30 * time.Minute), anchor.Add(45 * time.Minute)}

	assert.True(t, timeAligned(anchor, matched, time.Hour))
	assert.False(t, timeAligned(anchor, matched, 40*time.Minute))
}

func TestTimeAligned_IgnoresZeroTimes(t *testing.T) {
	anchor := time.Now()

	assert.True(t, timeAligned(anchor, []time.Time{{}}, time.Minute))
}
