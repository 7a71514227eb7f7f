package align

import "time"

// Config holds the alignment engine options.
type Config struct {
	// CountryCode is the national prefix used for phone normalization.
	CountryCode string

	// QualifyingTouchEvents are prior event names whose attribution a
	// later conversion may inherit (Tier 1).
	QualifyingTouchEvents []string

	// RequiredEvents are conversion-class event names that must end up
	// with ad-level attribution, triggering inheritance when the direct
	// merge produced none.
	RequiredEvents []string

	// TimeWindow bounds the event-time spread across matched sources
	// for the time-aligned confidence signal. Zero disables the check
	// and the signal is always true.
	TimeWindow time.Duration

	// LookupTimeout bounds each collaborator call. A timeout degrades
	// the field to absent instead of failing the batch.
	LookupTimeout time.Duration

	// Workers bounds per-identity parallelism within one run.
	Workers int

	// RunDeadline stops the run from starting new identity alignments
	// once exceeded; remaining identities are reported unprocessed.
	// Zero means no deadline.
	RunDeadline time.Duration
}

func (c Config) withDefaults() Config {
	if c.CountryCode == "" {
		c.CountryCode = "971"
	}
	if len(c.QualifyingTouchEvents) == 0 {
		c.QualifyingTouchEvents = []string{"OutboundClick"}
	}
	if len(c.RequiredEvents) == 0 {
		c.RequiredEvents = []string{"Lead", "CompleteRegistration"}
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = 5 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	return c
}

func (c Config) requiresAttribution(eventName string) bool {
	for _, name := range c.RequiredEvents {
		if name == eventName {
			return true
		}
	}
	return false
}
