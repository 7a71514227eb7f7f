package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for alignment and truth runs.
type Metrics struct {
	IdentitiesAligned     prometheus.Counter
	IdentitiesSkipped     prometheus.Counter
	IdentitiesFailed      prometheus.Counter
	IdentitiesUnprocessed prometheus.Counter
	AttributionInherited  *prometheus.CounterVec
	TruthVerdicts         *prometheus.CounterVec
}

// New registers and returns the service metrics.
func New() *Metrics {
	return &Metrics{
		IdentitiesAligned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alignkit_identities_aligned_total",
			Help: "Total number of identities aligned into canonical events",
		}),
		IdentitiesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alignkit_identities_skipped_total",
			Help: "Total number of tracker events skipped for having no identity",
		}),
		IdentitiesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alignkit_identities_failed_total",
			Help: "Total number of identities whose alignment failed to persist",
		}),
		IdentitiesUnprocessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alignkit_identities_unprocessed_total",
			Help: "Total number of identities left unprocessed at the run deadline",
		}),
		AttributionInherited: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "alignkit_attribution_inherited_total",
			Help: "Total number of aligned events that inherited attribution, by tier",
		}, []string{"tier"}),
		TruthVerdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "alignkit_truth_verdicts_total",
			Help: "Total number of truth check verdicts, by check and verdict",
		}, []string{"check", "verdict"}),
	}
}
