package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the audit and recovery module.
// Tracks audit outcomes, claim lifecycle steps and critical path durations.
type Metrics struct {
	Audits          *prometheus.CounterVec
	LowConfidence   prometheus.Counter
	ClaimsCreated   prometheus.Counter
	Transitions     *prometheus.CounterVec
	Conflicts       *prometheus.CounterVec
	AuditDuration   prometheus.Histogram
	ClaimOpDuration *prometheus.HistogramVec
}

// New registers the recovery metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Audits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carrier_alpha_audits_total",
			Help: "Audits recorded, by reason code",
		}, []string{"reason_code"}),
		LowConfidence: f.NewCounter(prometheus.CounterOpts{
			Name: "carrier_alpha_audits_low_confidence_total",
			Help: "Verdicts whose timezone confidence fell below the configured threshold",
		}),
		ClaimsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "carrier_alpha_claims_created_total",
			Help: "Draft claims created from eligible audits",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carrier_alpha_claim_transitions_total",
			Help: "Claim lifecycle transitions, by action and resulting status",
		}, []string{"action", "status"}),
		Conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carrier_alpha_conflicts_total",
			Help: "Writes rejected by a uniqueness or version check, by resource",
		}, []string{"resource"}),
		AuditDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "carrier_alpha_audit_duration_seconds",
			Help:    "Duration of AuditShipment units of work",
			Buckets: durationBuckets,
		}),
		ClaimOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carrier_alpha_claim_operation_duration_seconds",
			Help:    "Duration of claim lifecycle operations",
			Buckets: durationBuckets,
		}, []string{"action"}),
	}
}

func (m *Metrics) IncrementAudit(reasonCode string, lowConfidence bool) {
	m.Audits.WithLabelValues(reasonCode).Inc()
	if lowConfidence {
		m.LowConfidence.Inc()
	}
}

func (m *Metrics) IncrementClaimCreated() {
	m.ClaimsCreated.Inc()
}

func (m *Metrics) IncrementTransition(action, status string) {
	m.Transitions.WithLabelValues(action, status).Inc()
}

func (m *Metrics) IncrementConflict(resource string) {
	m.Conflicts.WithLabelValues(resource).Inc()
}

// ObserveAudit records the duration of an audit unit of work.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAudit(start time.Time) {
	m.AuditDuration.Observe(time.Since(start).Seconds())
}

// ObserveClaimOp records the duration of a claim lifecycle operation.
func (m *Metrics) ObserveClaimOp(action string, start time.Time) {
	m.ClaimOpDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
}
