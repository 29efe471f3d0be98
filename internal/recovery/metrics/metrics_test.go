package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementAudit("LATE", true)
	m.IncrementAudit("LATE", false)
	m.IncrementAudit("ON_TIME", false)
	m.IncrementClaimCreated()
	m.IncrementTransition("SUBMIT", "SUBMITTED")
	m.IncrementConflict("claim")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Audits.WithLabelValues("LATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Audits.WithLabelValues("ON_TIME")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LowConfidence))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClaimsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("SUBMIT", "SUBMITTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Conflicts.WithLabelValues("claim")))
}

func TestDurations(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveAudit(time.Now())
	m.ObserveClaimOp("SUBMIT", time.Now())

	assert.Equal(t, 1, testutil.CollectAndCount(m.AuditDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ClaimOpDuration))
}
