// Package eligibility decides whether a shipment's delivery failure entitles the
// shipper to a guarantee refund.
//
// Audit is a pure function of the shipment, the catalog snapshot and the policy: it
// performs no I/O and reads no clock, so re-auditing the same inputs produces a
// byte-identical Verdict.
package eligibility

import (
	"fmt"
	"math"
	"time"

	"carrieralpha/internal/catalog"
	"carrieralpha/internal/shipment"
	dErrors "carrieralpha/pkg/domain-errors"
)

// Auditor evaluates shipments against a catalog snapshot under a fixed policy.
type Auditor struct {
	policy Policy
}

// NewAuditor validates the policy and returns an Auditor.
func NewAuditor(policy Policy) (*Auditor, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Auditor{policy: policy}, nil
}

// Policy returns the auditor's policy.
func (a *Auditor) Policy() Policy { return a.policy }

// Audit produces the verdict for one shipment.
//
// Errors: CodeValidation when the shipment is structurally invalid or has no ship
// date. Every other outcome, including "no guarantee applies", is a Verdict.
func (a *Auditor) Audit(s *shipment.Shipment, snap *catalog.Snapshot) (Verdict, error) {
	if err := s.Validate(); err != nil {
		return Verdict{}, err
	}
	if snap == nil {
		return Verdict{}, dErrors.New(dErrors.CodeValidation, "catalog snapshot is required")
	}
	if s.ShippedAt == nil || s.ShippedAt.IsZero() {
		return Verdict{}, dErrors.New(dErrors.CodeValidation, "shipped_at is required to audit a shipment").
			With("shipment_id", s.ID)
	}
	shippedAt := *s.ShippedAt

	v := Verdict{
		ShipmentID:     s.ID,
		CatalogVersion: snap.Version(),
	}
	a.classify(s, &v)
	a.checkDimWeight(s, &v)

	commitment, ok := snap.CommitmentFor(s.Carrier, s.ServiceType, shippedAt)
	if !ok || !commitment.Guaranteed {
		if ok {
			ruleID := commitment.ID
			v.RuleID = &ruleID
			v.CommitType = commitment.CommitType
		}
		v.ReasonCode = ReasonNoGuarantee
		v.FailureReason = "no guarantee applies"
		return v, nil
	}
	ruleID := commitment.ID
	v.RuleID = &ruleID
	v.CommitType = commitment.CommitType

	var deadline time.Time
	if commitment.CommitType == catalog.CommitCarrierPromise {
		if s.PromisedDelivery == nil || s.PromisedDelivery.IsZero() {
			v.ReasonCode = ReasonNoPromise
			v.FailureReason = "no guarantee applies: carrier promise missing"
			return v, nil
		}
		deadline = s.PromisedDelivery.UTC()
		v.TimezoneAssumption = AssumeCarrierPromise
		v.TimezoneConfidence = confidencePromise
	} else {
		zone := resolveZone(s)
		deadline = commitmentDeadline(commitment, shippedAt, shipZone(s, zone.loc), zone)
		v.TimezoneAssumption = zone.assumption
		v.TimezoneConfidence = zone.confidence
	}
	// the instant is what matters; UTC keeps the canonical encoding zone-free
	utcDeadline := deadline.UTC()
	v.Deadline = &utcDeadline

	if s.ActualDelivery == nil || s.ActualDelivery.IsZero() {
		v.LowConfidence = v.TimezoneConfidence < a.policy.ConfidenceThreshold
		v.ReasonCode = ReasonNotDelivered
		v.FailureReason = "not yet delivered"
		return v, nil
	}
	actual := *s.ActualDelivery
	margin := actual.Sub(deadline)
	if a.ambiguous(v.TimezoneAssumption, margin) {
		v.TimezoneConfidence /= 2
	}
	v.LowConfidence = v.TimezoneConfidence < a.policy.ConfidenceThreshold

	if !actual.After(deadline) {
		v.ReasonCode = ReasonOnTime
		v.FailureReason = "delivered on time"
		return v, nil
	}
	v.LateBySeconds = int64(math.Ceil(margin.Seconds()))

	if rule, excused := a.matchException(s, snap, &v); excused {
		v.ReasonCode = ReasonExcused
		v.FailureReason = fmt.Sprintf("excused: %s", rule.Category)
		return v, nil
	}

	v.Eligible = true
	v.ReasonCode = ReasonLate
	v.Variance = a.policy.Variance(s.TotalCharged)
	v.FailureReason = fmt.Sprintf("late delivery: delivered %s after %s deadline %s",
		formatLateness(margin), commitment.CommitType, utcDeadline.Format(time.RFC3339))
	return v, nil
}

// ambiguous reports whether the delivery falls so close to a deadline computed in an
// assumed zone that a zone error could flip the outcome.
func (a *Auditor) ambiguous(assumption TimezoneAssumption, margin time.Duration) bool {
	if assumption == AssumeDestinationZone || assumption == AssumeCarrierPromise {
		return false
	}
	if margin < 0 {
		margin = -margin
	}
	return margin <= a.policy.SkewWindow
}

// matchException scans the carrier's rules in snapshot order. The first excusable
// match wins; otherwise the first non-excusable match is recorded for the audit trail.
func (a *Auditor) matchException(s *shipment.Shipment, snap *catalog.Snapshot, v *Verdict) (catalog.ExceptionRule, bool) {
	if s.ExceptionSignal == "" && len(s.RawPayload) == 0 {
		return catalog.ExceptionRule{}, false
	}
	var (
		firstNonExcusable *catalog.ExceptionRule
		nonExcusableText  string
	)
	for _, rule := range snap.ExceptionsFor(s.Carrier) {
		matched, ok := rule.Match(s.ExceptionSignal, s.RawPayload)
		if !ok {
			continue
		}
		if rule.Excusable {
			recordException(v, rule, matched)
			return rule, true
		}
		if firstNonExcusable == nil {
			r := rule
			firstNonExcusable, nonExcusableText = &r, matched
		}
	}
	if firstNonExcusable != nil {
		recordException(v, *firstNonExcusable, nonExcusableText)
	}
	return catalog.ExceptionRule{}, false
}

func recordException(v *Verdict, rule catalog.ExceptionRule, signal string) {
	ruleID := rule.ID
	v.ExceptionRuleID = &ruleID
	v.ExceptionCategory = rule.Category
	v.ExceptionSignal = signal
	v.ExceptionExcusable = rule.Excusable
}

// classify flags residential surcharges on shipments heavier than the policy limit.
// Carriers bill these as residential deliveries although the parcel profile says
// commercial freight; the flag is informational and never changes eligibility.
func (a *Auditor) classify(s *shipment.Shipment, v *Verdict) {
	if !s.HasSurcharge(shipment.SurchargeResidential) {
		return
	}
	lbs, ok := s.Weight.Pounds()
	if !ok || lbs <= a.policy.ResidentialWeightLimitLbs {
		return
	}
	v.ClassificationFlag = true
	v.ClassificationReason = fmt.Sprintf("residential surcharge on %.1f lb shipment exceeds %.0f lb limit",
		lbs, a.policy.ResidentialWeightLimitLbs)
}

// checkDimWeight flags a billed weight above the rated weight: the larger of the
// scale weight and the dimensional weight, rounded up to the next whole pound. It
// needs both measurements and never changes eligibility.
func (a *Auditor) checkDimWeight(s *shipment.Shipment, v *Verdict) {
	if s.Dimensions == nil || s.ScaleWeight == nil {
		return
	}
	billed, ok := s.Weight.Pounds()
	if !ok || billed == 0 {
		return
	}
	scale, ok := s.ScaleWeight.Pounds()
	if !ok {
		return
	}
	dim := s.Dimensions.CubicInches() / a.policy.DimDivisor
	rated := math.Ceil(math.Max(scale, dim))
	if billed <= rated {
		return
	}
	v.DimWeightFlag = true
	v.DimWeightReason = fmt.Sprintf("billed %.1f lb exceeds rated %.0f lb (scale %.1f lb, dimensional %.1f lb)",
		billed, rated, scale, dim)
}

func formatLateness(d time.Duration) string {
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "under a minute"
	}
	return d.String()
}
