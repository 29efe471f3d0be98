package models

import (
	"time"

	"carrieralpha/internal/eligibility"
	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
)

// AuditResult is the ledger entry for a shipment's audit. There is exactly one per
// shipment; corrections replace it under an optimistic version check.
type AuditResult struct {
	ID          id.AuditID          `json:"id"`
	ShipmentID  id.ShipmentID       `json:"shipment_id"`
	Verdict     eligibility.Verdict `json:"verdict"`
	Fingerprint string              `json:"fingerprint"`
	Version     int                 `json:"version"`
	AuditedAt   time.Time           `json:"audited_at"`
}

// NewAuditResult builds the first version of a ledger entry.
func NewAuditResult(auditID id.AuditID, verdict eligibility.Verdict, now time.Time) (*AuditResult, error) {
	if auditID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit id required")
	}
	if verdict.ShipmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verdict shipment id required")
	}
	if verdict.Variance.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "variance cannot be negative").
			With("shipment_id", verdict.ShipmentID)
	}
	if now.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audited-at time required")
	}
	return &AuditResult{
		ID:          auditID,
		ShipmentID:  verdict.ShipmentID,
		Verdict:     verdict,
		Fingerprint: verdict.Fingerprint(),
		Version:     1,
		AuditedAt:   now.UTC(),
	}, nil
}

// Eligible is shorthand for Verdict.Eligible.
func (a *AuditResult) Eligible() bool { return a.Verdict.Eligible }

// Corrected returns the next version of a with a new verdict. The audit ID is kept
// so claims referencing it stay valid.
func (a *AuditResult) Corrected(verdict eligibility.Verdict, now time.Time) (*AuditResult, error) {
	if verdict.ShipmentID != a.ShipmentID {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "correction must target the same shipment").
			With("shipment_id", a.ShipmentID)
	}
	next, err := NewAuditResult(a.ID, verdict, now)
	if err != nil {
		return nil, err
	}
	next.Version = a.Version + 1
	return next, nil
}
