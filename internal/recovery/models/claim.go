package models

import (
	"strings"
	"time"

	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
)

// ClaimStatus is the closed set of claim lifecycle states.
type ClaimStatus string

const (
	ClaimDraft     ClaimStatus = "DRAFT"
	ClaimSubmitted ClaimStatus = "SUBMITTED"
	ClaimDisputed  ClaimStatus = "DISPUTED"
	ClaimRecovered ClaimStatus = "RECOVERED"
	ClaimDenied    ClaimStatus = "DENIED"
)

// ParseClaimStatus validates external input.
func ParseClaimStatus(s string) (ClaimStatus, error) {
	switch st := ClaimStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case ClaimDraft, ClaimSubmitted, ClaimDisputed, ClaimRecovered, ClaimDenied:
		return st, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown claim status %q", s)
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimRecovered || s == ClaimDenied
}

// Action is a lifecycle operation applied to a claim.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionSubmit  Action = "SUBMIT"
	ActionDispute Action = "DISPUTE"
	ActionRecover Action = "RECOVER"
	ActionDeny    Action = "DENY"
)

// transitions is the complete table. Anything absent is rejected.
var transitions = map[ClaimStatus]map[Action]ClaimStatus{
	ClaimDraft: {
		ActionSubmit: ClaimSubmitted,
	},
	ClaimSubmitted: {
		ActionDispute: ClaimDisputed,
		ActionRecover: ClaimRecovered,
		ActionDeny:    ClaimDenied,
	},
	ClaimDisputed: {
		ActionRecover: ClaimRecovered,
		ActionDeny:    ClaimDenied,
	},
	ClaimRecovered: {},
	ClaimDenied:    {},
}

// Next returns the target state for action, or false when the table rejects it.
func (s ClaimStatus) Next(action Action) (ClaimStatus, bool) {
	to, ok := transitions[s][action]
	return to, ok
}

// SettlementAction maps a settlement outcome onto its lifecycle action.
func SettlementAction(outcome ClaimStatus) (Action, error) {
	switch outcome {
	case ClaimRecovered:
		return ActionRecover, nil
	case ClaimDenied:
		return ActionDeny, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "settlement outcome must be RECOVERED or DENIED, got %q", outcome)
	}
}

// ValidateSettlement checks settlement arguments independently of the claim's state.
func ValidateSettlement(outcome ClaimStatus, recovery id.Money) error {
	if _, err := SettlementAction(outcome); err != nil {
		return err
	}
	if recovery.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "recovery amount cannot be negative")
	}
	if outcome == ClaimDenied && recovery != 0 {
		return dErrors.New(dErrors.CodeValidation, "denied claims must carry zero recovery").
			With("recovery_amount", recovery)
	}
	return nil
}

// Claim is the recovery claim for one shipment.
//
// Invariants:
//   - ShipmentID and AuditID are both set and never change
//   - ClaimAmount >= 0, RecoveryAmount >= 0, DENIED implies RecoveryAmount == 0
//   - terminal claims are immutable
type Claim struct {
	ID                id.ClaimID    `json:"id"`
	ShipmentID        id.ShipmentID `json:"shipment_id"`
	AuditID           id.AuditID    `json:"audit_id"`
	Status            ClaimStatus   `json:"status"`
	ClaimAmount       id.Money      `json:"claim_amount"`
	RecoveryAmount    id.Money      `json:"recovery_amount"`
	CarrierCaseNumber string        `json:"carrier_case_number,omitempty"`
	Reason            string        `json:"reason"`
	DisputeReason     string        `json:"dispute_reason,omitempty"`
	RequiresReview    bool          `json:"requires_review"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	SubmittedAt       *time.Time    `json:"submitted_at,omitempty"`
	SettledAt         *time.Time    `json:"settled_at,omitempty"`
}

// NewDraftClaim creates a DRAFT claim parameterized by an eligible audit.
func NewDraftClaim(claimID id.ClaimID, audit *AuditResult, now time.Time) (*Claim, error) {
	if claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim id required")
	}
	if audit == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "audit result is required")
	}
	if !audit.Eligible() {
		return nil, dErrors.New(dErrors.CodeValidation, "claims can only be created from eligible audits").
			With("shipment_id", audit.ShipmentID).
			With("reason", audit.Verdict.FailureReason)
	}
	if audit.Verdict.Variance.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim amount cannot be negative").
			With("shipment_id", audit.ShipmentID)
	}
	now = now.UTC()
	return &Claim{
		ID:             claimID,
		ShipmentID:     audit.ShipmentID,
		AuditID:        audit.ID,
		Status:         ClaimDraft,
		ClaimAmount:    audit.Verdict.Variance,
		RecoveryAmount: 0,
		Reason:         audit.Verdict.FailureReason,
		RequiresReview: audit.Verdict.LowConfidence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CanApply reports whether the transition table allows action from the current status.
func (c *Claim) CanApply(action Action) error {
	if _, ok := c.Status.Next(action); !ok {
		return dErrors.Newf(dErrors.CodeIllegalTransition, "cannot %s claim in status %s", strings.ToLower(string(action)), c.Status).
			With("claim_id", c.ID).
			With("status", c.Status).
			With("action", action)
	}
	return nil
}

// apply moves the claim along the table; callers must have checked CanApply.
func (c *Claim) apply(action Action, now time.Time) {
	to, _ := c.Status.Next(action)
	c.Status = to
	c.UpdatedAt = now.UTC()
}

// ApplySubmit records submission. Call only after CanApply(ActionSubmit).
func (c *Claim) ApplySubmit(caseNumber string, now time.Time) {
	c.apply(ActionSubmit, now)
	if cn := strings.TrimSpace(caseNumber); cn != "" {
		c.CarrierCaseNumber = cn
	}
	at := now.UTC()
	c.SubmittedAt = &at
}

// ApplyDispute records the carrier's dispute. Call only after CanApply(ActionDispute).
func (c *Claim) ApplyDispute(reason string, now time.Time) {
	c.apply(ActionDispute, now)
	c.DisputeReason = strings.TrimSpace(reason)
}

// ApplySettlement records the final outcome. Call only after ValidateSettlement and
// CanApply with the matching action.
func (c *Claim) ApplySettlement(outcome ClaimStatus, recovery id.Money, caseNumber string, now time.Time) {
	action, _ := SettlementAction(outcome)
	c.apply(action, now)
	c.RecoveryAmount = recovery
	if cn := strings.TrimSpace(caseNumber); cn != "" {
		c.CarrierCaseNumber = cn
	}
	at := now.UTC()
	c.SettledAt = &at
}

// Submit moves a DRAFT claim to SUBMITTED.
func (c *Claim) Submit(caseNumber string, now time.Time) error {
	if err := c.CanApply(ActionSubmit); err != nil {
		return err
	}
	c.ApplySubmit(caseNumber, now)
	return nil
}

// ValidateDisputeReason rejects blank dispute reasons.
func ValidateDisputeReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "dispute reason is required")
	}
	return nil
}

// Dispute moves a SUBMITTED claim to DISPUTED.
func (c *Claim) Dispute(reason string, now time.Time) error {
	if err := ValidateDisputeReason(reason); err != nil {
		return err
	}
	if err := c.CanApply(ActionDispute); err != nil {
		return err
	}
	c.ApplyDispute(reason, now)
	return nil
}

// Settle moves a SUBMITTED or DISPUTED claim to its outcome.
func (c *Claim) Settle(outcome ClaimStatus, recovery id.Money, caseNumber string, now time.Time) error {
	if err := ValidateSettlement(outcome, recovery); err != nil {
		return err
	}
	action, _ := SettlementAction(outcome)
	if err := c.CanApply(action); err != nil {
		return err
	}
	c.ApplySettlement(outcome, recovery, caseNumber, now)
	return nil
}

// Clone returns a copy safe to hand across store boundaries.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	cp := *c
	if c.SubmittedAt != nil {
		t := *c.SubmittedAt
		cp.SubmittedAt = &t
	}
	if c.SettledAt != nil {
		t := *c.SettledAt
		cp.SettledAt = &t
	}
	return &cp
}

// ClaimTransition is an append-only record of one lifecycle step.
type ClaimTransition struct {
	ID         id.TransitionID `json:"id"`
	ClaimID    id.ClaimID      `json:"claim_id"`
	ShipmentID id.ShipmentID   `json:"shipment_id"`
	Action     Action          `json:"action"`
	From       ClaimStatus     `json:"from,omitempty"`
	To         ClaimStatus     `json:"to"`
	Actor      string          `json:"actor,omitempty"`
	Detail     string          `json:"detail,omitempty"`
	At         time.Time       `json:"at"`
}
