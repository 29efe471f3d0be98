package service

import (
	"context"
	"log/slog"
	"time"

	"carrieralpha/internal/eligibility"
	"carrieralpha/internal/recovery/models"
	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
	"carrieralpha/pkg/platform/outbox"
	"carrieralpha/pkg/requestcontext"
)

// Event types published through the outbox.
const (
	EventAuditRecorded  = "audit.recorded"
	EventAuditCorrected = "audit.corrected"
	EventClaimCreated   = "claim.created"
	EventClaimSubmitted = "claim.submitted"
	EventClaimDisputed  = "claim.disputed"
	EventClaimRecovered = "claim.recovered"
	EventClaimDenied    = "claim.denied"
)

const (
	aggregateAudit = "audit"
	aggregateClaim = "claim"
)

// AuditEventPayload is the body of audit.* events.
type AuditEventPayload struct {
	AuditID       id.AuditID             `json:"audit_id"`
	ShipmentID    id.ShipmentID          `json:"shipment_id"`
	Version       int                    `json:"version"`
	Eligible      bool                   `json:"eligible"`
	Variance      id.Money               `json:"variance"`
	ReasonCode    eligibility.ReasonCode `json:"reason_code"`
	LowConfidence bool                   `json:"low_confidence"`
	Fingerprint   string                 `json:"fingerprint"`
	RequestID     string                 `json:"request_id,omitempty"`
}

// ClaimEventPayload is the body of claim.* events.
type ClaimEventPayload struct {
	ClaimID           id.ClaimID         `json:"claim_id"`
	ShipmentID        id.ShipmentID      `json:"shipment_id"`
	AuditID           id.AuditID         `json:"audit_id"`
	Action            models.Action      `json:"action"`
	From              models.ClaimStatus `json:"from,omitempty"`
	To                models.ClaimStatus `json:"to"`
	ClaimAmount       id.Money           `json:"claim_amount"`
	RecoveryAmount    id.Money           `json:"recovery_amount"`
	CarrierCaseNumber string             `json:"carrier_case_number,omitempty"`
	Actor             string             `json:"actor,omitempty"`
	At                time.Time          `json:"at"`
	RequestID         string             `json:"request_id,omitempty"`
}

var claimEventTypes = map[models.Action]string{
	models.ActionCreate:  EventClaimCreated,
	models.ActionSubmit:  EventClaimSubmitted,
	models.ActionDispute: EventClaimDisputed,
	models.ActionRecover: EventClaimRecovered,
	models.ActionDeny:    EventClaimDenied,
}

// eventEmitter writes domain events to the outbox inside the caller's unit of work
// and mirrors them to the structured log.
type eventEmitter struct {
	store  OutboxStore
	logger *slog.Logger
}

func newEventEmitter(store OutboxStore) *eventEmitter {
	return &eventEmitter{store: store}
}

func (e *eventEmitter) emitAudit(ctx context.Context, eventType string, result *models.AuditResult) error {
	payload := AuditEventPayload{
		AuditID:       result.ID,
		ShipmentID:    result.ShipmentID,
		Version:       result.Version,
		Eligible:      result.Verdict.Eligible,
		Variance:      result.Verdict.Variance,
		ReasonCode:    result.Verdict.ReasonCode,
		LowConfidence: result.Verdict.LowConfidence,
		Fingerprint:   result.Fingerprint,
		RequestID:     requestcontext.RequestID(ctx),
	}
	e.log(ctx, eventType,
		"shipment_id", result.ShipmentID.String(),
		"audit_id", result.ID.String(),
		"eligible", result.Verdict.Eligible,
		"reason_code", string(result.Verdict.ReasonCode),
	)
	return e.append(ctx, aggregateAudit, result.ShipmentID.String(), eventType, payload, result.AuditedAt)
}

func (e *eventEmitter) emitClaim(ctx context.Context, c *models.Claim, t models.ClaimTransition) error {
	eventType := claimEventTypes[t.Action]
	payload := ClaimEventPayload{
		ClaimID:           c.ID,
		ShipmentID:        c.ShipmentID,
		AuditID:           c.AuditID,
		Action:            t.Action,
		From:              t.From,
		To:                t.To,
		ClaimAmount:       c.ClaimAmount,
		RecoveryAmount:    c.RecoveryAmount,
		CarrierCaseNumber: c.CarrierCaseNumber,
		Actor:             t.Actor,
		At:                t.At,
		RequestID:         requestcontext.RequestID(ctx),
	}
	e.log(ctx, eventType,
		"claim_id", c.ID.String(),
		"shipment_id", c.ShipmentID.String(),
		"from", string(t.From),
		"to", string(t.To),
		"actor", t.Actor,
	)
	return e.append(ctx, aggregateClaim, c.ShipmentID.String(), eventType, payload, t.At)
}

func (e *eventEmitter) append(ctx context.Context, aggregateType, aggregateID, eventType string, payload any, at time.Time) error {
	if e.store == nil {
		return nil
	}
	event, err := outbox.NewEvent(aggregateType, aggregateID, eventType, payload, at)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build event")
	}
	if err := e.store.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append event")
	}
	return nil
}

func (e *eventEmitter) log(ctx context.Context, event string, attributes ...any) {
	if e.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	attributes = append(attributes, "event", event, "log_type", "audit")
	e.logger.InfoContext(ctx, event, attributes...)
}
