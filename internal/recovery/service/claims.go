package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"carrieralpha/internal/recovery/models"
	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
	"carrieralpha/pkg/platform/sentinel"
	"carrieralpha/pkg/requestcontext"
)

// BatchSubmitResult is one claim's outcome within BatchSubmit.
type BatchSubmitResult struct {
	ClaimID id.ClaimID
	Claim   *models.Claim
	Err     error
}

// CreateDraft opens a DRAFT claim for a recorded, eligible audit.
func (s *Service) CreateDraft(ctx context.Context, audit *models.AuditResult) (*models.Claim, error) {
	if audit == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "audit result is required")
	}
	if !audit.Eligible() {
		return nil, dErrors.New(dErrors.CodeValidation, "claims can only be created from eligible audits").
			With("shipment_id", audit.ShipmentID).
			With("reason", audit.Verdict.FailureReason)
	}
	ctx, span := s.tracer.Start(ctx, "recovery.CreateDraft",
		trace.WithAttributes(attribute.String("shipment_id", audit.ShipmentID.String())))
	defer span.End()
	start := time.Now()

	now := requestcontext.Now(ctx)
	var created *models.Claim
	err := s.tx.RunInTx(withShardKey(ctx, audit.ShipmentID.String()), func(txCtx context.Context) error {
		stored, err := s.audits.Get(txCtx, audit.ShipmentID)
		if err != nil {
			return wrapAuditErr(err, audit.ShipmentID)
		}
		if stored.ID != audit.ID || stored.Fingerprint != audit.Fingerprint {
			return dErrors.New(dErrors.CodeConflict, "audit result does not match the recorded audit").
				With("shipment_id", audit.ShipmentID).
				With("audit_id", audit.ID)
		}
		c, err := s.createDraft(txCtx, stored, now)
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "claim already exists for shipment").
				With("shipment_id", audit.ShipmentID)
		}
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.incrementConflict("claim")
		}
		return nil, s.fail(span, err)
	}
	if s.metrics != nil {
		s.metrics.IncrementClaimCreated()
		s.metrics.IncrementTransition(string(models.ActionCreate), string(created.Status))
		s.metrics.ObserveClaimOp(string(models.ActionCreate), start)
	}
	return created, nil
}

// Submit moves a DRAFT claim to SUBMITTED.
func (s *Service) Submit(ctx context.Context, claimID id.ClaimID, carrierCaseNumber string) (*models.Claim, error) {
	now := requestcontext.Now(ctx)
	return s.transition(ctx, claimID, models.ActionSubmit, strings.TrimSpace(carrierCaseNumber),
		func(c *models.Claim) error { return c.CanApply(models.ActionSubmit) },
		func(c *models.Claim) { c.ApplySubmit(carrierCaseNumber, now) },
	)
}

// Dispute records the carrier's dispute of a SUBMITTED claim.
func (s *Service) Dispute(ctx context.Context, claimID id.ClaimID, reason string) (*models.Claim, error) {
	if err := models.ValidateDisputeReason(reason); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	return s.transition(ctx, claimID, models.ActionDispute, strings.TrimSpace(reason),
		func(c *models.Claim) error { return c.CanApply(models.ActionDispute) },
		func(c *models.Claim) { c.ApplyDispute(reason, now) },
	)
}

// Settle records the final outcome of a SUBMITTED or DISPUTED claim. The outcome and
// amount are validated before the claim is loaded.
func (s *Service) Settle(ctx context.Context, claimID id.ClaimID, outcome models.ClaimStatus, recovery id.Money, carrierCaseNumber string) (*models.Claim, error) {
	if err := models.ValidateSettlement(outcome, recovery); err != nil {
		return nil, err
	}
	action, _ := models.SettlementAction(outcome)
	now := requestcontext.Now(ctx)
	return s.transition(ctx, claimID, action, fmt.Sprintf("recovery=%s", recovery),
		func(c *models.Claim) error { return c.CanApply(action) },
		func(c *models.Claim) { c.ApplySettlement(outcome, recovery, carrierCaseNumber, now) },
	)
}

// BatchSubmit submits each claim independently and reports per-claim outcomes.
func (s *Service) BatchSubmit(ctx context.Context, claimIDs []id.ClaimID, carrierCaseNumber string) []BatchSubmitResult {
	results := make([]BatchSubmitResult, len(claimIDs))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, claimID := range claimIDs {
		results[i].ClaimID = claimID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = dErrors.Wrap(err, dErrors.CodeTimeout, "batch cancelled")
				return nil
			}
			results[i].Claim, results[i].Err = s.Submit(ctx, claimID, carrierCaseNumber)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) GetClaim(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	if claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "claim_id is required")
	}
	c, err := s.claims.FindByID(ctx, claimID)
	if err != nil {
		return nil, wrapClaimErr(err, claimID)
	}
	return c, nil
}

func (s *Service) GetClaimByShipment(ctx context.Context, shipmentID id.ShipmentID) (*models.Claim, error) {
	if shipmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "shipment_id is required")
	}
	c, err := s.claims.FindByShipment(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim not found").With("shipment_id", shipmentID)
		}
		return nil, translate(err, "failed to load claim")
	}
	return c, nil
}

// ClaimHistory returns the claim's transitions, oldest first.
func (s *Service) ClaimHistory(ctx context.Context, claimID id.ClaimID) ([]models.ClaimTransition, error) {
	if claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "claim_id is required")
	}
	history, err := s.claims.ListTransitions(ctx, claimID)
	if err != nil {
		return nil, wrapClaimErr(err, claimID)
	}
	return history, nil
}

// ensureClaim creates the DRAFT claim for an eligible audit or returns the existing one.
func (s *Service) ensureClaim(ctx context.Context, audit *models.AuditResult, now time.Time) (*models.Claim, bool, error) {
	c, err := s.createDraft(ctx, audit, now)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		return nil, false, err
	}
	existing, err := s.claims.FindByShipment(ctx, audit.ShipmentID)
	if err != nil {
		return nil, false, translate(err, "failed to load claim")
	}
	return existing, false, nil
}

// createDraft inserts the claim with its CREATE transition and event. A
// sentinel.ErrConflict from the store is returned unwrapped for the caller to decide.
func (s *Service) createDraft(ctx context.Context, audit *models.AuditResult, now time.Time) (*models.Claim, error) {
	c, err := models.NewDraftClaim(id.ClaimID(uuid.New()), audit, now)
	if err != nil {
		return nil, err
	}
	if err := s.claims.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, err
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "audit not found").With("shipment_id", audit.ShipmentID)
		}
		return nil, translate(err, "failed to create claim")
	}
	t := s.newTransition(ctx, c, models.ActionCreate, "", c.Reason, c.CreatedAt)
	if err := s.record(ctx, c, t); err != nil {
		return nil, err
	}
	if c.RequiresReview {
		s.logger.WarnContext(ctx, "claim requires review",
			"claim_id", c.ID.String(),
			"shipment_id", c.ShipmentID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return c, nil
}

// transition runs one lifecycle step under the store's lock and records its history
// and event in the same unit of work.
func (s *Service) transition(ctx context.Context, claimID id.ClaimID, action models.Action, detail string, validate func(*models.Claim) error, mutate func(*models.Claim)) (*models.Claim, error) {
	if claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "claim_id is required")
	}
	ctx, span := s.tracer.Start(ctx, "recovery.Claim."+strings.ToLower(string(action)),
		trace.WithAttributes(attribute.String("claim_id", claimID.String())))
	defer span.End()
	start := time.Now()

	var updated *models.Claim
	err := s.tx.RunInTx(withShardKey(ctx, claimID.String()), func(txCtx context.Context) error {
		var from models.ClaimStatus
		c, err := s.claims.Execute(txCtx, claimID,
			func(c *models.Claim) error {
				from = c.Status
				return validate(c)
			},
			mutate,
		)
		if err != nil {
			return wrapClaimErr(err, claimID)
		}
		t := s.newTransition(txCtx, c, action, from, detail, c.UpdatedAt)
		if err := s.record(txCtx, c, t); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(action), string(updated.Status))
		s.metrics.ObserveClaimOp(string(action), start)
	}
	span.SetAttributes(attribute.String("status", string(updated.Status)))
	return updated, nil
}

func (s *Service) newTransition(ctx context.Context, c *models.Claim, action models.Action, from models.ClaimStatus, detail string, at time.Time) models.ClaimTransition {
	return models.ClaimTransition{
		ID:         id.TransitionID(uuid.New()),
		ClaimID:    c.ID,
		ShipmentID: c.ShipmentID,
		Action:     action,
		From:       from,
		To:         c.Status,
		Actor:      requestcontext.Actor(ctx),
		Detail:     detail,
		At:         at,
	}
}

// record appends the transition and its outbox event.
func (s *Service) record(ctx context.Context, c *models.Claim, t models.ClaimTransition) error {
	if err := s.claims.AppendTransition(ctx, t); err != nil {
		return translate(err, "failed to record claim transition")
	}
	return s.events.emitClaim(ctx, c, t)
}
