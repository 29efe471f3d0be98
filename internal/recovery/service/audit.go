package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"carrieralpha/internal/eligibility"
	"carrieralpha/internal/recovery/models"
	"carrieralpha/internal/shipment"
	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
	"carrieralpha/pkg/platform/sentinel"
	"carrieralpha/pkg/requestcontext"
)

// AuditOutcome is the result of auditing one shipment.
type AuditOutcome struct {
	Audit *models.AuditResult `json:"audit"`
	Claim *models.Claim       `json:"claim,omitempty"`
	// Recorded is false when an identical audit was already on the ledger.
	Recorded     bool `json:"recorded"`
	ClaimCreated bool `json:"claim_created"`
}

// BatchAuditResult is one shipment's outcome within AuditBatch.
type BatchAuditResult struct {
	ShipmentID id.ShipmentID
	Outcome    *AuditOutcome
	Err        error
}

// IngestShipment validates and stores a normalized shipment record.
func (s *Service) IngestShipment(ctx context.Context, sh *shipment.Shipment) error {
	if err := sh.Validate(); err != nil {
		return err
	}
	if err := s.shipments.Save(ctx, sh); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "shipment already recorded").
				With("shipment_id", sh.ID).
				With("tracking_number", sh.TrackingNumber)
		}
		return translate(err, "failed to store shipment")
	}
	s.logger.InfoContext(ctx, "shipment ingested",
		"shipment_id", sh.ID.String(),
		"carrier", sh.Carrier.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// AuditShipment audits a shipment against the current catalog, records the result
// and opens a DRAFT claim when it is eligible, all in one unit of work.
//
// Re-auditing with an identical verdict confirms the stored result and creates the
// claim if it is missing. A different verdict is a conflict; use CorrectAudit.
func (s *Service) AuditShipment(ctx context.Context, sh *shipment.Shipment) (*AuditOutcome, error) {
	if sh == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "shipment is required")
	}
	ctx, span := s.tracer.Start(ctx, "recovery.AuditShipment",
		trace.WithAttributes(attribute.String("shipment_id", sh.ID.String())))
	defer span.End()
	start := time.Now()

	verdict, err := s.evaluate(ctx, sh)
	if err != nil {
		return nil, s.fail(span, err)
	}

	now := requestcontext.Now(ctx)
	out := &AuditOutcome{}
	err = s.tx.RunInTx(withShardKey(ctx, sh.ID.String()), func(txCtx context.Context) error {
		if _, err := s.loadShipment(txCtx, sh.ID); err != nil {
			return err
		}
		result, recorded, err := s.recordAudit(txCtx, verdict, now)
		if err != nil {
			return err
		}
		out.Audit, out.Recorded = result, recorded
		if recorded {
			if err := s.events.emitAudit(txCtx, EventAuditRecorded, result); err != nil {
				return err
			}
		}
		if !result.Eligible() {
			return nil
		}
		claim, created, err := s.ensureClaim(txCtx, result, now)
		if err != nil {
			return err
		}
		out.Claim, out.ClaimCreated = claim, created
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.incrementConflict("audit")
		}
		return nil, s.fail(span, err)
	}

	if s.metrics != nil {
		s.metrics.ObserveAudit(start)
		if out.Recorded {
			s.metrics.IncrementAudit(string(verdict.ReasonCode), verdict.LowConfidence)
		}
		if out.ClaimCreated {
			s.metrics.IncrementClaimCreated()
			s.metrics.IncrementTransition(string(models.ActionCreate), string(out.Claim.Status))
		}
	}
	span.SetAttributes(
		attribute.Bool("eligible", out.Audit.Eligible()),
		attribute.Bool("recorded", out.Recorded),
		attribute.Bool("claim_created", out.ClaimCreated),
	)
	return out, nil
}

// AuditStored loads a previously ingested shipment and audits it.
func (s *Service) AuditStored(ctx context.Context, shipmentID id.ShipmentID) (*AuditOutcome, error) {
	sh, err := s.loadShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	return s.AuditShipment(ctx, sh)
}

// AuditBatch audits independent shipments in parallel. A failure for one shipment
// never affects the others; results keep the input order.
func (s *Service) AuditBatch(ctx context.Context, shipments []*shipment.Shipment) []BatchAuditResult {
	results := make([]BatchAuditResult, len(shipments))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, sh := range shipments {
		if sh != nil {
			results[i].ShipmentID = sh.ID
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = dErrors.Wrap(err, dErrors.CodeTimeout, "batch cancelled")
				return nil
			}
			results[i].Outcome, results[i].Err = s.AuditShipment(ctx, sh)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// GetAudit returns the recorded audit for a shipment.
func (s *Service) GetAudit(ctx context.Context, shipmentID id.ShipmentID) (*models.AuditResult, error) {
	if shipmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "shipment_id is required")
	}
	result, err := s.audits.Get(ctx, shipmentID)
	if err != nil {
		return nil, wrapAuditErr(err, shipmentID)
	}
	return result, nil
}

// CorrectAudit re-audits a stored shipment against the current catalog and replaces
// the ledger entry at expectedVersion. Corrections are refused while a claim
// references the audit. An unchanged verdict returns the current entry. When the
// resulting entry is eligible its DRAFT claim is opened in the same unit of work.
func (s *Service) CorrectAudit(ctx context.Context, shipmentID id.ShipmentID, expectedVersion int) (*models.AuditResult, error) {
	ctx, span := s.tracer.Start(ctx, "recovery.CorrectAudit",
		trace.WithAttributes(attribute.String("shipment_id", shipmentID.String())))
	defer span.End()

	sh, err := s.loadShipment(ctx, shipmentID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	verdict, err := s.evaluate(ctx, sh)
	if err != nil {
		return nil, s.fail(span, err)
	}

	now := requestcontext.Now(ctx)
	var (
		corrected *models.AuditResult
		claim     *models.Claim
	)
	err = s.tx.RunInTx(withShardKey(ctx, shipmentID.String()), func(txCtx context.Context) error {
		current, err := s.audits.Get(txCtx, shipmentID)
		if err != nil {
			return wrapAuditErr(err, shipmentID)
		}
		if current.Version != expectedVersion {
			return dErrors.New(dErrors.CodeConflict, "audit version does not match").
				With("shipment_id", shipmentID).
				With("expected_version", expectedVersion).
				With("current_version", current.Version)
		}
		existing, err := s.claims.FindByShipment(txCtx, shipmentID)
		switch {
		case err == nil:
			return dErrors.Wrap(sentinel.ErrReferenced, dErrors.CodeConflict, "audit is referenced by a claim").
				With("shipment_id", shipmentID).
				With("claim_id", existing.ID)
		case !errors.Is(err, sentinel.ErrNotFound):
			return translate(err, "failed to check claims")
		}
		corrected = current
		if current.Fingerprint != verdict.Fingerprint() {
			next, err := current.Corrected(verdict, now)
			if err != nil {
				return err
			}
			if err := s.audits.Replace(txCtx, next, current.Version); err != nil {
				return wrapAuditErr(err, shipmentID)
			}
			if err := s.events.emitAudit(txCtx, EventAuditCorrected, next); err != nil {
				return err
			}
			corrected = next
		}
		if !corrected.Eligible() {
			return nil
		}
		claim, err = s.createDraft(txCtx, corrected, now)
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "claim already exists for shipment").With("shipment_id", shipmentID)
		}
		return err
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.incrementConflict("audit")
		}
		return nil, s.fail(span, err)
	}
	if claim != nil && s.metrics != nil {
		s.metrics.IncrementClaimCreated()
		s.metrics.IncrementTransition(string(models.ActionCreate), string(claim.Status))
	}
	s.logger.InfoContext(ctx, "audit corrected",
		"shipment_id", shipmentID.String(),
		"version", corrected.Version,
		"eligible", corrected.Eligible(),
		"claim_created", claim != nil,
		"request_id", requestcontext.RequestID(ctx),
	)
	return corrected, nil
}

// evaluate runs the pure auditor against the current catalog snapshot.
func (s *Service) evaluate(ctx context.Context, sh *shipment.Shipment) (eligibility.Verdict, error) {
	snap := s.catalogs.Current()
	if snap == nil {
		return eligibility.Verdict{}, dErrors.New(dErrors.CodeInternal, "no catalog loaded")
	}
	verdict, err := s.auditor.Audit(sh, snap)
	if err != nil {
		return eligibility.Verdict{}, err
	}
	if verdict.LowConfidence {
		s.logger.WarnContext(ctx, "low-confidence timezone assumption",
			"shipment_id", sh.ID.String(),
			"assumption", string(verdict.TimezoneAssumption),
			"confidence", verdict.TimezoneConfidence,
			"late_by_seconds", verdict.LateBySeconds,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return verdict, nil
}

// recordAudit inserts the first ledger entry, or confirms an identical existing one.
func (s *Service) recordAudit(ctx context.Context, verdict eligibility.Verdict, now time.Time) (*models.AuditResult, bool, error) {
	candidate, err := models.NewAuditResult(id.AuditID(uuid.New()), verdict, now)
	if err != nil {
		return nil, false, err
	}
	err = s.audits.Record(ctx, candidate)
	if err == nil {
		return candidate, true, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.New(dErrors.CodeNotFound, "shipment not found").With("shipment_id", verdict.ShipmentID)
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		return nil, false, translate(err, "failed to record audit")
	}
	existing, err := s.audits.Get(ctx, verdict.ShipmentID)
	if err != nil {
		return nil, false, wrapAuditErr(err, verdict.ShipmentID)
	}
	if existing.Fingerprint != candidate.Fingerprint {
		return nil, false, dErrors.New(dErrors.CodeConflict, "shipment already audited with a different verdict").
			With("shipment_id", verdict.ShipmentID).
			With("existing_fingerprint", existing.Fingerprint).
			With("new_fingerprint", candidate.Fingerprint).
			With("version", existing.Version)
	}
	return existing, false, nil
}

func (s *Service) loadShipment(ctx context.Context, shipmentID id.ShipmentID) (*shipment.Shipment, error) {
	if shipmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "shipment_id is required")
	}
	sh, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "shipment not found").With("shipment_id", shipmentID)
		}
		return nil, translate(err, "failed to load shipment")
	}
	return sh, nil
}

// fail records err on the span and returns it.
func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

func (s *Service) incrementConflict(resource string) {
	if s.metrics != nil {
		s.metrics.IncrementConflict(resource)
	}
}
