package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"carrieralpha/internal/catalog"
	"carrieralpha/internal/eligibility"
	recoverymetrics "carrieralpha/internal/recovery/metrics"
	"carrieralpha/internal/recovery/models"
	auditstore "carrieralpha/internal/recovery/store/auditresult"
	claimstore "carrieralpha/internal/recovery/store/claim"
	"carrieralpha/internal/shipment"
	shipmentstore "carrieralpha/internal/shipment/store"
	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
	outboxmemory "carrieralpha/pkg/platform/outbox/store/memory"
	"carrieralpha/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	service   *Service
	shipments *shipmentstore.InMemoryStore
	audits    *auditstore.InMemoryStore
	claims    *claimstore.InMemoryStore
	outbox    *outboxmemory.InMemoryStore
	provider  *catalog.Provider
	metrics   *recoverymetrics.Metrics
	ny        *time.Location
	ctx       context.Context
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupSuite() {
	var err error
	s.ny, err = time.LoadLocation("America/New_York")
	s.Require().NoError(err)
}

func (s *ServiceSuite) SetupTest() {
	s.shipments = shipmentstore.NewInMemory()
	s.audits = auditstore.NewInMemory()
	s.claims = claimstore.NewInMemory()
	s.outbox = outboxmemory.NewInMemoryStore()
	s.provider = catalog.NewProvider(s.snapshot(10, 30))
	s.metrics = recoverymetrics.New(prometheus.NewRegistry())

	auditor, err := eligibility.NewAuditor(eligibility.DefaultPolicy())
	s.Require().NoError(err)
	s.service = New(s.shipments, s.audits, s.claims, s.provider, auditor,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithOutbox(s.outbox),
		WithAuditWorkers(4),
	)

	s.now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithActor(s.ctx, "ops@carrier-alpha")
	s.ctx = requestcontext.WithRequestID(s.ctx, "req-1")
}

// snapshot builds a one-service catalog whose priority overnight commit is hh:mm.
func (s *ServiceSuite) snapshot(hh, mm int) *catalog.Snapshot {
	since := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	snap, err := catalog.NewSnapshot("", []catalog.ServiceCommitment{
		{ID: id.CommitmentID(uuid.New()), Carrier: id.CarrierFedEx, ServiceType: "PRIORITY OVERNIGHT", Guaranteed: true,
			CommitType: catalog.CommitTimeDefinite, CommitTime: &catalog.ClockTime{Hour: hh, Minute: mm}, TransitDays: 1, ValidFrom: since},
	}, []catalog.ExceptionRule{
		{ID: id.ExceptionRuleID(uuid.New()), Carrier: id.CarrierFedEx, MatchType: catalog.MatchCode, MatchValue: "WX", Excusable: true, Category: catalog.CategoryWeather},
	})
	s.Require().NoError(err)
	return snap
}

func ptr(t time.Time) *time.Time { return &t }

// lateShipment ships Monday 09:00 New York and arrives Tuesday 11:15, 45 minutes past a 10:30 commit.
func (s *ServiceSuite) lateShipment() *shipment.Shipment {
	return &shipment.Shipment{
		ID:                  id.ShipmentID(uuid.New()),
		Carrier:             id.CarrierFedEx,
		TrackingNumber:      uuid.NewString()[:12],
		ServiceType:         "PRIORITY OVERNIGHT",
		ShippedAt:           ptr(time.Date(2024, 5, 6, 9, 0, 0, 0, s.ny)),
		ActualDelivery:      ptr(time.Date(2024, 5, 7, 11, 15, 0, 0, s.ny)),
		TotalCharged:        id.Cents(8450),
		Weight:              shipment.Weight{Value: 4, Unit: shipment.UnitPounds},
		OriginTimezone:      "America/New_York",
		DestinationTimezone: "America/New_York",
	}
}

// ingest stores sh so audits can reference it.
func (s *ServiceSuite) ingest(sh *shipment.Shipment) *shipment.Shipment {
	s.Require().NoError(s.service.IngestShipment(s.ctx, sh))
	return sh
}

func (s *ServiceSuite) eventTypes() []string {
	var types []string
	for _, e := range s.outbox.All() {
		types = append(types, e.Type)
	}
	return types
}

// TestAuditShipmentOpensDraftClaim covers the late-delivery path end to end.
//
// Justification:
//   - eligible audit and its DRAFT claim are written in one unit of work
//   - claim amount equals the verdict variance
//   - the CREATE transition and both events are recorded
func (s *ServiceSuite) TestAuditShipmentOpensDraftClaim() {
	out, err := s.service.AuditShipment(s.ctx, s.ingest(s.lateShipment()))
	s.Require().NoError(err)

	s.True(out.Recorded)
	s.True(out.ClaimCreated)
	s.True(out.Audit.Eligible())
	s.Equal(1, out.Audit.Version)
	s.Require().NotNil(out.Claim)
	s.Equal(models.ClaimDraft, out.Claim.Status)
	s.Equal(id.Cents(8450), out.Claim.ClaimAmount)
	s.Equal(id.Money(0), out.Claim.RecoveryAmount)
	s.Equal(out.Audit.ID, out.Claim.AuditID)
	s.True(out.Claim.CreatedAt.Equal(s.now))

	history, err := s.service.ClaimHistory(s.ctx, out.Claim.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(models.ActionCreate, history[0].Action)
	s.Equal(models.ClaimDraft, history[0].To)
	s.Equal("ops@carrier-alpha", history[0].Actor)

	s.Equal([]string{EventAuditRecorded, EventClaimCreated}, s.eventTypes())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ClaimsCreated))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Audits.WithLabelValues(string(eligibility.ReasonLate))))
}

func (s *ServiceSuite) TestExcusedAuditHasNoClaim() {
	sh := s.lateShipment()
	sh.ExceptionSignal = "WX"
	s.ingest(sh)

	out, err := s.service.AuditShipment(s.ctx, sh)
	s.Require().NoError(err)
	s.False(out.Audit.Eligible())
	s.Equal(catalog.CategoryWeather, out.Audit.Verdict.ExceptionCategory)
	s.Nil(out.Claim)

	_, err = s.service.GetClaimByShipment(s.ctx, sh.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// TestReauditIsIdempotent checks that an identical verdict confirms the stored audit.
func (s *ServiceSuite) TestReauditIsIdempotent() {
	sh := s.ingest(s.lateShipment())
	first, err := s.service.AuditShipment(s.ctx, sh)
	s.Require().NoError(err)

	later := requestcontext.WithTime(s.ctx, s.now.Add(time.Hour))
	second, err := s.service.AuditShipment(later, sh)
	s.Require().NoError(err)

	s.False(second.Recorded)
	s.False(second.ClaimCreated)
	s.Equal(first.Audit.ID, second.Audit.ID)
	s.Equal(first.Claim.ID, second.Claim.ID)
	s.Len(s.outbox.All(), 2)
}

func (s *ServiceSuite) TestReauditRecoversMissingClaim() {
	sh := s.ingest(s.lateShipment())
	auditor, err := eligibility.NewAuditor(eligibility.DefaultPolicy())
	s.Require().NoError(err)
	verdict, err := auditor.Audit(sh, s.provider.Current())
	s.Require().NoError(err)
	result, err := models.NewAuditResult(id.AuditID(uuid.New()), verdict, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.audits.Record(s.ctx, result))

	out, err := s.service.AuditShipment(s.ctx, sh)
	s.Require().NoError(err)
	s.False(out.Recorded)
	s.True(out.ClaimCreated)
	s.Equal(result.ID, out.Claim.AuditID)
}

func (s *ServiceSuite) TestReauditWithDifferentVerdictConflicts() {
	sh := s.ingest(s.lateShipment())
	_, err := s.service.AuditShipment(s.ctx, sh)
	s.Require().NoError(err)

	s.provider.Swap(s.snapshot(12, 0))
	_, err = s.service.AuditShipment(s.ctx, sh)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	details := dErrors.DetailsOf(err)
	s.NotEmpty(details["existing_fingerprint"])
	s.NotEmpty(details["new_fingerprint"])
	s.NotEqual(details["existing_fingerprint"], details["new_fingerprint"])
}

func (s *ServiceSuite) TestMissingShipDateIsValidationError() {
	sh := s.lateShipment()
	sh.ShippedAt = nil

	_, err := s.service.AuditShipment(s.ctx, sh)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = s.service.GetAudit(s.ctx, sh.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) recordEligibleAudit() *models.AuditResult {
	sh := s.ingest(s.lateShipment())
	auditor, err := eligibility.NewAuditor(eligibility.DefaultPolicy())
	s.Require().NoError(err)
	verdict, err := auditor.Audit(sh, s.provider.Current())
	s.Require().NoError(err)
	s.Require().True(verdict.Eligible)
	result, err := models.NewAuditResult(id.AuditID(uuid.New()), verdict, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.audits.Record(s.ctx, result))
	return result
}

// TestConcurrentCreateDraft races CreateDraft for one eligible audit.
//
// Justification:
//   - exactly one claim exists afterwards
//   - every other caller receives a conflict
func (s *ServiceSuite) TestConcurrentCreateDraft() {
	audit := s.recordEligibleAudit()
	const callers = 16

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	start := make(chan struct{})
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.service.CreateDraft(s.ctx, audit)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(callers-1), conflicts.Load())
	c, err := s.service.GetClaimByShipment(s.ctx, audit.ShipmentID)
	s.Require().NoError(err)
	s.Equal(audit.ID, c.AuditID)
}

func (s *ServiceSuite) TestCreateDraftRejections() {
	s.Run("ineligible audit", func() {
		audit := s.recordEligibleAudit()
		audit.Verdict.Eligible = false
		_, err := s.service.CreateDraft(s.ctx, audit)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unrecorded audit", func() {
		sh := s.lateShipment()
		result, err := models.NewAuditResult(id.AuditID(uuid.New()), eligibility.Verdict{
			ShipmentID: sh.ID, Eligible: true, Variance: id.Cents(10),
		}, s.now)
		s.Require().NoError(err)
		_, err = s.service.CreateDraft(s.ctx, result)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("nil audit", func() {
		_, err := s.service.CreateDraft(s.ctx, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) draftClaim() *models.Claim {
	out, err := s.service.AuditShipment(s.ctx, s.ingest(s.lateShipment()))
	s.Require().NoError(err)
	s.Require().NotNil(out.Claim)
	return out.Claim
}

func (s *ServiceSuite) TestLifecycle() {
	c := s.draftClaim()

	submitted, err := s.service.Submit(s.ctx, c.ID, " FX-123 ")
	s.Require().NoError(err)
	s.Equal(models.ClaimSubmitted, submitted.Status)
	s.Equal("FX-123", submitted.CarrierCaseNumber)
	s.Require().NotNil(submitted.SubmittedAt)

	disputed, err := s.service.Dispute(s.ctx, c.ID, "carrier cites weather")
	s.Require().NoError(err)
	s.Equal(models.ClaimDisputed, disputed.Status)
	s.Equal("carrier cites weather", disputed.DisputeReason)

	settled, err := s.service.Settle(s.ctx, c.ID, models.ClaimRecovered, id.Cents(8000), "")
	s.Require().NoError(err)
	s.Equal(models.ClaimRecovered, settled.Status)
	s.Equal(id.Cents(8000), settled.RecoveryAmount)
	s.Equal("FX-123", settled.CarrierCaseNumber)
	s.Require().NotNil(settled.SettledAt)

	history, err := s.service.ClaimHistory(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 4)
	s.Equal(models.ClaimSubmitted, history[2].From)
	s.Equal(models.ClaimDisputed, history[2].To)
	s.Equal(models.ActionRecover, history[3].Action)

	s.Equal([]string{
		EventAuditRecorded, EventClaimCreated, EventClaimSubmitted, EventClaimDisputed, EventClaimRecovered,
	}, s.eventTypes())
	// audit and claim events share the shipment as partition key
	for _, e := range s.outbox.All() {
		s.Equal(c.ShipmentID.String(), e.AggregateID, e.Type)
	}
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Transitions.WithLabelValues("RECOVER", "RECOVERED")))

	s.Run("terminal claims reject further actions", func() {
		_, err := s.service.Settle(s.ctx, c.ID, models.ClaimDenied, 0, "")
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
		_, err = s.service.Submit(s.ctx, c.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))

		got, err := s.service.GetClaim(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.ClaimRecovered, got.Status)
		history, err := s.service.ClaimHistory(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Len(history, 4)
	})
}

// TestDeniedSettlementMustCarryZeroRecovery: DENIED with a recovery amount is a
// validation error no matter what state the claim is in.
func (s *ServiceSuite) TestDeniedSettlementMustCarryZeroRecovery() {
	c := s.draftClaim()
	_, err := s.service.Submit(s.ctx, c.ID, "")
	s.Require().NoError(err)

	_, err = s.service.Settle(s.ctx, c.ID, models.ClaimDenied, id.Cents(50), "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Settle(s.ctx, id.ClaimID(uuid.New()), models.ClaimDenied, id.Cents(50), "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	got, err := s.service.GetClaim(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.ClaimSubmitted, got.Status)

	denied, err := s.service.Settle(s.ctx, c.ID, models.ClaimDenied, 0, "")
	s.Require().NoError(err)
	s.Equal(models.ClaimDenied, denied.Status)
}

func (s *ServiceSuite) TestTransitionErrors() {
	c := s.draftClaim()

	_, err := s.service.Dispute(s.ctx, c.ID, "too early")
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	s.Equal(string(models.ClaimDraft), dErrors.DetailsOf(err)["status"])

	_, err = s.service.Dispute(s.ctx, c.ID, "   ")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Submit(s.ctx, id.ClaimID(uuid.New()), "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Settle(s.ctx, c.ID, models.ClaimSubmitted, 0, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestBatchSubmit() {
	a := s.draftClaim()
	b := s.draftClaim()
	missing := id.ClaimID(uuid.New())

	results := s.service.BatchSubmit(s.ctx, []id.ClaimID{a.ID, missing, b.ID}, "BATCH-1")
	s.Require().Len(results, 3)

	s.NoError(results[0].Err)
	s.Equal(models.ClaimSubmitted, results[0].Claim.Status)
	s.True(dErrors.HasCode(results[1].Err, dErrors.CodeNotFound))
	s.Equal(missing, results[1].ClaimID)
	s.NoError(results[2].Err)
	s.Equal("BATCH-1", results[2].Claim.CarrierCaseNumber)
}

func (s *ServiceSuite) TestAuditBatch() {
	bad := s.lateShipment()
	bad.ShippedAt = nil
	onTime := s.lateShipment()
	onTime.ActualDelivery = ptr(time.Date(2024, 5, 7, 10, 0, 0, 0, s.ny))
	s.ingest(onTime)
	late := s.ingest(s.lateShipment())
	unknown := s.lateShipment()

	results := s.service.AuditBatch(s.ctx, []*shipment.Shipment{late, bad, onTime, unknown})
	s.Require().Len(results, 4)

	s.Require().NoError(results[0].Err)
	s.True(results[0].Outcome.ClaimCreated)
	s.True(dErrors.HasCode(results[1].Err, dErrors.CodeValidation))
	s.Equal(bad.ID, results[1].ShipmentID)
	s.Require().NoError(results[2].Err)
	s.Equal(eligibility.ReasonOnTime, results[2].Outcome.Audit.Verdict.ReasonCode)
	s.True(dErrors.HasCode(results[3].Err, dErrors.CodeNotFound))
}

// TestAuditRequiresIngestedShipment covers the shipment as the root of the ledgers.
//
// Justification:
//   - an unknown shipment is NotFound, matching the Postgres foreign key
//   - nothing is recorded: no audit, no claim, no events
func (s *ServiceSuite) TestAuditRequiresIngestedShipment() {
	sh := s.lateShipment()

	_, err := s.service.AuditShipment(s.ctx, sh)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal(sh.ID.String(), dErrors.DetailsOf(err)["shipment_id"])

	_, err = s.service.GetAudit(s.ctx, sh.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.GetClaimByShipment(s.ctx, sh.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.outbox.All())
	s.Equal(0.0, testutil.ToFloat64(s.metrics.ClaimsCreated))
}

func (s *ServiceSuite) TestIngestAndAuditStored() {
	sh := s.lateShipment()
	s.Require().NoError(s.service.IngestShipment(s.ctx, sh))

	err := s.service.IngestShipment(s.ctx, sh)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	out, err := s.service.AuditStored(s.ctx, sh.ID)
	s.Require().NoError(err)
	s.True(out.ClaimCreated)

	_, err = s.service.AuditStored(s.ctx, id.ShipmentID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// TestCorrectAudit covers the versioned replace discipline.
//
// Justification:
//   - a changed verdict replaces the entry in place with version+1
//   - stale expected versions are rejected
//   - a correction that turns the verdict eligible opens the DRAFT claim with it
//   - corrections are refused while a claim references the audit
func (s *ServiceSuite) TestCorrectAudit() {
	sh := s.lateShipment()
	sh.ActualDelivery = ptr(time.Date(2024, 5, 7, 10, 0, 0, 0, s.ny))
	s.Require().NoError(s.service.IngestShipment(s.ctx, sh))
	first, err := s.service.AuditStored(s.ctx, sh.ID)
	s.Require().NoError(err)
	s.False(first.Audit.Eligible())

	s.Run("unchanged verdict is a no-op", func() {
		same, err := s.service.CorrectAudit(s.ctx, sh.ID, 1)
		s.Require().NoError(err)
		s.Equal(1, same.Version)
	})

	s.provider.Swap(s.snapshot(9, 30))

	s.Run("stale version", func() {
		_, err := s.service.CorrectAudit(s.ctx, sh.ID, 3)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("changed verdict replaces", func() {
		corrected, err := s.service.CorrectAudit(s.ctx, sh.ID, 1)
		s.Require().NoError(err)
		s.Equal(2, corrected.Version)
		s.Equal(first.Audit.ID, corrected.ID)
		s.True(corrected.Eligible())

		stored, err := s.service.GetAudit(s.ctx, sh.ID)
		s.Require().NoError(err)
		s.Equal(corrected.Fingerprint, stored.Fingerprint)

		claim, err := s.service.GetClaimByShipment(s.ctx, sh.ID)
		s.Require().NoError(err)
		s.Equal(models.ClaimDraft, claim.Status)
		s.Equal(corrected.ID, claim.AuditID)
		s.Equal(corrected.Verdict.Variance, claim.ClaimAmount)
		s.Equal([]string{EventAuditRecorded, EventAuditCorrected, EventClaimCreated}, s.eventTypes())
		s.Equal(1.0, testutil.ToFloat64(s.metrics.ClaimsCreated))
	})

	s.Run("referenced audit cannot be corrected", func() {
		s.provider.Swap(s.snapshot(10, 30))
		_, err = s.service.CorrectAudit(s.ctx, sh.ID, 2)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.NotEmpty(dErrors.DetailsOf(err)["claim_id"])
	})
}

func (s *ServiceSuite) TestCancelledContextTimesOut() {
	sh := s.ingest(s.lateShipment())
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.service.AuditShipment(ctx, sh)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}
