package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"carrieralpha/internal/eligibility"
	"carrieralpha/internal/recovery/handler/mocks"
	"carrieralpha/internal/recovery/models"
	"carrieralpha/internal/recovery/service"
	"carrieralpha/internal/shipment"
	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
	"carrieralpha/pkg/requestcontext"
	"carrieralpha/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
	now     time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
	s.now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) claim(status models.ClaimStatus) *models.Claim {
	return &models.Claim{
		ID:          id.ClaimID(uuid.New()),
		ShipmentID:  id.ShipmentID(uuid.New()),
		AuditID:     id.AuditID(uuid.New()),
		Status:      status,
		ClaimAmount: id.Cents(8450),
		CreatedAt:   s.now,
		UpdatedAt:   s.now,
	}
}

func (s *HandlerSuite) TestIngestShipment() {
	testutil.Given(s.T(), "a normalized shipment record", func(t *testing.T) {
		body := map[string]any{
			"carrier":              " fedex ",
			"tracking_number":      "794600000001",
			"service_type":         "PRIORITY OVERNIGHT",
			"shipped_at":           "2024-05-06T09:00:00-04:00",
			"actual_delivery":      "2024-05-07T11:15:00-04:00",
			"total_charged":        "84.50",
			"weight":               map[string]any{"value": 4, "unit": "lb"},
			"destination_timezone": "America/New_York",
			"surcharges":           []string{"residential", "RESIDENTIAL", "fuel"},
		}
		var got *shipment.Shipment
		s.service.EXPECT().IngestShipment(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, sh *shipment.Shipment) error {
				got = sh
				return nil
			})

		rr := s.do(testutil.NewJSONRequest(t, http.MethodPost, "/shipments", body))

		testutil.Then(t, "the shipment is stored normalized", func(t *testing.T) {
			testutil.AssertStatus(t, rr, http.StatusCreated)
			s.Require().NotNil(got)
			s.False(got.ID.IsNil())
			s.Equal(id.CarrierFedEx, got.Carrier)
			s.Equal(id.Cents(8450), got.TotalCharged)
			s.Equal(shipment.UnitPounds, got.Weight.Unit)
			s.Equal([]string{"RESIDENTIAL", "FUEL"}, got.Surcharges)
			s.Equal(time.UTC, got.ShippedAt.Location())
		})
	})

	testutil.Given(s.T(), "an unknown field", func(t *testing.T) {
		rr := s.do(testutil.NewRequestWithBody(t, http.MethodPost, "/shipments",
			`{"carrier":"FEDEX","tracking_number":"1","service_type":"X","bogus":true}`))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	testutil.Given(s.T(), "a missing carrier", func(t *testing.T) {
		rr := s.do(testutil.NewJSONRequest(t, http.MethodPost, "/shipments", map[string]any{
			"tracking_number": "1", "service_type": "X",
		}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	testutil.Given(s.T(), "a duplicate tracking number", func(t *testing.T) {
		s.service.EXPECT().IngestShipment(gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeConflict, "shipment already recorded"))
		rr := s.do(testutil.NewJSONRequest(t, http.MethodPost, "/shipments", map[string]any{
			"carrier": "UPS", "tracking_number": "1Z", "service_type": "GROUND",
		}))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, string(dErrors.CodeConflict))
	})
}

func (s *HandlerSuite) TestAuditShipment() {
	shipmentID := id.ShipmentID(uuid.New())
	audit := &models.AuditResult{
		ID:         id.AuditID(uuid.New()),
		ShipmentID: shipmentID,
		Verdict:    eligibility.Verdict{ShipmentID: shipmentID, Eligible: true, Variance: id.Cents(8450), ReasonCode: eligibility.ReasonLate},
		Version:    1,
		AuditedAt:  s.now,
	}
	claim := s.claim(models.ClaimDraft)

	s.Run("first audit is created", func() {
		s.service.EXPECT().AuditStored(gomock.Any(), shipmentID).
			Return(&service.AuditOutcome{Audit: audit, Claim: claim, Recorded: true, ClaimCreated: true}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/shipments/"+shipmentID.String()+"/audit"))
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[AuditResponse](s.T(), rr)
		s.True(resp.ClaimCreated)
		s.Equal(id.Cents(8450), resp.Audit.Verdict.Variance)
		s.Equal(claim.ID, resp.Claim.ID)
	})

	s.Run("confirmation of an existing audit", func() {
		s.service.EXPECT().AuditStored(gomock.Any(), shipmentID).
			Return(&service.AuditOutcome{Audit: audit, Claim: claim}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/shipments/"+shipmentID.String()+"/audit"))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("conflicting verdict", func() {
		s.service.EXPECT().AuditStored(gomock.Any(), shipmentID).
			Return(nil, dErrors.New(dErrors.CodeConflict, "shipment already audited with a different verdict").
				With("existing_fingerprint", "aaa").With("new_fingerprint", "bbb"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/shipments/"+shipmentID.String()+"/audit"))
		testutil.AssertStatus(s.T(), rr, http.StatusConflict)
		resp := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal("aaa", resp.Details["existing_fingerprint"])
	})

	s.Run("malformed shipment id", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/shipments/not-a-uuid/audit"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("internal errors hide their message", func() {
		s.service.EXPECT().GetAudit(gomock.Any(), shipmentID).
			Return(nil, dErrors.New(dErrors.CodeInternal, "connection refused on 10.0.0.3"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/shipments/"+shipmentID.String()+"/audit"))
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		resp := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Empty(resp.ErrorDescription)
	})
}

func (s *HandlerSuite) TestCreateClaimFromRecordedAudit() {
	shipmentID := id.ShipmentID(uuid.New())
	audit := &models.AuditResult{ID: id.AuditID(uuid.New()), ShipmentID: shipmentID, Version: 1}
	claim := s.claim(models.ClaimDraft)

	gomock.InOrder(
		s.service.EXPECT().GetAudit(gomock.Any(), shipmentID).Return(audit, nil),
		s.service.EXPECT().CreateDraft(gomock.Any(), audit).Return(claim, nil),
	)
	rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/shipments/"+shipmentID.String()+"/claim"))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "status", string(models.ClaimDraft))
}

func (s *HandlerSuite) TestCorrectAudit() {
	shipmentID := id.ShipmentID(uuid.New())
	s.service.EXPECT().CorrectAudit(gomock.Any(), shipmentID, 1).
		Return(&models.AuditResult{ShipmentID: shipmentID, Version: 2}, nil)

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/shipments/"+shipmentID.String()+"/audit/correct",
		map[string]any{"expected_version": 1}))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "version", float64(2))

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/shipments/"+shipmentID.String()+"/audit/correct",
		map[string]any{"expected_version": 0}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
}

func (s *HandlerSuite) TestClaimTransitions() {
	c := s.claim(models.ClaimSubmitted)
	base := "/claims/" + c.ID.String()

	s.Run("submit without a body", func() {
		s.service.EXPECT().Submit(gomock.Any(), c.ID, "").Return(c, nil)
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, base+"/submit"))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("submit with a case number", func() {
		s.service.EXPECT().Submit(gomock.Any(), c.ID, "FX-1").Return(c, nil)
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/submit", map[string]any{"carrier_case_number": " FX-1 "}))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("illegal transition maps to 409", func() {
		s.service.EXPECT().Submit(gomock.Any(), c.ID, "").
			Return(nil, dErrors.New(dErrors.CodeIllegalTransition, "cannot submit claim in status SUBMITTED").With("status", "SUBMITTED"))
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, base+"/submit"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeIllegalTransition))
	})

	s.Run("dispute requires a reason", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/dispute", map[string]any{"reason": " "}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("dispute", func() {
		s.service.EXPECT().Dispute(gomock.Any(), c.ID, "weather").Return(c, nil)
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/dispute", map[string]any{"reason": "weather"}))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("denied settlement with recovery never reaches the service", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/settle",
			map[string]any{"outcome": "DENIED", "recovery_amount": "0.50"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("settle recovered", func() {
		s.service.EXPECT().Settle(gomock.Any(), c.ID, models.ClaimRecovered, id.Cents(8000), "FX-9").Return(c, nil)
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/settle",
			map[string]any{"outcome": "recovered", "recovery_amount": "80.00", "carrier_case_number": "FX-9"}))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("unknown claim", func() {
		missing := id.ClaimID(uuid.New())
		s.service.EXPECT().GetClaim(gomock.Any(), missing).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "claim not found"))
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/claims/"+missing.String()))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

func (s *HandlerSuite) TestClaimHistory() {
	c := s.claim(models.ClaimSubmitted)
	history := []models.ClaimTransition{
		{ID: id.TransitionID(uuid.New()), ClaimID: c.ID, Action: models.ActionCreate, To: models.ClaimDraft, At: s.now},
		{ID: id.TransitionID(uuid.New()), ClaimID: c.ID, Action: models.ActionSubmit, From: models.ClaimDraft, To: models.ClaimSubmitted, At: s.now},
	}
	s.service.EXPECT().ClaimHistory(gomock.Any(), c.ID).Return(history, nil)

	req := testutil.WithActor(testutil.NewRequest(s.T(), http.MethodGet, "/claims/"+c.ID.String()+"/transitions"), "ops")
	rr := s.do(req)
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[TransitionsResponse](s.T(), rr)
	s.Equal(c.ID, resp.ClaimID)
	s.Require().Len(resp.Transitions, 2)
	s.Equal(models.ActionSubmit, resp.Transitions[1].Action)
}

// TestRequestContextReachesService checks that request metadata set by the
// middleware chain is visible to the service through ctx.
func (s *HandlerSuite) TestRequestContextReachesService() {
	c := s.claim(models.ClaimSubmitted)
	c.SubmittedAt = &s.now
	s.service.EXPECT().Submit(gomock.Any(), c.ID, "FX-7").
		DoAndReturn(func(ctx context.Context, _ id.ClaimID, _ string) (*models.Claim, error) {
			s.Equal("req-42", requestcontext.RequestID(ctx))
			s.Equal("ops", requestcontext.Actor(ctx))
			s.True(requestcontext.Now(ctx).Equal(s.now))
			return c, nil
		})

	body := testutil.MustMarshal(s.T(), map[string]any{"carrier_case_number": "FX-7"})
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/claims/"+c.ID.String()+"/submit", body)
	req = testutil.WithActor(testutil.WithRequestID(testutil.WithTime(req, s.now), "req-42"), "ops")

	rr := s.do(req)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONHasKey(s.T(), rr, "submitted_at")
}

func (s *HandlerSuite) TestBatchSubmit() {
	ok := s.claim(models.ClaimSubmitted)
	bad := id.ClaimID(uuid.New())

	s.service.EXPECT().BatchSubmit(gomock.Any(), []id.ClaimID{ok.ID, bad}, "B-1").
		Return([]service.BatchSubmitResult{
			{ClaimID: ok.ID, Claim: ok},
			{ClaimID: bad, Err: dErrors.New(dErrors.CodeNotFound, "claim not found")},
		})

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claims/submit-batch", map[string]any{
		"claim_ids":           []string{ok.ID.String(), bad.String(), ok.ID.String()},
		"carrier_case_number": "B-1",
	}))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[BatchSubmitResponse](s.T(), rr)
	s.Equal(1, resp.Submitted)
	s.Equal(1, resp.Failed)
	s.Equal(string(dErrors.CodeNotFound), resp.Results[1].Error)

	s.Run("invalid id", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claims/submit-batch", map[string]any{
			"claim_ids": []string{"nope"},
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("empty batch", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/claims/submit-batch", map[string]any{
			"claim_ids": []string{},
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}
