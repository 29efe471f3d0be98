// Package handler exposes the audit and claim operations over HTTP for operators and
// automation. Authentication is terminated upstream.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carrieralpha/internal/recovery/models"
	"carrieralpha/internal/recovery/service"
	"carrieralpha/internal/shipment"
	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
	"carrieralpha/pkg/platform/httputil"
	"carrieralpha/pkg/requestcontext"
)

// Service is the recovery engine port used by the handlers.
type Service interface {
	IngestShipment(ctx context.Context, sh *shipment.Shipment) error
	AuditStored(ctx context.Context, shipmentID id.ShipmentID) (*service.AuditOutcome, error)
	GetAudit(ctx context.Context, shipmentID id.ShipmentID) (*models.AuditResult, error)
	CorrectAudit(ctx context.Context, shipmentID id.ShipmentID, expectedVersion int) (*models.AuditResult, error)
	CreateDraft(ctx context.Context, audit *models.AuditResult) (*models.Claim, error)
	GetClaim(ctx context.Context, claimID id.ClaimID) (*models.Claim, error)
	GetClaimByShipment(ctx context.Context, shipmentID id.ShipmentID) (*models.Claim, error)
	ClaimHistory(ctx context.Context, claimID id.ClaimID) ([]models.ClaimTransition, error)
	Submit(ctx context.Context, claimID id.ClaimID, carrierCaseNumber string) (*models.Claim, error)
	Dispute(ctx context.Context, claimID id.ClaimID, reason string) (*models.Claim, error)
	Settle(ctx context.Context, claimID id.ClaimID, outcome models.ClaimStatus, recovery id.Money, carrierCaseNumber string) (*models.Claim, error)
	BatchSubmit(ctx context.Context, claimIDs []id.ClaimID, carrierCaseNumber string) []service.BatchSubmitResult
}

// Handler handles shipment, audit and claim endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register registers the recovery routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/shipments", h.HandleIngestShipment)
	r.Route("/shipments/{shipmentID}", func(r chi.Router) {
		r.Post("/audit", h.HandleAuditShipment)
		r.Get("/audit", h.HandleGetAudit)
		r.Post("/audit/correct", h.HandleCorrectAudit)
		r.Post("/claim", h.HandleCreateClaim)
		r.Get("/claim", h.HandleGetClaimByShipment)
	})
	r.Post("/claims/submit-batch", h.HandleBatchSubmit)
	r.Route("/claims/{claimID}", func(r chi.Router) {
		r.Get("/", h.HandleGetClaim)
		r.Get("/transitions", h.HandleClaimHistory)
		r.Post("/submit", h.HandleSubmit)
		r.Post("/dispute", h.HandleDispute)
		r.Post("/settle", h.HandleSettle)
	})
}

func (h *Handler) HandleIngestShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IngestShipmentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sh := req.toShipment()
	if err := h.service.IngestShipment(ctx, sh); err != nil {
		h.fail(ctx, w, "failed to ingest shipment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sh)
}

func (h *Handler) HandleAuditShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, ok := h.shipmentID(w, r)
	if !ok {
		return
	}
	out, err := h.service.AuditStored(ctx, shipmentID)
	if err != nil {
		h.fail(ctx, w, "failed to audit shipment", err)
		return
	}
	status := http.StatusOK
	if out.Recorded {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, toAuditResponse(out))
}

func (h *Handler) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, ok := h.shipmentID(w, r)
	if !ok {
		return
	}
	audit, err := h.service.GetAudit(ctx, shipmentID)
	if err != nil {
		h.fail(ctx, w, "failed to get audit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, audit)
}

func (h *Handler) HandleCorrectAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, ok := h.shipmentID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CorrectAuditRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	audit, err := h.service.CorrectAudit(ctx, shipmentID, req.ExpectedVersion)
	if err != nil {
		h.fail(ctx, w, "failed to correct audit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, audit)
}

// HandleCreateClaim opens a DRAFT claim from the shipment's recorded audit.
func (h *Handler) HandleCreateClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, ok := h.shipmentID(w, r)
	if !ok {
		return
	}
	audit, err := h.service.GetAudit(ctx, shipmentID)
	if err != nil {
		h.fail(ctx, w, "failed to load audit for claim", err)
		return
	}
	claim, err := h.service.CreateDraft(ctx, audit)
	if err != nil {
		h.fail(ctx, w, "failed to create claim", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, claim)
}

func (h *Handler) HandleGetClaimByShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, ok := h.shipmentID(w, r)
	if !ok {
		return
	}
	claim, err := h.service.GetClaimByShipment(ctx, shipmentID)
	if err != nil {
		h.fail(ctx, w, "failed to get claim", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) HandleGetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	claim, err := h.service.GetClaim(ctx, claimID)
	if err != nil {
		h.fail(ctx, w, "failed to get claim", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) HandleClaimHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	history, err := h.service.ClaimHistory(ctx, claimID)
	if err != nil {
		h.fail(ctx, w, "failed to list claim transitions", err)
		return
	}
	if history == nil {
		history = []models.ClaimTransition{}
	}
	httputil.WriteJSON(w, http.StatusOK, TransitionsResponse{ClaimID: claimID, Transitions: history})
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	// the body is optional for submit
	var req SubmitClaimRequest
	if err := httputil.DecodeJSON(r, &req, true); err != nil {
		h.fail(ctx, w, "invalid submit request", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(ctx, w, "invalid submit request", err)
		return
	}
	claim, err := h.service.Submit(ctx, claimID, req.CarrierCaseNumber)
	if err != nil {
		h.fail(ctx, w, "failed to submit claim", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) HandleDispute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DisputeClaimRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	claim, err := h.service.Dispute(ctx, claimID, req.Reason)
	if err != nil {
		h.fail(ctx, w, "failed to dispute claim", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SettleClaimRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	claim, err := h.service.Settle(ctx, claimID, req.outcome, req.RecoveryAmount, req.CarrierCaseNumber)
	if err != nil {
		h.fail(ctx, w, "failed to settle claim", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

// HandleBatchSubmit submits many DRAFT claims; per-claim failures are reported in
// the body and do not fail the request.
func (h *Handler) HandleBatchSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BatchSubmitRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	results := h.service.BatchSubmit(ctx, req.claimIDs, req.CarrierCaseNumber)
	resp := toBatchResponse(results)
	h.logger.InfoContext(ctx, "batch submit finished",
		"request_id", requestcontext.RequestID(ctx),
		"submitted", resp.Submitted,
		"failed", resp.Failed,
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) shipmentID(w http.ResponseWriter, r *http.Request) (id.ShipmentID, bool) {
	shipmentID, err := id.ParseShipmentID(chi.URLParam(r, "shipmentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ShipmentID{}, false
	}
	return shipmentID, true
}

func (h *Handler) claimID(w http.ResponseWriter, r *http.Request) (id.ClaimID, bool) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ClaimID{}, false
	}
	return claimID, true
}

// fail logs at a level matching the error class and writes the error response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	attrs := []any{"request_id", requestcontext.RequestID(ctx), "error", err}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
