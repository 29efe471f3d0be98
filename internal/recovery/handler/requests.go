package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"carrieralpha/internal/recovery/models"
	"carrieralpha/internal/shipment"
	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
	pstrings "carrieralpha/pkg/platform/strings"
)

// maxBatchClaims caps submit-batch requests.
const maxBatchClaims = 500

// IngestShipmentRequest is a normalized shipment record posted by the invoice parsers.
type IngestShipmentRequest struct {
	ID                  string               `json:"id,omitempty"`
	Carrier             string               `json:"carrier"`
	TrackingNumber      string               `json:"tracking_number"`
	ServiceType         string               `json:"service_type"`
	ShippedAt           *time.Time           `json:"shipped_at,omitempty"`
	PromisedDelivery    *time.Time           `json:"promised_delivery,omitempty"`
	ActualDelivery      *time.Time           `json:"actual_delivery,omitempty"`
	TotalCharged        id.Money             `json:"total_charged"`
	Weight              shipment.Weight      `json:"weight"`
	ScaleWeight         *shipment.Weight     `json:"scale_weight,omitempty"`
	Dimensions          *shipment.Dimensions `json:"dimensions,omitempty"`
	OriginZIP           string               `json:"origin_zip,omitempty"`
	DestinationZIP      string               `json:"destination_zip,omitempty"`
	OriginTimezone      string               `json:"origin_timezone,omitempty"`
	DestinationTimezone string               `json:"destination_timezone,omitempty"`
	ExceptionSignal     string               `json:"exception_signal,omitempty"`
	Surcharges          []string             `json:"surcharges,omitempty"`
	RawPayload          json.RawMessage      `json:"raw_payload,omitempty"`

	shipmentID id.ShipmentID
	carrier    id.CarrierCode
}

// Validate normalizes the request in place and checks what the wire format can get wrong.
func (r *IngestShipmentRequest) Validate() error {
	if r.ID == "" {
		r.shipmentID = id.ShipmentID(uuid.New())
	} else {
		sid, err := id.ParseShipmentID(r.ID)
		if err != nil {
			return err
		}
		r.shipmentID = sid
	}
	carrier, err := id.ParseCarrierCode(r.Carrier)
	if err != nil {
		return err
	}
	r.carrier = carrier
	r.TrackingNumber = strings.TrimSpace(r.TrackingNumber)
	r.ServiceType = strings.TrimSpace(r.ServiceType)
	r.ExceptionSignal = strings.TrimSpace(r.ExceptionSignal)
	r.Surcharges = pstrings.DedupeAndTrimUpper(r.Surcharges)

	if r.Weight.Unit, err = shipment.ParseWeightUnit(string(r.Weight.Unit)); err != nil {
		return err
	}
	if r.ScaleWeight != nil {
		if r.ScaleWeight.Unit, err = shipment.ParseWeightUnit(string(r.ScaleWeight.Unit)); err != nil {
			return err
		}
	}
	return r.toShipment().Validate()
}

func (r *IngestShipmentRequest) toShipment() *shipment.Shipment {
	return &shipment.Shipment{
		ID:                  r.shipmentID,
		Carrier:             r.carrier,
		TrackingNumber:      r.TrackingNumber,
		ServiceType:         r.ServiceType,
		ShippedAt:           utc(r.ShippedAt),
		PromisedDelivery:    utc(r.PromisedDelivery),
		ActualDelivery:      utc(r.ActualDelivery),
		TotalCharged:        r.TotalCharged,
		Weight:              r.Weight,
		ScaleWeight:         r.ScaleWeight,
		Dimensions:          r.Dimensions,
		OriginZIP:           strings.TrimSpace(r.OriginZIP),
		DestinationZIP:      strings.TrimSpace(r.DestinationZIP),
		OriginTimezone:      strings.TrimSpace(r.OriginTimezone),
		DestinationTimezone: strings.TrimSpace(r.DestinationTimezone),
		ExceptionSignal:     r.ExceptionSignal,
		Surcharges:          r.Surcharges,
		RawPayload:          r.RawPayload,
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// CorrectAuditRequest names the ledger version the operator is correcting.
type CorrectAuditRequest struct {
	ExpectedVersion int `json:"expected_version"`
}

func (r *CorrectAuditRequest) Validate() error {
	if r.ExpectedVersion < 1 {
		return dErrors.New(dErrors.CodeValidation, "expected_version must be at least 1")
	}
	return nil
}

// SubmitClaimRequest carries the optional carrier case number.
type SubmitClaimRequest struct {
	CarrierCaseNumber string `json:"carrier_case_number,omitempty"`
}

func (r *SubmitClaimRequest) Validate() error {
	r.CarrierCaseNumber = strings.TrimSpace(r.CarrierCaseNumber)
	return nil
}

type DisputeClaimRequest struct {
	Reason string `json:"reason"`
}

func (r *DisputeClaimRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	return models.ValidateDisputeReason(r.Reason)
}

type SettleClaimRequest struct {
	Outcome           string   `json:"outcome"`
	RecoveryAmount    id.Money `json:"recovery_amount"`
	CarrierCaseNumber string   `json:"carrier_case_number,omitempty"`

	outcome models.ClaimStatus
}

func (r *SettleClaimRequest) Validate() error {
	outcome, err := models.ParseClaimStatus(r.Outcome)
	if err != nil {
		return err
	}
	if err := models.ValidateSettlement(outcome, r.RecoveryAmount); err != nil {
		return err
	}
	r.outcome = outcome
	r.CarrierCaseNumber = strings.TrimSpace(r.CarrierCaseNumber)
	return nil
}

type BatchSubmitRequest struct {
	ClaimIDs          []string `json:"claim_ids"`
	CarrierCaseNumber string   `json:"carrier_case_number,omitempty"`

	claimIDs []id.ClaimID
}

func (r *BatchSubmitRequest) Validate() error {
	raw := pstrings.DedupeAndTrim(r.ClaimIDs)
	if len(raw) == 0 {
		return dErrors.New(dErrors.CodeValidation, "claim_ids must not be empty")
	}
	if len(raw) > maxBatchClaims {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d claim_ids per batch", maxBatchClaims)
	}
	r.claimIDs = make([]id.ClaimID, 0, len(raw))
	for _, s := range raw {
		claimID, err := id.ParseClaimID(s)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid claim_ids entry").With("value", s)
		}
		r.claimIDs = append(r.claimIDs, claimID)
	}
	r.CarrierCaseNumber = strings.TrimSpace(r.CarrierCaseNumber)
	return nil
}
