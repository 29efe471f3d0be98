package eligibility

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"carrieralpha/internal/catalog"
	id "carrieralpha/pkg/domain"
)

// ReasonCode is the machine-readable outcome of an audit.
type ReasonCode string

const (
	ReasonLate         ReasonCode = "LATE"
	ReasonNoGuarantee  ReasonCode = "NO_GUARANTEE"
	ReasonNoPromise    ReasonCode = "NO_CARRIER_PROMISE"
	ReasonNotDelivered ReasonCode = "NOT_DELIVERED"
	ReasonOnTime       ReasonCode = "ON_TIME"
	ReasonExcused      ReasonCode = "EXCUSED"
)

// TimezoneAssumption records which zone the deadline was computed in.
type TimezoneAssumption string

const (
	AssumeDestinationZone TimezoneAssumption = "destination-zone"
	AssumeOriginZone      TimezoneAssumption = "origin-zone"
	AssumeUTCFallback     TimezoneAssumption = "UTC-fallback"
	AssumeCarrierPromise  TimezoneAssumption = "carrier-promise"
)

// Verdict is the outcome of auditing one shipment. Field order is part of the
// fingerprint; append new fields at the end.
type Verdict struct {
	ShipmentID    id.ShipmentID `json:"shipment_id"`
	Eligible      bool          `json:"eligible"`
	Variance      id.Money      `json:"variance"`
	FailureReason string        `json:"failure_reason"`
	ReasonCode    ReasonCode    `json:"reason_code"`

	RuleID     *id.CommitmentID   `json:"rule_id,omitempty"`
	CommitType catalog.CommitType `json:"commit_type,omitempty"`
	Deadline   *time.Time         `json:"deadline,omitempty"`
	// LateBySeconds is positive when delivery came after the deadline.
	LateBySeconds int64 `json:"late_by_seconds,omitempty"`

	TimezoneAssumption TimezoneAssumption `json:"timezone_assumption,omitempty"`
	TimezoneConfidence float64            `json:"timezone_confidence"`
	LowConfidence      bool               `json:"low_confidence"`

	ExceptionCategory  catalog.Category    `json:"exception_category,omitempty"`
	ExceptionRuleID    *id.ExceptionRuleID `json:"exception_rule_id,omitempty"`
	ExceptionSignal    string              `json:"exception_signal,omitempty"`
	ExceptionExcusable bool                `json:"exception_excusable,omitempty"`

	ClassificationFlag   bool   `json:"classification_flag"`
	ClassificationReason string `json:"classification_reason,omitempty"`

	CatalogVersion string `json:"catalog_version"`

	DimWeightFlag   bool   `json:"dim_weight_flag"`
	DimWeightReason string `json:"dim_weight_reason,omitempty"`
}

// Canonical returns the canonical JSON encoding of the verdict.
func (v Verdict) Canonical() []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// every field type marshals; unreachable
		panic(err)
	}
	return b
}

// Fingerprint is the hex SHA-256 of the canonical encoding. Equal fingerprints mean
// byte-identical verdicts.
func (v Verdict) Fingerprint() string {
	sum := sha256.Sum256(v.Canonical())
	return hex.EncodeToString(sum[:])
}
