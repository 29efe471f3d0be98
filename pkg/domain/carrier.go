package domain

import (
	"strings"

	dErrors "carrieralpha/pkg/domain-errors"
)

// CarrierCode identifies a parcel carrier. Invariant: upper-case, trimmed, non-empty.
//
// Usage: construct via ParseCarrierCode at trust boundaries so "FedEx" and "FEDEX"
// select the same catalog rules; direct casting bypasses normalization.
type CarrierCode string

// Carriers with shipped catalog rules.
const (
	CarrierFedEx CarrierCode = "FEDEX"
	CarrierUPS   CarrierCode = "UPS"
)

// ParseCarrierCode normalizes external carrier input.
func ParseCarrierCode(s string) (CarrierCode, error) {
	c := strings.ToUpper(strings.TrimSpace(s))
	if c == "" {
		return "", dErrors.New(dErrors.CodeValidation, "carrier is required")
	}
	if len(c) > 32 {
		return "", dErrors.New(dErrors.CodeValidation, "carrier must be 32 characters or less")
	}
	return CarrierCode(c), nil
}

// NormalizeCarrier is ParseCarrierCode without validation, for lookups keyed by carrier.
func NormalizeCarrier(s string) CarrierCode {
	return CarrierCode(strings.ToUpper(strings.TrimSpace(s)))
}

func (c CarrierCode) String() string { return string(c) }
