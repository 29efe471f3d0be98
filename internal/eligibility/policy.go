package eligibility

import (
	"strings"
	"time"

	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
)

// RecoveryMode selects how the claimable variance is derived from the amount charged.
type RecoveryMode string

const (
	// RecoveryFull refunds the whole charge (the carrier money-back guarantee).
	RecoveryFull RecoveryMode = "FULL"
	// RecoveryFraction refunds FractionBPS basis points of the charge.
	RecoveryFraction RecoveryMode = "FRACTION"
)

// ParseRecoveryMode validates external input.
func ParseRecoveryMode(s string) (RecoveryMode, error) {
	switch m := RecoveryMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case RecoveryFull, RecoveryFraction:
		return m, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown recovery mode %q", s)
	}
}

// Policy holds the tunables of an audit. Two auditors with equal policies produce
// identical verdicts for identical inputs.
type Policy struct {
	Mode        RecoveryMode
	FractionBPS int64

	// ConfidenceThreshold: verdicts below it are flagged LowConfidence.
	ConfidenceThreshold float64
	// SkewWindow: a lateness margin this small is ambiguous when the zone was assumed.
	SkewWindow time.Duration

	ResidentialWeightLimitLbs float64
	// DimDivisor turns cubic inches into dimensional pounds.
	DimDivisor float64
}

// DefaultPolicy is full refund, 0.5 confidence threshold, two-hour skew window,
// a 50 lb residential limit and the 139 dimensional divisor.
func DefaultPolicy() Policy {
	return Policy{
		Mode:                      RecoveryFull,
		FractionBPS:               10000,
		ConfidenceThreshold:       0.5,
		SkewWindow:                2 * time.Hour,
		ResidentialWeightLimitLbs: 50,
		DimDivisor:                139,
	}
}

// Validate checks the policy's ranges.
func (p Policy) Validate() error {
	switch {
	case p.Mode != RecoveryFull && p.Mode != RecoveryFraction:
		return dErrors.Newf(dErrors.CodeValidation, "unknown recovery mode %q", p.Mode)
	case p.Mode == RecoveryFraction && (p.FractionBPS < 0 || p.FractionBPS > 10000):
		return dErrors.New(dErrors.CodeValidation, "recovery fraction must be between 0 and 10000 basis points")
	case p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1:
		return dErrors.New(dErrors.CodeValidation, "confidence threshold must be between 0 and 1")
	case p.SkewWindow < 0:
		return dErrors.New(dErrors.CodeValidation, "skew window cannot be negative")
	case p.ResidentialWeightLimitLbs <= 0:
		return dErrors.New(dErrors.CodeValidation, "residential weight limit must be positive")
	case p.DimDivisor <= 0:
		return dErrors.New(dErrors.CodeValidation, "dimensional divisor must be positive")
	}
	return nil
}

// Variance is the claimable amount for a late shipment charged total.
func (p Policy) Variance(total id.Money) id.Money {
	if total.IsNegative() {
		return 0
	}
	if p.Mode == RecoveryFraction {
		return total.MulBasisPoints(p.FractionBPS)
	}
	return total
}
