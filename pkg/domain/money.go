package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	dErrors "carrieralpha/pkg/domain-errors"
)

// Money is an amount in minor currency units (cents). Claims, variances and
// recoveries are integer amounts so repeated audits produce identical values.
type Money int64

// maxWholeUnits keeps units*100 inside int64.
const maxWholeUnits = math.MaxInt64/100 - 1

// Cents builds a Money value from minor units.
func Cents(c int64) Money { return Money(c) }

// ParseMoney parses a decimal string with at most two fraction digits ("125.50", "-3", "0.07").
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "amount has no digits")
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, dErrors.Newf(dErrors.CodeValidation, "amount %q must have one or two decimal places", s)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, dErrors.Newf(dErrors.CodeValidation, "invalid amount %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeValidation, "invalid amount")
	}
	if units > maxWholeUnits {
		return 0, dErrors.Newf(dErrors.CodeValidation, "amount %q is too large", s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeValidation, "invalid amount")
	}
	total := units*100 + cents
	if neg {
		total = -total
	}
	return Money(total), nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MulBasisPoints returns m * bps / 10000, rounded half away from zero.
func (m Money) MulBasisPoints(bps int64) Money {
	p := int64(m) * bps
	q, r := p/10000, p%10000
	if r >= 5000 {
		q++
	} else if r <= -5000 {
		q--
	}
	return Money(q)
}

// IsNegative reports m < 0.
func (m Money) IsNegative() bool { return m < 0 }

// Float returns the amount in major units, for reporting only.
func (m Money) Float() float64 { return float64(m) / 100 }

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalText renders the decimal form so JSON payloads carry "125.50" rather than cents.
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts the decimal form produced by MarshalText.
func (m *Money) UnmarshalText(b []byte) error {
	v, err := ParseMoney(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
