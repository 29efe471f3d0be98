package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
)

// CommitType describes how a service commitment turns a ship date into a deadline.
type CommitType string

const (
	// CommitEndOfDay: delivery due by the end of the local day TransitDays business days after shipping.
	CommitEndOfDay CommitType = "END_OF_DAY"
	// CommitTimeDefinite: delivery due by CommitTime local on that day.
	CommitTimeDefinite CommitType = "TIME_DEFINITE"
	// CommitCarrierPromise: the carrier-stated promised delivery instant on the shipment is the deadline.
	CommitCarrierPromise CommitType = "CARRIER_PROMISE"
)

// ParseCommitType validates external input.
func ParseCommitType(s string) (CommitType, error) {
	switch ct := CommitType(strings.ToUpper(strings.TrimSpace(s))); ct {
	case CommitEndOfDay, CommitTimeDefinite, CommitCarrierPromise:
		return ct, nil
	case "TIME_DEF":
		return CommitTimeDefinite, nil
	case "EOD":
		return CommitEndOfDay, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown commit type %q", s)
	}
}

// ClockTime is a local time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM" (24h).
func ParseClockTime(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ClockTime{}, dErrors.Newf(dErrors.CodeValidation, "commit time %q must be HH:MM", s)
	}
	h, errH := strconv.Atoi(hh)
	m, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return ClockTime{}, dErrors.Newf(dErrors.CodeValidation, "commit time %q must be HH:MM", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ServiceCommitment is a carrier guarantee rule for one service type over a validity window.
//
// Invariants:
//   - (Carrier, ServiceType, ValidFrom) is unique within a catalog
//   - ValidTo, when set, is strictly after ValidFrom; nil means open-ended
//   - TIME_DEFINITE commitments carry a CommitTime
//   - TransitDays >= 0 (0 = same business day)
type ServiceCommitment struct {
	ID          id.CommitmentID `json:"id"`
	Carrier     id.CarrierCode  `json:"carrier"`
	ServiceType string          `json:"service_type"`
	Guaranteed  bool            `json:"guaranteed"`
	CommitType  CommitType      `json:"commit_type"`
	CommitTime  *ClockTime      `json:"commit_time,omitempty"`
	TransitDays int             `json:"transit_days"`
	ValidFrom   time.Time       `json:"valid_from"`
	ValidTo     *time.Time      `json:"valid_to,omitempty"`
}

// Covers reports whether t falls in the half-open window [ValidFrom, ValidTo).
func (c ServiceCommitment) Covers(t time.Time) bool {
	if t.Before(c.ValidFrom) {
		return false
	}
	return c.ValidTo == nil || t.Before(*c.ValidTo)
}

// Validate checks the commitment's own invariants.
func (c ServiceCommitment) Validate() error {
	switch {
	case c.Carrier == "":
		return dErrors.New(dErrors.CodeValidation, "commitment carrier is required")
	case strings.TrimSpace(c.ServiceType) == "":
		return dErrors.New(dErrors.CodeValidation, "commitment service_type is required").With("carrier", c.Carrier)
	case c.ValidFrom.IsZero():
		return dErrors.New(dErrors.CodeValidation, "commitment valid_from is required").
			With("carrier", c.Carrier).With("service_type", c.ServiceType)
	case c.ValidTo != nil && !c.ValidTo.After(c.ValidFrom):
		return dErrors.New(dErrors.CodeValidation, "commitment valid_to must be after valid_from").
			With("carrier", c.Carrier).With("service_type", c.ServiceType)
	case c.TransitDays < 0:
		return dErrors.New(dErrors.CodeValidation, "commitment transit_days cannot be negative").
			With("carrier", c.Carrier).With("service_type", c.ServiceType)
	}
	if !c.Guaranteed {
		return nil
	}
	switch c.CommitType {
	case CommitEndOfDay, CommitCarrierPromise:
	case CommitTimeDefinite:
		if c.CommitTime == nil {
			return dErrors.New(dErrors.CodeValidation, "time-definite commitment requires commit_time").
				With("carrier", c.Carrier).With("service_type", c.ServiceType)
		}
	default:
		return dErrors.Newf(dErrors.CodeValidation, "unknown commit type %q", c.CommitType).
			With("carrier", c.Carrier).With("service_type", c.ServiceType)
	}
	return nil
}

// MatchType selects how an exception rule is compared to a shipment's exception signal.
type MatchType string

const (
	MatchCode    MatchType = "CODE"
	MatchKeyword MatchType = "KEYWORD"
)

// ParseMatchType validates external input.
func ParseMatchType(s string) (MatchType, error) {
	switch mt := MatchType(strings.ToUpper(strings.TrimSpace(s))); mt {
	case MatchCode, MatchKeyword:
		return mt, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown match type %q", s)
	}
}

// Category groups excusal reasons.
type Category string

const (
	CategoryWeather      Category = "WEATHER"
	CategoryAddress      Category = "ADDRESS"
	CategoryForceMajeure Category = "FORCE_MAJEURE"
	CategoryOther        Category = "OTHER"
)

// ParseCategory validates external input.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToUpper(strings.TrimSpace(s))); c {
	case CategoryWeather, CategoryAddress, CategoryForceMajeure, CategoryOther:
		return c, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown exception category %q", s)
	}
}

// ExceptionRule maps a carrier code or keyword to an excusal category.
// Invariant: (Carrier, MatchType, MatchValue) is unique within a catalog; MatchValue
// comparison is case-insensitive.
type ExceptionRule struct {
	ID         id.ExceptionRuleID `json:"id"`
	Carrier    id.CarrierCode     `json:"carrier"`
	MatchType  MatchType          `json:"match_type"`
	MatchValue string             `json:"match_value"`
	Excusable  bool               `json:"excusable"`
	Category   Category           `json:"category"`
}

// Validate checks the rule's own invariants.
func (r ExceptionRule) Validate() error {
	switch {
	case r.Carrier == "":
		return dErrors.New(dErrors.CodeValidation, "exception rule carrier is required")
	case strings.TrimSpace(r.MatchValue) == "":
		return dErrors.New(dErrors.CodeValidation, "exception rule match_value is required").With("carrier", r.Carrier)
	}
	if _, err := ParseMatchType(string(r.MatchType)); err != nil {
		return err
	}
	if _, err := ParseCategory(string(r.Category)); err != nil {
		return err
	}
	return nil
}
