// Package shipment defines the normalized shipment record the audit engine consumes.
// Records arrive already parsed from invoices or carrier feeds and are never mutated here.
package shipment

import (
	"encoding/json"
	"strings"
	"time"

	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
)

// WeightUnit is the unit a weight is expressed in.
type WeightUnit string

const (
	UnitPounds    WeightUnit = "LB"
	UnitKilograms WeightUnit = "KG"
)

const poundsPerKilogram = 2.20462262185

// ParseWeightUnit validates external input. An empty unit defaults to pounds.
func ParseWeightUnit(s string) (WeightUnit, error) {
	switch u := WeightUnit(strings.ToUpper(strings.TrimSpace(s))); u {
	case "":
		return UnitPounds, nil
	case UnitPounds, UnitKilograms:
		return u, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown weight unit %q", s)
	}
}

// Weight is a weight with its unit.
type Weight struct {
	Value float64    `json:"value"`
	Unit  WeightUnit `json:"unit"`
}

// Pounds converts the weight to pounds. ok is false for an unknown unit.
func (w Weight) Pounds() (lbs float64, ok bool) {
	switch w.Unit {
	case UnitPounds:
		return w.Value, true
	case UnitKilograms:
		return w.Value * poundsPerKilogram, true
	default:
		return 0, false
	}
}

func (w Weight) validate(field string) *dErrors.Error {
	if w.Value < 0 {
		return dErrors.New(dErrors.CodeValidation, field+" cannot be negative")
	}
	if w.Unit == "" && w.Value == 0 {
		return nil
	}
	if _, ok := w.Pounds(); !ok {
		return dErrors.Newf(dErrors.CodeValidation, "%s has unknown unit %q", field, w.Unit)
	}
	return nil
}

// Dimensions are package measurements in inches.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CubicInches is the package volume.
func (d Dimensions) CubicInches() float64 {
	return d.Length * d.Width * d.Height
}

// SurchargeResidential is the surcharge name carriers use for residential delivery.
const SurchargeResidential = "RESIDENTIAL"

// Shipment is the immutable, normalized shipment record.
type Shipment struct {
	ID               id.ShipmentID  `json:"id"`
	Carrier          id.CarrierCode `json:"carrier"`
	TrackingNumber   string         `json:"tracking_number"`
	ServiceType      string         `json:"service_type"`
	ShippedAt        *time.Time     `json:"shipped_at,omitempty"`
	PromisedDelivery *time.Time     `json:"promised_delivery,omitempty"`
	ActualDelivery   *time.Time     `json:"actual_delivery,omitempty"`
	TotalCharged     id.Money       `json:"total_charged"`
	// Weight is the weight the carrier billed.
	Weight Weight `json:"weight"`
	// ScaleWeight is the weight measured at pickup, when known.
	ScaleWeight *Weight     `json:"scale_weight,omitempty"`
	Dimensions  *Dimensions `json:"dimensions,omitempty"`

	OriginZIP           string `json:"origin_zip,omitempty"`
	DestinationZIP      string `json:"destination_zip,omitempty"`
	OriginTimezone      string `json:"origin_timezone,omitempty"`
	DestinationTimezone string `json:"destination_timezone,omitempty"`

	ExceptionSignal string          `json:"exception_signal,omitempty"`
	Surcharges      []string        `json:"surcharges,omitempty"`
	RawPayload      json.RawMessage `json:"raw_payload,omitempty"`
}

// Validate checks the structural invariants a stored shipment must hold. It does not
// require ShippedAt: a shipment may be stored without one and fail at audit time.
func (s *Shipment) Validate() error {
	switch {
	case s == nil:
		return dErrors.New(dErrors.CodeValidation, "shipment is required")
	case s.ID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "shipment id is required")
	case s.Carrier == "":
		return dErrors.New(dErrors.CodeValidation, "carrier is required").With("shipment_id", s.ID)
	case strings.TrimSpace(s.TrackingNumber) == "":
		return dErrors.New(dErrors.CodeValidation, "tracking_number is required").With("shipment_id", s.ID)
	case strings.TrimSpace(s.ServiceType) == "":
		return dErrors.New(dErrors.CodeValidation, "service_type is required").With("shipment_id", s.ID)
	case s.TotalCharged.IsNegative():
		return dErrors.New(dErrors.CodeValidation, "total_charged cannot be negative").With("shipment_id", s.ID)
	}
	if err := s.Weight.validate("weight"); err != nil {
		return err.With("shipment_id", s.ID)
	}
	if s.ScaleWeight != nil {
		if err := s.ScaleWeight.validate("scale_weight"); err != nil {
			return err.With("shipment_id", s.ID)
		}
	}
	if d := s.Dimensions; d != nil && (d.Length <= 0 || d.Width <= 0 || d.Height <= 0) {
		return dErrors.New(dErrors.CodeValidation, "dimensions must be positive").With("shipment_id", s.ID)
	}
	if len(s.RawPayload) > 0 && !json.Valid(s.RawPayload) {
		return dErrors.New(dErrors.CodeValidation, "raw_payload must be valid JSON").With("shipment_id", s.ID)
	}
	return nil
}

// HasSurcharge reports whether a surcharge with the given name was billed.
func (s *Shipment) HasSurcharge(name string) bool {
	for _, sc := range s.Surcharges {
		if strings.EqualFold(strings.TrimSpace(sc), name) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores never share mutable slices with callers.
func (s *Shipment) Clone() *Shipment {
	if s == nil {
		return nil
	}
	c := *s
	c.ShippedAt = cloneTime(s.ShippedAt)
	c.PromisedDelivery = cloneTime(s.PromisedDelivery)
	c.ActualDelivery = cloneTime(s.ActualDelivery)
	if s.ScaleWeight != nil {
		w := *s.ScaleWeight
		c.ScaleWeight = &w
	}
	if s.Dimensions != nil {
		d := *s.Dimensions
		c.Dimensions = &d
	}
	if s.Surcharges != nil {
		c.Surcharges = append([]string(nil), s.Surcharges...)
	}
	if s.RawPayload != nil {
		c.RawPayload = append(json.RawMessage(nil), s.RawPayload...)
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
