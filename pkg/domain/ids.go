package domain

import (
	"github.com/google/uuid"

	dErrors "carrieralpha/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so a ClaimID can never be passed where an
// AuditID is expected.
type (
	ShipmentID      uuid.UUID
	AuditID         uuid.UUID
	ClaimID         uuid.UUID
	CommitmentID    uuid.UUID
	ExceptionRuleID uuid.UUID
	TransitionID    uuid.UUID
)

func (id ShipmentID) String() string      { return uuid.UUID(id).String() }
func (id AuditID) String() string         { return uuid.UUID(id).String() }
func (id ClaimID) String() string         { return uuid.UUID(id).String() }
func (id CommitmentID) String() string    { return uuid.UUID(id).String() }
func (id ExceptionRuleID) String() string { return uuid.UUID(id).String() }
func (id TransitionID) String() string    { return uuid.UUID(id).String() }

func (id ShipmentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ClaimID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id CommitmentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ExceptionRuleID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text encodings, so IDs render as canonical UUID strings in JSON verdicts and events.
func (id ShipmentID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id AuditID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id ClaimID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id CommitmentID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id ExceptionRuleID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id TransitionID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }

func (id *ShipmentID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AuditID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ClaimID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CommitmentID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ExceptionRuleID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TransitionID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseShipmentID parses external input into a ShipmentID.
func ParseShipmentID(s string) (ShipmentID, error) {
	u, err := parseUUID(s, "shipment_id")
	return ShipmentID(u), err
}

// ParseAuditID parses external input into an AuditID.
func ParseAuditID(s string) (AuditID, error) {
	u, err := parseUUID(s, "audit_id")
	return AuditID(u), err
}

// ParseClaimID parses external input into a ClaimID.
func ParseClaimID(s string) (ClaimID, error) {
	u, err := parseUUID(s, "claim_id")
	return ClaimID(u), err
}

// ParseCommitmentID parses a catalog commitment identifier.
func ParseCommitmentID(s string) (CommitmentID, error) {
	u, err := parseUUID(s, "commitment_id")
	return CommitmentID(u), err
}

// ParseExceptionRuleID parses a catalog exception rule identifier.
func ParseExceptionRuleID(s string) (ExceptionRuleID, error) {
	u, err := parseUUID(s, "exception_rule_id")
	return ExceptionRuleID(u), err
}

// parseUUID enforces "IDs must be valid, non-empty, non-nil UUIDs".
func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, field+" cannot be nil")
	}
	return u, nil
}
