package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "carrieralpha/pkg/domain-errors"
)

// TestParseShipmentID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseShipmentID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseShipmentID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseShipmentID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseShipmentID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseShipmentID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, ShipmentID(validUUID), id)
		assert.Equal(t, validUUID.String(), id.String())
	})
}

// TestTypeDistinction documents that claim and audit IDs are distinct types.
// var _ ClaimID = AuditID(uuid.New()) would not compile.
func TestTypeDistinction(t *testing.T) {
	claimID := ClaimID(uuid.New())
	auditID := AuditID(uuid.New())
	assert.NotEqual(t, uuid.UUID(claimID), uuid.UUID(auditID))
}

func TestParseID_BoundaryInputs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE claims;--", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClaimID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errShipment := ParseShipmentID(validUUID)
		_, errAudit := ParseAuditID(validUUID)
		_, errClaim := ParseClaimID(validUUID)
		_, errCommitment := ParseCommitmentID(validUUID)
		_, errRule := ParseExceptionRuleID(validUUID)

		require.NoError(t, errShipment)
		require.NoError(t, errAudit)
		require.NoError(t, errClaim)
		require.NoError(t, errCommitment)
		require.NoError(t, errRule)
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errShipment := ParseShipmentID(input)
			_, errAudit := ParseAuditID(input)
			_, errClaim := ParseClaimID(input)
			_, errCommitment := ParseCommitmentID(input)
			_, errRule := ParseExceptionRuleID(input)

			require.Error(t, errShipment)
			require.Error(t, errAudit)
			require.Error(t, errClaim)
			require.Error(t, errCommitment)
			require.Error(t, errRule)
		})
	}
}

func TestParseCarrierCode(t *testing.T) {
	c, err := ParseCarrierCode("  FedEx ")
	require.NoError(t, err)
	assert.Equal(t, CarrierFedEx, c)

	_, err = ParseCarrierCode("   ")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestIDsEncodeAsUUIDStrings(t *testing.T) {
	raw := uuid.New()
	b, err := json.Marshal(struct {
		Claim ClaimID `json:"claim"`
	}{ClaimID(raw)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"claim":"`+raw.String()+`"}`, string(b))

	var decoded struct {
		Claim ClaimID `json:"claim"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, ClaimID(raw), decoded.Claim)
}
