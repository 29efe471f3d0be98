package service

import (
	"context"
	"errors"

	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
	"carrieralpha/pkg/platform/sentinel"
)

// translate turns store facts into coded errors. Errors that already carry a code
// pass through unchanged.
func translate(err error, internalMsg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "not found")
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrStaleVersion):
		return dErrors.Wrap(err, dErrors.CodeConflict, "conflicting write")
	case errors.Is(err, sentinel.ErrReferenced):
		return dErrors.Wrap(err, dErrors.CodeConflict, "resource is referenced")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
	}
}

func wrapClaimErr(err error, claimID id.ClaimID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "claim not found").With("claim_id", claimID)
	}
	return translate(err, "failed to update claim")
}

func wrapAuditErr(err error, shipmentID id.ShipmentID) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "audit not found").With("shipment_id", shipmentID)
	case errors.Is(err, sentinel.ErrStaleVersion):
		return dErrors.New(dErrors.CodeConflict, "audit was modified concurrently").With("shipment_id", shipmentID)
	}
	return translate(err, "failed to access audit ledger")
}
