package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped) and
// services translate them into domain errors with shipment/claim context.
//
//   - ErrNotFound: row does not exist
//   - ErrConflict: a uniqueness constraint rejected the write (one audit / one claim per shipment)
//   - ErrStaleVersion: optimistic version check failed on a controlled replace
//   - ErrReferenced: a RESTRICT reference blocks the mutation (audit referenced by a claim)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrStaleVersion = errors.New("stale version")
	ErrReferenced   = errors.New("referenced")
)
