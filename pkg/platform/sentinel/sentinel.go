package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: row does not exist in the store
// - ErrConflict: a uniqueness constraint rejected the write
// - ErrConstraint: a non-unique constraint (check, not-null, FK) rejected it
// - ErrUnavailable: the store cannot be reached
//
// For validation errors (bad input, malformed records), use
// pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrConstraint  = errors.New("constraint violation")
	ErrUnavailable = errors.New("unavailable")
)
