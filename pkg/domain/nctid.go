package domain

import (
	"regexp"

	dErrors "trialstore/pkg/domain-errors"
)

// NCTID is the registry identifier for one trial: the natural key for every
// table and the idempotency key for writes.
//
// Usage: construct via ParseNCTID at trust boundaries to enforce the format;
// direct casting bypasses validation. Quality checks deliberately re-validate
// stored values because the corpus may predate the constraint.
type NCTID string

var nctIDPattern = regexp.MustCompile(`^NCT[0-9]{8}$`)

// ParseNCTID constructs an NCTID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or does not match
// NCT followed by exactly eight digits.
func ParseNCTID(s string) (NCTID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "nct id cannot be empty")
	}
	id := NCTID(s)
	if !id.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "nct id must match NCT followed by 8 digits")
	}
	return id, nil
}

// IsValid checks the NCT format without allocating.
func (id NCTID) IsValid() bool {
	return nctIDPattern.MatchString(string(id))
}

// String returns the string representation of the identifier.
func (id NCTID) String() string {
	return string(id)
}
