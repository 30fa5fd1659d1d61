package scope

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or is not
	// visible in the bound store. Records of a foreign store are reported
	// as not found, never as unauthorized.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is returned when a principal has no grant on the
	// requested store. The HTTP layer must answer it exactly like
	// ErrNotFound so store existence does not leak.
	ErrUnauthorized = errors.New("principal is not authorized for store")

	// ErrPolicyViolation indicates the storage-level scoping check and the
	// accessor disagree. It is always a programming defect, never a normal
	// user-facing condition.
	ErrPolicyViolation = errors.New("store scoping policy violation")

	// ErrConflict is returned for user-correctable uniqueness conflicts,
	// e.g. a duplicate store slug or product SKU.
	ErrConflict = errors.New("conflict")
)
