package model

import "errors"

// Domain errors. All of them are recoverable, user-facing conditions;
// anything else surfacing from the engine is an infrastructure failure.
var (
	ErrAlreadyEnrolled   = errors.New("user is already enrolled in this offering")
	ErrNotEnrolled       = errors.New("user is not enrolled in this offering")
	ErrOfferingCancelled = errors.New("offering is cancelled")
	ErrOfferingFull      = errors.New("offering is full")
	ErrNotAuthorized     = errors.New("caller is not the organizer of this offering")
	ErrInvalidTransition = errors.New("operation not permitted from the current enrollment state")
	ErrOfferingNotFound  = errors.New("offering not found")
	ErrInvalidInput      = errors.New("invalid input")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAlreadyEnrolled, "ALREADY_ENROLLED"},
	{ErrNotEnrolled, "NOT_ENROLLED"},
	{ErrOfferingCancelled, "OFFERING_CANCELLED"},
	{ErrOfferingFull, "OFFERING_FULL"},
	{ErrNotAuthorized, "NOT_AUTHORIZED"},
	{ErrInvalidTransition, "INVALID_TRANSITION"},
	{ErrOfferingNotFound, "OFFERING_NOT_FOUND"},
	{ErrInvalidInput, "INVALID_INPUT"},
}

// ErrorCode returns the machine-readable code for a domain error,
// or "INTERNAL" for anything outside the taxonomy.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}

// IsDomainError reports whether err belongs to the domain taxonomy.
func IsDomainError(err error) bool {
	return err != nil && ErrorCode(err) != "INTERNAL"
}
