/*
errors.go - Centralized error types for the elective engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is(); structured errors carry context and
  unwrap to the sentinels.

ERROR POLICY (by category):
  Stale references   - surfaced to the caller, never silently zeroed
  Resolution failure - logged, the affected option is skipped, batch continues
  Enrolment failure  - logged, isolated per user, blocks the option's
                       reconciled flag for the current run
  Missing config     - NOT an error: features degrade to disabled
  Malformed blobs    - NOT an error: decoded as an empty selection

SEE ALSO:
  - credits.go: StaleReferenceError
  - reconcile.go: EnrolmentError
*/
package elective

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOptionNotFound is returned when an option identifier does not
	// resolve to a stored booking option.
	ErrOptionNotFound = errors.New("booking option not found")

	// ErrInstanceNotFound is returned when a booking instance cannot be
	// resolved. During reconciliation this skips the option, not the batch.
	ErrInstanceNotFound = errors.New("booking instance not found")

	// ErrStaleReference is returned when a staged selection points at an
	// option that no longer exists. Credit sums short-circuit on it.
	ErrStaleReference = errors.New("stale option reference in selection")

	// ErrEnrolmentFailed is returned when the enrolment collaborator reports
	// failure for one user.
	ErrEnrolmentFailed = errors.New("enrolment failed")

	// ErrInvalidCombineKind is returned for a combine kind outside
	// must-combine/cannot-combine.
	ErrInvalidCombineKind = errors.New("invalid combine kind")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StaleReferenceError reports which selected option failed to resolve.
type StaleReferenceError struct {
	UserID     UserID
	InstanceID InstanceID
	OptionID   OptionID
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("selection of user %d in instance %d references missing option %d",
		e.UserID, e.InstanceID, e.OptionID)
}

func (e *StaleReferenceError) Unwrap() error { return ErrStaleReference }

// EnrolmentError reports a failed enrolment of one user into one course.
type EnrolmentError struct {
	UserID   UserID
	CourseID CourseID
	Err      error
}

func (e *EnrolmentError) Error() string {
	return fmt.Sprintf("enrolment of user %d into course %d: %v", e.UserID, e.CourseID, e.Err)
}

func (e *EnrolmentError) Unwrap() error { return ErrEnrolmentFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOptionNotFound) || errors.Is(err, ErrInstanceNotFound)
}
