/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All engine error types in one place. Callers classify with errors.Is/As;
  the HTTP layer maps categories to status codes.

ERROR CATEGORIES:
  1. Validation errors - bad input, surfaced directly, no retry
  2. Consistency errors - rejected preconditions, no partial mutation
  3. Transactional errors - a write failed and the whole operation rolled back

SEE ALSO:
  - settlement.go, bedswitch.go: produce these errors
  - api/handlers.go: maps them to HTTP responses
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStudentNotFound is returned when the referenced student doesn't exist.
	ErrStudentNotFound = errors.New("student not found")

	// ErrNoActiveConfiguration is returned when a student has no active fee
	// components to aggregate.
	ErrNoActiveConfiguration = errors.New("no active fee configuration")

	// ErrInvalidConfiguration is returned when the aggregated monthly fee
	// is zero or negative.
	ErrInvalidConfiguration = errors.New("invalid fee configuration")

	// ErrInvalidDateRange is returned when an end date precedes a start date.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrMissingEnrollmentDate is returned when a settlement is requested for
	// a student without an enrollment date on record.
	ErrMissingEnrollmentDate = errors.New("missing enrollment date")

	// ErrBedNotFound is returned when the referenced bed doesn't exist.
	ErrBedNotFound = errors.New("bed not found")

	// ErrBedNotAvailable is returned when the target bed of a switch is not
	// available for occupancy.
	ErrBedNotAvailable = errors.New("bed not available")

	// ErrSameBed is returned when a switch targets the student's current bed.
	ErrSameBed = errors.New("student already occupies the requested bed")

	// ErrStudentInactive is returned when a mutating operation targets a
	// student who is not active.
	ErrStudentInactive = errors.New("student is not active")

	// ErrInvalidEntryShape is returned when a ledger entry does not have
	// exactly one of debit/credit set to a positive amount.
	ErrInvalidEntryShape = errors.New("ledger entry must set exactly one of debit/credit")

	// ErrEntryNotFound is returned when a referenced ledger entry doesn't exist.
	ErrEntryNotFound = errors.New("ledger entry not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DateRangeError reports an end date before the start date.
type DateRangeError struct {
	Start Date
	End   Date
}

func (e *DateRangeError) Error() string {
	return fmt.Sprintf("invalid date range: end %s before start %s", e.End, e.Start)
}

func (e *DateRangeError) Unwrap() error { return ErrInvalidDateRange }

// ConfigurationError reports an unusable aggregated fee total.
type ConfigurationError struct {
	StudentID StudentID
	Total     Money
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid fee configuration for %s: aggregated total %s", e.StudentID, e.Total)
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

// BedUnavailableError reports why a target bed was rejected.
type BedUnavailableError struct {
	BedID  BedID
	Status BedStatus
}

func (e *BedUnavailableError) Error() string {
	return fmt.Sprintf("bed %s not available (status: %s)", e.BedID, e.Status)
}

func (e *BedUnavailableError) Unwrap() error { return ErrBedNotAvailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input or
// a rejected precondition, as opposed to a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrMissingEnrollmentDate) ||
		errors.Is(err, ErrNoActiveConfiguration) ||
		errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrBedNotAvailable) ||
		errors.Is(err, ErrSameBed) ||
		errors.Is(err, ErrStudentInactive) ||
		errors.Is(err, ErrInvalidEntryShape)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrBedNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}
