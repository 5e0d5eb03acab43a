/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these with context; the API maps them to status codes.

ERROR CATEGORIES:
  1. Validation  - malformed input, rejected before any state change (400)
  2. Conflict    - period already closed, duplicate attendance day (409)
  3. Computation - bad stored data for one day; degraded to a safe default
                   and logged, never aborts a batch
  4. Transaction - storage failure inside a unit of work; full rollback (500)

USAGE:
    if errors.Is(err, generic.ErrPeriodClosed) {
        // second settlement attempt, nothing was written
    }

SEE ALSO:
  - store.go: WithTx contract
  - api/handlers.go: status mapping
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Category sentinels. Structured errors unwrap to one of these.
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrComputation = errors.New("computation degraded")
	ErrTransaction = errors.New("transaction failed")

	// ErrPeriodClosed is returned when a settlement period already has receipts.
	ErrPeriodClosed = fmt.Errorf("%w: payroll period already closed", ErrConflict)

	// ErrDuplicateAttendance is returned when a second record is created for
	// the same (employee, date).
	ErrDuplicateAttendance = fmt.Errorf("%w: attendance already recorded for this day", ErrConflict)

	// ErrDuplicateIdempotencyKey is returned when a vacation log entry with the
	// same idempotency key already exists.
	ErrDuplicateIdempotencyKey = fmt.Errorf("%w: duplicate idempotency key", ErrConflict)

	ErrEmployeeNotFound   = fmt.Errorf("%w: employee", ErrNotFound)
	ErrAttendanceNotFound = fmt.Errorf("%w: attendance record", ErrNotFound)
	ErrBonusNotFound      = fmt.Errorf("%w: bonus", ErrNotFound)

	ErrInvalidPeriod        = fmt.Errorf("%w: invalid period", ErrValidation)
	ErrUnknownIncident      = fmt.Errorf("%w: unknown incident type", ErrValidation)
	ErrInvalidRule          = fmt.Errorf("%w: invalid bonus rule", ErrValidation)
	ErrInsufficientVacation = fmt.Errorf("%w: vacation balance below annual entitlement", ErrValidation)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes rejected input. Err, when set, must itself be a
// validation sentinel or an underlying parse error.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// ConflictError reports a uniqueness violation on a named key.
type ConflictError struct {
	Resource string
	Key      string
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %s", e.Resource, e.Key)
}

func (e *ConflictError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConflict, e.Err}
	}
	return []error{ErrConflict}
}

// ComputationError is never returned to callers of a batch: the day it
// concerns is computed with a safe default and the error is logged.
type ComputationError struct {
	EmployeeID EmployeeID
	Date       Date
	Field      string
	Err        error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("employee %s on %s: %s: %v", e.EmployeeID, e.Date, e.Field, e.Err)
}

func (e *ComputationError) Unwrap() []error { return []error{ErrComputation, e.Err} }

// TransactionError wraps a storage failure inside a unit of work.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() []error { return []error{ErrTransaction, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict returns true for uniqueness and already-closed violations.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransaction) && !IsConflict(err)
}
