package booking

import (
	"errors"
	"fmt"
)

// Validation errors, detected before any store access.
var (
	ErrMissingPatient = errors.New("patient_id is required")
	ErrMissingStart   = errors.New("start is required")
	ErrMissingEnd     = errors.New("end is required")
	ErrInvalidStatus  = errors.New("invalid requested status")
)

// ConflictError rejects a booking because an existing non-free, non-cancelled
// reservation overlaps the requested interval. It is an expected outcome, not
// a defect: callers can use the offending interval to offer alternatives.
type ConflictError struct {
	ReservationID string
	Interval      Interval
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("requested time conflicts with reservation %s (%s)", e.ReservationID, e.Interval)
}

// StoreErrorKind classifies store adapter failures.
type StoreErrorKind string

const (
	StoreNotFound        StoreErrorKind = "not-found"
	StoreUnauthorized    StoreErrorKind = "unauthorized"
	StoreUnreachable     StoreErrorKind = "unreachable"
	StoreMalformed       StoreErrorKind = "malformed"
	StoreVersionConflict StoreErrorKind = "version-conflict"
)

// StoreError is a terminal store failure surfaced to the caller. The engine
// never retries these and, because each booking attempt performs at most one
// mutating call, there is nothing to roll back.
type StoreError struct {
	Kind StoreErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("store %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeError(op string, kind StoreErrorKind, err error) *StoreError {
	return &StoreError{Kind: kind, Op: op, Err: err}
}
