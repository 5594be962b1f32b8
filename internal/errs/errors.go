// Package errs defines the typed application errors shared across the engine.
// Each error carries a stable code plus the structured detail the chat layer
// needs to phrase a user-facing prompt.
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Standard error codes for the application.
const (
	CodeUnknown             = "UNKNOWN"
	CodeDatabase            = "DATABASE"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidScope        = "INVALID_SCOPE"
	CodeConflictingFlow     = "CONFLICTING_FLOW"
	CodeIncompleteRecord    = "INCOMPLETE_RECORD"
	CodeSplitMismatch       = "SPLIT_MISMATCH"
	CodeDuplicateActiveTrip = "DUPLICATE_ACTIVE_TRIP"
)

// ApplicationError is the interface all custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error is the base application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *Error) Code() string  { return e.code }
func (e *Error) Unwrap() error { return e.err }

// Code returns the code of err if it is an ApplicationError,
// or CodeUnknown if it isn't.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return CodeUnknown
}

// NewDatabaseError wraps a storage failure.
func NewDatabaseError(message string, cause error) error {
	return &Error{code: CodeDatabase, message: message, err: cause}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(message string) error {
	return &Error{code: CodeNotFound, message: message}
}

// InvalidScopeError reports a malformed chat identity tuple. Rejected at the
// boundary, never persisted.
type InvalidScopeError struct {
	Reason string
}

func (e *InvalidScopeError) Error() string { return "invalid chat scope: " + e.Reason }
func (e *InvalidScopeError) Code() string  { return CodeInvalidScope }
func (e *InvalidScopeError) Unwrap() error { return nil }

// ConflictingFlowError reports an attempt to start a multi-step flow while
// another one is still in progress for the same chat scope.
type ConflictingFlowError struct {
	ActiveState string
}

func (e *ConflictingFlowError) Error() string {
	return fmt.Sprintf("another flow is in progress (state %s); finish it or /cancel first", e.ActiveState)
}
func (e *ConflictingFlowError) Code() string  { return CodeConflictingFlow }
func (e *ConflictingFlowError) Unwrap() error { return nil }

// IncompleteRecordError reports a candidate record missing required fields.
// The chat layer uses Missing to ask the user for exactly what is absent.
type IncompleteRecordError struct {
	Kind    string
	Missing []string
}

func (e *IncompleteRecordError) Error() string {
	return fmt.Sprintf("%s record is missing required fields: %s", e.Kind, strings.Join(e.Missing, ", "))
}
func (e *IncompleteRecordError) Code() string  { return CodeIncompleteRecord }
func (e *IncompleteRecordError) Unwrap() error { return nil }

// SplitMismatchError reports explicit split amounts that do not reconcile
// with the expense total within the allowed tolerance.
type SplitMismatchError struct {
	Total decimal.Decimal
	Sum   decimal.Decimal
}

func (e *SplitMismatchError) Error() string {
	return fmt.Sprintf("split amounts sum to %s but the expense total is %s", e.Sum.StringFixed(2), e.Total.StringFixed(2))
}
func (e *SplitMismatchError) Code() string  { return CodeSplitMismatch }
func (e *SplitMismatchError) Unwrap() error { return nil }

// DuplicateActiveTripError reports a create-trip request rejected by the
// single-active-trip policy.
type DuplicateActiveTripError struct {
	ExistingTrip string
}

func (e *DuplicateActiveTripError) Error() string {
	return fmt.Sprintf("an active trip already exists (%s); end it or enable multi-trip mode", e.ExistingTrip)
}
func (e *DuplicateActiveTripError) Code() string  { return CodeDuplicateActiveTrip }
func (e *DuplicateActiveTripError) Unwrap() error { return nil }
