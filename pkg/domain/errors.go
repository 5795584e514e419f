// Package domain holds the error taxonomy and small value types shared by every
// layer of the reservation service.
package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a DomainError. Transport layers map codes to status codes.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeSlotConflict      ErrorCode = "SLOT_CONFLICT"
	CodeSlotBlocked       ErrorCode = "SLOT_BLOCKED"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeSlotNotToggleable ErrorCode = "SLOT_NOT_TOGGLEABLE"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
)

// DomainError is the typed error returned by domain and application code.
type DomainError struct {
	Code    ErrorCode
	Message string

	// ConflictingID names the reservation that already holds a slot (SLOT_CONFLICT only).
	ConflictingID string

	Err error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *DomainError) Unwrap() error { return e.Err }

// NewValidationError reports malformed or out-of-range input.
func NewValidationError(message string) *DomainError {
	return &DomainError{Code: CodeValidation, Message: message}
}

// NewNotFoundError reports an unknown entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewSlotConflictError reports that another active reservation already holds the slot.
func NewSlotConflictError(slot, conflictingID string) *DomainError {
	return &DomainError{
		Code:          CodeSlotConflict,
		Message:       fmt.Sprintf("slot %s is already held by reservation %s", slot, conflictingID),
		ConflictingID: conflictingID,
	}
}

// NewSlotBlockedError reports that the owner has blocked the slot.
func NewSlotBlockedError(slot string) *DomainError {
	return &DomainError{Code: CodeSlotBlocked, Message: fmt.Sprintf("slot %s is blocked by the venue owner", slot)}
}

// NewInvalidTransitionError reports a lifecycle change the state machine does not permit.
func NewInvalidTransitionError(from, event, reason string) *DomainError {
	msg := fmt.Sprintf("cannot %s a reservation in status %s", event, from)
	if reason != "" {
		msg += ": " + reason
	}
	return &DomainError{Code: CodeInvalidTransition, Message: msg}
}

// NewSlotNotToggleableError reports an attempt to block or unblock a booked slot.
func NewSlotNotToggleableError(slot string) *DomainError {
	return &DomainError{Code: CodeSlotNotToggleable, Message: fmt.Sprintf("slot %s has an active reservation", slot)}
}

// NewTimeoutError reports that storage contention outlasted the retry budget.
func NewTimeoutError(operation string, cause error) *DomainError {
	return &DomainError{Code: CodeTimeout, Message: operation + " did not complete in time", Err: cause}
}

// NewConflictError reports a lost optimistic-locking race.
func NewConflictError(message string) *DomainError {
	return &DomainError{Code: CodeConflict, Message: message}
}

// NewForbiddenError reports an authenticated caller acting on someone else's resource.
func NewForbiddenError(message string) *DomainError {
	return &DomainError{Code: CodeForbidden, Message: message}
}

// NewUnauthorizedError reports a missing or invalid identity.
func NewUnauthorizedError(message string) *DomainError {
	return &DomainError{Code: CodeUnauthorized, Message: message}
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsNotFound reports whether err is a NOT_FOUND domain error.
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

// IsConflict reports whether err is a lost optimistic-locking race.
func IsConflict(err error) bool { return HasCode(err, CodeConflict) }
