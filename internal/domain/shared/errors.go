// Package shared contains common domain types, errors and events
// that are used across all domain packages. It has no dependencies outside the standard library.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation = errors.New("validation error")

	// SlotFull and ParticipantDoubleBooked
	ErrCapacity = errors.New("capacity exceeded")

	// The client acted on a stale view of an appointment or reservation.
	ErrStateTransition = errors.New("invalid state transition")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "matchmaking", "scheduling"
	Op      string // Operation that failed, e.g., "Reserve", "Accept"
	Kind    error  // Base error type for errors.Is() checking
	Code    string // Public error code surfaced to API clients
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching. Two DomainErrors match when they
// carry the same public code, so a wrapped copy still matches its template.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok && t.Code != "" && t.Code == e.Code {
		return true
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// WithMessage returns a copy of the error with a more specific message.
func (e *DomainError) WithMessage(format string, args ...any) *DomainError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy of the error carrying an underlying cause.
func (e *DomainError) Wrap(err error) *DomainError {
	cp := *e
	cp.Err = err
	return &cp
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, code, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Validation creates a ValidationError for the given operation.
func Validation(domain, op, format string, args ...any) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    ErrValidation,
		Code:    CodeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// Public error codes.
const (
	CodeValidation              = "ValidationError"
	CodeSlotFull                = "SlotFull"
	CodeParticipantDoubleBooked = "ParticipantDoubleBooked"
	CodeInvalidTransition       = "InvalidTransition"
	CodeReservationReleased     = "ReservationReleased"
	CodeNotFound                = "NotFound"
	CodeProfileNotFound         = "ProfileNotFound"
	CodeForbidden               = "Forbidden"
	CodeUnauthorized            = "Unauthorized"
	CodeInternal                = "InternalError"
)

// Matchmaking domain errors
var (
	ErrProfileNotFound = NewDomainError("matchmaking", "FindProfile", ErrNotFound, CodeProfileNotFound, "profile not found")
	ErrNotProfileOwner = NewDomainError("matchmaking", "UpsertProfile", ErrForbidden, CodeForbidden, "only the owner may change a profile")
)

// Scheduling domain errors
var (
	ErrSlotFull                = NewDomainError("scheduling", "Reserve", ErrCapacity, CodeSlotFull, "time slot is full")
	ErrParticipantDoubleBooked = NewDomainError("scheduling", "Reserve", ErrCapacity, CodeParticipantDoubleBooked, "participant already holds a commitment in this slot")
	ErrInvalidTransition       = NewDomainError("scheduling", "Transition", ErrStateTransition, CodeInvalidTransition, "invalid appointment state transition")
	ErrReservationReleased     = NewDomainError("scheduling", "Confirm", ErrStateTransition, CodeReservationReleased, "reservation already released")
	ErrAppointmentNotFound     = NewDomainError("scheduling", "FindAppointment", ErrNotFound, CodeNotFound, "appointment not found")
	ErrReservationNotFound     = NewDomainError("scheduling", "FindReservation", ErrNotFound, CodeNotFound, "reservation not found")
	ErrNotAppointmentParty     = NewDomainError("scheduling", "Authorize", ErrForbidden, CodeForbidden, "participant is not allowed to act on this appointment")
)

// Directory (event service) errors
var (
	ErrRegistrationNotFound = NewDomainError("directory", "GetRegistration", ErrNotFound, CodeNotFound, "registration not found")
	ErrDirectoryUnavailable = NewDomainError("directory", "Request", ErrServiceUnavailable, CodeInternal, "event service is unavailable")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsCapacity checks if the error is a capacity error (SlotFull, ParticipantDoubleBooked).
func IsCapacity(err error) bool {
	return errors.Is(err, ErrCapacity)
}

// IsState checks if the error signals a stale client view.
func IsState(err error) bool {
	return errors.Is(err, ErrStateTransition)
}

// IsForbidden checks if the actor is not allowed to perform the operation.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// Code returns the public error code for err. The first DomainError in the
// chain that carries a code wins; otherwise the code is derived from the kind.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if de, ok := e.(*DomainError); ok && de.Code != "" {
			return de.Code
		}
	}
	switch {
	case IsValidation(err):
		return CodeValidation
	case IsNotFound(err):
		return CodeNotFound
	case IsState(err):
		return CodeInvalidTransition
	case IsForbidden(err):
		return CodeForbidden
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	default:
		return CodeInternal
	}
}
