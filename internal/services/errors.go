package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the services. Handlers map them to HTTP status codes.
var (
	ErrAmenityNotFound    = errors.New("amenity not found")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrBookingNotPending  = errors.New("booking is no longer pending")
	ErrForbidden          = errors.New("not allowed to modify this booking")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrEmailTaken         = errors.New("email already registered")
)

// ValidationError reports malformed input, detected before any storage access
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// RejectionError is a business-rule refusal of a well-formed booking request.
// Reason is shown to the resident verbatim.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

const reasonSlotTaken = "This slot is already taken or pending approval."

func downtimeRejection(reason string) error {
	return &RejectionError{Reason: fmt.Sprintf("Facility is closed for %s. Please select a different date.", reason)}
}

func amenityUnavailableRejection(status string) error {
	return &RejectionError{Reason: fmt.Sprintf("This amenity is currently %s and cannot be booked.", status)}
}
