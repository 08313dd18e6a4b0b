package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits, spaces, dashes and a leading +")

	// ErrInvalidLength indicates phone number length is outside 10-15 digits
	ErrInvalidLength = errors.New("phone number must have 10 to 15 digits")
)

// phoneRegex matches digits only
var phoneRegex = regexp.MustCompile(`^\d+$`)

var separators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// PhoneValidator validates resident contact numbers used for SMS notices
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate accepts "98765 43210", "+91-98765-43210", "(022) 2345 6789"...
// Returns the sanitized number (digits, with a leading + if one was given).
func (v *PhoneValidator) Validate(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrEmptyPhone
	}

	sanitized := separators.Replace(phone)
	plus := strings.HasPrefix(sanitized, "+")
	digits := strings.TrimPrefix(sanitized, "+")

	if !phoneRegex.MatchString(digits) {
		return "", ErrInvalidFormat
	}
	if len(digits) < 10 || len(digits) > 15 {
		return "", ErrInvalidLength
	}

	if plus {
		return "+" + digits, nil
	}
	return digits, nil
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
