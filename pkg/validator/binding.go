package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Booking vocabularies accepted at the HTTP boundary
var (
	timeSlots       = []string{"morning", "evening", "full-day"}
	bookingStatuses = []string{"approved", "rejected", "cancelled"}
	amenityStatuses = []string{"available", "under-maintenance", "closed"}
)

// RegisterBindings installs the custom struct tags used by request DTOs:
//
//	time_slot       morning | evening | full-day
//	booking_status  Approved | Rejected | Cancelled (case-insensitive)
//	amenity_status  available | under-maintenance | closed
//	phone           see PhoneValidator
func RegisterBindings(v *validator.Validate) error {
	phones := NewPhoneValidator()

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]validator.Func{
		"time_slot": func(fl validator.FieldLevel) bool {
			return oneOf(fl.Field().String(), timeSlots, false)
		},
		"booking_status": func(fl validator.FieldLevel) bool {
			return oneOf(fl.Field().String(), bookingStatuses, true)
		},
		"amenity_status": func(fl validator.FieldLevel) bool {
			return oneOf(fl.Field().String(), amenityStatuses, false)
		},
		"phone": func(fl validator.FieldLevel) bool {
			return phones.IsValid(fl.Field().String())
		},
	}

	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validation: %w", tag, err)
		}
	}
	return nil
}

var ginOnce sync.Once

// RegisterGin installs the custom tags on gin's default validator engine.
// Safe to call more than once.
func RegisterGin() error {
	var err error
	ginOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
			return
		}
		err = RegisterBindings(v)
	})
	return err
}

func oneOf(value string, allowed []string, foldCase bool) bool {
	for _, a := range allowed {
		if value == a || (foldCase && strings.EqualFold(value, a)) {
			return true
		}
	}
	return false
}

// Describe turns validator errors into a single readable message
func Describe(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := toSnake(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "time_slot":
			msgs = append(msgs, field+" must be one of "+strings.Join(timeSlots, ", "))
		case "booking_status":
			msgs = append(msgs, field+" must be Approved, Rejected or Cancelled")
		case "amenity_status":
			msgs = append(msgs, field+" must be one of "+strings.Join(amenityStatuses, ", "))
		case "phone":
			msgs = append(msgs, field+" is not a valid phone number")
		case "email":
			msgs = append(msgs, field+" must be a valid email address")
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s violates %s=%s", field, fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// toSnake converts Go field names (AmenityID) for structs without json tags
func toSnake(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		upper := r >= 'A' && r <= 'Z'
		if upper {
			if prevLower {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
		prevLower = !upper
	}
	return b.String()
}
