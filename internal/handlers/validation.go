package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Shared validator; the instance caches struct metadata so reuse matters.
var validate = validator.New()

// ValidateRequest checks a decoded request body against its struct tags and
// returns a message naming the first offending field. One field at a time is
// enough for this API's small request bodies.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return fmt.Errorf("validation failed: %w", err)
	}

	fe := fieldErrs[0]
	return fmt.Errorf("validation failed: %s: %s", fe.Field(), fieldErrorMessage(fe))
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
