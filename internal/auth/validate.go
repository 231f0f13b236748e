package auth

import (
	"fmt"
	"regexp"
	"strings"
)

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// ValidationError is a form rule violation tied to one input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// ValidatePhone applies the login form's phone rules in field order.
func ValidatePhone(countryCode, phone string) error {
	if strings.TrimSpace(countryCode) == "" {
		return invalid("countryCode", "Please select a country code")
	}
	switch {
	case len(phone) < 10:
		return invalid("phone", "Phone number must be at least 10 digits")
	case len(phone) > 15:
		return invalid("phone", "Phone number must be at most 15 digits")
	case !digitsOnly.MatchString(phone):
		return invalid("phone", "Phone number must contain only digits")
	}
	return nil
}

func ValidateOTP(code string) error {
	if len(code) != 6 {
		return invalid("otp", "OTP must be exactly 6 digits")
	}
	if !digitsOnly.MatchString(code) {
		return invalid("otp", "OTP must contain only digits")
	}
	return nil
}
