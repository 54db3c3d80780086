package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password,
	// so login failures never reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailNotVerified rejects login before OTP verification completed.
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrAccountDeactivated rejects login and authenticated requests for
	// deactivated accounts.
	ErrAccountDeactivated = errors.New("account deactivated")

	// ErrAlreadyVerified rejects OTP resend and re-verification once the
	// email is verified.
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrInvalidOTP covers a missing, expired, or mismatched code.
	ErrInvalidOTP = errors.New("invalid or expired verification code")

	// ErrInvalidQuery rejects search queries shorter than two characters
	// after trimming.
	ErrInvalidQuery = errors.New("search query must be at least 2 characters")
)

// FieldViolation names one field that failed validation.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated field of a request, not just the
// first one found.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func validationError(violations []FieldViolation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
