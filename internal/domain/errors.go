package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the auth/tenancy core. Handlers translate these into
// HTTP status codes; repositories translate storage errors into them.
var (
	// ErrDuplicateEmail means a user with the normalized email already exists.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password so
	// callers cannot tell which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken covers every token verification failure (tampering,
	// expiry, wrong token class). The concrete cause is log-only.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotFound means the requested user or organisation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller is authenticated but is not a member of
	// the organisation it tried to read or mutate.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}
