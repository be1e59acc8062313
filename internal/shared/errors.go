package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. The message is shared by every
	// failure mode so callers cannot tell unknown emails from wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated indicates the request carries no usable session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates the caller's role is insufficient.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is the class of all input validation failures.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is the class of uniqueness conflicts.
	ErrConflict = errors.New("conflict")
	// ErrEmailInUse indicates another account already owns the email.
	ErrEmailInUse = fmt.Errorf("%w: email already in use", ErrConflict)
	// ErrSelfDeletion indicates an admin tried to delete their own account.
	ErrSelfDeletion = fmt.Errorf("%w: cannot delete your own account", ErrValidation)
	// ErrUpstream indicates an external dependency failed transiently.
	ErrUpstream = errors.New("upstream unavailable")
)

// ValidationError carries every field violation found in one input.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add records a violation message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Empty reports whether no violation has been recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns e when it holds violations and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	if e.Empty() {
		return ErrValidation.Error()
	}
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(fields, ", "))
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
