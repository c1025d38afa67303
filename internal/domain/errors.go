package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Concrete errors unwrap to one of these so callers can branch
// with errors.Is regardless of the message.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate definition")
	ErrInvalidDSL      = errors.New("invalid dsl")
	ErrInvalid         = errors.New("invalid request")
	ErrMissingProperty = errors.New("missing required property")
	ErrBackend         = errors.New("backend failure")
	ErrLimitExceeded   = errors.New("limit exceeded")
)

// NotFoundError indicates a definition, registration or schedule was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound creates a NotFoundError with a formatted message.
func NotFound(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// UnregisteredAppError is returned when a stage references an application
// that is missing from the registry.
type UnregisteredAppError struct {
	Stage   string
	App     string
	Type    AppType
	Version string
}

func (e *UnregisteredAppError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("the '%s:%s:%s' application could not be found (stage %q)", e.Type, e.App, e.Version, e.Stage)
	}
	return fmt.Sprintf("the '%s:%s' application could not be found (stage %q)", e.Type, e.App, e.Stage)
}

func (e *UnregisteredAppError) Unwrap() error { return ErrNotFound }

// DuplicateDefinitionError reports a definition name that is already taken.
type DuplicateDefinitionError struct {
	Name string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("cannot register definition %s because another one has already been registered with the same name", e.Name)
}

func (e *DuplicateDefinitionError) Unwrap() error { return ErrDuplicate }

// MissingPropertyError names a property that must be set before an external call.
type MissingPropertyError struct {
	Key string
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("property %s must be set", e.Key)
}

func (e *MissingPropertyError) Unwrap() error { return ErrMissingProperty }

// BackendError wraps a failure returned by a deployer, launcher, scheduler or store.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return e.Op + ": backend failure"
	}
	return e.Op + ": " + e.Err.Error()
}

// Is lets BackendError match ErrBackend while Unwrap exposes the cause.
func (e *BackendError) Is(target error) bool { return target == ErrBackend }
func (e *BackendError) Unwrap() error        { return e.Err }

// Backend wraps err as a BackendError unless it is nil or already classified.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

// LimitError reports an exhausted capacity such as concurrent task executions.
type LimitError struct {
	Message string
}

func (e *LimitError) Error() string { return e.Message }
func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// ValidationError aggregates request validation issues.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func (e *ValidationError) Add(issue string) {
	if strings.TrimSpace(issue) == "" {
		return
	}
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// Invalid creates a single-issue ValidationError.
func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Issues: []string{fmt.Sprintf(format, args...)}}
}

// Classified reports whether err already carries one of the error kinds.
func Classified(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrDuplicate, ErrInvalidDSL, ErrInvalid, ErrMissingProperty, ErrBackend, ErrLimitExceeded} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
