package protocol

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every ValidationError so callers can test with
// errors.Is without caring about the offending path.
var ErrValidation = errors.New("protocol: validation failed")

// ValidationError reports a structural mismatch in an inbound frame.
// Path is a JSONPath-like locator such as "actions[1].color"; "$" is the
// document root.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("protocol: invalid %s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(path, format string, args ...any) *ValidationError {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
