package recording

import (
	"errors"
	"fmt"
)

// ErrMalformed is the sentinel wrapped by every MalformedError.
var ErrMalformed = errors.New("malformed recording")

// MalformedError reports a persisted snapshot that is missing a required
// field or carries an invalid value.
type MalformedError struct {
	Field  string // Path of the offending field, e.g. "responses[123].status"
	Reason string // Short description, defaults to "missing"
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing"
	}
	return fmt.Sprintf("malformed recording [field=%s]: %s", e.Field, reason)
}

// Unwrap returns ErrMalformed.
func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}

// NewMalformedError creates a new MalformedError.
func NewMalformedError(field, reason string) *MalformedError {
	return &MalformedError{
		Field:  field,
		Reason: reason,
	}
}

// CodecError represents a failure to encode, decode or persist a snapshot.
type CodecError struct {
	Format    Format // Snapshot format
	Operation string // "encode", "decode", "save" or "load"
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	return fmt.Sprintf("codec error [format=%s, operation=%s]: %v", e.Format, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *CodecError) Unwrap() error {
	return e.Cause
}

// NewCodecError creates a new CodecError.
func NewCodecError(format Format, operation string, cause error) *CodecError {
	return &CodecError{
		Format:    format,
		Operation: operation,
		Cause:     cause,
	}
}
