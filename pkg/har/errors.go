package har

import (
	"errors"
	"fmt"
)

// ErrMalformedEntry is wrapped by every MalformedEntryError.
var ErrMalformedEntry = errors.New("malformed har entry")

// MalformedEntryError reports an entry skipped during import.
type MalformedEntryError struct {
	Index int    // Position of the entry in log.entries
	Field string // Missing or invalid field, e.g. "request.url"
	Cause error  // Optional decoding error
}

// Error implements the error interface.
func (e *MalformedEntryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed har entry [index=%d, field=%s]: %v", e.Index, e.Field, e.Cause)
	}
	return fmt.Sprintf("malformed har entry [index=%d, field=%s]: missing", e.Index, e.Field)
}

// Unwrap returns ErrMalformedEntry and the cause, if any.
func (e *MalformedEntryError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrMalformedEntry, e.Cause}
	}
	return []error{ErrMalformedEntry}
}
