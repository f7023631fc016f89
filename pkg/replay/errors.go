package replay

import (
	"errors"
	"fmt"

	"mercator-hq/playback/pkg/fingerprint"
)

// ErrNoMatch is wrapped by MissError.
var ErrNoMatch = errors.New("no matching offline response")

// MissError is returned for a request that matches no recording when the
// miss policy is MissFail.
type MissError struct {
	Method   string
	URL      string
	Identity fingerprint.Identity
}

// Error implements the error interface.
func (e *MissError) Error() string {
	return fmt.Sprintf("replay miss [method=%s, url=%s, identity=%s]: %v", e.Method, e.URL, e.Identity, ErrNoMatch)
}

// Unwrap returns ErrNoMatch.
func (e *MissError) Unwrap() error {
	return ErrNoMatch
}
