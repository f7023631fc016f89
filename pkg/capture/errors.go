package capture

import "errors"

var (
	// ErrBodyUsed is returned when a body is read both as a stream and
	// through a single-shot reader.
	ErrBodyUsed = errors.New("capture: body already used")

	// ErrLocked is returned when reading a stream that has been split with
	// Tee.
	ErrLocked = errors.New("capture: stream is locked by tee")

	// ErrClosed is returned when reading a closed stream.
	ErrClosed = errors.New("capture: stream closed")
)
