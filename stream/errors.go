package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidReference means no provider plugin recognizes the reference.
	ErrInvalidReference = errors.New("invalid stream reference")
	// ErrStreamUnavailable means the provider was reached but the channel is
	// offline or offers no playable variants.
	ErrStreamUnavailable = errors.New("stream is offline or unavailable")
)

// ResolutionError wraps a failure to reach or query the stream provider.
type ResolutionError struct {
	Reference string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("error accessing stream %s: %v", e.Reference, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
