package controller

import (
	"errors"

	"nowplaying/audio"
	"nowplaying/recognition"
	"nowplaying/stream"
)

// ErrorMessage renders a run error for the terminal, naming the stage that
// failed.
func ErrorMessage(err error) string {
	var (
		resErr *stream.ResolutionError
		capErr *audio.CaptureError
		recErr *recognition.RecognitionError
	)
	switch {
	case errors.Is(err, stream.ErrInvalidReference):
		return "Error resolving stream: invalid stream URL: " + err.Error()
	case errors.Is(err, stream.ErrStreamUnavailable):
		return "Error resolving stream: stream is offline or unavailable"
	case errors.As(err, &resErr):
		return "Error resolving stream: " + resErr.Error()
	case errors.As(err, &capErr), errors.Is(err, audio.ErrInvalidDuration):
		return "Error capturing audio: " + err.Error()
	case errors.As(err, &recErr):
		return "Error recognizing song: " + recErr.Error()
	default:
		return "Error: " + err.Error()
	}
}
