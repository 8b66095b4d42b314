package audio

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidDuration = errors.New("capture duration must be a positive number of seconds")

type CaptureRequest struct {
	StreamURL       string
	DurationSeconds int
	// OutputPath is owned by the caller, which is also responsible for
	// removing it with Cleanup.
	OutputPath string
}

type CapturedAudio struct {
	Path string
	Size int64
	Info *AudioInfo // nil when the file could not be probed
}

type AudioInfo struct {
	SampleRate int
	Channels   int
	Duration   time.Duration
}

type CaptureFailure string

const (
	ToolMissing CaptureFailure = "tool_missing"
	Timeout     CaptureFailure = "timeout"
	EmptyOutput CaptureFailure = "empty_output"
)

// CaptureError carries ffmpeg's diagnostic output alongside the failure kind.
type CaptureError struct {
	Kind     CaptureFailure
	Stderr   string
	Deadline time.Duration
	Err      error
}

func (e *CaptureError) Error() string {
	switch e.Kind {
	case ToolMissing:
		return "FFmpeg not found. Please install FFmpeg and ensure it's in your PATH.\n" +
			"Download from: https://ffmpeg.org/download.html"
	case Timeout:
		return fmt.Sprintf("timeout while capturing audio from stream (deadline %s)", e.Deadline)
	default:
		if e.Err != nil {
			return fmt.Sprintf("failed to capture audio (%v). FFmpeg error:\n%s", e.Err, e.Stderr)
		}
		return fmt.Sprintf("failed to capture audio. FFmpeg error:\n%s", e.Stderr)
	}
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
