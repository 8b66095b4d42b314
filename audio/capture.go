package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultGrace is added to the capture duration to form the hard deadline
	// for the ffmpeg process. It covers connecting to the stream.
	DefaultGrace = 30 * time.Second

	SampleRate = 44100
	Channels   = 2
	Bitrate    = "192k"

	// maxWaitDelay bounds how long Wait keeps reading ffmpeg's stderr after
	// the process is killed.
	maxWaitDelay = 2 * time.Second
)

// Capturer records fixed-length MP3 clips from a media URL with ffmpeg.
type Capturer struct {
	// FFmpegPath is the path to the ffmpeg executable. Defaults to "ffmpeg".
	FFmpegPath string
	// Grace overrides DefaultGrace when positive.
	Grace  time.Duration
	logger *log.Entry
}

// NewCapturer returns a Capturer that runs the ffmpeg binary at ffmpegPath.
func NewCapturer(ffmpegPath string) *Capturer {
	return &Capturer{
		FFmpegPath: ffmpegPath,
		Grace:      DefaultGrace,
		logger: log.WithFields(log.Fields{
			"module": "audio-capture",
		}),
	}
}

// captureArgs starts near the live edge, drops video and encodes a fixed
// 44.1kHz stereo 192kbps MP3 profile.
func captureArgs(streamURL string, durationSeconds int, outputPath string) []string {
	return []string{
		"-y",
		"-live_start_index", "-3",
		"-i", streamURL,
		"-t", strconv.Itoa(durationSeconds),
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-b:a", Bitrate,
		outputPath,
	}
}

func (c *Capturer) deadline(durationSeconds int) time.Duration {
	grace := c.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	return time.Duration(durationSeconds)*time.Second + grace
}

// waitDelay returns the part of deadline reserved for draining stderr after
// a kill. The kill fires at deadline minus this value.
func waitDelay(deadline time.Duration) time.Duration {
	return min(maxWaitDelay, deadline/4)
}

// Capture records req.DurationSeconds of audio from req.StreamURL into
// req.OutputPath. On any failure the output path holds no file. A canceled ctx
// is returned as ctx.Err() rather than a *CaptureError.
func (c *Capturer) Capture(ctx context.Context, req CaptureRequest) (*CapturedAudio, error) {
	if req.DurationSeconds <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDuration, req.DurationSeconds)
	}
	if req.OutputPath == "" {
		return nil, errors.New("capture output path is required")
	}

	logger := c.logger
	if logger == nil {
		logger = log.WithField("module", "audio-capture")
	}
	logger = logger.WithField("output", req.OutputPath)

	span := sentry.StartSpan(ctx, "audio.capture")
	span.Description = "Capture audio from stream via ffmpeg"
	span.SetTag("duration_seconds", strconv.Itoa(req.DurationSeconds))
	defer span.Finish()

	// A stale clip from an earlier run must never satisfy the size check below.
	Cleanup(req.OutputPath)

	bin := c.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}

	deadline := c.deadline(req.DurationSeconds)
	drain := waitDelay(deadline)
	runCtx, cancel := context.WithTimeout(ctx, deadline-drain)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, captureArgs(req.StreamURL, req.DurationSeconds, req.OutputPath)...)
	// ffmpeg may leave children holding stderr open after being killed.
	cmd.WaitDelay = drain

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debugf("starting ffmpeg with deadline %s", deadline)
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		switch {
		case ctx.Err() != nil:
			Cleanup(req.OutputPath)
			span.Status = sentry.SpanStatusCanceled
			return nil, ctx.Err()
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			Cleanup(req.OutputPath)
			logger.Errorf("ffmpeg timed out after %s", elapsed)
			span.Status = sentry.SpanStatusDeadlineExceeded
			return nil, &CaptureError{Kind: Timeout, Stderr: stderr.String(), Deadline: deadline, Err: context.DeadlineExceeded}
		case cmd.ProcessState == nil && (errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist)):
			span.Status = sentry.SpanStatusFailedPrecondition
			return nil, &CaptureError{Kind: ToolMissing, Err: runErr}
		}
		// A non-zero exit can still leave a usable file; the size check decides.
		logger.Warnf("ffmpeg exited with error after %s: %v", elapsed, runErr)
	}

	fi, err := os.Stat(req.OutputPath)
	if err != nil || fi.Size() == 0 {
		Cleanup(req.OutputPath)
		span.Status = sentry.SpanStatusInternalError
		return nil, &CaptureError{Kind: EmptyOutput, Stderr: stderr.String(), Err: runErr}
	}

	captured := &CapturedAudio{
		Path: req.OutputPath,
		Size: fi.Size(),
	}

	if info, err := Probe(req.OutputPath); err != nil {
		logger.Warnf("could not probe captured audio: %v", err)
	} else {
		captured.Info = info
		if info.SampleRate != SampleRate || info.Channels != Channels {
			logger.Warnf("captured audio is %d Hz / %d channels, expected %d Hz / %d channels",
				info.SampleRate, info.Channels, SampleRate, Channels)
		}
		span.SetData("audio_duration_ms", info.Duration.Milliseconds())
	}

	logger.Debugf("captured %.2f KB in %s", float64(fi.Size())/1024, elapsed)
	span.Status = sentry.SpanStatusOK
	span.SetData("size_bytes", fi.Size())
	return captured, nil
}

// Cleanup removes path. Failures are logged and otherwise ignored.
func Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithFields(log.Fields{"module": "audio-capture", "path": path}).
			Warnf("failed to remove captured audio: %v", err)
	}
}
