package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"nowplaying/audio"
	"nowplaying/recognition"
	"nowplaying/sentryhelper"
	"nowplaying/stream"

	"github.com/fatih/color"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Resolver interface {
	Resolve(ctx context.Context, reference string) (*stream.ResolvedStream, error)
}

type Capturer interface {
	Capture(ctx context.Context, req audio.CaptureRequest) (*audio.CapturedAudio, error)
}

type Identifier interface {
	Identify(ctx context.Context, path string) (*recognition.Result, error)
}

type RunOptions struct {
	StreamURL       string
	DurationSeconds int
	// AudioPath is where the clip is written for the lifetime of the run.
	// Two runs sharing a path would race on it; nothing locks it.
	AudioPath    string
	CleanupAudio bool
}

// Controller sequences one identification run: resolve, capture, identify,
// report. It keeps no state between runs.
type Controller struct {
	resolver   Resolver
	capturer   Capturer
	identifier Identifier
	out        io.Writer
	cleanup    func(path string)
}

var (
	nowPlaying = color.New(color.FgGreen, color.Bold)
	notFound   = color.New(color.FgYellow)
	detail     = color.New(color.FgHiBlack)
)

func NewController(resolver Resolver, capturer Capturer, identifier Identifier, out io.Writer) *Controller {
	return &Controller{
		resolver:   resolver,
		capturer:   capturer,
		identifier: identifier,
		out:        out,
		cleanup:    audio.Cleanup,
	}
}

// Run performs a single identification. A Result with Found false is a
// successful run. The capture file is removed on every return path unless
// opts.CleanupAudio is false and the capture succeeded.
func (c *Controller) Run(ctx context.Context, opts RunOptions) (*recognition.Result, error) {
	runID := uuid.NewString()
	logger := log.WithFields(log.Fields{
		"module": "controller",
		"run_id": runID,
	})

	ctx, transaction := sentryhelper.StartRunTransaction(ctx, runID, opts.StreamURL)
	defer transaction.Finish()

	audioPath := opts.AudioPath
	if audioPath == "" {
		audioPath = "captured_audio.mp3"
	}
	if abs, err := filepath.Abs(audioPath); err == nil {
		audioPath = abs
	}

	fmt.Fprintf(c.out, "Listening to: %s\n", opts.StreamURL)
	fmt.Fprintf(c.out, "Capturing %d seconds of audio...\n", opts.DurationSeconds)

	resolved, err := c.resolver.Resolve(ctx, opts.StreamURL)
	if err != nil {
		return nil, c.fail(ctx, logger, err)
	}
	logger.WithField("variant", resolved.Variant).Debug("stream resolved")
	sentryhelper.AddBreadcrumb(ctx, "stream", "resolved variant "+resolved.Variant)

	captured := false
	defer func() {
		if captured && !opts.CleanupAudio {
			fmt.Fprintf(c.out, "\nAudio saved: %s\n", audioPath)
			return
		}
		c.cleanup(audioPath)
	}()

	clip, err := c.capturer.Capture(ctx, audio.CaptureRequest{
		StreamURL:       resolved.URL,
		DurationSeconds: opts.DurationSeconds,
		OutputPath:      audioPath,
	})
	if err != nil {
		return nil, c.fail(ctx, logger, err)
	}
	captured = true
	sentryhelper.AddBreadcrumb(ctx, "audio", fmt.Sprintf("captured %d bytes", clip.Size))

	fmt.Fprintf(c.out, "Audio captured: %s\n", clip.Path)
	fmt.Fprintln(c.out, "Identifying song...")

	result, err := c.identifier.Identify(ctx, clip.Path)
	if err != nil {
		return nil, c.fail(ctx, logger, err)
	}

	c.report(result)
	if !result.Found {
		sentryhelper.CaptureMessage(ctx, "no song detected")
	}
	logger.WithField("found", result.Found).Info(result.String())
	return result, nil
}

func (c *Controller) report(result *recognition.Result) {
	if !result.Found {
		notFound.Fprintln(c.out, "\n>> Could not identify the song (no music detected or too much noise)")
		return
	}
	nowPlaying.Fprintf(c.out, "\n>> Now playing: %s by %s\n", deref(result.Title), deref(result.Artist))
	if result.Album != nil && *result.Album != "" {
		detail.Fprintf(c.out, "   Album: %s\n", *result.Album)
	}
}

// fail logs and reports err unless the run was canceled, and returns it
// unchanged.
func (c *Controller) fail(ctx context.Context, logger *log.Entry, err error) error {
	if errors.Is(err, context.Canceled) {
		logger.Debug("run canceled")
		return err
	}
	logger.Errorf("run failed: %v", err)
	sentryhelper.CaptureException(ctx, err)
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
