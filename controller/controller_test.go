package controller

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nowplaying/audio"
	"nowplaying/recognition"
	"nowplaying/stream"

	"github.com/fatih/color"
	sentry "github.com/getsentry/sentry-go"
)

func init() {
	color.NoColor = true
}

type fakeResolver struct {
	resolved *stream.ResolvedStream
	err      error
	calls    int
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) (*stream.ResolvedStream, error) {
	f.calls++
	return f.resolved, f.err
}

type fakeCapturer struct {
	payload string
	err     error
	calls   int
	request audio.CaptureRequest
}

func (f *fakeCapturer) Capture(_ context.Context, req audio.CaptureRequest) (*audio.CapturedAudio, error) {
	f.calls++
	f.request = req
	if f.err != nil {
		return nil, f.err
	}
	if err := os.WriteFile(req.OutputPath, []byte(f.payload), 0644); err != nil {
		return nil, err
	}
	return &audio.CapturedAudio{Path: req.OutputPath, Size: int64(len(f.payload))}, nil
}

type fakeIdentifier struct {
	result *recognition.Result
	err    error
	calls  int
	path   string
	// sawFile records whether the clip existed when Identify ran.
	sawFile bool
}

func (f *fakeIdentifier) Identify(_ context.Context, path string) (*recognition.Result, error) {
	f.calls++
	f.path = path
	_, err := os.Stat(path)
	f.sawFile = err == nil
	return f.result, f.err
}

func strp(s string) *string { return &s }

func audioOnly() *fakeResolver {
	return &fakeResolver{resolved: &stream.ResolvedStream{URL: "https://cdn.example.tv/audio.m3u8", Variant: "audio_only"}}
}

func options(t *testing.T) RunOptions {
	t.Helper()
	return RunOptions{
		StreamURL:       "https://example.tv/alice",
		DurationSeconds: 10,
		AudioPath:       filepath.Join(t.TempDir(), "captured_audio.mp3"),
		CleanupAudio:    true,
	}
}

func assertRemoved(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected %s to be removed, stat err = %v", path, err)
	}
}

func TestRunIdentifiesSong(t *testing.T) {
	resolver := audioOnly()
	capturer := &fakeCapturer{payload: "mp3"}
	identifier := &fakeIdentifier{result: &recognition.Result{
		Found:  true,
		Title:  strp("Blinding Lights"),
		Artist: strp("The Weeknd"),
		Album:  strp("After Hours"),
	}}
	var out bytes.Buffer
	opts := options(t)

	result, err := NewController(resolver, capturer, identifier, &out).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Found {
		t.Fatal("expected Found = true")
	}

	if capturer.request.StreamURL != "https://cdn.example.tv/audio.m3u8" {
		t.Errorf("capture StreamURL = %q, want the resolved URL", capturer.request.StreamURL)
	}
	if capturer.request.DurationSeconds != 10 {
		t.Errorf("capture DurationSeconds = %d, want 10", capturer.request.DurationSeconds)
	}
	if capturer.request.OutputPath != opts.AudioPath {
		t.Errorf("capture OutputPath = %q, want %q", capturer.request.OutputPath, opts.AudioPath)
	}
	if !identifier.sawFile {
		t.Error("identifier ran without the captured file on disk")
	}

	got := out.String()
	for _, want := range []string{
		"Listening to: https://example.tv/alice",
		"Capturing 10 seconds of audio...",
		"Audio captured: " + opts.AudioPath,
		"Identifying song...",
		">> Now playing: Blinding Lights by The Weeknd",
		"Album: After Hours",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Audio saved") {
		t.Errorf("unexpected retention notice:\n%s", got)
	}
	assertRemoved(t, opts.AudioPath)
}

func TestRunWithoutAlbum(t *testing.T) {
	identifier := &fakeIdentifier{result: &recognition.Result{
		Found: true, Title: strp("Creep"), Artist: strp("Radiohead"),
	}}
	var out bytes.Buffer

	_, err := NewController(audioOnly(), &fakeCapturer{payload: "mp3"}, identifier, &out).Run(context.Background(), options(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), ">> Now playing: Creep by Radiohead") {
		t.Errorf("output = %q", out.String())
	}
	if strings.Contains(out.String(), "Album:") {
		t.Errorf("unexpected album line: %q", out.String())
	}
}

func TestRunNoMatch(t *testing.T) {
	identifier := &fakeIdentifier{result: &recognition.Result{Found: false}}
	var out bytes.Buffer
	opts := options(t)

	result, err := NewController(audioOnly(), &fakeCapturer{payload: "mp3"}, identifier, &out).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v, a missing match is not an error", err)
	}
	if result.Found {
		t.Error("expected Found = false")
	}
	if !strings.Contains(out.String(), "Could not identify the song") {
		t.Errorf("output = %q", out.String())
	}
	assertRemoved(t, opts.AudioPath)
}

// recordSentryMessages binds a client to the current hub that records
// message events instead of sending them.
func recordSentryMessages(t *testing.T) *[]string {
	t.Helper()
	var messages []string
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Message != "" {
				messages = append(messages, event.Message)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	hub := sentry.CurrentHub()
	prev := hub.Client()
	hub.BindClient(client)
	t.Cleanup(func() { hub.BindClient(prev) })
	return &messages
}

func TestRunNoMatchReportsMessage(t *testing.T) {
	messages := recordSentryMessages(t)
	var out bytes.Buffer

	_, err := NewController(audioOnly(), &fakeCapturer{payload: "mp3"}, &fakeIdentifier{result: &recognition.Result{}}, &out).Run(context.Background(), options(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(*messages) != 1 || (*messages)[0] != "no song detected" {
		t.Errorf("sentry messages = %q, want [\"no song detected\"]", *messages)
	}
}

func TestRunMatchSendsNoMessage(t *testing.T) {
	messages := recordSentryMessages(t)
	identifier := &fakeIdentifier{result: &recognition.Result{Found: true, Title: strp("Creep"), Artist: strp("Radiohead")}}
	var out bytes.Buffer

	if _, err := NewController(audioOnly(), &fakeCapturer{payload: "mp3"}, identifier, &out).Run(context.Background(), options(t)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(*messages) != 0 {
		t.Errorf("sentry messages = %q, want none", *messages)
	}
}

func TestRunRetainsAudio(t *testing.T) {
	identifier := &fakeIdentifier{result: &recognition.Result{Found: false}}
	var out bytes.Buffer
	opts := options(t)
	opts.CleanupAudio = false

	_, err := NewController(audioOnly(), &fakeCapturer{payload: "mp3"}, identifier, &out).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(opts.AudioPath); err != nil {
		t.Errorf("expected retained audio at %s: %v", opts.AudioPath, err)
	}
	if !strings.Contains(out.String(), "Audio saved: "+opts.AudioPath) {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunStreamUnavailable(t *testing.T) {
	resolver := &fakeResolver{err: stream.ErrStreamUnavailable}
	capturer := &fakeCapturer{payload: "mp3"}
	identifier := &fakeIdentifier{}
	var out bytes.Buffer
	opts := options(t)

	_, err := NewController(resolver, capturer, identifier, &out).Run(context.Background(), opts)
	if !errors.Is(err, stream.ErrStreamUnavailable) {
		t.Fatalf("expected ErrStreamUnavailable, got %v", err)
	}
	if capturer.calls != 0 || identifier.calls != 0 {
		t.Errorf("capture/identify called %d/%d times after resolution failed", capturer.calls, identifier.calls)
	}
	assertRemoved(t, opts.AudioPath)
	if !strings.Contains(ErrorMessage(err), "offline or unavailable") {
		t.Errorf("ErrorMessage() = %q", ErrorMessage(err))
	}
}

func TestRunCaptureFailure(t *testing.T) {
	capErr := &audio.CaptureError{Kind: audio.EmptyOutput, Stderr: "Connection refused"}
	identifier := &fakeIdentifier{}
	var out bytes.Buffer

	_, err := NewController(audioOnly(), &fakeCapturer{err: capErr}, identifier, &out).Run(context.Background(), options(t))
	if !errors.Is(err, capErr) {
		t.Fatalf("expected capture error, got %v", err)
	}
	if identifier.calls != 0 {
		t.Error("identify must not run after a failed capture")
	}
	if !strings.HasPrefix(ErrorMessage(err), "Error capturing audio:") {
		t.Errorf("ErrorMessage() = %q", ErrorMessage(err))
	}
}

func TestRunRecognitionFailureStillCleansUp(t *testing.T) {
	recErr := &recognition.RecognitionError{Err: errors.New("status 500")}
	var out bytes.Buffer
	opts := options(t)
	opts.CleanupAudio = true

	_, err := NewController(audioOnly(), &fakeCapturer{payload: "mp3"}, &fakeIdentifier{err: recErr}, &out).Run(context.Background(), opts)
	if !errors.Is(err, recErr) {
		t.Fatalf("expected recognition error, got %v", err)
	}
	assertRemoved(t, opts.AudioPath)
	if !strings.HasPrefix(ErrorMessage(err), "Error recognizing song:") {
		t.Errorf("ErrorMessage() = %q", ErrorMessage(err))
	}
}

func TestRunCanceledDuringIdentify(t *testing.T) {
	var out bytes.Buffer
	opts := options(t)
	opts.CleanupAudio = false

	_, err := NewController(audioOnly(), &fakeCapturer{payload: "mp3"}, &fakeIdentifier{err: context.Canceled}, &out).Run(context.Background(), opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// Retention was requested and capture succeeded, so the clip stays.
	if _, err := os.Stat(opts.AudioPath); err != nil {
		t.Errorf("expected retained audio: %v", err)
	}
}

func TestRunCanceledDuringCapture(t *testing.T) {
	var out bytes.Buffer
	opts := options(t)
	opts.CleanupAudio = false
	if err := os.WriteFile(opts.AudioPath, []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewController(audioOnly(), &fakeCapturer{err: context.Canceled}, &fakeIdentifier{}, &out).Run(context.Background(), opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	assertRemoved(t, opts.AudioPath)
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid reference", stream.ErrInvalidReference, "Error resolving stream: invalid stream URL"},
		{"resolution", &stream.ResolutionError{Reference: "x", Err: errors.New("dns")}, "Error resolving stream: error accessing stream x: dns"},
		{"tool missing", &audio.CaptureError{Kind: audio.ToolMissing}, "Error capturing audio: FFmpeg not found"},
		{"timeout", &audio.CaptureError{Kind: audio.Timeout}, "Error capturing audio: timeout"},
		{"other", errors.New("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); !strings.HasPrefix(got, tt.want) {
				t.Errorf("ErrorMessage() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}
