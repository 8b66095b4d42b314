package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

const (
	DefaultSettingsPath    = "config.json"
	DefaultDurationSeconds = 10
	DefaultAudioPath       = "captured_audio.mp3"

	// PlaceholderStreamURL is the value shipped in the sample settings file.
	PlaceholderStreamURL = "https://twitch.tv/username"

	SampleSettings = `{"stream_url": "https://twitch.tv/username", "duration_seconds": 10}`
)

var (
	ErrConfigNotFound       = errors.New("config file not found")
	ErrMissingStreamURL     = errors.New("stream_url is not set")
	ErrPlaceholderStreamURL = errors.New("stream_url is still the example value")
	ErrInvalidDuration      = errors.New("duration_seconds must be a positive integer")
)

// ParseError reports a settings file that exists but is not valid JSON.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid JSON in config file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Settings describes a single identification run.
type Settings struct {
	StreamURL       string
	DurationSeconds int
	CleanupAudio    bool
	AudioPath       string
	RecognizerURL   string
}

type settingsFile struct {
	StreamURL       string `json:"stream_url"`
	DurationSeconds *int   `json:"duration_seconds"`
	CleanupAudio    *bool  `json:"cleanup_audio"`
	AudioPath       string `json:"audio_path"`
	RecognizerURL   string `json:"recognizer_url"`
}

// LoadSettings reads the JSON settings file at path and fills in defaults for
// absent keys. It does not validate the result; call Validate after applying
// command-line overrides.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		path = DefaultSettingsPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw settingsFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	settings := &Settings{
		StreamURL:       strings.TrimSpace(raw.StreamURL),
		DurationSeconds: DefaultDurationSeconds,
		CleanupAudio:    true,
		AudioPath:       DefaultAudioPath,
		RecognizerURL:   strings.TrimSpace(raw.RecognizerURL),
	}
	if raw.DurationSeconds != nil {
		settings.DurationSeconds = *raw.DurationSeconds
	}
	if raw.CleanupAudio != nil {
		settings.CleanupAudio = *raw.CleanupAudio
	}
	if p := strings.TrimSpace(raw.AudioPath); p != "" {
		settings.AudioPath = p
	}

	return settings, nil
}

// ApplyOverrides replaces the stream URL and duration with command-line values.
// Zero values mean the flag was not given.
func (s *Settings) ApplyOverrides(streamURL string, durationSeconds int) {
	if u := strings.TrimSpace(streamURL); u != "" {
		s.StreamURL = u
	}
	if durationSeconds != 0 {
		s.DurationSeconds = durationSeconds
	}
}

func (s *Settings) Validate() error {
	if s.StreamURL == "" {
		return ErrMissingStreamURL
	}
	if s.StreamURL == PlaceholderStreamURL {
		return ErrPlaceholderStreamURL
	}
	if s.DurationSeconds <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, s.DurationSeconds)
	}
	return nil
}
