package config

import (
	"os"
	"strconv"
	"strings"
)

type ConfigStruct struct {
	Logging    LoggingConfig
	Sentry     SentryConfig
	Tools      ToolsConfig
	Recognizer RecognizerConfig
}

type LoggingConfig struct {
	Level string
}

type SentryConfig struct {
	DSN         string
	Release     string
	Environment string
}

type ToolsConfig struct {
	StreamlinkPath string
	FFmpegPath     string
}

type RecognizerConfig struct {
	URL            string
	TimeoutSeconds int
}

const (
	DefaultRecognizerURL = "http://127.0.0.1:3737/recognize"
	DefaultLogLevel      = "info"
)

func (s *SentryConfig) IsEnabled() bool {
	return s.DSN != ""
}

var Config *ConfigStruct

// NewConfig reads the process environment into Config. Settings that belong to a
// single run (stream, duration, cleanup) live in the settings file instead.
func NewConfig() {
	config := &ConfigStruct{
		Logging: LoggingConfig{
			Level: getLogLevel(),
		},
		Sentry: SentryConfig{
			DSN:         os.Getenv("SENTRY_DSN"),
			Release:     os.Getenv("RELEASE"),
			Environment: os.Getenv("ENVIRONMENT"),
		},
		Tools: ToolsConfig{
			StreamlinkPath: getEnvOrDefault("STREAMLINK_PATH", "streamlink"),
			FFmpegPath:     getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		},
		Recognizer: RecognizerConfig{
			URL:            getEnvOrDefault("RECOGNIZER_URL", DefaultRecognizerURL),
			TimeoutSeconds: getRecognizerTimeout(),
		},
	}

	Config = config
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getLogLevel() string {
	level := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	switch level {
	case "trace", "debug", "info", "warn", "warning", "error":
		return level
	default:
		return DefaultLogLevel
	}
}

func getRecognizerTimeout() int {
	timeoutStr := os.Getenv("RECOGNIZER_TIMEOUT_SECONDS")
	if timeoutStr == "" {
		return 30
	}
	timeout, err := strconv.Atoi(timeoutStr)
	if err != nil || timeout <= 0 {
		return 30
	}
	if timeout < 5 {
		return 5
	}
	if timeout > 120 {
		return 120 // a single recognition request never needs more
	}
	return timeout
}
